package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/go-faster/jx"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// infosMain compiles the cartridge without instantiating it and prints its
// exported functions and memories as JSON.
func infosMain(args Infos) {
	bin, err := os.ReadFile(args.CartPath)
	checkf(err, "failed to read cartridge")

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.CompileModule(ctx, bin)
	checkf(err, "failed to compile cartridge")

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("file", func(e *jx.Encoder) { e.Str(args.CartPath) })
		e.Field("size", func(e *jx.Encoder) { e.Int(len(bin)) })

		funcs := mod.ExportedFunctions()
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		slices.Sort(names)

		e.Field("functions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, name := range names {
					def := funcs[name]
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(name) })
						e.Field("params", func(e *jx.Encoder) { encodeTypes(e, def.ParamTypes()) })
						e.Field("results", func(e *jx.Encoder) { encodeTypes(e, def.ResultTypes()) })
					})
				}
			})
		})

		e.Field("memories", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for name, def := range mod.ExportedMemories() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(name) })
						e.Field("min_pages", func(e *jx.Encoder) { e.UInt32(def.Min()) })
						if max, ok := def.Max(); ok {
							e.Field("max_pages", func(e *jx.Encoder) { e.UInt32(max) })
						}
					})
				}
			})
		})
	})

	fmt.Println(string(e.Bytes()))
}

func encodeTypes(e *jx.Encoder, types []api.ValueType) {
	e.Arr(func(e *jx.Encoder) {
		for _, t := range types {
			e.Str(api.ValueTypeName(t))
		}
	})
}
