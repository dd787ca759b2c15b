package main

import (
	"context"
	"fmt"
	"os"

	"github.com/veandco/go-sdl2/sdl"

	"gocart/cart"
	"gocart/emu"
)

// runMain runs the console with the given cartridge.
func runMain(args Run) {
	var exitcode int
	sdl.Main(func() {
		cfg := emu.LoadConfigOrDefault()
		if args.Scale > 0 {
			cfg.Video.Scale = args.Scale
		}
		if args.DisableAudio {
			cfg.Audio.DisableAudio = true
		}

		rt := cart.NewRuntime(context.Background())
		defer rt.Close()

		load := emu.LoaderFunc(func(path string) (emu.Module, error) {
			return rt.Load(path)
		})

		console, err := emu.Launch(args.CartPath, args.Width, args.Height, load, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start console: %v\n", err)
			exitcode = 1
			return
		}

		console.Run()
	})
	os.Exit(exitcode)
}
