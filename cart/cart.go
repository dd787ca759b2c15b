// Package cart loads and drives cartridges: sandboxed WebAssembly programs
// exporting the console ABI. The host owns nothing inside the module; every
// data transfer goes through an explicit, bounds-checked read of the
// module's linear memory.
package cart

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Required entry points. A cartridge missing any of these is rejected at
// load time.
const (
	expInit     = "init"
	expTick     = "tick"
	expDrawPtr  = "draw_ptr"
	expDrawLen  = "draw_len"
	expInputSet = "input_set"
)

// Optional entry points. Absent means the cartridge produces no audio.
const (
	expAudioPtr = "audio_state_ptr"
	expAudioLen = "audio_state_len"
)

// ABIError reports a violation of the cartridge ABI: a missing required
// export, or a pointer+length pair falling outside the module's memory.
type ABIError struct {
	Reason string
}

func (e *ABIError) Error() string { return "cartridge abi: " + e.Reason }

// TrapError reports a cartridge entry point that faulted during execution.
type TrapError struct {
	Export string
	Err    error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("cartridge trapped in %s: %s", e.Export, e.Err)
}

func (e *TrapError) Unwrap() error { return e.Err }

// Runtime compiles and instantiates cartridges. A single Runtime outlives
// all the module instances it creates, including across hot reloads.
type Runtime struct {
	ctx context.Context
	rt  wazero.Runtime
}

func NewRuntime(ctx context.Context) *Runtime {
	rt := wazero.NewRuntime(ctx)

	// Cartridges built with toolchains targeting WASI (TinyGo for one)
	// import wasi_snapshot_preview1. Cartridges that don't are unaffected.
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	return &Runtime{ctx: ctx, rt: rt}
}

func (r *Runtime) Close() error {
	return r.rt.Close(r.ctx)
}

// Handle is the live binding to a cartridge instance: its linear memory and
// resolved entry points. A hot reload swaps the whole Handle, never
// individual fields.
type Handle struct {
	ctx context.Context
	mod api.Module
	mem api.Memory

	init     api.Function
	tick     api.Function
	drawPtr  api.Function
	drawLen  api.Function
	inputSet api.Function

	// nil when the cartridge exports no audio state.
	audioPtr api.Function
	audioLen api.Function
}

// Load instantiates the cartridge at path and resolves its ABI. The
// instance is anonymous so successive loads of the same file never collide,
// and no start function runs: the console calls init explicitly.
func (r *Runtime) Load(path string) (*Handle, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := r.rt.InstantiateWithConfig(r.ctx, bin, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", path, err)
	}

	h := &Handle{ctx: r.ctx, mod: mod}

	h.mem = mod.ExportedMemory("memory")
	if h.mem == nil {
		mod.Close(r.ctx)
		return nil, &ABIError{Reason: "no exported memory"}
	}

	i32 := []api.ValueType{api.ValueTypeI32}
	f32 := []api.ValueType{api.ValueTypeF32}

	required := []struct {
		name            string
		fn              *api.Function
		params, results []api.ValueType
	}{
		{expInit, &h.init, nil, nil},
		{expTick, &h.tick, f32, nil},
		{expDrawPtr, &h.drawPtr, nil, i32},
		{expDrawLen, &h.drawLen, nil, i32},
		{expInputSet, &h.inputSet, i32, nil},
	}
	for _, req := range required {
		*req.fn = mod.ExportedFunction(req.name)
		if *req.fn == nil {
			mod.Close(r.ctx)
			return nil, &ABIError{Reason: "missing required export " + req.name}
		}
		if err := checkSignature((*req.fn).Definition(), req.name, req.params, req.results); err != nil {
			mod.Close(r.ctx)
			return nil, err
		}
	}

	// Audio is optional, but only as a pair, and a declared export must
	// still carry the right signature.
	h.audioPtr = mod.ExportedFunction(expAudioPtr)
	h.audioLen = mod.ExportedFunction(expAudioLen)
	if h.audioPtr == nil || h.audioLen == nil {
		h.audioPtr, h.audioLen = nil, nil
	} else {
		for name, fn := range map[string]api.Function{expAudioPtr: h.audioPtr, expAudioLen: h.audioLen} {
			if err := checkSignature(fn.Definition(), name, nil, i32); err != nil {
				mod.Close(r.ctx)
				return nil, err
			}
		}
	}

	return h, nil
}

// checkSignature rejects an export whose wasm type differs from the ABI.
// Calling a mistyped export would fault in the host instead of the sandbox.
func checkSignature(def api.FunctionDefinition, name string, params, results []api.ValueType) error {
	if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
		return &ABIError{Reason: fmt.Sprintf("export %s has signature %s, want %s",
			name,
			sigString(def.ParamTypes(), def.ResultTypes()),
			sigString(params, results))}
	}
	return nil
}

func sigString(params, results []api.ValueType) string {
	names := func(types []api.ValueType) string {
		strs := make([]string, len(types))
		for i, t := range types {
			strs[i] = api.ValueTypeName(t)
		}
		return strings.Join(strs, ",")
	}
	return fmt.Sprintf("(%s)->(%s)", names(params), names(results))
}

func (h *Handle) Close() error {
	return h.mod.Close(h.ctx)
}

// HasAudio reports whether the cartridge exports the audio state block.
func (h *Handle) HasAudio() bool { return h.audioPtr != nil }

func (h *Handle) Init() error {
	if _, err := h.init.Call(h.ctx); err != nil {
		return &TrapError{Export: expInit, Err: err}
	}
	return nil
}

func (h *Handle) Tick(dtMS float32) error {
	if _, err := h.tick.Call(h.ctx, api.EncodeF32(dtMS)); err != nil {
		return &TrapError{Export: expTick, Err: err}
	}
	return nil
}

func (h *Handle) SetInput(bits uint32) error {
	if _, err := h.inputSet.Call(h.ctx, uint64(bits)); err != nil {
		return &TrapError{Export: expInputSet, Err: err}
	}
	return nil
}

func (h *Handle) callU32(fn api.Function, name string) (uint32, error) {
	res, err := fn.Call(h.ctx)
	if err != nil {
		return 0, &TrapError{Export: name, Err: err}
	}
	return uint32(res[0]), nil
}

// ReadFrame re-resolves the framebuffer pointer and length, then copies the
// pixels into dst. The reported length must match the presentation surface
// exactly and the whole region must fit in the module's memory.
func (h *Handle) ReadFrame(dst []byte) error {
	ptr, err := h.callU32(h.drawPtr, expDrawPtr)
	if err != nil {
		return err
	}
	n, err := h.callU32(h.drawLen, expDrawLen)
	if err != nil {
		return err
	}
	if int(n) != len(dst) {
		return &ABIError{Reason: fmt.Sprintf("framebuffer is %d bytes, surface wants %d", n, len(dst))}
	}
	src, err := h.view(ptr, n)
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// ReadAudioBlock returns a copy of the cartridge's audio parameter block,
// or nil when the cartridge exports no audio state or reports a block
// smaller than AudioBlockSize. Both mean "no parameter update this tick".
func (h *Handle) ReadAudioBlock() ([]byte, error) {
	if h.audioPtr == nil {
		return nil, nil
	}
	ptr, err := h.callU32(h.audioPtr, expAudioPtr)
	if err != nil {
		return nil, err
	}
	n, err := h.callU32(h.audioLen, expAudioLen)
	if err != nil {
		return nil, err
	}
	if n < AudioBlockSize {
		return nil, nil
	}
	// Only the first AudioBlockSize bytes are consumed; a larger reported
	// length doesn't need to fit in memory as long as the block does.
	src, err := h.view(ptr, AudioBlockSize)
	if err != nil {
		return nil, err
	}
	block := make([]byte, AudioBlockSize)
	copy(block, src)
	return block, nil
}

// view returns a window into the module's memory, valid only until the next
// call into the module. Callers must copy before returning.
func (h *Handle) view(ptr, n uint32) ([]byte, error) {
	if err := checkBounds(h.mem.Size(), ptr, n); err != nil {
		return nil, err
	}
	buf, ok := h.mem.Read(ptr, n)
	if !ok {
		return nil, &ABIError{Reason: fmt.Sprintf("memory read [%#x, %#x) failed", ptr, uint64(ptr)+uint64(n))}
	}
	return buf, nil
}

func checkBounds(size, ptr, n uint32) error {
	if uint64(ptr)+uint64(n) > uint64(size) {
		return &ABIError{
			Reason: fmt.Sprintf("region [%#x, %#x) exceeds memory size %#x", ptr, uint64(ptr)+uint64(n), size),
		}
	}
	return nil
}
