package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tetratelabs/wazero/api"

	"gocart/hw/synth"
)

type fakeDef struct {
	api.FunctionDefinition
	params, results []api.ValueType
}

func (d fakeDef) ParamTypes() []api.ValueType  { return d.params }
func (d fakeDef) ResultTypes() []api.ValueType { return d.results }

type fakeFn struct {
	api.Function
	ret uint64
}

func (f fakeFn) Call(ctx context.Context, _ ...uint64) ([]uint64, error) {
	return []uint64{f.ret}, nil
}

type fakeMemory struct {
	api.Memory
	data []byte
}

func (m fakeMemory) Size() uint32 { return uint32(len(m.data)) }

func (m fakeMemory) Read(off, count uint32) ([]byte, bool) {
	if uint64(off)+uint64(count) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[off : off+count], true
}

func TestCheckSignature(t *testing.T) {
	i32 := []api.ValueType{api.ValueTypeI32}
	f32 := []api.ValueType{api.ValueTypeF32}

	tests := []struct {
		name            string
		got             fakeDef
		params, results []api.ValueType
		ok              bool
	}{
		{"init matches", fakeDef{}, nil, nil, true},
		{"tick matches", fakeDef{params: f32}, f32, nil, true},
		{"draw_ptr matches", fakeDef{results: i32}, nil, i32, true},
		{"input_set matches", fakeDef{params: i32}, i32, nil, true},
		{"draw_ptr returning nothing", fakeDef{}, nil, i32, false},
		{"tick taking i32", fakeDef{params: i32}, f32, nil, false},
		{"input_set returning a value", fakeDef{params: i32, results: i32}, i32, nil, false},
		{"init taking a parameter", fakeDef{params: i32}, nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSignature(tt.got, "export", tt.params, tt.results)
			if tt.ok && err != nil {
				t.Errorf("checkSignature = %v, want nil", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("checkSignature = nil, want error")
				}
				var abierr *ABIError
				if !errors.As(err, &abierr) {
					t.Errorf("checkSignature error is %T, want *ABIError", err)
				}
			}
		})
	}
}

// audioHandle builds a Handle over a fake memory whose audio block pointer
// and reported length come from the given exports.
func audioHandle(mem []byte, ptr, n uint64) *Handle {
	return &Handle{
		ctx:      context.Background(),
		mem:      fakeMemory{data: mem},
		audioPtr: fakeFn{ret: ptr},
		audioLen: fakeFn{ret: n},
	}
}

func TestReadAudioBlockInflatedLength(t *testing.T) {
	want := [synth.NumChannels]synth.Params{
		{Kind: synth.Pulse, BaseFreq: 440, Vol: 1, Duty: 0.5, Gate: true, SustainLvl: 1},
	}
	var w blockWriter
	for _, p := range want {
		w.channel(p)
	}

	const base = 512
	mem := make([]byte, 1024)
	copy(mem[base:], w.buf)

	// The cartridge reports a length far past the end of its memory, but
	// the block itself fits. Only the consumed bytes need to be in bounds.
	h := audioHandle(mem, base, 0xFFFFFFFF)
	block, err := h.ReadAudioBlock()
	if err != nil {
		t.Fatalf("ReadAudioBlock: %v", err)
	}
	if block == nil {
		t.Fatal("ReadAudioBlock = nil, want a block")
	}

	got, err := DecodeAudioBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded block mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAudioBlockOutOfBounds(t *testing.T) {
	// The block itself hangs past the end of memory.
	h := audioHandle(make([]byte, 1024), 1024-AudioBlockSize+1, AudioBlockSize)
	_, err := h.ReadAudioBlock()

	var abierr *ABIError
	if !errors.As(err, &abierr) {
		t.Errorf("ReadAudioBlock error is %T (%v), want *ABIError", err, err)
	}
}

func TestReadAudioBlockShortLength(t *testing.T) {
	h := audioHandle(make([]byte, 1024), 0, AudioBlockSize-1)
	block, err := h.ReadAudioBlock()
	if err != nil || block != nil {
		t.Errorf("ReadAudioBlock = %v, %v, want nil, nil for a short block", block, err)
	}
}
