package cart

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gocart/hw/synth"
)

type blockWriter struct {
	buf []byte
}

func (w *blockWriter) u32(v uint32) *blockWriter {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *blockWriter) f32(v float32) *blockWriter { return w.u32(math.Float32bits(v)) }
func (w *blockWriter) i32(v int32) *blockWriter   { return w.u32(uint32(v)) }

func (w *blockWriter) channel(p synth.Params) *blockWriter {
	gate := uint32(0)
	if p.Gate {
		gate = 1
	}
	return w.u32(uint32(p.Kind)).
		f32(p.BaseFreq).f32(p.Vol).f32(p.Duty).
		u32(gate).
		f32(p.AttackMS).f32(p.DecayMS).f32(p.SustainLvl).f32(p.ReleaseMS).
		i32(p.ArpA).i32(p.ArpB).i32(p.ArpC).
		f32(p.ArpRateHz)
}

func TestDecodeAudioBlock(t *testing.T) {
	want := [synth.NumChannels]synth.Params{
		{Kind: synth.Pulse, BaseFreq: 440, Vol: 0.8, Duty: 0.5, Gate: true,
			AttackMS: 5, DecayMS: 80, SustainLvl: 0.6, ReleaseMS: 120,
			ArpA: 0, ArpB: 4, ArpC: 7, ArpRateHz: 12},
		{Kind: synth.Pulse2, BaseFreq: 220, Vol: 0.4, Duty: 0.25, Gate: false,
			ArpA: -12, ArpB: 0, ArpC: 12},
		{Kind: synth.Noise, BaseFreq: 1500, Vol: 1, Gate: true, SustainLvl: 1},
		{},
	}

	var w blockWriter
	for _, p := range want {
		w.channel(p)
	}
	if len(w.buf) != AudioBlockSize {
		t.Fatalf("encoded block is %d bytes, want %d", len(w.buf), AudioBlockSize)
	}

	got, err := DecodeAudioBlock(w.buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded block mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAudioBlockTooShort(t *testing.T) {
	if _, err := DecodeAudioBlock(make([]byte, 100)); err == nil {
		t.Error("DecodeAudioBlock(100 bytes) = nil error, want error")
	}
}

func TestCheckBounds(t *testing.T) {
	const memsize = 2 * 65536 // two wasm pages

	tests := []struct {
		name   string
		ptr, n uint32
		ok     bool
	}{
		{"empty", 0, 0, true},
		{"whole memory", 0, memsize, true},
		{"inside", 1024, 4096, true},
		{"end of memory", memsize - 8, 8, true},
		{"one past end", memsize - 8, 9, false},
		{"ptr past end", memsize, 1, false},
		{"overflowing sum", 0xFFFFFFFF, 0xFFFFFFFF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBounds(memsize, tt.ptr, tt.n)
			if tt.ok && err != nil {
				t.Errorf("checkBounds(%#x, %#x) = %v, want nil", tt.ptr, tt.n, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("checkBounds(%#x, %#x) = nil, want error", tt.ptr, tt.n)
				}
				var abierr *ABIError
				if !errors.As(err, &abierr) {
					t.Errorf("checkBounds error is %T, want *ABIError", err)
				}
			}
		})
	}
}
