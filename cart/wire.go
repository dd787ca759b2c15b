package cart

import (
	"encoding/binary"
	"fmt"
	"math"

	"gocart/hw/synth"
)

// The audio parameter block is synth.NumChannels fixed-size records
// concatenated, little-endian, 13 fields of 4 bytes each:
//
//	kind(u32) base_freq(f32) vol(f32) duty(f32) gate(u32)
//	attack_ms(f32) decay_ms(f32) sustain_level(f32) release_ms(f32)
//	arp_a(i32) arp_b(i32) arp_c(i32) arp_rate_hz(f32)
const (
	channelFields  = 13
	channelSize    = channelFields * 4
	AudioBlockSize = synth.NumChannels * channelSize
)

// DecodeAudioBlock decodes a wire block into one Params record per channel.
// Range clamping is the synth engine's job, not the decoder's.
func DecodeAudioBlock(b []byte) ([synth.NumChannels]synth.Params, error) {
	var out [synth.NumChannels]synth.Params
	if len(b) < AudioBlockSize {
		return out, fmt.Errorf("audio block is %d bytes, want %d", len(b), AudioBlockSize)
	}

	off := 0
	u32 := func() uint32 {
		v := binary.LittleEndian.Uint32(b[off:])
		off += 4
		return v
	}
	f32 := func() float32 { return math.Float32frombits(u32()) }
	i32 := func() int32 { return int32(u32()) }

	for i := range out {
		p := &out[i]
		p.Kind = synth.Waveform(u32())
		p.BaseFreq = f32()
		p.Vol = f32()
		p.Duty = f32()
		p.Gate = u32() != 0
		p.AttackMS = f32()
		p.DecayMS = f32()
		p.SustainLvl = f32()
		p.ReleaseMS = f32()
		p.ArpA = i32()
		p.ArpB = i32()
		p.ArpC = i32()
		p.ArpRateHz = f32()
	}
	return out, nil
}
