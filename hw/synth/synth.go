// Package synth generates the console's audio signal: a fixed bank of
// channels mixing pulse and LFSR-noise waveforms, each shaped by an ADSR
// envelope and an optional arpeggio.
//
// Channel records have two halves. The control half (Params) is replaced
// wholesale by the simulation loop each tick; the synthesis half (state) is
// owned by the render domain and survives every parameter update, so a
// refresh never resets phase or envelope progress.
package synth

import (
	"math"
	"sync"
)

const NumChannels = 4

type Waveform uint32

const (
	Pulse  Waveform = 0
	Pulse2 Waveform = 1 // reserved duty variant, renders as Pulse for now
	Noise  Waveform = 2
)

// Params is the control half of a channel, written by the cartridge every
// tick. Field ranges are clamped when the record enters the engine.
type Params struct {
	Kind     Waveform
	BaseFreq float32 // Hz
	Vol      float32 // 0..1
	Duty     float32 // 0..1, pulse only
	Gate     bool

	AttackMS   float32
	DecayMS    float32
	SustainLvl float32 // 0..1
	ReleaseMS  float32

	ArpA      int32 // semitone offsets, cycled A -> B -> C
	ArpB      int32
	ArpC      int32
	ArpRateHz float32 // <= 0 disables arpeggiation
}

// clamped returns p with every field forced into its documented range.
func (p Params) clamped() Params {
	p.AttackMS = max(p.AttackMS, 0)
	p.DecayMS = max(p.DecayMS, 0)
	p.SustainLvl = min(max(p.SustainLvl, 0), 1)
	p.ReleaseMS = max(p.ReleaseMS, 0)
	p.ArpRateHz = max(p.ArpRateHz, 0)
	return p
}

// state is the synthesis half of a channel. Only Render touches it.
type state struct {
	phase    float32 // pulse phase accumulator, 0..1
	noise    uint32  // 15-bit LFSR
	envLevel float32 // 0..1
	envStage envStage
	gatePrev bool // for gate edge detection
	arpPhase float32
}

type voice struct {
	Params
	state
}

// Engine synthesizes a continuous stereo signal from the channel bank.
// SetParameters runs on the simulation domain, Render on the audio device's
// callback domain; the mutex is held only for raw copies, never across
// synthesis.
type Engine struct {
	mu     sync.Mutex
	voices [NumChannels]voice

	sampleRate float32
	clock      uint32 // shared noise clock, render domain only
}

func NewEngine(sampleRate int) *Engine {
	return &Engine{sampleRate: float32(sampleRate)}
}

func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// SetParameters replaces the control half of every channel. Synthesis state
// is left strictly alone.
func (e *Engine) SetParameters(params [NumChannels]Params) {
	e.mu.Lock()
	for i := range e.voices {
		e.voices[i].Params = params[i].clamped()
	}
	e.mu.Unlock()
}

const (
	headroom  = 0.25
	ampEps    = 1e-4
	noiseSeed = 0x4000
)

// Render fills out (interleaved stereo, mono-mixed) with len(out)/2 frames.
func (e *Engine) Render(out []float32) {
	e.mu.Lock()
	loc := e.voices
	e.mu.Unlock()

	step := 1 / e.sampleRate

	for i := 0; i+1 < len(out); i += 2 {
		var mix float32

		for c := range loc {
			v := &loc[c]
			v.stepEnvelope(step)

			freq := v.BaseFreq
			if v.ArpRateHz > 0 {
				v.arpPhase += step * v.ArpRateHz
				if v.arpPhase >= 1 {
					v.arpPhase -= 1
				}
				var semi int32
				switch uint32(v.arpPhase*3) % 3 {
				case 0:
					semi = v.ArpA
				case 1:
					semi = v.ArpB
				default:
					semi = v.ArpC
				}
				if semi != 0 {
					freq = hzForSemitone(freq, semi)
				}
			}

			amp := clamp(v.Vol*v.envLevel, 0, 1)
			if amp <= ampEps {
				continue
			}

			switch v.Kind {
			case Pulse, Pulse2:
				v.phase += freq * step
				if v.phase >= 1 {
					v.phase -= 1
				}
				if v.phase < v.Duty {
					mix += amp
				} else {
					mix -= amp
				}
			case Noise:
				nsteps := uint32(max(e.sampleRate/max(freq, 1), 1))
				if e.clock%nsteps == 0 {
					v.stepNoise()
				}
				if v.noise&1 != 0 {
					mix += amp
				} else {
					mix -= amp
				}
			}
		}

		e.clock++
		mix = clamp(mix*headroom, -1, 1)
		out[i] = mix
		out[i+1] = mix
	}

	// Hand the synthesis halves back. Control halves are not written, so a
	// SetParameters call landing mid-render is never lost.
	e.mu.Lock()
	for c := range e.voices {
		e.voices[c].state = loc[c].state
	}
	e.mu.Unlock()
}

func (v *voice) stepNoise() {
	bit := (v.noise ^ (v.noise >> 1)) & 1
	v.noise = ((v.noise >> 1) | (bit << 14)) & 0x7FFF
	if v.noise == 0 {
		// An all-zero register would stay silent forever.
		v.noise = noiseSeed
	}
}

func hzForSemitone(base float32, semi int32) float32 {
	if semi == 0 {
		return base
	}
	return base * float32(math.Pow(2, float64(semi)/12))
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
