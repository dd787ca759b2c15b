package hw

import (
	"encoding/binary"
	"math"

	"github.com/ebitengine/oto/v3"

	"gocart/emu/log"
	"gocart/hw/synth"
)

const audioChannels = 2 // stereo, mono-mixed by the engine

// AudioOutput binds the synth engine to the platform audio device. The oto
// player pulls samples from Read on its own schedule: that goroutine is the
// audio-render timing domain, fully decoupled from the simulation loop.
type AudioOutput struct {
	ctx    *oto.Context
	player *oto.Player
	engine *synth.Engine

	buf []float32
}

func NewAudioOutput(engine *synth.Engine) (*AudioOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   engine.SampleRate(),
		ChannelCount: audioChannels,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	ao := &AudioOutput{
		ctx:    ctx,
		engine: engine,
	}
	ao.player = ctx.NewPlayer(ao)
	ao.player.Play()

	log.ModSound.InfoZ("audio device ready").Int("rate", engine.SampleRate()).End()
	return ao, nil
}

// Read renders the next chunk of the signal. It is called by the audio
// device goroutine, never by the simulation loop.
func (ao *AudioOutput) Read(p []byte) (int, error) {
	n := len(p) / 8 * 8 // whole stereo float32 frames only
	samples := n / 4

	if len(ao.buf) < samples {
		ao.buf = make([]float32, samples)
	}
	buf := ao.buf[:samples]

	ao.engine.Render(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n, nil
}

func (ao *AudioOutput) Close() {
	if ao == nil {
		return
	}
	if err := ao.player.Close(); err != nil {
		log.ModSound.WarnZ("audio close").Error("err", err).End()
	}
}
