// Package emu drives the console: a fixed-cadence loop binding input,
// cartridge simulation, hot reload, video presentation and audio parameter
// propagation.
package emu

import (
	"fmt"
	"os"
	"time"

	"gocart/cart"
	"gocart/emu/log"
	"gocart/hw"
	"gocart/hw/synth"
)

// Module is the live cartridge binding the console drives. *cart.Handle
// implements it; tests substitute fakes.
type Module interface {
	Init() error
	Tick(dtMS float32) error
	SetInput(bits uint32) error
	ReadFrame(dst []byte) error
	ReadAudioBlock() ([]byte, error)
	Close() error
}

// LoaderFunc instantiates the cartridge at path. Used at startup and on
// every hot reload.
type LoaderFunc func(path string) (Module, error)

// Output is the presentation and input surface. *hw.Output implements it.
type Output interface {
	Poll() bool
	InputBits() uint32
	Frame() []byte
	Present()
	SetTitle(string)
	Close()
}

const (
	frameTime = 16667 * time.Microsecond // ~60 Hz
	title     = "gocart"
)

type Console struct {
	out    Output
	engine *synth.Engine
	audio  *hw.AudioOutput // nil when the device is unavailable or disabled

	path string
	load LoaderFunc
	mod  Module

	// Hot-reload bookkeeping: the timestamp of the running cartridge and
	// the timestamp of the last failed attempt, so a broken build is not
	// retried every tick.
	mtime    time.Time
	badMtime time.Time
	reloads  int

	// Rolling frame rate diagnostics, surfaced in the window title.
	frames   int
	msAccum  float32
	fpsTimer time.Time
}

// Launch opens the window, the audio device and the cartridge. It doesn't
// start the loop, call Run for that.
func Launch(path string, width, height int, load LoaderFunc, cfg Config) (*Console, error) {
	cfg.Check()

	out, err := hw.NewOutput(hw.OutputConfig{
		Width:        width,
		Height:       height,
		Title:        title,
		ScaleFactor:  cfg.Video.Scale,
		DisableVSync: cfg.Video.DisableVSync,
		Input:        cfg.Input,
	})
	if err != nil {
		return nil, err
	}

	engine := synth.NewEngine(cfg.Audio.SampleRate)

	var audio *hw.AudioOutput
	if cfg.Audio.DisableAudio {
		log.ModSound.WarnZ("audio disabled").End()
	} else {
		audio, err = hw.NewAudioOutput(engine)
		if err != nil {
			// No usable output device. Video and input go on without
			// sound for the whole session.
			log.ModSound.WarnZ("no audio device, sound disabled").Error("err", err).End()
			audio = nil
		}
	}

	mod, err := load(path)
	if err == nil {
		err = mod.Init()
		if err != nil {
			mod.Close()
		}
	}
	if err != nil {
		audio.Close()
		out.Close()
		return nil, fmt.Errorf("load cartridge: %w", err)
	}

	var mtime time.Time
	if fi, err := os.Stat(path); err == nil {
		mtime = fi.ModTime()
	}

	return &Console{
		out:      out,
		engine:   engine,
		audio:    audio,
		path:     path,
		load:     load,
		mod:      mod,
		mtime:    mtime,
		fpsTimer: time.Now(),
	}, nil
}

// Run drives the loop until the user quits, then releases everything.
func (c *Console) Run() {
	last := time.Now()
	next := time.Now()

	for c.out.Poll() {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds()) * 1000
		last = now

		c.runTick(dt)

		next = next.Add(frameTime)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		} else {
			// Too far behind to catch up, resynchronize.
			next = time.Now()
		}
	}

	log.ModHost.InfoZ("console loop exited").End()

	c.mod.Close()
	c.audio.Close()
	c.out.Close()
}

// runTick is one pass of the fixed-cadence sequence: reload check, input,
// simulation, video, audio parameters, diagnostics.
func (c *Console) runTick(dt float32) {
	c.checkReload()

	if err := c.mod.SetInput(c.out.InputBits()); err != nil {
		c.trap(err)
		return
	}
	if err := c.mod.Tick(dt); err != nil {
		c.trap(err)
		return
	}

	if err := c.mod.ReadFrame(c.out.Frame()); err != nil {
		// Degraded tick: the previously rendered frame stays on screen.
		log.ModVideo.WarnZ("frame read skipped").Error("err", err).End()
	}
	c.out.Present()

	c.updateAudio()
	c.updateDiag(dt)
}

// trap reports a faulting cartridge call. The loop goes on with the
// previous frame; only a subsequent reload replaces the instance.
func (c *Console) trap(err error) {
	log.ModCart.ErrorZ("cartridge fault, tick skipped").Error("err", err).End()
}

// updateAudio forwards the cartridge's audio parameter block to the synth
// engine. A missing or short block leaves the engine's parameters as they
// were.
func (c *Console) updateAudio() {
	block, err := c.mod.ReadAudioBlock()
	if err != nil {
		log.ModSound.WarnZ("audio update skipped").Error("err", err).End()
		return
	}
	if block == nil {
		return
	}

	params, err := cart.DecodeAudioBlock(block)
	if err != nil {
		log.ModSound.WarnZ("audio update skipped").Error("err", err).End()
		return
	}
	c.engine.SetParameters(params)
}

func (c *Console) updateDiag(dt float32) {
	c.frames++
	c.msAccum += dt

	elapsed := time.Since(c.fpsTimer)
	if elapsed < time.Second {
		return
	}

	fps := float64(c.frames) / elapsed.Seconds()
	avg := c.msAccum / float32(c.frames)
	c.out.SetTitle(fmt.Sprintf("%s | %4.0f FPS (%.2f ms) | reloads: %d", title, fps, avg, c.reloads))

	c.fpsTimer = time.Now()
	c.frames = 0
	c.msAccum = 0
}
