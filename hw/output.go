package hw

import (
	"github.com/veandco/go-sdl2/sdl"

	"gocart/emu/log"
)

type OutputConfig struct {
	Width  int
	Height int
	Title  string

	ScaleFactor  int
	DisableVSync bool

	Input InputConfig
}

// Output owns the window and the input event pump. The presentation
// surface returned by Frame is host memory: the console copies the
// cartridge framebuffer into it, then Present uploads it.
type Output struct {
	win   *window
	frame []byte
	input inputState
	quit  bool

	cfg OutputConfig
}

func NewOutput(cfg OutputConfig) (*Output, error) {
	if cfg.ScaleFactor <= 0 {
		cfg.ScaleFactor = 1
	}

	win, err := newWindow(cfg.Title, cfg.Width, cfg.Height, cfg.ScaleFactor, !cfg.DisableVSync)
	if err != nil {
		return nil, err
	}

	log.ModVideo.InfoZ("window created").
		Int("w", cfg.Width).
		Int("h", cfg.Height).
		Int("scale", cfg.ScaleFactor).
		End()

	return &Output{
		win:   win,
		frame: make([]byte, cfg.Width*cfg.Height*4),
		input: inputState{binds: makeBindings(cfg.Input)},
		cfg:   cfg,
	}, nil
}

// Poll pumps pending SDL events. It returns false once the user asked to
// quit.
func (o *Output) Poll() bool {
	sdl.Do(func() {
		for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
			switch ev := ev.(type) {
			case *sdl.QuitEvent:
				o.quit = true
			case *sdl.KeyboardEvent:
				o.input.handleKey(ev)
			case *sdl.WindowEvent:
				if ev.Event == sdl.WINDOWEVENT_FOCUS_LOST {
					o.input.clear()
				}
			}
		}
	})
	return !o.quit
}

// InputBits returns the bitmask of currently held logical buttons.
func (o *Output) InputBits() uint32 { return o.input.bits }

// Frame returns the presentation surface, Width*Height*4 RGBA bytes.
func (o *Output) Frame() []byte { return o.frame }

func (o *Output) Present() {
	sdl.Do(func() { o.win.render(o.frame) })
}

func (o *Output) SetTitle(title string) {
	sdl.Do(func() { o.win.SetTitle(title) })
}

func (o *Output) Close() {
	if err := o.win.Close(); err != nil {
		log.ModVideo.WarnZ("window close").Error("err", err).End()
	}
}
