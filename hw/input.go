package hw

import (
	"github.com/veandco/go-sdl2/sdl"

	"gocart/emu/log"
)

// Logical button bits delivered to the cartridge through input_set.
const (
	ButtonUp uint32 = 1 << iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonB
	ButtonStart
	ButtonSelect
)

// InputConfig maps logical buttons to SDL scancode names (the values
// returned by sdl.GetScancodeName). Empty fields keep the default binding.
type InputConfig struct {
	Up     string `toml:"up"`
	Down   string `toml:"down"`
	Left   string `toml:"left"`
	Right  string `toml:"right"`
	A      string `toml:"a"`
	B      string `toml:"b"`
	Start  string `toml:"start"`
	Select string `toml:"select"`
}

type bindings map[sdl.Scancode]uint32

func defaultBindings() bindings {
	return bindings{
		sdl.SCANCODE_UP:     ButtonUp,
		sdl.SCANCODE_DOWN:   ButtonDown,
		sdl.SCANCODE_LEFT:   ButtonLeft,
		sdl.SCANCODE_RIGHT:  ButtonRight,
		sdl.SCANCODE_Z:      ButtonA,
		sdl.SCANCODE_X:      ButtonB,
		sdl.SCANCODE_RETURN: ButtonStart,
		sdl.SCANCODE_RSHIFT: ButtonSelect,
	}
}

func makeBindings(cfg InputConfig) bindings {
	b := defaultBindings()
	bind := func(name string, mask uint32) {
		if name == "" {
			return
		}
		sc := sdl.GetScancodeFromName(name)
		if sc == sdl.SCANCODE_UNKNOWN {
			log.ModInput.Warnf("unknown key name %q, keeping default binding", name)
			return
		}
		// Drop the previous scancode bound to this button.
		for k, v := range b {
			if v == mask {
				delete(b, k)
			}
		}
		b[sc] = mask
	}

	bind(cfg.Up, ButtonUp)
	bind(cfg.Down, ButtonDown)
	bind(cfg.Left, ButtonLeft)
	bind(cfg.Right, ButtonRight)
	bind(cfg.A, ButtonA)
	bind(cfg.B, ButtonB)
	bind(cfg.Start, ButtonStart)
	bind(cfg.Select, ButtonSelect)
	return b
}

// inputState tracks the currently held logical buttons. Only the event pump
// touches it, there is no concurrent access.
type inputState struct {
	binds bindings
	bits  uint32
}

func (in *inputState) handleKey(ev *sdl.KeyboardEvent) {
	if ev.Repeat != 0 {
		return
	}
	mask, ok := in.binds[ev.Keysym.Scancode]
	if !ok {
		return
	}
	switch ev.Type {
	case sdl.KEYDOWN:
		in.bits |= mask
	case sdl.KEYUP:
		in.bits &^= mask
	}
}

// clear drops every held button. Called on focus loss so keys released
// outside the window are never reported stuck.
func (in *inputState) clear() {
	if in.bits != 0 {
		log.ModInput.DebugZ("input cleared").Hex32("bits", in.bits).End()
	}
	in.bits = 0
}
