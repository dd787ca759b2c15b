package emu

import (
	"os"
	"time"

	"gocart/emu/log"
)

// checkReload watches the cartridge file's modification time and triggers
// a reload when it moves past the timestamp recorded at the last
// successful load.
// A timestamp that already failed is skipped, so a broken build is retried
// only after the file changes again.
func (c *Console) checkReload() {
	fi, err := os.Stat(c.path)
	if err != nil {
		// Transient: most toolchains replace the output file, so a stat
		// can race with the rebuild. Try again next tick.
		return
	}

	mt := fi.ModTime()
	if !mt.After(c.mtime) || mt.Equal(c.badMtime) {
		return
	}
	c.reload(mt)
}

// reload instantiates and initializes the new cartridge, then swaps the
// whole handle. On any failure the previous instance stays authoritative:
// the console is never left without a valid cartridge.
func (c *Console) reload(mt time.Time) {
	mod, err := c.load(c.path)
	if err == nil {
		err = mod.Init()
		if err != nil {
			mod.Close()
		}
	}
	if err != nil {
		c.badMtime = mt
		log.ModCart.ErrorZ("reload failed, keeping previous cartridge").
			String("path", c.path).
			Error("err", err).
			End()
		return
	}

	c.mod.Close()
	c.mod = mod
	c.mtime = mt
	c.badMtime = time.Time{}
	c.reloads++

	log.ModCart.InfoZ("cartridge reloaded").
		String("path", c.path).
		Int("count", c.reloads).
		End()
}
