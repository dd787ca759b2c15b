package emu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeLoader struct {
	next  Module
	err   error
	calls int
}

func (l *fakeLoader) load(path string) (Module, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.next, nil
}

// reloadFixture returns a console watching a real file on disk, with the
// given module loaded as if Launch had just run.
func reloadFixture(t *testing.T, mod Module, loader *fakeLoader) *Console {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cart.wasm")
	if err := os.WriteFile(path, []byte("\x00asm"), 0o644); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	c := testConsole(mod, newFakeOutput())
	c.path = path
	c.load = loader.load
	c.mtime = fi.ModTime()
	return c
}

func touch(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func TestReloadSwapsModule(t *testing.T) {
	oldMod := &fakeModule{}
	newMod := &fakeModule{}
	loader := &fakeLoader{next: newMod}
	c := reloadFixture(t, oldMod, loader)

	touch(t, c.path, c.mtime.Add(2*time.Second))
	c.checkReload()

	if c.mod != Module(newMod) {
		t.Fatal("console still runs the previous cartridge")
	}
	if len(newMod.calls) == 0 || newMod.calls[0] != "init" {
		t.Errorf("new cartridge calls = %v, want init first", newMod.calls)
	}
	if !oldMod.closed {
		t.Error("previous cartridge instance was not closed")
	}
	if c.reloads != 1 {
		t.Errorf("reload count = %d, want 1", c.reloads)
	}
}

func TestReloadSkipsUnchangedFile(t *testing.T) {
	loader := &fakeLoader{next: &fakeModule{}}
	c := reloadFixture(t, &fakeModule{}, loader)

	c.checkReload()
	c.checkReload()

	if loader.calls != 0 {
		t.Errorf("loader called %d times with an unchanged file, want 0", loader.calls)
	}
}

func TestReloadLoadFailureKeepsPrevious(t *testing.T) {
	oldMod := &fakeModule{pix: 0x33}
	loader := &fakeLoader{err: errors.New("invalid magic number")}
	c := reloadFixture(t, oldMod, loader)

	touch(t, c.path, c.mtime.Add(2*time.Second))
	c.checkReload()

	if c.mod != Module(oldMod) {
		t.Fatal("console abandoned the previous cartridge after a failed load")
	}
	if oldMod.closed {
		t.Error("previous cartridge was closed despite the failed reload")
	}
	if c.reloads != 0 {
		t.Errorf("reload count = %d, want 0", c.reloads)
	}

	// The failed build is remembered per timestamp: the console must not
	// retry it on every tick.
	c.checkReload()
	c.checkReload()
	if loader.calls != 1 {
		t.Errorf("loader called %d times for one bad build, want 1", loader.calls)
	}

	// The previous cartridge keeps running undisturbed.
	c.runTick(16.6)
	for _, b := range c.out.Frame() {
		if b != 0x33 {
			t.Fatal("previous cartridge no longer drives the surface")
		}
	}
}

func TestReloadRetriesOnNextChange(t *testing.T) {
	newMod := &fakeModule{}
	loader := &fakeLoader{err: errors.New("invalid magic number")}
	c := reloadFixture(t, &fakeModule{}, loader)

	touch(t, c.path, c.mtime.Add(2*time.Second))
	c.checkReload()
	if loader.calls != 1 {
		t.Fatalf("loader calls = %d, want 1", loader.calls)
	}

	// A fresh build lands: a newer timestamp clears the bad mark.
	loader.err = nil
	loader.next = newMod
	touch(t, c.path, c.mtime.Add(4*time.Second))
	c.checkReload()

	if loader.calls != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls)
	}
	if c.mod != Module(newMod) {
		t.Error("fresh build was not loaded after an earlier failure")
	}
	if c.reloads != 1 {
		t.Errorf("reload count = %d, want 1", c.reloads)
	}
}

func TestReloadInitFailureClosesNewKeepsOld(t *testing.T) {
	oldMod := &fakeModule{}
	newMod := &fakeModule{initErr: errors.New("unreachable executed")}
	loader := &fakeLoader{next: newMod}
	c := reloadFixture(t, oldMod, loader)

	touch(t, c.path, c.mtime.Add(2*time.Second))
	c.checkReload()

	if c.mod != Module(oldMod) {
		t.Fatal("console switched to a cartridge whose init trapped")
	}
	if !newMod.closed {
		t.Error("failed instance was not closed")
	}
	if oldMod.closed {
		t.Error("previous cartridge was closed despite the failed init")
	}
	if c.reloads != 0 {
		t.Errorf("reload count = %d, want 0", c.reloads)
	}
}
