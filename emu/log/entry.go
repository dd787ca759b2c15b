package log

import (
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func init() {
	// Level filtering is done per module, before reaching logrus.
	logrus.SetLevel(logrus.DebugLevel)
}

func (mod Module) logger() *logrus.Entry {
	return logrus.StandardLogger().WithField("_mod", modNames[mod])
}

// EntryZ accumulates typed fields without allocating until the entry is
// actually emitted. A nil *EntryZ is valid and does nothing, which is what
// logz returns when the module/level pair is filtered out.
type EntryZ struct {
	mod    Module
	lvl    Level
	msg    string
	fields [8]ZField
	n      int
}

var zpool = sync.Pool{New: func() any { return new(EntryZ) }}

func newEntryZ() *EntryZ {
	e := zpool.Get().(*EntryZ)
	*e = EntryZ{}
	return e
}

func (z *EntryZ) add(f ZField) *EntryZ {
	if z == nil {
		return nil
	}
	if z.n < len(z.fields) {
		z.fields[z.n] = f
		z.n++
	}
	return z
}

func (z *EntryZ) Bool(key string, v bool) *EntryZ {
	return z.add(ZField{Type: FieldTypeBool, Key: key, Boolean: v})
}

func (z *EntryZ) String(key, v string) *EntryZ {
	return z.add(ZField{Type: FieldTypeString, Key: key, String: v})
}

func (z *EntryZ) Int(key string, v int) *EntryZ {
	return z.add(ZField{Type: FieldTypeInt, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Uint32(key string, v uint32) *EntryZ {
	return z.add(ZField{Type: FieldTypeUint, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Hex32(key string, v uint32) *EntryZ {
	return z.add(ZField{Type: FieldTypeHex32, Key: key, Integer: uint64(v)})
}

func (z *EntryZ) Duration(key string, v time.Duration) *EntryZ {
	return z.add(ZField{Type: FieldTypeDuration, Key: key, Duration: v})
}

func (z *EntryZ) Error(key string, v error) *EntryZ {
	return z.add(ZField{Type: FieldTypeError, Key: key, Error: v})
}

// End emits the accumulated entry and recycles it.
func (z *EntryZ) End() {
	if z == nil {
		return
	}

	fields := make(logrus.Fields, z.n)
	for i := range z.fields[:z.n] {
		fields[z.fields[i].Key] = z.fields[i].Value()
	}
	entry := z.mod.logger().WithFields(fields)

	switch z.lvl {
	case DebugLevel:
		entry.Debug(z.msg)
	case InfoLevel:
		entry.Info(z.msg)
	case WarnLevel:
		entry.Warn(z.msg)
	case ErrorLevel:
		entry.Error(z.msg)
	case FatalLevel:
		entry.Fatal(z.msg)
	case PanicLevel:
		entry.Panic(z.msg)
	}

	zpool.Put(z)
}
