package emu

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"gocart/emu/log"
	"gocart/hw"
)

type Config struct {
	Input hw.InputConfig `toml:"input"`
	Video VideoConfig    `toml:"video"`
	Audio AudioConfig    `toml:"audio"`
}

type VideoConfig struct {
	Scale        int  `toml:"scale"`
	DisableVSync bool `toml:"disable_vsync"`
}

type AudioConfig struct {
	DisableAudio bool `toml:"disable_audio"`
	SampleRate   int  `toml:"sample_rate"`
}

func defaultConfig() Config {
	return Config{
		Video: VideoConfig{Scale: 3},
		Audio: AudioConfig{SampleRate: 44100},
	}
}

// Check fills in unset or out-of-range values.
func (cfg *Config) Check() {
	if cfg.Video.Scale <= 0 {
		cfg.Video.Scale = 3
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
}

var ConfigDir string = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("gocart")
	if err := configdir.MakePath(dir); err != nil {
		log.ModHost.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})()

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the gocart config
// directory, or provides a default one.
func LoadConfigOrDefault() Config {
	var cfg Config
	_, err := toml.DecodeFile(filepath.Join(ConfigDir, cfgFilename), &cfg)
	if err != nil {
		return defaultConfig()
	}
	cfg.Check()
	return cfg
}

// SaveConfig into the gocart config directory.
func SaveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(ConfigDir, cfgFilename), buf, 0644)
}
