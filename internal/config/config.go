package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server ServerConfig `toml:"server"`
	Tools  ToolsConfig  `toml:"tools"`
	Cache  CacheConfig  `toml:"cache"`
}

type ServerConfig struct {
	Port          int `toml:"port"`
	MaxUploadMB   int `toml:"max_upload_mb"`
	JobTTLMinutes int `toml:"job_ttl_minutes"`
}

type ToolsConfig struct {
	FFmpeg     string `toml:"ffmpeg"`
	Python     string `toml:"python"`
	ScriptsDir string `toml:"scripts_dir"`
	Checkpoint string `toml:"checkpoint"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	cacheDir := ".cache/transcriptions"
	if home, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(home, "piano2midi")
	}
	return &Config{
		Server: ServerConfig{
			Port:          7860,
			MaxUploadMB:   100,
			JobTTLMinutes: 10,
		},
		Tools: ToolsConfig{
			ScriptsDir: "scripts/python",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     cacheDir,
		},
	}
}

// Load reads configuration: defaults, then an optional TOML file, then
// environment overrides. A .env file in the working directory is honored.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("PIANO2MIDI_CONFIG")
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "piano2midi", "config.toml")
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("bad config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("bad PORT value %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	return cfg, nil
}

// MaxUploadBytes returns the upload cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) * 1024 * 1024
}
