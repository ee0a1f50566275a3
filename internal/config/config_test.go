package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 7860 {
		t.Errorf("Port = %d, want 7860", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB != 100 {
		t.Errorf("MaxUploadMB = %d, want 100", cfg.Server.MaxUploadMB)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.MaxUploadBytes() != 100*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9000
max_upload_mb = 25

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[cache]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIANO2MIDI_CONFIG", path)
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB != 25 {
		t.Errorf("MaxUploadMB = %d, want 25", cfg.Server.MaxUploadMB)
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpeg = %q", cfg.Tools.FFmpeg)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by file")
	}
	// Unset fields keep defaults
	if cfg.Server.JobTTLMinutes != 10 {
		t.Errorf("JobTTLMinutes = %d, want default 10", cfg.Server.JobTTLMinutes)
	}
}

func TestLoadPortOverride(t *testing.T) {
	t.Setenv("PIANO2MIDI_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PORT", "8123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("Port = %d, want 8123 from env", cfg.Server.Port)
	}
}

func TestLoadBadPort(t *testing.T) {
	t.Setenv("PIANO2MIDI_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid PORT")
	}
}
