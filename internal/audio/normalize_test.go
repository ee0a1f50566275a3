package audio

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/boscokante/piano-midi-transcription/internal/exec"
)

// writeTestWAV synthesizes a sine tone WAV for tests
func writeTestWAV(t *testing.T, path string, sampleRate, channels int, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	n := int(float64(sampleRate) * seconds)
	data := make([]int, n*channels)
	for i := 0; i < n; i++ {
		sample := int(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = sample
		}
	}

	buf := &gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestProbeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path, 16000, 1, 0.5)

	probe, err := ProbeWAV(path)
	if err != nil {
		t.Fatalf("ProbeWAV: %v", err)
	}
	if probe.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", probe.SampleRate)
	}
	if probe.Channels != 1 {
		t.Errorf("Channels = %d, want 1", probe.Channels)
	}
	if probe.Duration < 0.4 || probe.Duration > 0.6 {
		t.Errorf("Duration = %.3f, want ~0.5", probe.Duration)
	}
}

func TestProbeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ProbeWAV(path); err == nil {
		t.Error("expected error for garbage WAV")
	}
}

func TestNormalizePassThrough(t *testing.T) {
	// A 16kHz mono 16-bit WAV must be copied through without invoking ffmpeg
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	writeTestWAV(t, in, ModelSampleRate, 1, 0.25)

	// Runner points at a nonexistent binary; pass-through must not touch it
	runner := exec.NewRunner("/nonexistent/ffmpeg", "python3", dir)
	n := NewNormalizer(runner)

	probe, err := n.Normalize(context.Background(), in, out, FormatWAV)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if probe.SampleRate != ModelSampleRate {
		t.Errorf("SampleRate = %d, want %d", probe.SampleRate, ModelSampleRate)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"Short", "one\ntwo", 5, "one\ntwo"},
		{"Truncated", "a\nb\nc\nd\ne\nf", 2, "e\nf"},
		{"TrailingNewline", "a\nb\n", 1, "b"},
		{"Empty", "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tailLines(tt.in, tt.n); got != tt.want {
				t.Errorf("tailLines = %q, want %q", got, tt.want)
			}
		})
	}
}
