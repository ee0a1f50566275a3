package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	apperrors "github.com/boscokante/piano-midi-transcription/internal/errors"
)

// Probe describes decoded WAV properties
type Probe struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
}

// ProbeWAV reads WAV header information without decoding the full stream
func ProbeWAV(path string) (*Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", apperrors.ErrCorruptedFile)
	}

	dur, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("wav duration: %w", err)
	}
	if dur <= 0 {
		return nil, apperrors.ErrEmptyAudio
	}

	format := decoder.Format()
	return &Probe{
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		BitDepth:   int(decoder.BitDepth),
		Duration:   dur.Seconds(),
	}, nil
}
