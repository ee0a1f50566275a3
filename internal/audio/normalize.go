package audio

import (
	"context"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/boscokante/piano-midi-transcription/internal/errors"
	"github.com/boscokante/piano-midi-transcription/internal/exec"
)

// ModelSampleRate is the sample rate the transcription engine expects
const ModelSampleRate = 16000

// Normalizer converts uploads to the waveform the engine can decode:
// mono 16-bit PCM WAV at ModelSampleRate, via ffmpeg.
type Normalizer struct {
	runner *exec.Runner
}

// NewNormalizer creates a new audio normalizer
func NewNormalizer(runner *exec.Runner) *Normalizer {
	return &Normalizer{runner: runner}
}

// Normalize decodes inputPath into a mono 16kHz PCM WAV at outputPath.
// When the input is already in that shape the file is copied through
// untouched so ffmpeg does not re-quantize it.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string, format Format) (*Probe, error) {
	if format == FormatWAV {
		if probe, err := ProbeWAV(inputPath); err == nil &&
			probe.SampleRate == ModelSampleRate && probe.Channels == 1 && probe.BitDepth == 16 {
			if err := copyFile(inputPath, outputPath); err != nil {
				return nil, fmt.Errorf("copy wav: %w", err)
			}
			return probe, nil
		}
	}

	result, err := n.runner.RunFFmpeg(ctx,
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", ModelSampleRate),
		"-c:a", "pcm_s16le",
		outputPath,
	)
	if err != nil {
		exitCode := 0
		stderr := ""
		if result != nil {
			exitCode = result.ExitCode
			stderr = tailLines(result.Stderr, 5)
		}
		return nil, apperrors.NewProcessError("ffmpeg", "normalize", exitCode, stderr, err)
	}

	probe, err := ProbeWAV(outputPath)
	if err != nil {
		return nil, fmt.Errorf("probe normalized audio: %w", err)
	}
	return probe, nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0644)
}

// tailLines returns the last n lines of s, for compact error messages
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
