package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/boscokante/piano-midi-transcription/internal/errors"
	"github.com/boscokante/piano-midi-transcription/internal/exec"
)

// Engine runs the external piano transcription model on a normalized
// waveform and writes a standard MIDI file.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, midiPath string) error
}

// PianoEngine delegates to the piano_transcription_inference wrapper script.
// The script downloads model weights on first use; checkpoint can pin a
// local checkpoint instead.
type PianoEngine struct {
	runner     *exec.Runner
	checkpoint string
}

// NewPianoEngine creates a new transcription engine
func NewPianoEngine(runner *exec.Runner, checkpoint string) *PianoEngine {
	return &PianoEngine{runner: runner, checkpoint: checkpoint}
}

// Transcribe converts an audio file to MIDI
func (e *PianoEngine) Transcribe(ctx context.Context, audioPath, midiPath string) error {
	args := []string{audioPath, midiPath}
	if e.checkpoint != "" {
		args = append(args, "--checkpoint", e.checkpoint)
	}

	result, err := e.runner.RunScript(ctx, "transcribe.py", args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: transcription", apperrors.ErrTimeout)
		}
		exitCode := 0
		stderr := ""
		if result != nil {
			exitCode = result.ExitCode
			stderr = strings.TrimSpace(result.Stderr)
		}
		return apperrors.NewProcessError("transcription-engine", "transcription", exitCode, stderr, err)
	}

	// The engine exits zero even when it produced nothing usable; insist
	// on a non-empty output file.
	info, err := os.Stat(midiPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("engine produced no MIDI output at %s", midiPath)
	}

	return nil
}

// CheckDependencies verifies the engine can actually run
func (e *PianoEngine) CheckDependencies(ctx context.Context) error {
	if err := e.runner.CheckTool(e.runner.FFmpegPath); err != nil {
		return fmt.Errorf("%w: ffmpeg", apperrors.ErrToolNotInstalled)
	}
	if err := e.runner.CheckTool(e.runner.PythonPath); err != nil {
		return fmt.Errorf("%w: python", apperrors.ErrToolNotInstalled)
	}
	if err := e.runner.CheckPythonDependency(ctx, "piano_transcription_inference"); err != nil {
		return fmt.Errorf("%w: piano_transcription_inference (%v)", apperrors.ErrToolNotInstalled, err)
	}
	return nil
}
