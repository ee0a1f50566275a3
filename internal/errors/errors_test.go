package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestProcessError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewProcessError("ffmpeg", "normalize", 1, "Invalid data found when processing input", cause)

	msg := err.Error()
	if !strings.Contains(msg, "ffmpeg") || !strings.Contains(msg, "normalize") {
		t.Errorf("message missing tool/stage: %s", msg)
	}
	if !strings.Contains(msg, "Invalid data") {
		t.Errorf("message missing stderr: %s", msg)
	}

	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestProcessErrorWithoutStderr(t *testing.T) {
	err := NewProcessError("transcription-engine", "transcription", 2, "", nil)
	msg := err.Error()
	if !strings.Contains(msg, "exit 2") {
		t.Errorf("message missing exit code: %s", msg)
	}
}
