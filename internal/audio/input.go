package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/boscokante/piano-midi-transcription/internal/errors"
)

// DefaultMaxFileSize caps input size when no explicit limit is configured
const DefaultMaxFileSize = 100 * 1024 * 1024

// Format represents an audio file format
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatM4A     Format = "m4a"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatUnknown Format = "unknown"
)

// SupportedExtensions lists the upload extensions we accept
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}

// IsSupportedExtension reports whether the filename carries an accepted extension
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ValidateInput checks if the input file is valid for processing.
// maxBytes caps the accepted file size; zero or negative applies
// DefaultMaxFileSize.
func ValidateInput(path string, maxBytes int64) (Format, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FormatUnknown, fmt.Errorf("%w: %s", apperrors.ErrFileNotFound, path)
	}
	if err != nil {
		return FormatUnknown, fmt.Errorf("stat file: %w", err)
	}

	if info.Size() == 0 {
		return FormatUnknown, fmt.Errorf("%w: file is empty", apperrors.ErrEmptyAudio)
	}
	if info.Size() > maxBytes {
		return FormatUnknown, fmt.Errorf("%w: maximum size is %dMB", apperrors.ErrFileTooLarge, maxBytes/(1024*1024))
	}

	format, err := detectFormat(path)
	if err != nil {
		return FormatUnknown, err
	}

	if format == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: please provide a WAV, MP3, M4A, FLAC or OGG file", apperrors.ErrUnsupportedFormat)
	}

	return format, nil
}

// detectFormat checks file magic bytes to determine audio format
func detectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil || n < 4 {
		return FormatUnknown, fmt.Errorf("%w: could not read file header", apperrors.ErrCorruptedFile)
	}
	header = header[:n]

	// WAV: RIFF....WAVE
	if n >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	// FLAC: fLaC stream marker
	if string(header[:4]) == "fLaC" {
		return FormatFLAC, nil
	}

	// OGG: OggS capture pattern
	if string(header[:4]) == "OggS" {
		return FormatOGG, nil
	}

	// M4A: ISO base media, "ftyp" box at offset 4
	if n >= 8 && string(header[4:8]) == "ftyp" {
		return FormatM4A, nil
	}

	// MP3 with ID3 tag
	if string(header[:3]) == "ID3" {
		return FormatMP3, nil
	}

	// MP3 frame sync
	if header[0] == 0xFF && (header[1]&0xE0) == 0xE0 {
		return FormatMP3, nil
	}

	// Fallback: trust the extension
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".m4a":
		return FormatM4A, nil
	case ".flac":
		return FormatFLAC, nil
	case ".ogg":
		return FormatOGG, nil
	}

	return FormatUnknown, nil
}
