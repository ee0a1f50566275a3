package midi

import (
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2/smf"

	apperrors "github.com/boscokante/piano-midi-transcription/internal/errors"
)

const sustainController = 64

// Summary holds statistics extracted from a transcribed MIDI file
type Summary struct {
	NoteCount    int          `json:"note_count"`
	MinPitch     int          `json:"min_pitch"`
	MaxPitch     int          `json:"max_pitch"`
	Duration     float64      `json:"duration_seconds"`
	SustainCount int          `json:"sustain_events"`
	Notes        []Note       `json:"-"`
	Pedals       []PedalEvent `json:"-"`
}

// SummarizeFile parses a standard MIDI file from disk
func SummarizeFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open midi: %w", err)
	}
	defer f.Close()
	return Summarize(f)
}

// Summarize parses a standard MIDI stream into notes, pedal events and
// aggregate statistics. A NoteOn without a matching NoteOff is closed at
// the end of the file.
func Summarize(r io.Reader) (*Summary, error) {
	type openNote struct {
		start    float64
		velocity int
	}

	sum := &Summary{MinPitch: 127}
	open := map[uint8]openNote{}
	var endTime float64

	rd := smf.ReadTracksFrom(r)
	rd.Do(func(te smf.TrackEvent) {
		t := float64(te.AbsMicroSeconds) / 1e6
		if t > endTime {
			endTime = t
		}

		var ch, key, vel uint8
		switch {
		case te.Message.GetNoteStart(&ch, &key, &vel):
			// A retrigger ends the sounding note at the new onset
			if prev, ok := open[key]; ok {
				sum.Notes = append(sum.Notes, Note{
					Pitch:    int(key),
					Start:    prev.start,
					Duration: t - prev.start,
					Velocity: prev.velocity,
				})
			}
			open[key] = openNote{start: t, velocity: int(vel)}
		case te.Message.GetNoteEnd(&ch, &key):
			on, ok := open[key]
			if !ok {
				return
			}
			delete(open, key)
			sum.Notes = append(sum.Notes, Note{
				Pitch:    int(key),
				Start:    on.start,
				Duration: t - on.start,
				Velocity: on.velocity,
			})
		default:
			var cc, val uint8
			if te.Message.GetControlChange(&ch, &cc, &val) && cc == sustainController {
				sum.Pedals = append(sum.Pedals, PedalEvent{Time: t, Down: val >= 64})
				sum.SustainCount++
			}
		}
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptedFile, err)
	}

	// Close dangling notes at end of file
	for key, on := range open {
		sum.Notes = append(sum.Notes, Note{
			Pitch:    int(key),
			Start:    on.start,
			Duration: endTime - on.start,
			Velocity: on.velocity,
		})
	}

	sortNotes(sum.Notes)
	sum.NoteCount = len(sum.Notes)
	sum.Duration = endTime

	for _, n := range sum.Notes {
		if n.Pitch < sum.MinPitch {
			sum.MinPitch = n.Pitch
		}
		if n.Pitch > sum.MaxPitch {
			sum.MaxPitch = n.Pitch
		}
	}
	if sum.NoteCount == 0 {
		sum.MinPitch, sum.MaxPitch = 0, 0
	}

	return sum, nil
}
