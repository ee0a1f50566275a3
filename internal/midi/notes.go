package midi

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Note represents a single transcribed note
type Note struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
}

// PedalEvent represents a sustain pedal change
type PedalEvent struct {
	Time float64 `json:"time"`
	Down bool    `json:"down"`
}

// sortNotes orders notes by start time, then pitch
func sortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

// ExportNotes writes the note list as JSON for downstream tooling
func ExportNotes(notes []Note, pedals []PedalEvent, path string) error {
	payload := struct {
		Notes  []Note       `json:"notes"`
		Pedals []PedalEvent `json:"pedals"`
	}{Notes: notes, Pedals: pedals}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write notes: %w", err)
	}
	return nil
}
