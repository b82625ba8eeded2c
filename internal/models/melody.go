package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// NoteEvent is a single pitched note in quarter-length units.
type NoteEvent struct {
	Pitch    string  `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the time at which the note stops sounding.
func (n NoteEvent) End() float64 {
	return n.Start + n.Duration
}

// UnmarshalJSON accepts the pitch either as a name ("C4") or as a MIDI
// number (60), which the controller sends for raw captures. Numbers are kept
// as their decimal text.
func (n *NoteEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Pitch    json.RawMessage `json:"pitch"`
		Start    float64         `json:"start"`
		Duration float64         `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var pitch string
	if err := json.Unmarshal(raw.Pitch, &pitch); err != nil {
		var num json.Number
		if numErr := json.Unmarshal(raw.Pitch, &num); numErr != nil {
			return fmt.Errorf("pitch %s is neither a name nor a number", string(raw.Pitch))
		}
		pitch = num.String()
	}

	*n = NoteEvent{Pitch: pitch, Start: raw.Start, Duration: raw.Duration}
	return nil
}

// Validate checks the field constraints of a single note.
func (n NoteEvent) Validate() error {
	switch {
	case n.Pitch == "":
		return fmt.Errorf("note at %v has an empty pitch", n.Start)
	case strings.ContainsFunc(n.Pitch, unicode.IsSpace):
		return fmt.Errorf("note at %v has whitespace in pitch %q", n.Start, n.Pitch)
	case n.Start < 0:
		return fmt.Errorf("note %s starts before zero (%v)", n.Pitch, n.Start)
	case n.Duration <= 0:
		return fmt.Errorf("note %s at %v has non-positive duration %v", n.Pitch, n.Start, n.Duration)
	}
	return nil
}

// ChordEvent is a chord symbol held for a span of time.
type ChordEvent struct {
	Symbol   string  `json:"symbol"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Validate checks the field constraints of a single chord.
func (c ChordEvent) Validate() error {
	switch {
	case c.Symbol == "":
		return fmt.Errorf("chord at %v has an empty symbol", c.Start)
	case strings.ContainsFunc(c.Symbol, unicode.IsSpace):
		return fmt.Errorf("chord at %v has whitespace in symbol %q", c.Start, c.Symbol)
	case c.Start < 0:
		return fmt.Errorf("chord %s starts before zero (%v)", c.Symbol, c.Start)
	case c.Duration <= 0:
		return fmt.Errorf("chord %s at %v has non-positive duration %v", c.Symbol, c.Start, c.Duration)
	}
	return nil
}

// MelodyResult is a completed melody: the seed plus its continuation.
type MelodyResult struct {
	FullTrack  []NoteEvent `json:"full_track"`
	AddedNotes []NoteEvent `json:"added_notes"`
	Timestamp  string      `json:"timestamp,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (r MelodyResult) Clone() MelodyResult {
	return MelodyResult{
		FullTrack:  append([]NoteEvent(nil), r.FullTrack...),
		AddedNotes: append([]NoteEvent(nil), r.AddedNotes...),
		Timestamp:  r.Timestamp,
	}
}
