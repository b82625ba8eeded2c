// Package notation converts note and chord lists to and from the canonical
// line-oriented text form "IDENT START DURATION", one event per line.
package notation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

var (
	// ErrMalformedLine is a line without exactly three fields.
	ErrMalformedLine = errors.New("notation: malformed line")
	// ErrInvalidNumber is a start or duration that is not a finite number.
	ErrInvalidNumber = errors.New("notation: invalid numeric value")
	// ErrEmptyMelody is text with no event lines.
	ErrEmptyMelody = errors.New("notation: text did not contain any events")
	// ErrInvalidIdentifier is a pitch or chord symbol that cannot be written
	// as a single field.
	ErrInvalidIdentifier = errors.New("notation: identifier must be non-empty and contain no whitespace")
)

// LineError reports the offending line of a failed parse.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%v on line %d: %q", e.Err, e.Line, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// SortNotes returns a copy of notes ordered by (start, pitch).
func SortNotes(notes []models.NoteEvent) []models.NoteEvent {
	out := append([]models.NoteEvent(nil), notes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Pitch < out[j].Pitch
	})
	return out
}

// SortChords returns a copy of chords ordered by (start, symbol).
func SortChords(chords []models.ChordEvent) []models.ChordEvent {
	out := append([]models.ChordEvent(nil), chords...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// NotesToText renders notes in canonical order. A pitch that is empty or
// contains whitespace yields ErrInvalidIdentifier, since it could not be
// parsed back.
func NotesToText(notes []models.NoteEvent) (string, error) {
	lines := make([]string, 0, len(notes))
	for _, n := range SortNotes(notes) {
		if err := ValidateIdentifier(n.Pitch); err != nil {
			return "", err
		}
		lines = append(lines, formatLine(n.Pitch, n.Start, n.Duration))
	}
	return strings.Join(lines, "\n"), nil
}

// ChordsToText renders chords in canonical order with the same identifier
// rule as NotesToText.
func ChordsToText(chords []models.ChordEvent) (string, error) {
	lines := make([]string, 0, len(chords))
	for _, c := range SortChords(chords) {
		if err := ValidateIdentifier(c.Symbol); err != nil {
			return "", err
		}
		lines = append(lines, formatLine(c.Symbol, c.Start, c.Duration))
	}
	return strings.Join(lines, "\n"), nil
}

// ValidateIdentifier reports whether ident can be written as one field.
func ValidateIdentifier(ident string) error {
	if ident == "" || strings.ContainsFunc(ident, unicode.IsSpace) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
	}
	return nil
}

// NotesFromText parses canonical note text. Either every line parses or an
// error is returned and no notes are.
func NotesFromText(text string) ([]models.NoteEvent, error) {
	var notes []models.NoteEvent
	err := parseLines(text, func(ident string, start, duration float64) {
		notes = append(notes, models.NoteEvent{Pitch: ident, Start: start, Duration: duration})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// ChordsFromText parses canonical chord text with the same rules as NotesFromText.
func ChordsFromText(text string) ([]models.ChordEvent, error) {
	var chords []models.ChordEvent
	err := parseLines(text, func(ident string, start, duration float64) {
		chords = append(chords, models.ChordEvent{Symbol: ident, Start: start, Duration: duration})
	})
	if err != nil {
		return nil, err
	}
	return chords, nil
}

func parseLines(text string, emit func(ident string, start, duration float64)) error {
	count := 0
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return &LineError{Line: i + 1, Text: line, Err: ErrMalformedLine}
		}

		start, err := parseNumber(fields[1])
		if err != nil {
			return &LineError{Line: i + 1, Text: line, Err: ErrInvalidNumber}
		}
		duration, err := parseNumber(fields[2])
		if err != nil {
			return &LineError{Line: i + 1, Text: line, Err: ErrInvalidNumber}
		}

		emit(fields[0], start, duration)
		count++
	}

	if count == 0 {
		return ErrEmptyMelody
	}
	return nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// formatLine writes numbers in their shortest exact decimal form so that
// parsing the text reproduces the same float64 regardless of locale.
func formatLine(ident string, start, duration float64) string {
	return ident + " " + strconv.FormatFloat(start, 'f', -1, 64) + " " + strconv.FormatFloat(duration, 'f', -1, 64)
}
