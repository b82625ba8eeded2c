package completion

import (
	"fmt"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/notation"
	"github.com/Conceptual-Machines/melody-bridge/internal/prompt"
	"github.com/Conceptual-Machines/melody-bridge/internal/theory"
)

const (
	// DefaultBPM is the tempo of the embedded seed.
	DefaultBPM = 96.0

	defaultVoicingOctave = 3
	barLength            = 4.0
)

// defaultProgression is vi-IV-I-V in C major, one bar per chord.
var defaultProgression = []string{"Am", "F", "C", "G"}

// DefaultChords returns the default progression as chord events.
func DefaultChords() []models.ChordEvent {
	chords := make([]models.ChordEvent, len(defaultProgression))
	for i, symbol := range defaultProgression {
		chords[i] = models.ChordEvent{
			Symbol:   symbol,
			Start:    float64(i) * barLength,
			Duration: barLength,
		}
	}
	return chords
}

// Defaults returns the embedded seed melody with the default progression
// and its voicings.
func Defaults() (*models.DefaultSeedResponse, error) {
	notes, err := prompt.NewPromptLoader().GetDefaultSeed()
	if err != nil {
		return nil, err
	}

	chords := DefaultChords()
	voicings := make(map[string][]string, len(chords))
	for _, c := range chords {
		v, err := theory.Voicing(c.Symbol, defaultVoicingOctave)
		if err != nil {
			return nil, fmt.Errorf("voicing %s: %w", c.Symbol, err)
		}
		voicings[c.Symbol] = v
	}

	notesText, err := notation.NotesToText(notes)
	if err != nil {
		return nil, fmt.Errorf("render default seed: %w", err)
	}
	chordsText, err := notation.ChordsToText(chords)
	if err != nil {
		return nil, fmt.Errorf("render default chords: %w", err)
	}

	return &models.DefaultSeedResponse{
		Notes:      notation.SortNotes(notes),
		BPM:        DefaultBPM,
		NotesText:  notesText,
		Chords:     chords,
		ChordsText: chordsText,
		Voicings:   voicings,
	}, nil
}
