package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/notation"
)

const noChordsHint = "No chords provided; assume default vi-IV-I-V repeating."

// Continuation is everything the user prompt describes about one request.
type Continuation struct {
	Mood          string
	Adventureness float64
	BPM           float64
	Seed          []models.NoteEvent
	Chords        []models.ChordEvent
	EndTime       float64
	TargetEnd     float64
}

// Builder builds prompts for melody continuation
type Builder struct {
	loader *Loader
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{loader: NewPromptLoader()}
}

// BuildSystemPrompt returns the model instructions.
func (b *Builder) BuildSystemPrompt() (string, error) {
	return b.loader.GetSystemPrompt()
}

// BuildUserPrompt describes the seed, its harmonic context and the length
// the continuation has to reach.
func (b *Builder) BuildUserPrompt(c Continuation) (string, error) {
	seedText, err := notation.NotesToText(c.Seed)
	if err != nil {
		return "", fmt.Errorf("render seed: %w", err)
	}
	chordsText, err := notation.ChordsToText(c.Chords)
	if err != nil {
		return "", fmt.Errorf("render chords: %w", err)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Mood: %s\n", c.Mood)
	fmt.Fprintf(&sb, "Adventureness: %s percent\n", formatNumber(c.Adventureness))
	fmt.Fprintf(&sb, "BPM: %s\n\n", formatNumber(c.BPM))

	sb.WriteString("Existing melody:\n")
	sb.WriteString(seedText)
	sb.WriteString("\n\n")

	sb.WriteString("Use these chords as harmonic context (if provided):\n")
	if len(c.Chords) > 0 {
		sb.WriteString("Chords (symbol start duration):\n")
		sb.WriteString(chordsText)
	} else {
		sb.WriteString(noChordsHint)
	}
	sb.WriteString("\n\n")

	durations, avg := rhythmProfile(c.Seed)
	sb.WriteString("Seed rhythm profile:\n")
	fmt.Fprintf(&sb, "- Unique durations: [%s]\n", strings.Join(durations, ", "))
	fmt.Fprintf(&sb, "- Average duration: %.3f\n\n", avg)

	end := formatNumber(c.EndTime)
	target := formatNumber(c.TargetEnd)
	fmt.Fprintf(&sb, "The current melody ends at %s quarterLength.\n", end)
	fmt.Fprintf(&sb, "TOTAL target length (including seed) = %s quarterLength.\n", target)
	fmt.Fprintf(&sb, "You MUST continue until the final note end equals %s; do not stop early or go beyond.\n", target)
	fmt.Fprintf(&sb, "Start times of new notes must be >= %s.\n", end)
	sb.WriteString("Maintain the same rhythmic character (accents, subdivisions, syncopation) as the seed; reuse its rhythmic cells and density.\n")

	if last, ok := lastNote(c.Seed); ok {
		fmt.Fprintf(&sb, "Last seed note: %s at %s len %s.\n",
			last.Pitch, formatNumber(last.Start), formatNumber(last.Duration))
	}

	return strings.TrimSpace(sb.String()), nil
}

// rhythmProfile returns the sorted distinct durations and their mean.
func rhythmProfile(notes []models.NoteEvent) ([]string, float64) {
	if len(notes) == 0 {
		return nil, 0
	}
	seen := make(map[float64]bool)
	var unique []float64
	total := 0.0
	for _, n := range notes {
		total += n.Duration
		if !seen[n.Duration] {
			seen[n.Duration] = true
			unique = append(unique, n.Duration)
		}
	}
	sort.Float64s(unique)

	out := make([]string, len(unique))
	for i, d := range unique {
		out[i] = formatNumber(d)
	}
	return out, total / float64(len(notes))
}

func lastNote(notes []models.NoteEvent) (models.NoteEvent, bool) {
	if len(notes) == 0 {
		return models.NoteEvent{}, false
	}
	sorted := notation.SortNotes(notes)
	return sorted[len(sorted)-1], true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
