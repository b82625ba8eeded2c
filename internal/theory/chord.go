package theory

import (
	"fmt"
	"strings"
)

var validRoots = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3,
	"E": 4, "F": 5, "F#": 6, "Gb": 6, "G": 7, "G#": 8,
	"Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

// ChordToMIDI converts a chord symbol to MIDI numbers rooted in octave.
// Supports triads, sus chords, 7ths and upper extensions, and slash bass
// notes (Emin/G), which are placed an octave below the root.
func ChordToMIDI(symbol string, octave int) ([]int, error) {
	baseChord := symbol
	bassNote := ""
	if parts := strings.Split(symbol, "/"); len(parts) == 2 {
		baseChord = strings.TrimSpace(parts[0])
		bassNote = strings.TrimSpace(parts[1])
	}

	root, rest, err := splitRoot(baseChord)
	if err != nil {
		return nil, fmt.Errorf("invalid chord root: %w", err)
	}
	rootMIDI := (octave+1)*12 + validRoots[root]

	intervals := buildChordIntervals(parseChordQuality(rest), parseExtensions(rest))

	notes := make([]int, 0, len(intervals)+1)
	if bassNote != "" {
		if bass, _, err := splitRoot(bassNote); err == nil {
			bassMIDI := octave*12 + validRoots[bass]
			if bassMIDI >= minMIDI && bassMIDI <= maxMIDI {
				notes = append(notes, bassMIDI)
			}
		}
	}
	for _, interval := range intervals {
		if n := rootMIDI + interval; n >= minMIDI && n <= maxMIDI {
			notes = append(notes, n)
		}
	}

	if len(notes) == 0 {
		return nil, fmt.Errorf("no valid MIDI notes generated for chord %q", symbol)
	}
	return notes, nil
}

// Voicing returns ChordToMIDI as note names.
func Voicing(symbol string, octave int) ([]string, error) {
	midi, err := ChordToMIDI(symbol, octave)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(midi))
	for _, n := range midi {
		name, err := MIDIToNoteName(n)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// splitRoot separates the root (C, C#, Db, ...) from the rest of the symbol.
func splitRoot(symbol string) (root, rest string, err error) {
	if symbol == "" {
		return "", "", fmt.Errorf("empty chord symbol")
	}
	root = symbol[:1]
	if len(symbol) > 1 && (symbol[1] == '#' || symbol[1] == 'b') {
		root = symbol[:2]
	}
	if _, ok := validRoots[root]; !ok {
		return "", "", fmt.Errorf("invalid root note %q", root)
	}
	return root, symbol[len(root):], nil
}

func parseChordQuality(rest string) string {
	switch {
	case strings.HasPrefix(rest, "m") && !strings.HasPrefix(rest, "maj") && !strings.HasPrefix(rest, "min"),
		strings.HasPrefix(rest, "min"):
		return "minor"
	case strings.HasPrefix(rest, "dim"):
		return "diminished"
	case strings.HasPrefix(rest, "aug"):
		return "augmented"
	case strings.HasPrefix(rest, "sus2"):
		return "sus2"
	case strings.HasPrefix(rest, "sus4"):
		return "sus4"
	}
	return "major"
}

func parseExtensions(rest string) []string {
	var extensions []string

	// maj7/min7 go first so TrimPrefix("m") cannot corrupt them
	if strings.Contains(rest, "maj7") {
		extensions = append(extensions, "maj7")
		rest = strings.ReplaceAll(rest, "maj7", "")
	}
	if strings.Contains(rest, "min7") {
		extensions = append(extensions, "min7")
		rest = strings.ReplaceAll(rest, "min7", "")
	}

	for _, q := range []string{"min", "m", "dim", "aug", "sus2", "sus4"} {
		if strings.HasPrefix(rest, q) {
			rest = strings.TrimPrefix(rest, q)
			break
		}
	}

	for _, add := range []string{"add9", "add11", "add13"} {
		if strings.Contains(rest, add) {
			extensions = append(extensions, add)
			rest = strings.ReplaceAll(rest, add, "")
		}
	}
	if strings.Contains(rest, "7") {
		extensions = append(extensions, "7")
		rest = strings.ReplaceAll(rest, "7", "")
	}
	for _, ext := range []string{"13", "11", "9"} {
		if strings.Contains(rest, ext) {
			extensions = append(extensions, ext)
			rest = strings.ReplaceAll(rest, ext, "")
		}
	}
	return extensions
}

func buildChordIntervals(quality string, extensions []string) []int {
	var intervals []int
	switch quality {
	case "minor":
		intervals = []int{0, 3, 7}
	case "diminished":
		intervals = []int{0, 3, 6}
	case "augmented":
		intervals = []int{0, 4, 8}
	case "sus2":
		intervals = []int{0, 2, 7}
	case "sus4":
		intervals = []int{0, 5, 7}
	default:
		intervals = []int{0, 4, 7}
	}

	for _, ext := range extensions {
		switch ext {
		case "7", "min7":
			intervals = append(intervals, 10)
		case "maj7":
			intervals = append(intervals, 11)
		case "9", "add9":
			intervals = append(intervals, 14)
		case "11", "add11":
			intervals = append(intervals, 17)
		case "13", "add13":
			intervals = append(intervals, 21)
		}
	}
	return intervals
}
