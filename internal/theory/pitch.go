// Package theory maps between note names, MIDI numbers and chord voicings.
// Octaves follow scientific pitch notation: C4 is MIDI 60.
package theory

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minMIDI = 0
	maxMIDI = 127
)

var letterOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteNameToMIDI converts a name such as "E1", "C4", "F#3" or "Bb2" to a MIDI number.
// Format: <letter><accidental?><octave>, letter A-G (case insensitive),
// accidental "#" or "b", octave -1 to 9.
func NoteNameToMIDI(name string) (int, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("note name too short: %q", name)
	}

	semitone, ok := letterOffsets[strings.ToUpper(name[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note letter in %q", name)
	}

	idx := 1
	switch name[idx] {
	case '#':
		semitone++
		idx++
	case 'b':
		semitone--
		idx++
	}

	if idx >= len(name) {
		return 0, fmt.Errorf("missing octave in note name %q", name)
	}
	octave, err := strconv.Atoi(name[idx:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note name %q: %w", name, err)
	}

	midi := (octave+1)*12 + semitone
	if midi < minMIDI || midi > maxMIDI {
		return 0, fmt.Errorf("note %q is outside the MIDI range", name)
	}
	return midi, nil
}

// MIDIToNoteName converts a MIDI number to a name using sharps.
func MIDIToNoteName(midi int) (string, error) {
	if midi < minMIDI || midi > maxMIDI {
		return "", fmt.Errorf("MIDI number %d is outside 0-127", midi)
	}
	return sharpNames[midi%12] + strconv.Itoa(midi/12-1), nil
}

// NormalizePitch returns a note name for pitch, which may already be a name
// or the decimal text of a MIDI number.
func NormalizePitch(pitch string) (string, error) {
	if midi, err := strconv.Atoi(pitch); err == nil {
		return MIDIToNoteName(midi)
	}
	if _, err := NoteNameToMIDI(pitch); err != nil {
		return "", err
	}
	return pitch, nil
}
