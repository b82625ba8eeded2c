package payload

import (
	"encoding/json"
	"fmt"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

// Kind is the shape of a recovered payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindResult
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindCapture:
		return "capture"
	default:
		return "unknown"
	}
}

const (
	keyFullTrack     = "full_track"
	keyAddedNotes    = "added_notes"
	keyOriginalNotes = "original_notes"
)

// Classify reports which payload shape obj has. Result keys win over capture keys.
func Classify(obj map[string]any) Kind {
	if ValidateResult(obj) == nil {
		return KindResult
	}
	if _, ok := obj[keyOriginalNotes]; ok {
		return KindCapture
	}
	return KindUnknown
}

// ValidateResult checks that obj carries both result keys.
func ValidateResult(obj map[string]any) error {
	for _, key := range []string{keyFullTrack, keyAddedNotes} {
		if _, ok := obj[key]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidSchema, key)
		}
	}
	return nil
}

// DecodeResult validates obj and converts it into a MelodyResult.
func DecodeResult(obj map[string]any) (models.MelodyResult, error) {
	if err := ValidateResult(obj); err != nil {
		return models.MelodyResult{}, err
	}

	var result models.MelodyResult
	if err := remarshal(obj, &result); err != nil {
		return models.MelodyResult{}, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return result, nil
}

// DecodeCapture converts a capture payload into a completion request.
// Pitches may arrive as MIDI numbers and are normalised by the caller.
func DecodeCapture(obj map[string]any) (models.CompleteRequest, error) {
	if _, ok := obj[keyOriginalNotes]; !ok {
		return models.CompleteRequest{}, fmt.Errorf("%w: missing %q", ErrInvalidSchema, keyOriginalNotes)
	}

	var req models.CompleteRequest
	if err := remarshal(obj, &req); err != nil {
		return models.CompleteRequest{}, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return req, nil
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
