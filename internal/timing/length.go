// Package timing converts continuation lengths into quarter-length units and
// checks them against the end of a seed melody.
package timing

import (
	"errors"
	"fmt"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

const (
	quartersPerBar   = 4.0
	secondsPerMinute = 60.0
	msPerSecond      = 1000.0
)

var (
	// ErrUnsupportedUnit is a length unit other than bar, step or ms.
	ErrUnsupportedUnit = errors.New("timing: unsupported length unit")
	// ErrLengthNotExtending is matched by *LengthNotExtendingError.
	ErrLengthNotExtending = errors.New("timing: target length does not extend the melody")
)

// LengthNotExtendingError carries the rejected target and the seed end time.
type LengthNotExtendingError struct {
	Target float64
	End    float64
}

func (e *LengthNotExtendingError) Error() string {
	return fmt.Sprintf("target total length (%v ql) must exceed existing melody end (%v ql)", e.Target, e.End)
}

func (e *LengthNotExtendingError) Is(target error) bool {
	return target == ErrLengthNotExtending
}

// ToQuarterUnits converts value in unit to quarter-length units.
// A bar is four quarters, a step is one quarter, and milliseconds depend on bpm.
func ToQuarterUnits(value float64, unit string, bpm float64) (float64, error) {
	switch unit {
	case models.LengthUnitBar:
		return value * quartersPerBar, nil
	case models.LengthUnitStep:
		return value, nil
	case models.LengthUnitMS:
		return value / msPerSecond * (bpm / secondsPerMinute), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
}

// EndTime returns the latest end of any note, or 0 for no notes.
func EndTime(notes []models.NoteEvent) float64 {
	end := 0.0
	for i, n := range notes {
		if i == 0 || n.End() > end {
			end = n.End()
		}
	}
	return end
}

// ValidateExtends requires target to lie strictly after end.
func ValidateExtends(target, end float64) error {
	if target <= end {
		return &LengthNotExtendingError{Target: target, End: end}
	}
	return nil
}

// TargetEnd converts the requested length and checks it extends seed.
func TargetEnd(seed []models.NoteEvent, value float64, unit string, bpm float64) (float64, error) {
	target, err := ToQuarterUnits(value, unit, bpm)
	if err != nil {
		return 0, err
	}
	if err := ValidateExtends(target, EndTime(seed)); err != nil {
		return 0, err
	}
	return target, nil
}
