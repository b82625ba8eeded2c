package timing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
)

func TestToQuarterUnits(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
		bpm   float64
		want  float64
	}{
		{"two bars", 2, "bar", 90, 8},
		{"bars ignore bpm", 2, "bar", 200, 8},
		{"steps are quarters", 3, "step", 120, 3},
		{"one second at 120", 1000, "ms", 120, 2},
		{"half second at 60", 500, "ms", 60, 0.5},
		{"fractional bar", 0.5, "bar", 120, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToQuarterUnits(tt.value, tt.unit, tt.bpm)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestToQuarterUnits_Unsupported(t *testing.T) {
	for _, unit := range []string{"beat", "Bar", "", "seconds"} {
		_, err := ToQuarterUnits(1, unit, 120)
		assert.ErrorIs(t, err, ErrUnsupportedUnit, unit)
	}
}

func TestEndTime(t *testing.T) {
	assert.Equal(t, 0.0, EndTime(nil))

	notes := []models.NoteEvent{
		{Pitch: "C4", Start: 0, Duration: 6},
		{Pitch: "D4", Start: 4, Duration: 1},
		{Pitch: "E4", Start: 7, Duration: 1},
	}
	assert.Equal(t, 8.0, EndTime(notes))
}

func TestValidateExtends(t *testing.T) {
	err := ValidateExtends(8.0, 8.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthNotExtending)

	var lenErr *LengthNotExtendingError
	require.True(t, errors.As(err, &lenErr))
	assert.Equal(t, 8.0, lenErr.Target)
	assert.Equal(t, 8.0, lenErr.End)

	assert.ErrorIs(t, ValidateExtends(7.5, 8.0), ErrLengthNotExtending)
	assert.NoError(t, ValidateExtends(8.01, 8.0))
	assert.NoError(t, ValidateExtends(0.25, 0))
}

func TestTargetEnd(t *testing.T) {
	seed := []models.NoteEvent{{Pitch: "C4", Start: 0, Duration: 4}}

	target, err := TargetEnd(seed, 2, "bar", 120)
	require.NoError(t, err)
	assert.Equal(t, 8.0, target)

	_, err = TargetEnd(seed, 1, "bar", 120)
	assert.ErrorIs(t, err, ErrLengthNotExtending)

	_, err = TargetEnd(seed, 1, "beat", 120)
	assert.ErrorIs(t, err, ErrUnsupportedUnit)
}
