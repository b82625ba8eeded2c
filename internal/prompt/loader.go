package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/notation"
	"github.com/Conceptual-Machines/melody-bridge/pkg/embedded"
)

var errEmptyPrompt = errors.New("embedded system prompt is empty")

type Loader struct{}

func NewPromptLoader() *Loader {
	return &Loader{}
}

// GetSystemPrompt loads the continuation rules
func (l *Loader) GetSystemPrompt() (string, error) {
	content := strings.TrimSpace(string(embedded.SystemPromptTxt))
	if content == "" {
		return "", errEmptyPrompt
	}
	return content, nil
}

// GetDefaultSeed parses the embedded default seed melody
func (l *Loader) GetDefaultSeed() ([]models.NoteEvent, error) {
	notes, err := notation.NotesFromText(string(embedded.DefaultSeedTxt))
	if err != nil {
		return nil, fmt.Errorf("default seed: %w", err)
	}
	return notes, nil
}
