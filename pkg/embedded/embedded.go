package embedded

import (
	_ "embed"
)

// SystemPromptTxt holds the continuation rules sent as model instructions.
//
//go:embed data/system_prompt.txt
var SystemPromptTxt []byte

// DefaultSeedTxt holds the default seed melody in note-line text form.
//
//go:embed data/default_seed.txt
var DefaultSeedTxt []byte
