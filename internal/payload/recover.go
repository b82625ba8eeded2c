// Package payload extracts JSON objects from noisy datagram bodies and
// checks them against the result and capture payload shapes.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnrecoverablePayload means neither the text nor its brace slice is a JSON object.
	ErrUnrecoverablePayload = errors.New("payload: no JSON object could be recovered")
	// ErrInvalidSchema means the object lacks required keys or has mistyped values.
	ErrInvalidSchema = errors.New("payload: invalid schema")
)

// Recover parses text as a JSON object. When the whole text is not valid JSON,
// the slice from the first "{" to the last "}" is parsed instead, which strips
// framing bytes the controller sometimes wraps around the object.
func Recover(text string) (map[string]any, error) {
	if obj, err := decodeObject(text); err == nil {
		return obj, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, ErrUnrecoverablePayload
	}

	obj, err := decodeObject(text[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverablePayload, err)
	}
	return obj, nil
}

func decodeObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	return obj, nil
}
