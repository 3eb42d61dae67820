package codec

import (
	"encoding/json"
	"fmt"
)

// JSON is the standard-library JSON codec for arbitrary objects.
//
// Use GoJSON for the faster encoder with the same output.
type JSON[T any] struct{}

// Marshal encodes the value to JSON.
func (JSON[T]) Marshal(v T) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data.
func (JSON[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// Name returns the unique name of the codec ("json").
func (JSON[T]) Name() string { return "json" }
