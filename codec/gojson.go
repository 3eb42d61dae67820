package codec

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// GoJSON is a JSON codec backed by github.com/goccy/go-json.
type GoJSON[T any] struct{}

// Marshal encodes the value to JSON.
func (GoJSON[T]) Marshal(v T) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes the JSON data.
func (GoJSON[T]) Unmarshal(data []byte) (T, error) {
	var v T
	if err := gojson.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// Name returns the unique name of the codec ("go-json").
func (GoJSON[T]) Name() string { return "go-json" }
