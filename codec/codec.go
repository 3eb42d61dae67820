// Package codec serializes the objects stored in tree nodes.
//
// The codec is part of the on-page format: a tree written with one codec
// can only be read back with the same codec.
package codec

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when bytes cannot be decoded into an object.
var ErrMalformed = errors.New("malformed object encoding")

// Codec encodes/decodes objects of type T.
//
// Unmarshal must not retain data: the bytes belong to a page that is
// released after the call. Implementations must be safe for concurrent use.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
	Name() string
}

// ByName returns a built-in codec for []float64 by its stable name.
func ByName(name string) (Codec[[]float64], bool) {
	switch name {
	case "float64", "":
		return Float64Vector{}, true
	case "json":
		return JSON[[]float64]{}, true
	case "go-json":
		return GoJSON[[]float64]{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for tests.
func MustMarshal[T any](c Codec[T], v T) []byte {
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
