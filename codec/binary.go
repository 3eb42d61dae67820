package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float64Vector stores a vector as consecutive little-endian float64 values.
type Float64Vector struct{}

// Marshal encodes the vector.
func (Float64Vector) Marshal(v []float64) ([]byte, error) {
	b := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(f))
	}
	return b, nil
}

// Unmarshal decodes a copy of the vector.
func (Float64Vector) Unmarshal(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 8", ErrMalformed, len(data))
	}
	v := make([]float64, len(data)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return v, nil
}

// Name returns the unique name of the codec ("float64").
func (Float64Vector) Name() string { return "float64" }

// String stores a string as its UTF-8 bytes.
type String struct{}

// Marshal encodes the string.
func (String) Marshal(v string) ([]byte, error) { return []byte(v), nil }

// Unmarshal decodes a copy of the string.
func (String) Unmarshal(data []byte) (string, error) { return string(data), nil }

// Name returns the unique name of the codec ("string").
func (String) Name() string { return "string" }

// Bytes stores a byte slice unchanged.
type Bytes struct{}

// Marshal returns a copy of v.
func (Bytes) Marshal(v []byte) ([]byte, error) { return append([]byte(nil), v...), nil }

// Unmarshal returns a copy of data.
func (Bytes) Unmarshal(data []byte) ([]byte, error) { return append([]byte(nil), data...), nil }

// Name returns the unique name of the codec ("bytes").
func (Bytes) Name() string { return "bytes" }
