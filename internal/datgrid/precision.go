package datgrid

import (
	"encoding/binary"
	"math"
	"strings"
)

// Precision selects the width and numeric domain of a .dat sample.
type Precision int

const (
	Float64 Precision = iota
	Float32
	Uint16
	Uint8

	numPrecisions
)

// DefaultPrecision is used when the operator does not pick one.
const DefaultPrecision = Float64

type sampleReader func(b []byte, i int) float64

type precisionInfo struct {
	name string
	size int
	read sampleReader
}

// precisions is indexed by Precision. The array length is tied to
// numPrecisions so a new constant without an entry fails to compile.
var precisions = [numPrecisions]precisionInfo{
	Float64: {"float64", 8, func(b []byte, i int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}},
	Float32: {"float32", 4, func(b []byte, i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}},
	Uint16: {"uint16", 2, func(b []byte, i int) float64 {
		return float64(binary.LittleEndian.Uint16(b[i*2:]))
	}},
	Uint8: {"uint8", 1, func(b []byte, i int) float64 {
		return float64(b[i])
	}},
}

// Valid reports whether p is one of the supported precisions.
func (p Precision) Valid() bool {
	return p >= 0 && p < numPrecisions
}

// String returns the wire name of the precision ("float64", "uint8", ...).
func (p Precision) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return precisions[p].name
}

// ElementSize returns the number of bytes per sample, or 0 for an invalid
// precision.
func (p Precision) ElementSize() int {
	if !p.Valid() {
		return 0
	}
	return precisions[p].size
}

// ParsePrecision converts a wire name into a Precision. The empty string
// selects DefaultPrecision. Matching is case-insensitive. Any other name is
// an ErrInvalidInput error; it never falls back to DefaultPrecision.
func ParsePrecision(s string) (Precision, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DefaultPrecision, nil
	}
	for p := Precision(0); p < numPrecisions; p++ {
		if precisions[p].name == name {
			return p, nil
		}
	}
	return 0, invalidInput("precision", "unknown precision %q", s)
}

// PrecisionNames lists the wire names of all supported precisions in
// declaration order.
func PrecisionNames() []string {
	names := make([]string, 0, numPrecisions)
	for p := Precision(0); p < numPrecisions; p++ {
		names = append(names, precisions[p].name)
	}
	return names
}
