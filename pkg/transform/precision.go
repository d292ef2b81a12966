package transform

import (
	"fmt"
	"strings"
)

// Precision is the working floating-point precision of a reconstruction.
type Precision int

const (
	// Float64 computes and stores everything in double precision.
	Float64 Precision = iota
	// Float32 stores spectra as complex64 and volumes as float32.
	Float32
)

// String returns the conventional dtype name.
func (p Precision) String() string {
	switch p {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

// Valid reports whether p is a supported precision.
func (p Precision) Valid() bool {
	return p == Float64 || p == Float32
}

// ParsePrecision converts a dtype name into a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "double", "":
		return Float64, nil
	case "float32", "float", "single":
		return Float32, nil
	default:
		return 0, fmt.Errorf("precision must be float32 or float64, got %q", s)
	}
}

// Round truncates v to the storage precision of p.
func (p Precision) Round(v complex128) complex128 {
	if p == Float32 {
		return complex128(complex64(v))
	}
	return v
}
