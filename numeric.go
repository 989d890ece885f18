package formula

import (
	"math"
	"strconv"
)

// Operations is the set of arithmetic a numeric representation provides to
// the parser and both evaluators. The expression language has no boolean
// type: comparisons and logical operators produce One or Zero.
//
// Div, Mod and Pow may fail for representations that cannot express the
// result. Implementations must be safe for concurrent use.
type Operations[T any] interface {
	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) (T, error)
	Mod(a, b T) (T, error)
	Pow(a, b T) (T, error)
	Neg(a T) T

	LessThan(a, b T) T
	LessOrEqual(a, b T) T
	GreaterThan(a, b T) T
	GreaterOrEqual(a, b T) T
	Equal(a, b T) T
	NotEqual(a, b T) T

	And(a, b T) T
	Or(a, b T) T

	Zero() T
	One() T
	IsZero(a T) bool

	// Parse converts text to a number. Group separators of loc are ignored
	// and its decimal separator marks the fraction.
	Parse(s string, loc Locale) (T, error)
	// FromInt converts a native integer.
	FromInt(i int64) T
	// Float64 approximates a value as a float64, for functions which only
	// exist for floats.
	Float64(a T) float64
	// FromFloat64 converts a float64 result back. It fails if the
	// representation has no value for f, e.g. NaN.
	FromFloat64(f float64) (T, error)
}

// Float64 is the IEEE-754 double representation. Division by zero yields
// infinities and NaN as usual; none of its operations fail.
type Float64 struct{}

var _ Operations[float64] = Float64{}

func (Float64) Add(a, b float64) float64 { return a + b }
func (Float64) Sub(a, b float64) float64 { return a - b }
func (Float64) Mul(a, b float64) float64 { return a * b }
func (Float64) Neg(a float64) float64    { return -a }

func (Float64) Div(a, b float64) (float64, error) { return a / b, nil }
func (Float64) Mod(a, b float64) (float64, error) { return math.Mod(a, b), nil }
func (Float64) Pow(a, b float64) (float64, error) { return math.Pow(a, b), nil }

func (Float64) LessThan(a, b float64) float64       { return truth(a < b) }
func (Float64) LessOrEqual(a, b float64) float64    { return truth(a <= b) }
func (Float64) GreaterThan(a, b float64) float64    { return truth(a > b) }
func (Float64) GreaterOrEqual(a, b float64) float64 { return truth(a >= b) }
func (Float64) Equal(a, b float64) float64          { return truth(a == b) }
func (Float64) NotEqual(a, b float64) float64       { return truth(a != b) }

func (Float64) And(a, b float64) float64 { return truth(a != 0 && b != 0) }
func (Float64) Or(a, b float64) float64  { return truth(a != 0 || b != 0) }

func (Float64) Zero() float64           { return 0 }
func (Float64) One() float64            { return 1 }
func (Float64) IsZero(a float64) bool   { return a == 0 }
func (Float64) FromInt(i int64) float64 { return float64(i) }

func (Float64) Float64(a float64) float64              { return a }
func (Float64) FromFloat64(f float64) (float64, error) { return f, nil }

func (Float64) Parse(s string, loc Locale) (float64, error) {
	r, err := strconv.ParseFloat(loc.canonical(s), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			// Overflow saturates to an infinity like a literal would.
			return r, nil
		}
		return 0, err
	}
	return r, nil
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Rounder is implemented by representations which round exactly. Built-in
// rounding functions fall back to float64 arithmetic for representations
// without it.
type Rounder[T any] interface {
	Ceil(a T) T
	Floor(a T) T
	Truncate(a T) T
	// Round rounds half to even.
	Round(a T) T
}

func (Float64) Ceil(a float64) float64     { return math.Ceil(a) }
func (Float64) Floor(a float64) float64    { return math.Floor(a) }
func (Float64) Truncate(a float64) float64 { return math.Trunc(a) }
func (Float64) Round(a float64) float64    { return math.RoundToEven(a) }
