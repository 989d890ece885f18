package formula

import (
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/zephyrtronium/bigfloat"
)

// Decimal is a fixed-point decimal representation backed by
// shopspring/decimal. Quotients are rounded to decimal.DivisionPrecision
// digits. Division or modulo by zero and fractional powers of negative
// numbers fail with a *DomainError.
type Decimal struct{}

var _ Operations[decimal.Decimal] = Decimal{}

var (
	decZero = decimal.Zero
	decOne  = decimal.NewFromInt(1)
	decTwo  = decimal.NewFromInt(2)
)

// powPrec is the precision in bits used for fractional exponents.
const powPrec = 192

// maxSquaring is the largest integer exponent computed by repeated
// squaring. Larger ones go through big.Float.
const maxSquaring = 1 << 10

func (Decimal) Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }
func (Decimal) Sub(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }
func (Decimal) Mul(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }
func (Decimal) Neg(a decimal.Decimal) decimal.Decimal    { return a.Neg() }

func (Decimal) Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decZero, &DomainError{X: b.String(), Arg: 2, Func: "/"}
	}
	return a.Div(b), nil
}

func (Decimal) Mod(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decZero, &DomainError{X: b.String(), Arg: 2, Func: "%"}
	}
	return a.Mod(b), nil
}

func (Decimal) Pow(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decOne, nil
	}
	integral := b.Equal(b.Truncate(0))
	if integral && b.Abs().LessThanOrEqual(decimal.NewFromInt(maxSquaring)) {
		return powInt(a, b.IntPart())
	}
	switch a.Sign() {
	case 0:
		if b.Sign() < 0 {
			return decZero, &DomainError{X: a.String(), Arg: 1, Func: "^"}
		}
		return decZero, nil
	case -1:
		if !integral {
			return decZero, &DomainError{X: a.String(), Arg: 1, Func: "^"}
		}
		r, err := powFloat(a.Neg(), b)
		if err != nil {
			return decZero, err
		}
		// Exponents here may exceed int64.
		if !b.Mod(decTwo).IsZero() {
			r = r.Neg()
		}
		return r, nil
	}
	return powFloat(a, b)
}

// powInt computes a^n by repeated squaring.
func powInt(a decimal.Decimal, n int64) (decimal.Decimal, error) {
	neg := n < 0
	if neg {
		if a.IsZero() {
			return decZero, &DomainError{X: a.String(), Arg: 1, Func: "^"}
		}
		n = -n
	}
	r := decOne
	for n > 0 {
		if n&1 != 0 {
			r = r.Mul(a)
		}
		a = a.Mul(a)
		n >>= 1
	}
	if neg {
		return decOne.Div(r), nil
	}
	return r, nil
}

// powFloat computes a^b for positive a through big.Float.
func powFloat(a, b decimal.Decimal) (decimal.Decimal, error) {
	x, _, err := new(big.Float).SetPrec(powPrec).Parse(a.String(), 10)
	if err != nil {
		return decZero, err
	}
	y, _, err := new(big.Float).SetPrec(powPrec).Parse(b.String(), 10)
	if err != nil {
		return decZero, err
	}
	z := bigfloat.Pow(new(big.Float).SetPrec(powPrec), x, y)
	if z.IsInf() {
		return decZero, &DomainError{X: b.String(), Arg: 2, Func: "^"}
	}
	return decimal.NewFromString(z.Text('g', 40))
}

func (Decimal) LessThan(a, b decimal.Decimal) decimal.Decimal    { return dtruth(a.LessThan(b)) }
func (Decimal) LessOrEqual(a, b decimal.Decimal) decimal.Decimal { return dtruth(a.LessThanOrEqual(b)) }
func (Decimal) GreaterThan(a, b decimal.Decimal) decimal.Decimal { return dtruth(a.GreaterThan(b)) }
func (Decimal) GreaterOrEqual(a, b decimal.Decimal) decimal.Decimal {
	return dtruth(a.GreaterThanOrEqual(b))
}
func (Decimal) Equal(a, b decimal.Decimal) decimal.Decimal    { return dtruth(a.Equal(b)) }
func (Decimal) NotEqual(a, b decimal.Decimal) decimal.Decimal { return dtruth(!a.Equal(b)) }

func (Decimal) And(a, b decimal.Decimal) decimal.Decimal { return dtruth(!a.IsZero() && !b.IsZero()) }
func (Decimal) Or(a, b decimal.Decimal) decimal.Decimal  { return dtruth(!a.IsZero() || !b.IsZero()) }

func (Decimal) Zero() decimal.Decimal           { return decZero }
func (Decimal) One() decimal.Decimal            { return decOne }
func (Decimal) IsZero(a decimal.Decimal) bool   { return a.IsZero() }
func (Decimal) FromInt(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

func (Decimal) Float64(a decimal.Decimal) float64 {
	f, _ := a.Float64()
	return f
}

func (Decimal) FromFloat64(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decZero, &DomainError{X: strconv.FormatFloat(f, 'g', -1, 64), Func: "decimal"}
	}
	return decimal.NewFromFloat(f), nil
}

func (Decimal) Parse(s string, loc Locale) (decimal.Decimal, error) {
	return decimal.NewFromString(loc.canonical(s))
}

func dtruth(b bool) decimal.Decimal {
	if b {
		return decOne
	}
	return decZero
}

func (Decimal) Ceil(a decimal.Decimal) decimal.Decimal     { return a.Ceil() }
func (Decimal) Floor(a decimal.Decimal) decimal.Decimal    { return a.Floor() }
func (Decimal) Truncate(a decimal.Decimal) decimal.Decimal { return a.Truncate(0) }
func (Decimal) Round(a decimal.Decimal) decimal.Decimal    { return a.RoundBank(0) }
