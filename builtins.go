package formula

import (
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"slices"

	"github.com/zephyrtronium/bigfloat"
)

// bigPrec is the precision of functions computed with big.Float.
const bigPrec = 192

// bigDigits is the number of significant digits in the built-in constants.
const bigDigits = 40

// resultDigits is the number of significant digits carried back from
// big.Float results. It is below bigDigits so that functions of the
// truncated constants round to exact values, e.g. loge(e) = 1.
const resultDigits = 34

// DefaultFunctions creates a function registry holding the built-in
// functions. All are overwritable and idempotent except random.
func DefaultFunctions[T any](ops Operations[T], caseSensitive bool) *FunctionRegistry[T] {
	r := NewFunctionRegistry[T](caseSensitive)
	for _, f := range builtins(ops) {
		if err := r.Register(f); err != nil {
			panic("formula: registering builtin: " + err.Error())
		}
	}
	return r
}

// DefaultConstants creates a constant registry holding e and pi. Neither can
// be overwritten.
func DefaultConstants[T any](ops Operations[T], caseSensitive bool) *ConstantRegistry[T] {
	r := NewConstantRegistry[T](caseSensitive)
	for name, text := range constText {
		v, err := ops.Parse(text, DefaultLocale)
		if err != nil {
			panic("formula: parsing constant " + name + ": " + err.Error())
		}
		if err := r.Register(ConstantInfo[T]{Name: name, Value: v}); err != nil {
			panic("formula: registering constant: " + err.Error())
		}
	}
	return r
}

// constText holds the decimal expansions of the built-in constants.
var constText = func() map[string]string {
	var one big.Float
	one.SetPrec(bigPrec).SetInt64(1)
	return map[string]string{
		"pi": bigfloat.Pi(new(big.Float).SetPrec(bigPrec)).Text('g', bigDigits),
		"e":  bigfloat.Exp(new(big.Float).SetPrec(bigPrec), &one).Text('g', bigDigits),
	}
}()

func builtins[T any](ops Operations[T]) []FunctionInfo[T] {
	zero := ops.Zero()
	fl := func(name string, f func(float64) float64) FunctionInfo[T] {
		return Monadic(name, native(ops, f))
	}
	var ln, log10, exp, sqrt func(T) (T, error)
	if _, ok := any(ops).(Float64); ok {
		// IEEE semantics: out-of-domain arguments give NaN or infinities.
		ln, log10 = native(ops, math.Log), native(ops, math.Log10)
		exp, sqrt = native(ops, math.Exp), native(ops, math.Sqrt)
	} else {
		positive := func(x *big.Float) bool { return x.Sign() > 0 }
		ln = bigFunc(ops, "loge", bigfloat.Log, positive)
		log10 = bigFunc(ops, "log10", func(z, x *big.Float) *big.Float {
			var ten big.Float
			ten.SetPrec(z.Prec()).SetInt64(10)
			bigfloat.Log(z, x)
			return z.Quo(z, bigfloat.Log(&ten, &ten))
		}, positive)
		exp = bigFunc(ops, "exp", bigfloat.Exp, func(*big.Float) bool { return true })
		sqrt = bigFunc(ops, "sqrt", (*big.Float).Sqrt, func(x *big.Float) bool { return x.Sign() >= 0 })
	}
	truthy := func(x T) bool { return !ops.IsZero(x) }

	round := roundFuncs(ops)
	fns := []FunctionInfo[T]{
		fl("sin", math.Sin),
		fl("cos", math.Cos),
		fl("tan", math.Tan),
		fl("asin", math.Asin),
		fl("acos", math.Acos),
		fl("atan", math.Atan),
		fl("cot", func(x float64) float64 { return 1 / math.Tan(x) }),
		fl("acot", func(x float64) float64 { return math.Atan(1 / x) }),
		fl("sec", func(x float64) float64 { return 1 / math.Cos(x) }),
		fl("csc", func(x float64) float64 { return 1 / math.Sin(x) }),
		Monadic("loge", ln),
		Monadic("log10", log10),
		Dyadic("logn", func(x, base T) (T, error) {
			a, err := ln(x)
			if err != nil {
				return zero, err
			}
			b, err := ln(base)
			if err != nil {
				return zero, err
			}
			return ops.Div(a, b)
		}),
		Monadic("exp", exp),
		Monadic("sqrt", sqrt),
		Monadic("abs", func(x T) (T, error) {
			if truthy(ops.LessThan(x, zero)) {
				return ops.Neg(x), nil
			}
			return x, nil
		}),
		Monadic("ceiling", round.ceil),
		Monadic("floor", round.floor),
		Monadic("truncate", round.trunc),
		Monadic("round", round.round),
		Variadic("max", func(args []T) (T, error) {
			if len(args) == 0 {
				return zero, errNoArgs("max")
			}
			m := args[0]
			for _, x := range args[1:] {
				if truthy(ops.GreaterThan(x, m)) {
					m = x
				}
			}
			return m, nil
		}),
		Variadic("min", func(args []T) (T, error) {
			if len(args) == 0 {
				return zero, errNoArgs("min")
			}
			m := args[0]
			for _, x := range args[1:] {
				if truthy(ops.LessThan(x, m)) {
					m = x
				}
			}
			return m, nil
		}),
		Variadic("sum", func(args []T) (T, error) {
			s := zero
			for _, x := range args {
				s = ops.Add(s, x)
			}
			return s, nil
		}),
		Variadic("avg", func(args []T) (T, error) {
			if len(args) == 0 {
				return zero, errNoArgs("avg")
			}
			s := zero
			for _, x := range args {
				s = ops.Add(s, x)
			}
			return ops.Div(s, ops.FromInt(int64(len(args))))
		}),
		Variadic("median", func(args []T) (T, error) {
			if len(args) == 0 {
				return zero, errNoArgs("median")
			}
			slices.SortFunc(args, func(a, b T) int {
				switch {
				case truthy(ops.LessThan(a, b)):
					return -1
				case truthy(ops.GreaterThan(a, b)):
					return 1
				}
				return 0
			})
			k := len(args) / 2
			if len(args)%2 != 0 {
				return args[k], nil
			}
			return ops.Div(ops.Add(args[k-1], args[k]), ops.FromInt(2))
		}),
		{
			Name:         "if",
			Arity:        3,
			Idempotent:   true,
			Overwritable: true,
			Call: func(args []T) (T, error) {
				if truthy(args[0]) {
					return args[1], nil
				}
				return args[2], nil
			},
		},
		choose("ifless", ops.LessThan, truthy),
		choose("ifmore", ops.GreaterThan, truthy),
		choose("ifequal", ops.Equal, truthy),
		{
			Name:         "random",
			Overwritable: true,
			Call: func([]T) (T, error) {
				return ops.FromFloat64(rand.Float64())
			},
		},
	}
	return fns
}

// choose describes a function (a, b, c, d) which is c if cmp(a, b) and d
// otherwise.
func choose[T any](name string, cmp func(a, b T) T, truthy func(T) bool) FunctionInfo[T] {
	return FunctionInfo[T]{
		Name:         name,
		Arity:        4,
		Idempotent:   true,
		Overwritable: true,
		Call: func(args []T) (T, error) {
			if truthy(cmp(args[0], args[1])) {
				return args[2], nil
			}
			return args[3], nil
		},
	}
}

// bigFunc computes a monadic function with big.Float. Arguments for which
// domain returns false give a *DomainError.
func bigFunc[T any](ops Operations[T], name string, f func(z, x *big.Float) *big.Float, domain func(*big.Float) bool) func(T) (T, error) {
	return func(x T) (T, error) {
		s := fmt.Sprint(x)
		bx, _, err := new(big.Float).SetPrec(bigPrec).Parse(s, 10)
		if err != nil || bx.IsInf() || !domain(bx) {
			return ops.Zero(), &DomainError{X: s, Arg: 1, Func: name}
		}
		z := f(new(big.Float).SetPrec(bigPrec), bx)
		if z.IsInf() {
			return ops.FromFloat64(math.Inf(z.Sign()))
		}
		return ops.Parse(z.Text('g', resultDigits), DefaultLocale)
	}
}

// native computes a monadic function through float64.
func native[T any](ops Operations[T], f func(float64) float64) func(T) (T, error) {
	return func(x T) (T, error) { return ops.FromFloat64(f(ops.Float64(x))) }
}

type rounding[T any] struct {
	ceil, floor, trunc, round func(T) (T, error)
}

func roundFuncs[T any](ops Operations[T]) rounding[T] {
	if r, ok := ops.(Rounder[T]); ok {
		return rounding[T]{
			ceil:  func(x T) (T, error) { return r.Ceil(x), nil },
			floor: func(x T) (T, error) { return r.Floor(x), nil },
			trunc: func(x T) (T, error) { return r.Truncate(x), nil },
			round: func(x T) (T, error) { return r.Round(x), nil },
		}
	}
	return rounding[T]{
		ceil:  native(ops, math.Ceil),
		floor: native(ops, math.Floor),
		trunc: native(ops, math.Trunc),
		round: native(ops, math.RoundToEven),
	}
}

func errNoArgs(name string) error {
	return &DomainError{X: "()", Func: name}
}
