package formula_test

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/formula"
)

// backend evaluates a tree one way.
type backend[T any] struct {
	name string
	eval func(n *formula.Node[T], vars map[string]T) (T, error)
}

// backends returns the interpreter and compiler over the same registries.
func backends[T any](ops formula.Operations[T], funcs *formula.FunctionRegistry[T], consts *formula.ConstantRegistry[T]) []backend[T] {
	in := formula.NewInterpreter(ops, funcs, consts)
	c := formula.NewCompiler(ops, funcs, consts)
	return []backend[T]{
		{"interpreted", in.Execute},
		{"compiled", func(n *formula.Node[T], vars map[string]T) (T, error) {
			ev, err := c.Compile(n)
			if err != nil {
				var zero T
				return zero, err
			}
			return ev(vars)
		}},
	}
}

type env[T any] struct {
	ops    formula.Operations[T]
	funcs  *formula.FunctionRegistry[T]
	consts *formula.ConstantRegistry[T]
	parser *formula.Parser[T]
}

func newEnv[T any](ops formula.Operations[T]) *env[T] {
	funcs := formula.DefaultFunctions(ops, false)
	return &env[T]{
		ops:    ops,
		funcs:  funcs,
		consts: formula.DefaultConstants(ops, false),
		parser: formula.NewParser(ops, funcs, formula.DefaultLocale),
	}
}

func (e *env[T]) parse(t *testing.T, src string) *formula.Node[T] {
	t.Helper()
	n, err := e.parser.Parse(src, nil)
	require.NoError(t, err, "parsing %q", src)
	return n
}

func TestEval(t *testing.T) {
	cases := []struct {
		name string
		src  string
		vars map[string]float64
		r    float64
	}{
		{"num", "1", nil, 1},
		{"var", "x", map[string]float64{"x": 4}, 4},
		{"neg", "-x", map[string]float64{"x": 4}, -4},
		{"add", "4+5+6", nil, 4 + 5 + 6},
		{"sub", "4-5-6", nil, 4 - 5 - 6},
		{"mul", "4*5*6", nil, 4 * 5 * 6},
		{"div", "4/5/6", nil, 4.0 / 5.0 / 6.0},
		{"int-div", "10/2", nil, 5},
		{"mod", "5 % 3.0", nil, 2},
		{"pow", "2^3^2", nil, 512},
		{"prec", "2+8*3", nil, 26},
		{"prec2", "2*8-3", nil, 13},
		{"brackets", "(42+8)*2", nil, 100},
		{"neglit", "5*-2", nil, -10},
		{"negexpr", "5*-(2+43)", nil, -225},
		{"negpow", "-2^2", nil, 4},
		{"glyphs", "6×2÷3", nil, 4},
		{"inf", "1/0", nil, math.Inf(1)},
		{"less", "1 < 2", nil, 1},
		{"lesseq", "2 ≤ 2", nil, 1},
		{"greater", "1 > 2", nil, 0},
		{"eq", "1 == 1.0", nil, 1},
		{"ne", "1 ≠ 1", nil, 0},
		{"and", "1 < 2 && 2 < 3", nil, 1},
		{"or", "0 || 0", nil, 0},
		{"pi", "pi", nil, math.Pi},
		{"e", "E", nil, math.E},
		{"circle", "pi*r^2", map[string]float64{"r": 2}, math.Pi * 4},
		{"case", "x*2", map[string]float64{"X": 2}, 4},
		{"sin", "sin(0)", nil, 0},
		{"cos", "cos(0)", nil, 1},
		{"sqrt", "sqrt(16)", nil, 4},
		{"abs", "abs(-3) + abs(3)", nil, 6},
		{"max", "max(1, x, 3)", map[string]float64{"x": 5}, 5},
		{"min", "min(4, x, 3)", map[string]float64{"x": 5}, 3},
		{"sum", "sum(1, 2, 3)", nil, 6},
		{"sum0", "sum()", nil, 0},
		{"avg", "avg(1, 2, 3, 4)", nil, 2.5},
		{"median-odd", "median(3, 1, 2)", nil, 2},
		{"median-even", "median(4, 1, 3, 2)", nil, 2.5},
		{"round", "round(2.5)", nil, 2},
		{"ceiling", "ceiling(1.2)", nil, 2},
		{"floor", "floor(-1.2)", nil, -2},
		{"truncate", "truncate(-1.7)", nil, -1},
		{"if-true", "if(x > 1, 10, 20)", map[string]float64{"x": 2}, 10},
		{"if-false", "if(x > 1, 10, 20)", map[string]float64{"x": 1}, 20},
		{"ifless", "ifless(1, 2, 3, 4)", nil, 3},
		{"ifmore", "ifmore(1, 2, 3, 4)", nil, 4},
		{"ifequal", "ifequal(2, 2, 3, 4)", nil, 3},
		{"nested", "max(min(1, 2), sum(x, x))", map[string]float64{"x": 1.5}, 3},
	}
	e := newEnv[float64](formula.Float64{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := e.parse(t, c.src)
			for _, b := range bs {
				r, err := b.eval(n, c.vars)
				require.NoError(t, err, b.name)
				assert.Equal(t, c.r, r, b.name)
			}
		})
	}
}

func TestEvalApprox(t *testing.T) {
	cases := []struct {
		src string
		r   float64
	}{
		{"loge(e)", 1},
		{"log10(1000)", 3},
		{"logn(8, 2)", 3},
		{"exp(1)", math.E},
		{"tan(pi/4)", 1},
		{"asin(1)", math.Pi / 2},
		{"acos(1)", 0},
		{"atan(1)", math.Pi / 4},
		{"cot(pi/4)", 1},
		{"acot(1)", math.Pi / 4},
		{"sec(0)", 1},
		{"csc(pi/2)", 1},
	}
	e := newEnv[float64](formula.Float64{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n := e.parse(t, c.src)
			for _, b := range bs {
				r, err := b.eval(n, nil)
				require.NoError(t, err, b.name)
				assert.InDelta(t, c.r, r, 1e-12, b.name)
			}
		})
	}
}

func TestEvalFloatDomains(t *testing.T) {
	cases := []struct {
		src string
		r   float64
	}{
		{"sqrt(-1)", math.NaN()},
		{"loge(0)", math.Inf(-1)},
		{"loge(-1)", math.NaN()},
		{"log10(-1)", math.NaN()},
		{"log10(0)", math.Inf(-1)},
		{"logn(0, 2)", math.Inf(-1)},
		{"exp(1000)", math.Inf(1)},
		{"asin(2)", math.NaN()},
		{"(-1)^0.5", math.NaN()},
	}
	e := newEnv[float64](formula.Float64{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n := e.parse(t, c.src)
			for _, b := range bs {
				r, err := b.eval(n, nil)
				require.NoError(t, err, b.name)
				if math.IsNaN(c.r) {
					assert.True(t, math.IsNaN(r), "%s: want NaN, got %v", b.name, r)
				} else {
					assert.Equal(t, c.r, r, b.name)
				}
			}
		})
	}
}

func TestEvalDecimal(t *testing.T) {
	cases := []struct {
		src  string
		vars map[string]decimal.Decimal
		r    string
	}{
		{"0.1 + 0.2 == 0.3", nil, "1"},
		{"0.1 + 0.2", nil, "0.3"},
		{"10/4", nil, "2.5"},
		{"1/3", nil, "0.3333333333333333"},
		{"2^10", nil, "1024"},
		{"5 % 3.0", nil, "2"},
		{"x * 1.5", map[string]decimal.Decimal{"x": decimal.NewFromInt(3)}, "4.5"},
		{"round(2.5) + round(3.5)", nil, "6"},
		{"avg(1, 2)", nil, "1.5"},
		{"abs(-2.25)", nil, "2.25"},
		{"sqrt(2.25)", nil, "1.5"},
		{"loge(e)", nil, "1"},
		{"exp(0) + log10(1000)", nil, "4"},
		{"max(0.1, 0.25, 0.2)", nil, "0.25"},
	}
	e := newEnv[decimal.Decimal](formula.Decimal{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n := e.parse(t, c.src)
			want := decimal.RequireFromString(c.r)
			for _, b := range bs {
				r, err := b.eval(n, c.vars)
				require.NoError(t, err, b.name)
				assert.True(t, want.Equal(r), "%s: want %s, got %s", b.name, want, r)
			}
		})
	}
}

func TestEvalUndefNames(t *testing.T) {
	cases := []struct {
		name string
		src  string
		vars map[string]float64
		miss string
	}{
		{"x", "x", nil, "x"},
		{"neg", "-x", nil, "x"},
		{"add-lhs", "x+1", nil, "x"},
		{"add-rhs", "1+x", nil, "x"},
		{"left-first", "(1+x)*y", nil, "x"},
		{"second", "x*y", map[string]float64{"x": 1}, "y"},
		{"call", "max(1, y)", nil, "y"},
		{"deep", "sin(cos(1 + z))", nil, "z"},
	}
	e := newEnv[float64](formula.Float64{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := e.parse(t, c.src)
			for _, b := range bs {
				_, err := b.eval(n, c.vars)
				var nerr *formula.NameError
				require.True(t, errors.As(err, &nerr), "%s: want *NameError, got %T (%v)", b.name, err, err)
				assert.Equal(t, c.miss, nerr.Name, b.name)
			}
		})
	}
}

func TestEvalReservedNames(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	require.NoError(t, e.consts.Register(formula.ConstantInfo[float64]{Name: "g", Value: 9.8, Overwritable: true}))
	bs := backends(e.ops, e.funcs, e.consts)
	n := e.parse(t, "g*2")
	for _, b := range bs {
		r, err := b.eval(n, nil)
		require.NoError(t, err, b.name)
		assert.Equal(t, 19.6, r, b.name)

		r, err = b.eval(n, map[string]float64{"g": 10})
		require.NoError(t, err, b.name)
		assert.Equal(t, 20.0, r, b.name)

		var rerr *formula.ReservedNameError
		_, err = b.eval(n, map[string]float64{"g": 1, "sin": 1})
		require.True(t, errors.As(err, &rerr), "%s: %v", b.name, err)
		assert.True(t, rerr.Function)

		_, err = b.eval(n, map[string]float64{"g": 1, "PI": 3})
		require.True(t, errors.As(err, &rerr), "%s: %v", b.name, err)
		assert.False(t, rerr.Function)
		assert.Equal(t, "pi", rerr.Name)
	}
}

func TestEvalDuplicateNames(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	n := e.parse(t, "x + 1")
	for _, b := range backends(e.ops, e.funcs, e.consts) {
		_, err := b.eval(n, map[string]float64{"X": 1, "x": 2})
		var derr *formula.DuplicateNameError
		require.True(t, errors.As(err, &derr), "%s: %v", b.name, err)
		assert.Equal(t, "x", derr.Name, b.name)
	}

	funcs := formula.DefaultFunctions[float64](formula.Float64{}, true)
	consts := formula.DefaultConstants[float64](formula.Float64{}, true)
	p := formula.NewParser[float64](formula.Float64{}, funcs, formula.DefaultLocale)
	n, err := p.Parse("X - x", nil)
	require.NoError(t, err)
	for _, b := range backends[float64](formula.Float64{}, funcs, consts) {
		r, err := b.eval(n, map[string]float64{"X": 5, "x": 2})
		require.NoError(t, err, b.name)
		assert.Equal(t, 3.0, r, b.name)
	}
}

func TestEvalRegistryCaseMismatch(t *testing.T) {
	funcs := formula.DefaultFunctions[float64](formula.Float64{}, false)
	consts := formula.DefaultConstants[float64](formula.Float64{}, true)
	assert.Panics(t, func() { formula.NewInterpreter[float64](formula.Float64{}, funcs, consts) })
	assert.Panics(t, func() { formula.NewCompiler[float64](formula.Float64{}, funcs, consts) })
	assert.Panics(t, func() { formula.NewOptimizer[float64](formula.Float64{}, funcs, consts) })
	assert.NotPanics(t, func() { formula.NewInterpreter[float64](formula.Float64{}, funcs, nil) })
}

func TestEvalErrors(t *testing.T) {
	cases := []struct {
		src  string
		fn   string
		vars map[string]decimal.Decimal
	}{
		{"1/0", "/", nil},
		{"1 % (x-x)", "%", map[string]decimal.Decimal{"x": decimal.NewFromInt(2)}},
		{"(-8)^0.5", "^", nil},
		{"sqrt(-1)", "sqrt", nil},
		{"loge(0)", "loge", nil},
		{"max()", "max", nil},
	}
	e := newEnv[decimal.Decimal](formula.Decimal{})
	bs := backends(e.ops, e.funcs, e.consts)
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n := e.parse(t, c.src)
			for _, b := range bs {
				_, err := b.eval(n, c.vars)
				var derr *formula.DomainError
				require.True(t, errors.As(err, &derr), "%s: want *DomainError, got %T (%v)", b.name, err, err)
				assert.Equal(t, c.fn, derr.Func, b.name)
			}
		})
	}
}

func TestEvalFuncError(t *testing.T) {
	boom := errors.New("boom")
	e := newEnv[float64](formula.Float64{})
	require.NoError(t, e.funcs.Register(formula.Monadic("fail", func(float64) (float64, error) { return 0, boom })))
	bs := backends(e.ops, e.funcs, e.consts)
	n := e.parse(t, "1 + fail(x)")
	for _, b := range bs {
		_, err := b.eval(n, map[string]float64{"x": 1})
		assert.ErrorIs(t, err, boom, b.name)
	}
}

func TestEvalUnknownFunction(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	require.NoError(t, e.funcs.Register(formula.Monadic("double", func(x float64) (float64, error) { return 2 * x, nil })))
	n := e.parse(t, "double(2)")
	// Evaluate against registries that never had the function.
	other := newEnv[float64](formula.Float64{})
	for _, b := range backends(other.ops, other.funcs, other.consts) {
		_, err := b.eval(n, nil)
		var uerr *formula.UnknownFunctionError
		require.True(t, errors.As(err, &uerr), "%s: %v", b.name, err)
		assert.Equal(t, "double", uerr.Func)
	}
}

func TestCompiledSeesOverwrite(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	twice := func(x float64) (float64, error) { return 2 * x, nil }
	thrice := func(x float64) (float64, error) { return 3 * x, nil }
	require.NoError(t, e.funcs.Register(formula.Monadic("f", twice)))
	ev, err := formula.NewCompiler(e.ops, e.funcs, e.consts).Compile(e.parse(t, "f(x)"))
	require.NoError(t, err)

	r, err := ev(map[string]float64{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 6.0, r)

	require.NoError(t, e.funcs.Register(formula.Monadic("f", thrice)))
	r, err = ev(map[string]float64{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 9.0, r)
}

func TestCompiledReuse(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	ev, err := formula.NewCompiler(e.ops, e.funcs, e.consts).Compile(e.parse(t, "x^2 + y"))
	require.NoError(t, err)
	for x := 0; x < 5; x++ {
		r, err := ev(map[string]float64{"x": float64(x), "y": 1})
		require.NoError(t, err)
		assert.Equal(t, float64(x*x+1), r)
	}
	// A failed call doesn't break the evaluator.
	_, err = ev(map[string]float64{"x": 1})
	require.Error(t, err)
	r, err := ev(map[string]float64{"x": 2, "y": 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, r)
}

func TestRandomNotIdempotent(t *testing.T) {
	e := newEnv[float64](formula.Float64{})
	n := e.parse(t, "random()")
	assert.False(t, n.Idempotent())
	assert.True(t, n.DependsOnVariables())
	for _, b := range backends(e.ops, e.funcs, e.consts) {
		r, err := b.eval(n, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.Less(t, r, 1.0)
	}
}

func BenchmarkEval(b *testing.B) {
	e := newEnv[float64](formula.Float64{})
	n, err := e.parser.Parse("x*x + 2*x*y - max(x, y, 3)/4", nil)
	if err != nil {
		b.Fatal(err)
	}
	vars := map[string]float64{"x": 2, "y": 3}
	b.Run("interpreted", func(b *testing.B) {
		b.ReportAllocs()
		in := formula.NewInterpreter(e.ops, e.funcs, e.consts)
		for i := 0; i < b.N; i++ {
			in.Execute(n, vars)
		}
	})
	b.Run("compiled", func(b *testing.B) {
		b.ReportAllocs()
		ev, err := formula.NewCompiler(e.ops, e.funcs, e.consts).Compile(n)
		if err != nil {
			b.Fatal(err)
		}
		for i := 0; i < b.N; i++ {
			ev(vars)
		}
	})
}
