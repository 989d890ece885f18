package formula

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"testing"
)

// diff finds the first pre-order node of n that differs from m, or nil, nil
// if the two trees are equal.
func (n *Node[T]) diff(m *Node[T]) (*Node[T], *Node[T]) {
	if n == nil || m == nil {
		if n != m {
			return n, m
		}
		return nil, nil
	}
	if n.kind != m.kind || n.typ != m.typ || n.name != m.name || n.vars != m.vars || n.idem != m.idem {
		return n, m
	}
	switch n.kind {
	case KindInteger:
		if n.ival != m.ival {
			return n, m
		}
	case KindFloat:
		if fmt.Sprint(n.fval) != fmt.Sprint(m.fval) {
			return n, m
		}
	case KindVariable:
	case KindCall:
		if len(n.args) != len(m.args) {
			return n, m
		}
		for i := range n.args {
			if d, e := n.args[i].diff(m.args[i]); d != nil || e != nil {
				return d, e
			}
		}
	default:
		if d, e := n.left.diff(m.left); d != nil || e != nil {
			return d, e
		}
		if d, e := n.right.diff(m.right); d != nil || e != nil {
			return d, e
		}
	}
	return nil, nil
}

// testfns is the default function registry plus functions with unusual
// arities.
func testfns() *FunctionRegistry[float64] {
	r := DefaultFunctions[float64](Float64{}, false)
	fns := []FunctionInfo[float64]{
		Niladic("zero", func() (float64, error) { return 0, nil }),
		Monadic("one", func(x float64) (float64, error) { return x, nil }),
		{Name: "five", Arity: 5, Idempotent: true, Call: func(args []float64) (float64, error) { return args[4], nil }},
	}
	for _, f := range fns {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

func testParser() *Parser[float64] {
	return NewParser[float64](Float64{}, testfns(), DefaultLocale)
}

// shorthands for building expected trees
type fnode = *Node[float64]

func num(v int32) fnode { return IntConst[float64](v) }
func flt(v float64) fnode { return FloatConst(v) }
func ref(name string) fnode { return Var[float64](name) }
func bin(k Kind, l, r fnode) fnode { return Binary(k, l, r) }
func call(name string, args ...fnode) fnode {
	return Call(name, true, args...)
}

func TestParseTrees(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"paren", "(x)", "x"},
		{"multi", "((((x))))", "x"},
		{"add3", "x+y+z", "(x+y)+z"},
		{"sub3", "x-y-z", "(x-y)-z"},
		{"mul3", "x*y*z", "(x*y)*z"},
		{"div3", "x/y/z", "(x/y)/z"},
		{"mod3", "x%y%z", "(x%y)%z"},
		{"pow3", "x^y^z", "x^(y^z)"},
		{"desc", "w^x*y+z", "((w^x)*y)+z"},
		{"asc", "w+x*y^z", "w+(x*(y^z))"},
		{"ascdesc", "w+x*y^z^a*b+c", "(w+((x*(y^(z^a)))*b))+c"},
		{"negpow", "-x^2", "(-x)^2"},
		{"powneg", "x^-y", "x^(-y)"},
		{"negneg", "--x", "-(-x)"},
		{"negsub", "-x-x", "(-x)-x"},
		{"cmp", "x+1 < y*2", "(x+1) < (y*2)"},
		{"eq", "1 + 2 == 3", "(1+2) == 3"},
		{"and", "a < b && c", "(a < b) && c"},
		{"andor", "a && b || c", "(a && b) || c"},
		{"glyphs", "x×y÷z", "(x*y)/z"},
		{"call", "max(x+1, y)", "max((x+1), (y))"},
		{"callexpr", "2*max(x, y)^2", "2*(max(x, y)^2)"},
		{"case", "MAX(X, Y)", "max(x, y)"},
		{"nested", "one(one(x))", "one((one((x))))"},
	}
	p := testParser()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := p.Parse(c.a, nil)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", c.a, err)
			}
			b, err := p.Parse(c.b, nil)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", c.b, err)
			}
			d, e := a.diff(b)
			if d != nil || e != nil {
				t.Errorf("mismatched AST:\n\t%q parses %v has %v\n\t%q parses %v has %v", c.a, a, d, c.b, b, e)
			}
		})
	}
}

func TestParseExact(t *testing.T) {
	cases := []struct {
		name string
		src  string
		n    fnode
	}{
		{"int", "2", num(2)},
		{"float", "2.5", flt(2.5)},
		{"var", "var1", ref("var1")},
		{"add-mul", "2+8*3", bin(KindAdd, num(2), bin(KindMul, num(8), num(3)))},
		{"mul-sub", "2*8-3", bin(KindSub, bin(KindMul, num(2), num(8)), num(3))},
		{"pow-right", "2^3^2", bin(KindPow, num(2), bin(KindPow, num(3), num(2)))},
		{"brackets", "(42+8)*2", bin(KindMul, bin(KindAdd, num(42), num(8)), num(2))},
		{"neglit", "5*-2", bin(KindMul, num(5), num(-2))},
		{"negexpr", "5*-(2+43)", bin(KindMul, num(5), Neg(bin(KindAdd, num(2), num(43))))},
		{"negvar", "-x", Neg(ref("x"))},
		{"mod", "5 % 3.0", bin(KindMod, num(5), flt(3))},
		{"call0", "zero()", call("zero")},
		{"call1", "sin(2+3)", call("sin", bin(KindAdd, num(2), num(3)))},
		{"call5", "five(1, 2, 3, 4, x)", call("five", num(1), num(2), num(3), num(4), ref("x"))},
		{"variadic", "sum()", call("sum")},
		{"random", "random()", Call[float64]("random", false)},
		{"cmp", "x <= 1", bin(KindLessOrEqual, ref("x"), num(1))},
	}
	p := testParser()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, err := p.Parse(c.src, nil)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", c.src, err)
			}
			d, e := n.diff(c.n)
			if d != nil || e != nil {
				t.Errorf("mismatched AST:\n\t%q parses %v has %v\n\twant %v has %v", c.src, n, d, c.n, e)
			}
		})
	}
}

func TestParseTypes(t *testing.T) {
	cases := []struct {
		src string
		typ DataType
	}{
		{"10", Integer},
		{"10.0", FloatingPoint},
		{"10/2", FloatingPoint},
		{"10^2", FloatingPoint},
		{"10*2", Integer},
		{"10*2.0", FloatingPoint},
		{"5 % 3", Integer},
		{"5 % 3.0", FloatingPoint},
		{"-10", Integer},
		{"-(10+2)", Integer},
		{"10 < 2", Integer},
		{"x + 1", FloatingPoint},
		{"max(1, 2)", FloatingPoint},
	}
	p := testParser()
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n, err := p.Parse(c.src, nil)
			if err != nil {
				t.Fatal(err)
			}
			if n.Type() != c.typ {
				t.Errorf("%q has type %v, want %v", c.src, n.Type(), c.typ)
			}
		})
	}
}

func TestParseConstants(t *testing.T) {
	p := testParser()
	n, err := p.Parse("x + y", map[string]float64{"y": 2})
	if err != nil {
		t.Fatal(err)
	}
	want := bin(KindAdd, ref("x"), flt(2))
	if d, e := n.diff(want); d != nil || e != nil {
		t.Errorf("wrong tree: got %v has %v, want %v has %v", n, d, want, e)
	}
	if vars := n.Vars(); !slices.Equal(vars, []string{"x"}) {
		t.Errorf("wrong vars: %q", vars)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		err  InputError
		col  int
		res  []string
	}{
		{"empty", "", new(EmptyExpressionError), 1, []string{`(?i)\bno\b.*\bexpression\b`}},
		{"emptyparen", "()", new(EmptyExpressionError), 2, []string{`(?i)\bno\b.*\bexpression\b`, `\)`}},
		{"emptyoperand", "x*", new(EmptyExpressionError), 3, []string{`(?i)\bend\b`}},
		{"emptyunary", "x*-", new(EmptyExpressionError), 4, []string{`(?i)\bend\b`}},
		{"opparen", "(b*)", new(EmptyExpressionError), 4, []string{`\)`}},
		{"left", "(x", new(BracketError), 1, []string{`(?i)\bbracket\b`, `\(`}},
		{"unclosed", "(42+31.0", new(BracketError), 1, []string{`(?i)\bopen bracket\b`}},
		{"right", "x)", new(BracketError), 2, []string{`(?i)\bbracket\b`, `\)`}},
		{"nonunary", "*x", new(OperatorError), 1, []string{`(?i)\bunary\b`, `\*`}},
		{"haskell", "(+)", new(OperatorError), 2, []string{`\+`}},
		{"adjacent", "x y", new(OperandError), 3, []string{`"y"`}},
		{"adjacentnum", "2 x", new(OperandError), 3, []string{`"x"`}},
		{"adjacentparen", "x (y)", new(OperandError), 3, []string{`"\("`}},
		{"sep", "x, y", new(SeparatorError), 2, []string{`","`}},
		{"sepbrackets", "(x, y)", new(SeparatorError), 3, []string{`","`}},
		{"call1-0", "one()", new(CallError), 1, []string{`(?i)\bcall\b`, `\bone\b`, `\b0\b`}},
		{"call1-2", "one(x, y)", new(CallError), 1, []string{`\bone\b`, `\b2\b`}},
		{"call5-4", "five(a, b, c, d)", new(CallError), 1, []string{`\bfive\b`, `\b4\b`}},
		{"call-eof", "one(", new(BracketError), 4, []string{`\(`}},
		{"call-trailing", "one(x,)", new(EmptyExpressionError), 7, []string{`\)`}},
		{"call-leading", "one(,x)", new(EmptyExpressionError), 5, []string{`","`}},
		{"call-unknown", "nope(1)", new(UnknownFunctionError), 1, []string{`"nope"`}},
		{"call-var", "x(1)", new(UnknownFunctionError), 1, []string{`"x"`}},
		{"call-inner", "max(1, 2 3)", new(OperandError), 10, []string{`"3"`}},
		{"lexer", "2^exp(-$)", new(LexError), 8, []string{`\$`}},
	}
	p := testParser()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := p.Parse(c.src, nil)
			if a != nil {
				t.Errorf("%q parsed non-nil to %v", c.src, a)
			}
			if reflect.TypeOf(err) != reflect.TypeOf(c.err) {
				t.Fatalf("wrong error type from %q: want %T, got %T (%v)", c.src, c.err, err, err)
			}
			if pos := err.(InputError).Pos(); pos != c.col {
				t.Errorf("wrong error position from %q: want %d, got %d (%v)", c.src, c.col, pos, err)
			}
			msg := err.Error()
			for _, re := range c.res {
				if !regexp.MustCompile(re).MatchString(msg) {
					t.Errorf("error message %q does not match %s", msg, re)
				}
			}
		})
	}
}

func TestBuildUnbalancedTokens(t *testing.T) {
	toks, err := Tokenize[float64]("(42+31.0", Float64{}, DefaultLocale)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 4 {
		t.Fatalf("want 4 tokens, got %v", toks)
	}
	n, err := Build(toks, testfns(), nil)
	if n != nil {
		t.Errorf("built non-nil %v", n)
	}
	if _, ok := err.(ParseError); !ok {
		t.Errorf("want ParseError, got %T (%v)", err, err)
	}
}

func TestNodeString(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"2", "(2)"},
		{"2.5", "(2.5)"},
		{"x", "(x)"},
		{"-x", "(-[x])"},
		{"2+8*3", "([2] + [(8) * (3)])"},
		{"(2+8)*3", "([(2) + (8)] * [3])"},
		{"max(1, x)", "(max[(1), (x)])"},
		{"1+max(1, x)", "([1] + [max([1], [x])])"},
		{"a < b", "([a] < [b])"},
	}
	p := testParser()
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			n, err := p.Parse(c.src, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := n.String(); got != c.want {
				t.Errorf("wrong string: want %q, got %q", c.want, got)
			}
		})
	}
}

func TestVars(t *testing.T) {
	p := testParser()
	n, err := p.Parse("b + a*b + max(c, 1, pi)", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c", "pi"}
	if got := n.Vars(); !slices.Equal(got, want) {
		t.Errorf("wrong vars: want %q, got %q", want, got)
	}
}

func BenchmarkParse(b *testing.B) {
	p := testParser()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p.Parse("2 * max(x, y)^2 - sin(z) / 3.5 + (a <= b && c != 0)", nil)
	}
}
