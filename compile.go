package formula

// Evaluator is a compiled formula. It is safe for concurrent use provided
// the registries it was compiled against are not modified.
type Evaluator[T any] func(vars map[string]T) (T, error)

// Compiler builds evaluators from expression trees. Type dispatch happens
// once per node at compile time; each node becomes a closure which calls
// exactly the operation it needs.
type Compiler[T any] struct {
	ops    Operations[T]
	funcs  *FunctionRegistry[T]
	consts *ConstantRegistry[T]
}

// NewCompiler creates a compiler. funcs must not be nil; consts may be nil.
// It panics if the registries differ in case sensitivity.
func NewCompiler[T any](ops Operations[T], funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) *Compiler[T] {
	checkCase(funcs, consts)
	return &Compiler[T]{ops: ops, funcs: funcs, consts: consts}
}

// closure evaluates one node against normalized, verified bindings.
type closure[T any] func(vars map[string]T) (T, error)

// Compile builds an evaluator. Compilation only resolves structure: missing
// variables are reported by the evaluator, each time it is called.
func (c *Compiler[T]) Compile(n *Node[T]) (Evaluator[T], error) {
	f, err := c.compile(n)
	if err != nil {
		return nil, err
	}
	funcs, consts, zero := c.funcs, c.consts, c.ops.Zero()
	return func(vars map[string]T) (T, error) {
		vars, err := prepare(vars, funcs, consts)
		if err != nil {
			return zero, err
		}
		return f(vars)
	}, nil
}

func (c *Compiler[T]) compile(n *Node[T]) (closure[T], error) {
	ops := c.ops
	zero := ops.Zero()
	switch n.kind {
	case KindInteger:
		v := ops.FromInt(int64(n.ival))
		return func(map[string]T) (T, error) { return v, nil }, nil
	case KindFloat:
		v := n.fval
		return func(map[string]T) (T, error) { return v, nil }, nil
	case KindVariable:
		name, consts := n.name, c.consts
		return func(vars map[string]T) (T, error) { return lookup(name, vars, consts) }, nil
	case KindNeg:
		x, err := c.compile(n.left)
		if err != nil {
			return nil, err
		}
		return func(vars map[string]T) (T, error) {
			v, err := x(vars)
			if err != nil {
				return v, err
			}
			return ops.Neg(v), nil
		}, nil
	case KindCall:
		return c.call(n)
	}
	if !n.kind.binary() {
		return nil, &UnsupportedError{Kind: n.kind}
	}
	l, err := c.compile(n.left)
	if err != nil {
		return nil, err
	}
	r, err := c.compile(n.right)
	if err != nil {
		return nil, err
	}
	if f := c.total(n.kind); f != nil {
		return func(vars map[string]T) (T, error) {
			a, err := l(vars)
			if err != nil {
				return a, err
			}
			b, err := r(vars)
			if err != nil {
				return b, err
			}
			return f(a, b), nil
		}, nil
	}
	var f func(a, b T) (T, error)
	switch n.kind {
	case KindDiv:
		f = ops.Div
	case KindMod:
		f = ops.Mod
	case KindPow:
		f = ops.Pow
	default:
		return nil, &UnsupportedError{Kind: n.kind}
	}
	return func(vars map[string]T) (T, error) {
		a, err := l(vars)
		if err != nil {
			return a, err
		}
		b, err := r(vars)
		if err != nil {
			return zero, err
		}
		return f(a, b)
	}, nil
}

// total returns the operation for a binary kind which cannot fail, or nil.
func (c *Compiler[T]) total(k Kind) func(a, b T) T {
	ops := c.ops
	switch k {
	case KindAdd:
		return ops.Add
	case KindSub:
		return ops.Sub
	case KindMul:
		return ops.Mul
	case KindLess:
		return ops.LessThan
	case KindLessOrEqual:
		return ops.LessOrEqual
	case KindGreater:
		return ops.GreaterThan
	case KindGreaterOrEqual:
		return ops.GreaterOrEqual
	case KindEqual:
		return ops.Equal
	case KindNotEqual:
		return ops.NotEqual
	case KindAnd:
		return ops.And
	case KindOr:
		return ops.Or
	}
	return nil
}

// call compiles a function call. The function is resolved when the
// evaluator runs, so that re-registering an overwritable function affects
// compiled formulas the same way it affects interpreted ones.
func (c *Compiler[T]) call(n *Node[T]) (closure[T], error) {
	args := make([]closure[T], len(n.args))
	for i, a := range n.args {
		f, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = f
	}
	funcs, zero := c.funcs, c.ops.Zero()
	return func(vars map[string]T) (T, error) {
		info, err := resolve(n, funcs)
		if err != nil {
			return zero, err
		}
		buf := make([]T, len(args))
		for i, f := range args {
			if buf[i], err = f(vars); err != nil {
				return zero, err
			}
		}
		return info.Call(buf)
	}, nil
}
