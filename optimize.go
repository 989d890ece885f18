package formula

// Optimizer folds constant subtrees of formulas.
type Optimizer[T any] struct {
	ops Operations[T]
	in  *Interpreter[T]
}

// NewOptimizer creates an optimizer which folds subtrees by evaluating them
// against the given registries.
func NewOptimizer[T any](ops Operations[T], funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) *Optimizer[T] {
	return &Optimizer[T]{ops: ops, in: NewInterpreter(ops, funcs, consts)}
}

// Optimize returns a tree equivalent to n in which every subtree that
// depends on no variables and calls only idempotent functions is replaced
// with its value. Products with a floating-point zero operand become zero
// even when the other operand depends on variables. n is not modified;
// unchanged subtrees are shared with the result.
//
// Optimize fails only if evaluating a folded subtree fails. Optimizing an
// optimized tree returns it unchanged.
func (o *Optimizer[T]) Optimize(n *Node[T]) (*Node[T], error) {
	if o.foldable(n) {
		return o.fold(n)
	}
	switch n.kind {
	case KindInteger, KindFloat, KindVariable:
		return n, nil
	case KindNeg:
		x, err := o.Optimize(n.left)
		if err != nil {
			return nil, err
		}
		if x == n.left {
			return n, nil
		}
		return o.refold(Neg(x))
	case KindCall:
		var args []*Node[T]
		for i, a := range n.args {
			x, err := o.Optimize(a)
			if err != nil {
				return nil, err
			}
			if x != a && args == nil {
				args = make([]*Node[T], len(n.args))
				copy(args, n.args[:i])
			}
			if args != nil {
				args[i] = x
			}
		}
		if args == nil {
			return n, nil
		}
		return o.refold(Call(n.name, n.pure, args...))
	}
	if !n.kind.binary() {
		return nil, &UnsupportedError{Kind: n.kind}
	}
	l, err := o.Optimize(n.left)
	if err != nil {
		return nil, err
	}
	r, err := o.Optimize(n.right)
	if err != nil {
		return nil, err
	}
	if n.kind == KindMul && (o.zero(l) || o.zero(r)) {
		return FloatConst(o.ops.Zero()), nil
	}
	if l == n.left && r == n.right {
		return n, nil
	}
	return o.refold(Binary(n.kind, l, r))
}

func (o *Optimizer[T]) foldable(n *Node[T]) bool {
	return !n.vars && n.idem && !n.constant()
}

// refold folds a rebuilt node if its new children made it constant.
func (o *Optimizer[T]) refold(n *Node[T]) (*Node[T], error) {
	if o.foldable(n) {
		return o.fold(n)
	}
	return n, nil
}

func (o *Optimizer[T]) fold(n *Node[T]) (*Node[T], error) {
	v, err := o.in.eval(n, nil)
	if err != nil {
		return nil, err
	}
	return FloatConst(v), nil
}

func (o *Optimizer[T]) zero(n *Node[T]) bool {
	return n.kind == KindFloat && o.ops.IsZero(n.fval)
}
