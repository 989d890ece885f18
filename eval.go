package formula

import "strconv"

// Interpreter evaluates expression trees by walking them. It only reads its
// registries, so it is safe for concurrent use as long as they are not
// modified.
type Interpreter[T any] struct {
	ops    Operations[T]
	funcs  *FunctionRegistry[T]
	consts *ConstantRegistry[T]
}

// NewInterpreter creates an interpreter. funcs must not be nil; consts may
// be nil if there are no constants. It panics if the registries differ in
// case sensitivity.
func NewInterpreter[T any](ops Operations[T], funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) *Interpreter[T] {
	checkCase(funcs, consts)
	return &Interpreter[T]{ops: ops, funcs: funcs, consts: consts}
}

// Execute evaluates a tree with the given variable bindings. Names missing
// from vars resolve to registered constants. vars is not modified. Unless
// the registries are case sensitive, names in vars which differ only in case
// are a *DuplicateNameError.
func (in *Interpreter[T]) Execute(n *Node[T], vars map[string]T) (T, error) {
	vars, err := prepare(vars, in.funcs, in.consts)
	if err != nil {
		return in.ops.Zero(), err
	}
	return in.eval(n, vars)
}

// prepare normalizes variable names and checks them against the registries.
func prepare[T any](vars map[string]T, funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) (map[string]T, error) {
	vars, err := normalizeVars(vars, funcs.caseSensitive)
	if err != nil {
		return nil, err
	}
	if err := Verify(vars, funcs, consts); err != nil {
		return nil, err
	}
	return vars, nil
}

// lookup resolves a variable from bindings, then constants.
func lookup[T any](name string, vars map[string]T, consts *ConstantRegistry[T]) (T, error) {
	if v, ok := vars[name]; ok {
		return v, nil
	}
	if consts != nil {
		if c, ok := consts.consts[name]; ok {
			return c.Value, nil
		}
	}
	var zero T
	return zero, &NameError{Name: name}
}

// resolve finds the function for a call node at evaluation time.
func resolve[T any](n *Node[T], funcs *FunctionRegistry[T]) (FunctionInfo[T], error) {
	info, ok := funcs.funcs[n.name]
	if !ok {
		return info, &UnknownFunctionError{Func: n.name}
	}
	if !info.CanCall(len(n.args)) {
		return info, &CallError{Func: n.name, Len: len(n.args)}
	}
	return info, nil
}

func (in *Interpreter[T]) eval(n *Node[T], vars map[string]T) (T, error) {
	ops := in.ops
	switch n.kind {
	case KindInteger:
		return ops.FromInt(int64(n.ival)), nil
	case KindFloat:
		return n.fval, nil
	case KindVariable:
		return lookup(n.name, vars, in.consts)
	case KindNeg:
		x, err := in.eval(n.left, vars)
		if err != nil {
			return x, err
		}
		return ops.Neg(x), nil
	case KindCall:
		info, err := resolve(n, in.funcs)
		if err != nil {
			return ops.Zero(), err
		}
		args := make([]T, len(n.args))
		for i, a := range n.args {
			if args[i], err = in.eval(a, vars); err != nil {
				return ops.Zero(), err
			}
		}
		return info.Call(args)
	}
	if !n.kind.binary() {
		return ops.Zero(), &UnsupportedError{Kind: n.kind}
	}
	l, err := in.eval(n.left, vars)
	if err != nil {
		return l, err
	}
	r, err := in.eval(n.right, vars)
	if err != nil {
		return r, err
	}
	switch n.kind {
	case KindAdd:
		return ops.Add(l, r), nil
	case KindSub:
		return ops.Sub(l, r), nil
	case KindMul:
		return ops.Mul(l, r), nil
	case KindDiv:
		return ops.Div(l, r)
	case KindMod:
		return ops.Mod(l, r)
	case KindPow:
		return ops.Pow(l, r)
	case KindLess:
		return ops.LessThan(l, r), nil
	case KindLessOrEqual:
		return ops.LessOrEqual(l, r), nil
	case KindGreater:
		return ops.GreaterThan(l, r), nil
	case KindGreaterOrEqual:
		return ops.GreaterOrEqual(l, r), nil
	case KindEqual:
		return ops.Equal(l, r), nil
	case KindNotEqual:
		return ops.NotEqual(l, r), nil
	case KindAnd:
		return ops.And(l, r), nil
	case KindOr:
		return ops.Or(l, r), nil
	default:
		return ops.Zero(), &UnsupportedError{Kind: n.kind}
	}
}

// NameError is an error from a lookup for a variable that is neither bound
// nor a registered constant.
type NameError struct {
	// Name is the name that was missing.
	Name string
}

func (err *NameError) Error() string {
	return "undefined variable: " + strconv.Quote(err.Name)
}

// UnsupportedError is an error from evaluating a node of an unknown kind.
// Trees from Build never contain one.
type UnsupportedError struct {
	Kind Kind
}

func (err *UnsupportedError) Error() string {
	return "unsupported operation: " + err.Kind.String()
}
