package formula

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Node is a node in the abstract syntax tree of a formula. Nodes are
// immutable once built. Optimized trees may share subtrees with their input.
type Node[T any] struct {
	kind Kind
	typ  DataType

	// vars is whether the subtree depends on variables or on a function
	// which is not idempotent.
	vars bool
	// idem is whether every function in the subtree is idempotent.
	idem bool
	// pure is whether the function of a call node is idempotent.
	pure bool

	name  string
	ival  int32
	fval  T
	left  *Node[T]
	right *Node[T]
	args  []*Node[T]
}

// Kind is the variant of a node.
type Kind int8

const (
	KindNone Kind = iota

	KindInteger  // ival
	KindFloat    // fval
	KindVariable // name

	KindAdd // left + right
	KindSub // left - right
	KindMul // left * right
	KindDiv // left / right
	KindMod // left % right
	KindPow // left ^ right
	KindNeg // -left

	KindLess           // left < right
	KindLessOrEqual    // left <= right
	KindGreater        // left > right
	KindGreaterOrEqual // left >= right
	KindEqual          // left == right
	KindNotEqual       // left != right

	KindAnd // left && right
	KindOr  // left || right

	KindCall // name(args...)
)

var kindNames = [...]string{
	KindNone:           "None",
	KindInteger:        "IntegerConstant",
	KindFloat:          "FloatingPointConstant",
	KindVariable:       "Variable",
	KindAdd:            "Addition",
	KindSub:            "Subtraction",
	KindMul:            "Multiplication",
	KindDiv:            "Division",
	KindMod:            "Modulo",
	KindPow:            "Exponentiation",
	KindNeg:            "UnaryMinus",
	KindLess:           "LessThan",
	KindLessOrEqual:    "LessOrEqualThan",
	KindGreater:        "GreaterThan",
	KindGreaterOrEqual: "GreaterOrEqualThan",
	KindEqual:          "Equal",
	KindNotEqual:       "NotEqual",
	KindAnd:            "And",
	KindOr:             "Or",
	KindCall:           "FunctionCall",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// binary reports whether nodes of kind k have left and right operands.
func (k Kind) binary() bool {
	return KindAdd <= k && k <= KindOr && k != KindNeg
}

// DataType is the numeric type of a node's result. It selects conversion
// paths only; evaluation never dispatches on it.
type DataType int8

const (
	Integer DataType = iota
	FloatingPoint
)

func (t DataType) String() string {
	if t == Integer {
		return "Integer"
	}
	return "FloatingPoint"
}

// IntConst creates an integer constant.
func IntConst[T any](v int32) *Node[T] {
	return &Node[T]{kind: KindInteger, typ: Integer, idem: true, ival: v}
}

// FloatConst creates a floating-point constant.
func FloatConst[T any](v T) *Node[T] {
	return &Node[T]{kind: KindFloat, typ: FloatingPoint, idem: true, fval: v}
}

// Var creates a variable reference.
func Var[T any](name string) *Node[T] {
	return &Node[T]{kind: KindVariable, typ: FloatingPoint, vars: true, idem: true, name: name}
}

// Neg creates a unary minus node.
func Neg[T any](x *Node[T]) *Node[T] {
	return &Node[T]{kind: KindNeg, typ: x.typ, vars: x.vars, idem: x.idem, left: x}
}

// Binary creates a node with two operands. Panics if k is not a binary
// kind.
func Binary[T any](k Kind, left, right *Node[T]) *Node[T] {
	if !k.binary() {
		panic("formula: not a binary kind: " + k.String())
	}
	n := &Node[T]{
		kind:  k,
		typ:   FloatingPoint,
		vars:  left.vars || right.vars,
		idem:  left.idem && right.idem,
		left:  left,
		right: right,
	}
	switch k {
	case KindDiv, KindPow:
		// Always floating-point.
	default:
		if left.typ == Integer && right.typ == Integer {
			n.typ = Integer
		}
	}
	return n
}

// Call creates a function call node. idem is whether the function itself is
// idempotent; a non-idempotent call is treated as variable-dependent.
func Call[T any](name string, idem bool, args ...*Node[T]) *Node[T] {
	n := &Node[T]{kind: KindCall, typ: FloatingPoint, vars: !idem, idem: idem, pure: idem, name: name, args: args}
	for _, a := range args {
		n.vars = n.vars || a.vars
		n.idem = n.idem && a.idem
	}
	return n
}

// Kind returns the node's variant.
func (n *Node[T]) Kind() Kind { return n.kind }

// Type returns the node's result type.
func (n *Node[T]) Type() DataType { return n.typ }

// DependsOnVariables reports whether the subtree needs variable bindings or
// calls a function which is not idempotent.
func (n *Node[T]) DependsOnVariables() bool { return n.vars }

// Idempotent reports whether every function called in the subtree is
// idempotent.
func (n *Node[T]) Idempotent() bool { return n.idem }

// Name returns the variable or function name.
func (n *Node[T]) Name() string { return n.name }

// Int returns the value of an integer constant.
func (n *Node[T]) Int() int32 { return n.ival }

// Float returns the value of a floating-point constant.
func (n *Node[T]) Float() T { return n.fval }

// Left returns the left operand of a binary node or the operand of a unary
// minus.
func (n *Node[T]) Left() *Node[T] { return n.left }

// Right returns the right operand of a binary node.
func (n *Node[T]) Right() *Node[T] { return n.right }

// Args returns the arguments of a function call. The slice must not be
// modified.
func (n *Node[T]) Args() []*Node[T] { return n.args }

// constant reports whether n is a constant leaf.
func (n *Node[T]) constant() bool {
	return n.kind == KindInteger || n.kind == KindFloat
}

// Vars returns the sorted names of variables referenced in the tree.
func (n *Node[T]) Vars() []string {
	seen := make(map[string]bool)
	n.walk(func(m *Node[T]) {
		if m.kind == KindVariable {
			seen[m.name] = true
		}
	})
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// walk calls f on each node in pre-order.
func (n *Node[T]) walk(f func(*Node[T])) {
	f(n)
	if n.left != nil {
		n.left.walk(f)
	}
	if n.right != nil {
		n.right.walk(f)
	}
	for _, a := range n.args {
		a.walk(f)
	}
}

var opText = map[Kind]string{
	KindAdd:            " + ",
	KindSub:            " - ",
	KindMul:            " * ",
	KindDiv:            " / ",
	KindMod:            " % ",
	KindPow:            " ^ ",
	KindLess:           " < ",
	KindLessOrEqual:    " <= ",
	KindGreater:        " > ",
	KindGreaterOrEqual: " >= ",
	KindEqual:          " == ",
	KindNotEqual:       " != ",
	KindAnd:            " && ",
	KindOr:             " || ",
}

// String formats the tree with alternating round and square brackets
// grouping each term.
func (n *Node[T]) String() string {
	var b strings.Builder
	n.fmt(&b, false)
	return b.String()
}

func (n *Node[T]) fmt(b *strings.Builder, square bool) {
	var l, r byte = '(', ')'
	if square {
		l, r = '[', ']'
	}
	b.WriteByte(l)
	defer b.WriteByte(r)
	switch n.kind {
	case KindInteger:
		b.WriteString(strconv.FormatInt(int64(n.ival), 10))
	case KindFloat:
		fmt.Fprint(b, n.fval)
	case KindVariable:
		b.WriteString(n.name)
	case KindNeg:
		b.WriteByte('-')
		n.left.fmt(b, !square)
	case KindCall:
		b.WriteString(n.name)
		// Argument lists use the other bracket shape.
		al, ar := byte('['), byte(']')
		if square {
			al, ar = '(', ')'
		}
		b.WriteByte(al)
		for i, a := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.fmt(b, square)
		}
		b.WriteByte(ar)
	default:
		if !n.kind.binary() {
			panic("formula: invalid node kind " + n.kind.String() + " after writing " + b.String())
		}
		n.left.fmt(b, !square)
		b.WriteString(opText[n.kind])
		n.right.fmt(b, !square)
	}
}
