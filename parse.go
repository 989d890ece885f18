package formula

// Formula = Operand { BinOp Formula }
// Operand = int | float | name | Call | '_' Operand | '(' Formula ')'
// Call = name '(' [ Formula { sep Formula } ] ')'
// BinOp = '+' | '-' | '*' | '/' | '%' | '^' | '<' | '<=' | '>' | '>=' | '==' | '!=' | '&&' | '||'

// Parser turns formula text into expression trees.
type Parser[T any] struct {
	ops   Operations[T]
	funcs *FunctionRegistry[T]
	loc   Locale
}

// NewParser creates a parser which reads numbers with ops in loc and
// resolves function calls against funcs.
func NewParser[T any](ops Operations[T], funcs *FunctionRegistry[T], loc Locale) *Parser[T] {
	return &Parser[T]{ops: ops, funcs: funcs, loc: loc}
}

// Parse tokenizes and builds a formula. References to names in consts
// become constants in the tree instead of variables.
func (p *Parser[T]) Parse(src string, consts map[string]T) (*Node[T], error) {
	toks, err := Tokenize(src, p.ops, p.loc)
	if err != nil {
		return nil, err
	}
	return Build(toks, p.funcs, consts)
}

// Build constructs an expression tree from tokens. Names are normalized
// according to funcs, which must not be nil; consts names must already be
// normalized.
func Build[T any](toks []Token[T], funcs *FunctionRegistry[T], consts map[string]T) (*Node[T], error) {
	b := builder[T]{funcs: funcs, consts: consts}
	return b.build(toks)
}

type builder[T any] struct {
	funcs  *FunctionRegistry[T]
	consts map[string]T
}

// operator describes a binary or prefix operator.
type operator struct {
	// prec is the precedence value. Higher binds more tightly.
	prec int8
	// right indicates right-associativity.
	right bool
	// kind is the node kind to build when this operator is reduced.
	kind Kind
}

var operators = map[string]operator{
	"&&":       {1, false, KindAnd},
	"||":       {1, false, KindOr},
	"<":        {2, false, KindLess},
	"<=":       {2, false, KindLessOrEqual},
	">":        {2, false, KindGreater},
	">=":       {2, false, KindGreaterOrEqual},
	"==":       {2, false, KindEqual},
	"!=":       {2, false, KindNotEqual},
	"+":        {3, false, KindAdd},
	"-":        {3, false, KindSub},
	"*":        {4, false, KindMul},
	"/":        {4, false, KindDiv},
	"%":        {4, false, KindMod},
	"^":        {5, true, KindPow},
	unaryMinus: {6, true, KindNeg},
}

// reduces reports whether an incoming operator op pops the operator top
// which is already on the stack.
func (op operator) reduces(top operator) bool {
	if op.kind == KindNeg {
		// Prefix operators have no left operand to complete.
		return false
	}
	return (!op.right && op.prec <= top.prec) || op.prec < top.prec
}

// stack holds the state of one shunting-yard pass.
type stack[T any] struct {
	operands []*Node[T]
	// pending holds operator tokens and left brackets.
	pending []Token[T]
}

func (s *stack[T]) push(n *Node[T]) {
	s.operands = append(s.operands, n)
}

func (s *stack[T]) pop() *Node[T] {
	n := s.operands[len(s.operands)-1]
	s.operands = s.operands[:len(s.operands)-1]
	return n
}

// reduce pops the top pending operator and combines its operands.
func (s *stack[T]) reduce() error {
	tok := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]
	op := operators[tok.Text]
	if op.kind == KindNeg {
		if len(s.operands) < 1 {
			return &EmptyExpressionError{Col: tok.Pos + 1, End: tok.Text}
		}
		s.push(Neg(s.pop()))
		return nil
	}
	if len(s.operands) < 2 {
		return &EmptyExpressionError{Col: tok.Pos + 1, End: tok.Text}
	}
	r := s.pop()
	l := s.pop()
	s.push(Binary(op.kind, l, r))
	return nil
}

func (s *stack[T]) top() (Token[T], bool) {
	if len(s.pending) == 0 {
		return Token[T]{}, false
	}
	return s.pending[len(s.pending)-1], true
}

func (b *builder[T]) build(toks []Token[T]) (*Node[T], error) {
	var s stack[T]
	// want is whether the next token must begin an operand.
	want := true
	end := 1
	if len(toks) > 0 {
		last := toks[len(toks)-1]
		end = last.Pos + last.Len + 1
	}
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.Kind {
		case TokenInteger, TokenFloatingPoint, TokenText:
			if !want {
				return nil, &OperandError{Col: tok.Pos + 1, Text: tok.Text}
			}
			want = false
			switch {
			case tok.Kind == TokenInteger:
				s.push(IntConst[T](tok.Int))
			case tok.Kind == TokenFloatingPoint:
				s.push(FloatConst(tok.Float))
			case i+1 < len(toks) && toks[i+1].Kind == TokenLeftBracket:
				n, k, err := b.call(toks, i)
				if err != nil {
					return nil, err
				}
				s.push(n)
				i = k
			default:
				name := b.funcs.Normalize(tok.Text)
				if v, ok := b.consts[name]; ok {
					s.push(FloatConst(v))
				} else {
					s.push(Var[T](name))
				}
			}
		case TokenOperator:
			op, ok := operators[tok.Text]
			if !ok {
				panic("formula: lexer produced unknown operator " + tok.String())
			}
			if want != (op.kind == KindNeg) {
				return nil, &OperatorError{Col: tok.Pos + 1, Operator: tok.Text, Unary: want}
			}
			for {
				top, ok := s.top()
				if !ok || top.Kind == TokenLeftBracket || !op.reduces(operators[top.Text]) {
					break
				}
				if err := s.reduce(); err != nil {
					return nil, err
				}
			}
			s.pending = append(s.pending, tok)
			want = true
		case TokenLeftBracket:
			if !want {
				return nil, &OperandError{Col: tok.Pos + 1, Text: tok.Text}
			}
			s.pending = append(s.pending, tok)
		case TokenRightBracket:
			if want {
				return nil, &EmptyExpressionError{Col: tok.Pos + 1, End: tok.Text}
			}
			for {
				top, ok := s.top()
				if !ok {
					return nil, &BracketError{Col: tok.Pos + 1, Right: tok.Text}
				}
				if top.Kind == TokenLeftBracket {
					s.pending = s.pending[:len(s.pending)-1]
					break
				}
				if err := s.reduce(); err != nil {
					return nil, err
				}
			}
		case TokenArgumentSeparator:
			return nil, &SeparatorError{Col: tok.Pos + 1, Sep: tok.Text}
		default:
			panic("formula: unknown token: " + tok.String())
		}
	}
	if want {
		return nil, &EmptyExpressionError{Col: end}
	}
	for len(s.pending) > 0 {
		top, _ := s.top()
		if top.Kind == TokenLeftBracket {
			return nil, &BracketError{Col: top.Pos + 1, Left: top.Text}
		}
		if err := s.reduce(); err != nil {
			return nil, err
		}
	}
	if len(s.operands) != 1 {
		// Unreachable while operand adjacency is rejected above.
		return nil, &OperandError{Col: end}
	}
	return s.operands[0], nil
}

// call builds the function call whose name is toks[i]. toks[i+1] is the
// opening bracket. The second result is the index of the closing bracket.
func (b *builder[T]) call(toks []Token[T], i int) (*Node[T], int, error) {
	name := toks[i]
	open := toks[i+1]
	var args []*Node[T]
	depth := 0
	start := i + 2
	k := start
	for ; k < len(toks); k++ {
		switch toks[k].Kind {
		case TokenLeftBracket:
			depth++
			continue
		case TokenRightBracket:
			if depth > 0 {
				depth--
				continue
			}
		case TokenArgumentSeparator:
			if depth > 0 {
				continue
			}
		default:
			continue
		}
		// Top-level separator or the closing bracket.
		closing := toks[k].Kind == TokenRightBracket
		if start == k {
			if !closing || len(args) > 0 {
				return nil, 0, &EmptyExpressionError{Col: toks[k].Pos + 1, End: toks[k].Text}
			}
			// name() has no arguments.
			break
		}
		arg, err := b.build(toks[start:k])
		if err != nil {
			return nil, 0, err
		}
		args = append(args, arg)
		start = k + 1
		if closing {
			break
		}
	}
	if k >= len(toks) {
		return nil, 0, &BracketError{Col: open.Pos + 1, Left: open.Text}
	}
	info, ok := b.funcs.Lookup(name.Text)
	if !ok {
		return nil, 0, &UnknownFunctionError{Col: name.Pos + 1, Func: name.Text}
	}
	if !info.CanCall(len(args)) {
		return nil, 0, &CallError{Col: name.Pos + 1, Func: name.Text, Len: len(args)}
	}
	return Call(info.Name, info.Idempotent, args...), k, nil
}
