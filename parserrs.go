package formula

import "strconv"

// OperatorError is an error indicating an operator in a position where it
// cannot be used, like a binary operator with no left operand. It implements
// ParseError.
type OperatorError struct {
	// Col is the position of the operator.
	Col int
	// Operator is the misplaced operator.
	Operator string
	// Unary is whether the parser expected an operand or prefix operator at
	// the time.
	Unary bool
}

func (err *OperatorError) Error() string {
	s := "binary"
	if err.Unary {
		s = "unary"
	}
	return errpos(err.Col, "unexpected operator "+strconv.Quote(err.Operator)+" where "+s+" expression expected")
}

func (err *OperatorError) Pos() int {
	return err.Col
}

// BracketError is an error indicating unbalanced brackets in the input. It
// implements ParseError.
type BracketError struct {
	// Col is the position of the unmatched bracket.
	Col int
	// Left is the opening bracket, if it is the unmatched one.
	Left string
	// Right is the closing bracket, if it is the unmatched one.
	Right string
}

func (err *BracketError) Error() string {
	if err.Left == "" {
		return errpos(err.Col, "close bracket "+err.Right+" with no open bracket")
	}
	return errpos(err.Col, "open bracket "+err.Left+" with no close bracket")
}

func (err *BracketError) Pos() int {
	return err.Col
}

// SeparatorError is an error indicating an argument separator outside a
// function call. It implements ParseError.
type SeparatorError struct {
	// Col is the position of the separator.
	Col int
	// Sep is the separator.
	Sep string
}

func (err *SeparatorError) Error() string {
	return errpos(err.Col, "invalid occurrence of separator "+strconv.Quote(err.Sep))
}

func (err *SeparatorError) Pos() int {
	return err.Col
}

// CallError is an error indicating a function call with the wrong number of
// arguments. It implements ParseError.
type CallError struct {
	// Col is the position of the function name.
	Col int
	// Func is the function name that was called.
	Func string
	// Len is the number of arguments in the call.
	Len int
}

func (err *CallError) Error() string {
	return errpos(err.Col, "cannot call "+err.Func+" with "+strconv.Itoa(err.Len)+" arguments")
}

func (err *CallError) Pos() int {
	return err.Col
}

// UnknownFunctionError is an error indicating a call to a function which is
// not registered. It implements ParseError. Evaluation reports it with a
// zero Col if a function is removed from its registry after parsing.
type UnknownFunctionError struct {
	Col  int
	Func string
}

func (err *UnknownFunctionError) Error() string {
	return errpos(err.Col, "unknown function "+strconv.Quote(err.Func))
}

func (err *UnknownFunctionError) Pos() int {
	return err.Col
}

// EmptyExpressionError is an error indicating a missing operand, e.g. an
// empty formula, an empty bracket pair, or a trailing operator.
type EmptyExpressionError struct {
	// Col is the position of the token that ended the subexpression.
	Col int
	// End is the token that ended the subexpression.
	End string
}

func (err *EmptyExpressionError) Error() string {
	if err.End == "" {
		if err.Col <= 1 {
			return errpos(err.Col, "no expression")
		}
		return errpos(err.Col, "no expression at end")
	}
	return errpos(err.Col, "no expression up to "+strconv.Quote(err.End))
}

func (err *EmptyExpressionError) Pos() int {
	return err.Col
}

// OperandError is an error indicating an operand with no operator joining it
// to the previous one, e.g. "2 x".
type OperandError struct {
	// Col is the position of the stray operand.
	Col int
	// Text is the token that began the stray operand.
	Text string
}

func (err *OperandError) Error() string {
	if err.Text == "" {
		return errpos(err.Col, "operands with no operator")
	}
	return errpos(err.Col, "missing operator before "+strconv.Quote(err.Text))
}

func (err *OperandError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error with position information. Every error resulting from
// invalid input implements InputError.
type InputError interface {
	error
	// Pos returns the 1-based column of the token that caused the error,
	// or 0 if there is none.
	Pos() int
}

// ParseError is an InputError from building an expression tree, as opposed
// to a LexError from scanning the text.
type ParseError interface {
	InputError
	parseError()
}

func (*OperatorError) parseError()        {}
func (*BracketError) parseError()         {}
func (*SeparatorError) parseError()       {}
func (*CallError) parseError()            {}
func (*UnknownFunctionError) parseError() {}
func (*EmptyExpressionError) parseError() {}
func (*OperandError) parseError()         {}

var (
	_ ParseError = (*OperatorError)(nil)
	_ ParseError = (*BracketError)(nil)
	_ ParseError = (*SeparatorError)(nil)
	_ ParseError = (*CallError)(nil)
	_ ParseError = (*UnknownFunctionError)(nil)
	_ ParseError = (*EmptyExpressionError)(nil)
	_ ParseError = (*OperandError)(nil)
	_ InputError = (*LexError)(nil)
)
