package formula

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Token is a lexical token of a formula.
type Token[T any] struct {
	Kind TokenKind
	// Text is the identifier, the canonical operator, or the literal as
	// written. The unary minus operator has Text "_".
	Text string
	// Int is the value of an Integer token.
	Int int32
	// Float is the value of a FloatingPoint token.
	Float T
	// Pos is the rune offset of the token in the source.
	Pos int
	// Len is the length of the token in runes.
	Len int
}

func (t Token[T]) String() string {
	return t.Kind.String() + ":" + t.Text + "@" + strconv.Itoa(t.Pos)
}

// TokenKind is the type of a token.
type TokenKind int8

const (
	TokenNone TokenKind = iota
	// TokenInteger is a literal without fraction or exponent that fits
	// in an int32.
	TokenInteger
	// TokenFloatingPoint is any other numeric literal.
	TokenFloatingPoint
	// TokenText is a variable or function name.
	TokenText
	// TokenOperator is an operator.
	TokenOperator
	// TokenLeftBracket is (.
	TokenLeftBracket
	// TokenRightBracket is ).
	TokenRightBracket
	// TokenArgumentSeparator separates function arguments.
	TokenArgumentSeparator
)

func (k TokenKind) String() string {
	switch k {
	case TokenInteger:
		return "Integer"
	case TokenFloatingPoint:
		return "FloatingPoint"
	case TokenText:
		return "Text"
	case TokenOperator:
		return "Operator"
	case TokenLeftBracket:
		return "LeftBracket"
	case TokenRightBracket:
		return "RightBracket"
	case TokenArgumentSeparator:
		return "ArgumentSeparator"
	default:
		return "None"
	}
}

// unaryMinus is the text of the unary minus operator token.
const unaryMinus = "_"

// glyphs maps single-rune operators to their canonical text.
var glyphs = map[rune]string{
	'+': "+",
	'-': "-",
	'*': "*",
	'/': "/",
	'^': "^",
	'%': "%",
	'<': "<",
	'>': ">",
	'×': "*",
	'÷': "/",
	'≤': "<=",
	'≥': ">=",
	'≠': "!=",
}

// pairs lists operators recognized by one rune of lookahead.
var pairs = map[[2]rune]string{
	{'<', '='}: "<=",
	{'>', '='}: ">=",
	{'=', '='}: "==",
	{'!', '='}: "!=",
	{'&', '&'}: "&&",
	{'|', '|'}: "||",
}

type lexer[T any] struct {
	src  []rune
	pos  int
	ops  Operations[T]
	loc  Locale
	toks []Token[T]
}

// Tokenize scans a formula into tokens. Number literals are parsed with ops
// according to loc. Whitespace separates tokens and is otherwise ignored.
func Tokenize[T any](src string, ops Operations[T], loc Locale) ([]Token[T], error) {
	l := lexer[T]{
		src: []rune(src),
		ops: ops,
		loc: loc,
	}
	for l.pos < len(l.src) {
		if err := l.next(); err != nil {
			return nil, err
		}
	}
	return l.toks, nil
}

// unaryContext is whether a minus at the current position is unary. Skipped
// whitespace does not change the answer.
func (l *lexer[T]) unaryContext() bool {
	if len(l.toks) == 0 {
		return true
	}
	switch l.toks[len(l.toks)-1].Kind {
	case TokenOperator, TokenLeftBracket, TokenArgumentSeparator:
		return true
	}
	return false
}

func (l *lexer[T]) peek(k int) rune {
	if l.pos+k >= len(l.src) {
		return -1
	}
	return l.src[l.pos+k]
}

func (l *lexer[T]) emit(kind TokenKind, text string, n int) {
	l.toks = append(l.toks, Token[T]{Kind: kind, Text: text, Pos: l.pos, Len: n})
	l.pos += n
}

func (l *lexer[T]) isdigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// startsNumber reports whether a number begins k runes ahead.
func (l *lexer[T]) startsNumber(k int) bool {
	r := l.peek(k)
	if l.isdigit(r) {
		return true
	}
	return r == l.loc.decimal() && l.isdigit(l.peek(k+1))
}

// next scans one token or skips one whitespace rune.
func (l *lexer[T]) next() error {
	r := l.src[l.pos]
	switch {
	case unicode.IsSpace(r):
		l.pos++
		return nil
	case l.startsNumber(0):
		return l.scanNum(l.pos)
	case r == '-' && l.unaryContext():
		if l.startsNumber(1) {
			return l.scanNum(l.pos)
		}
		l.emit(TokenOperator, unaryMinus, 1)
		return nil
	case r == '_', unicode.IsLetter(r):
		l.scanIdent()
		return nil
	case r == '(':
		l.emit(TokenLeftBracket, "(", 1)
		return nil
	case r == ')':
		l.emit(TokenRightBracket, ")", 1)
		return nil
	case r == l.loc.listSeparator():
		l.emit(TokenArgumentSeparator, string(r), 1)
		return nil
	}
	if op, ok := pairs[[2]rune{r, l.peek(1)}]; ok {
		l.emit(TokenOperator, op, 2)
		return nil
	}
	if op, ok := glyphs[r]; ok {
		l.emit(TokenOperator, op, 1)
		return nil
	}
	kind := ""
	if strings.ContainsRune("=!&|", r) {
		kind = "operator"
	}
	return &LexError{Text: string(r), Kind: kind, Col: l.pos + 1}
}

// scanNum scans a number literal beginning at start, which may be a minus
// sign in unary position.
func (l *lexer[T]) scanNum(start int) error {
	end := start
	if l.src[end] == '-' {
		end++
	}
	var dot, exp bool
	dec := l.loc.decimal()
	for end < len(l.src) {
		r := l.src[end]
		switch {
		case l.isdigit(r):
			end++
			continue
		case r == dec:
			if dot || exp {
				return &LexError{Text: string(l.src[start : end+1]), Kind: "number", Col: end + 1}
			}
			dot = true
			end++
			continue
		case (r == 'e' || r == 'E') && !exp:
			// Only an exponent if digits follow; otherwise the e starts an
			// identifier and the parser reports the juxtaposition.
			k := end + 1
			if k < len(l.src) && (l.src[k] == '+' || l.src[k] == '-') {
				k++
			}
			if k < len(l.src) && l.isdigit(l.src[k]) {
				exp = true
				end = k + 1
				continue
			}
		}
		break
	}
	text := string(l.src[start:end])
	tok := Token[T]{Text: text, Pos: start, Len: end - start}
	if !dot && !exp {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil && n >= math.MinInt32 && n <= math.MaxInt32 {
			tok.Kind = TokenInteger
			tok.Int = int32(n)
			l.toks = append(l.toks, tok)
			l.pos = end
			return nil
		}
	}
	v, err := l.ops.Parse(text, l.loc)
	if err != nil {
		return &LexError{Text: text, Kind: "number", Col: start + 1}
	}
	tok.Kind = TokenFloatingPoint
	tok.Float = v
	l.toks = append(l.toks, tok)
	l.pos = end
	return nil
}

func (l *lexer[T]) scanIdent() {
	end := l.pos + 1
	for end < len(l.src) {
		r := l.src[end]
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		end++
	}
	l.emit(TokenText, string(l.src[l.pos:end]), end-l.pos)
}

// LexError indicates an invalid token. It implements InputError.
type LexError struct {
	// Text is the offending rune, or the malformed literal.
	Text string
	// Kind is the type of token the lexer was scanning. This may be
	// "number", "operator", or the empty string if no token kind matched.
	Kind string
	// Col is the 1-based column of the offending rune.
	Col int
}

func (err *LexError) Error() string {
	pos := "column " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + strconv.Quote(err.Text)
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + strconv.Quote(err.Text)
}

func (err *LexError) Pos() int {
	return err.Col
}
