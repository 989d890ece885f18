package formula

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale describes how numbers are written in formula text.
type Locale struct {
	// Decimal separates the integer and fractional parts of a literal.
	Decimal rune
	// Group separates digit groups in numbers given to Operations.Parse.
	// Formula literals never contain group separators.
	Group rune
	// ListSeparator separates function arguments.
	ListSeparator rune
}

// DefaultLocale writes numbers as 1,234.5 and separates arguments with
// commas.
var DefaultLocale = Locale{Decimal: '.', Group: ',', ListSeparator: ','}

// probe is formatted in the target locale to discover its separators. It
// is large enough that every locale groups it.
const probe = 1234567.5

// LocaleFor derives the number separators of a language. The list separator
// is ';' when the decimal separator is a comma.
func LocaleFor(tag language.Tag) Locale {
	s := message.NewPrinter(tag).Sprint(number.Decimal(probe))
	loc := DefaultLocale
	var seps []rune
	for _, r := range s {
		if !unicode.IsDigit(r) {
			seps = append(seps, r)
		}
	}
	switch len(seps) {
	case 0:
		return loc
	case 1:
		loc.Decimal = seps[0]
		loc.Group = 0
	default:
		loc.Decimal = seps[len(seps)-1]
		loc.Group = seps[0]
	}
	if loc.Decimal == ',' {
		loc.ListSeparator = ';'
	}
	return loc
}

// canonical rewrites a number in loc to the form strconv and decimal parse.
func (loc Locale) canonical(s string) string {
	if (loc.Decimal == '.' || loc.Decimal == 0) && (loc.Group == 0 || !strings.ContainsRune(s, loc.Group)) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == loc.Group && loc.Group != 0:
			// drop
		case r == loc.Decimal:
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (loc Locale) decimal() rune {
	if loc.Decimal == 0 {
		return '.'
	}
	return loc.Decimal
}

func (loc Locale) listSeparator() rune {
	if loc.ListSeparator == 0 {
		return ','
	}
	return loc.ListSeparator
}
