// Package formula parses and evaluates arithmetic formulas over a choice of
// numeric representations.
//
// Formulas are written the usual way: "2 + 8*3", "2^3^2" (right
// associative), "(42+8)*2". Comparisons and the logical operators && and ||
// produce 1 or 0; there is no separate boolean type. Names are variables
// unless followed by an open bracket, in which case they are function calls
// like "max(a, b, 3)". The glyphs × ÷ ≤ ≥ ≠ may stand for * / <= >= !=.
//
// Evaluation is generic over Operations. Float64 evaluates with IEEE-754
// doubles; Decimal evaluates with fixed-point decimals, where division by
// zero is an error rather than an infinity.
//
// Formulas pass through several stages, each usable alone: Tokenize, Build
// (or Parser, which does both), Optimizer, and then either Interpreter or
// Compiler. Engine strings these together with a cache of built formulas.
package formula
