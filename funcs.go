package formula

import (
	"iter"
	"strconv"
	"strings"
)

// Func is the callable behind a registered function. args has exactly the
// declared arity of the function, or as many arguments as the call site
// has for variadic functions. Func may modify args.
type Func[T any] func(args []T) (T, error)

// FunctionInfo describes a registered function.
type FunctionInfo[T any] struct {
	// Name is the function name as written in formulas.
	Name string
	// Arity is the number of arguments. Ignored when Variadic is set.
	Arity int
	// Variadic functions accept any number of arguments.
	Variadic bool
	// Idempotent functions always return the same result for the same
	// arguments, so calls to them may be folded into constants.
	Idempotent bool
	// Overwritable functions may be replaced by a later registration with
	// the same arity.
	Overwritable bool
	// Call computes the function.
	Call Func[T]
}

// CanCall reports whether the function accepts n arguments.
func (f FunctionInfo[T]) CanCall(n int) bool {
	return f.Variadic || n == f.Arity
}

// Niladic describes an idempotent, overwritable function of no arguments.
func Niladic[T any](name string, f func() (T, error)) FunctionInfo[T] {
	return FunctionInfo[T]{
		Name:         name,
		Idempotent:   true,
		Overwritable: true,
		Call:         func([]T) (T, error) { return f() },
	}
}

// Monadic describes an idempotent, overwritable function of one argument.
func Monadic[T any](name string, f func(x T) (T, error)) FunctionInfo[T] {
	return FunctionInfo[T]{
		Name:         name,
		Arity:        1,
		Idempotent:   true,
		Overwritable: true,
		Call:         func(args []T) (T, error) { return f(args[0]) },
	}
}

// Dyadic describes an idempotent, overwritable function of two arguments.
func Dyadic[T any](name string, f func(x, y T) (T, error)) FunctionInfo[T] {
	return FunctionInfo[T]{
		Name:         name,
		Arity:        2,
		Idempotent:   true,
		Overwritable: true,
		Call:         func(args []T) (T, error) { return f(args[0], args[1]) },
	}
}

// Variadic describes an idempotent, overwritable function of any number of
// arguments.
func Variadic[T any](name string, f Func[T]) FunctionInfo[T] {
	return FunctionInfo[T]{
		Name:         name,
		Variadic:     true,
		Idempotent:   true,
		Overwritable: true,
		Call:         f,
	}
}

// ConstantInfo describes a registered constant.
type ConstantInfo[T any] struct {
	Name         string
	Value        T
	Overwritable bool
}

// FunctionRegistry maps names to functions. A registry is not safe for
// concurrent modification, nor for modification concurrent with parsing or
// evaluation. Configure it before sharing it.
type FunctionRegistry[T any] struct {
	caseSensitive bool
	funcs         map[string]FunctionInfo[T]
}

// NewFunctionRegistry creates an empty function registry. Unless
// caseSensitive is set, names are compared case-insensitively.
func NewFunctionRegistry[T any](caseSensitive bool) *FunctionRegistry[T] {
	return &FunctionRegistry[T]{caseSensitive: caseSensitive, funcs: make(map[string]FunctionInfo[T])}
}

// CaseSensitive reports whether names are compared case-sensitively.
func (r *FunctionRegistry[T]) CaseSensitive() bool {
	return r.caseSensitive
}

// Normalize converts a name to the form used as a key.
func (r *FunctionRegistry[T]) Normalize(name string) string {
	return normalize(name, r.caseSensitive)
}

// Register adds or replaces a function. Replacing fails if the existing
// function is not overwritable or if the replacement changes its arity.
func (r *FunctionRegistry[T]) Register(info FunctionInfo[T]) error {
	if info.Name == "" {
		return &RegistrationError{Name: info.Name, Reason: "empty name"}
	}
	if info.Call == nil {
		return &RegistrationError{Name: info.Name, Reason: "nil function"}
	}
	if !info.Variadic && info.Arity < 0 {
		return &RegistrationError{Name: info.Name, Reason: "negative arity"}
	}
	key := r.Normalize(info.Name)
	if old, ok := r.funcs[key]; ok {
		switch {
		case !old.Overwritable:
			return &RegistrationError{Name: info.Name, Reason: "function is not overwritable"}
		case old.Variadic != info.Variadic:
			return &RegistrationError{Name: info.Name, Reason: "cannot change between fixed and variable arity"}
		case !old.Variadic && old.Arity != info.Arity:
			return &RegistrationError{
				Name:   info.Name,
				Reason: "cannot change arity from " + strconv.Itoa(old.Arity) + " to " + strconv.Itoa(info.Arity),
			}
		}
	}
	info.Name = key
	r.funcs[key] = info
	return nil
}

// Lookup finds a function by name.
func (r *FunctionRegistry[T]) Lookup(name string) (FunctionInfo[T], bool) {
	f, ok := r.funcs[r.Normalize(name)]
	return f, ok
}

// Len returns the number of registered functions.
func (r *FunctionRegistry[T]) Len() int {
	return len(r.funcs)
}

// All iterates over registered functions in unspecified order.
func (r *FunctionRegistry[T]) All() iter.Seq2[string, FunctionInfo[T]] {
	return func(yield func(string, FunctionInfo[T]) bool) {
		for k, v := range r.funcs {
			if !yield(k, v) {
				return
			}
		}
	}
}

// ConstantRegistry maps names to constant values. It has the same
// concurrency rules as FunctionRegistry.
type ConstantRegistry[T any] struct {
	caseSensitive bool
	consts        map[string]ConstantInfo[T]
}

// NewConstantRegistry creates an empty constant registry.
func NewConstantRegistry[T any](caseSensitive bool) *ConstantRegistry[T] {
	return &ConstantRegistry[T]{caseSensitive: caseSensitive, consts: make(map[string]ConstantInfo[T])}
}

// CaseSensitive reports whether names are compared case-sensitively.
func (r *ConstantRegistry[T]) CaseSensitive() bool {
	return r.caseSensitive
}

// Normalize converts a name to the form used as a key.
func (r *ConstantRegistry[T]) Normalize(name string) string {
	return normalize(name, r.caseSensitive)
}

// Register adds or replaces a constant. Replacing fails if the existing
// constant is not overwritable.
func (r *ConstantRegistry[T]) Register(info ConstantInfo[T]) error {
	if info.Name == "" {
		return &RegistrationError{Name: info.Name, Reason: "empty name"}
	}
	key := r.Normalize(info.Name)
	if old, ok := r.consts[key]; ok && !old.Overwritable {
		return &RegistrationError{Name: info.Name, Reason: "constant is not overwritable"}
	}
	info.Name = key
	r.consts[key] = info
	return nil
}

// Lookup finds a constant by name.
func (r *ConstantRegistry[T]) Lookup(name string) (ConstantInfo[T], bool) {
	c, ok := r.consts[r.Normalize(name)]
	return c, ok
}

// Len returns the number of registered constants.
func (r *ConstantRegistry[T]) Len() int {
	return len(r.consts)
}

// All iterates over registered constants in unspecified order.
func (r *ConstantRegistry[T]) All() iter.Seq2[string, ConstantInfo[T]] {
	return func(yield func(string, ConstantInfo[T]) bool) {
		for k, v := range r.consts {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Verify checks that no variable name collides with a function or with a
// constant that is not overwritable. vars must already be normalized.
func Verify[T any](vars map[string]T, funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) error {
	for name := range vars {
		if funcs != nil {
			if _, ok := funcs.funcs[name]; ok {
				return &ReservedNameError{Name: name, Function: true}
			}
		}
		if consts != nil {
			if c, ok := consts.consts[name]; ok && !c.Overwritable {
				return &ReservedNameError{Name: name}
			}
		}
	}
	return nil
}

// normalizeVars normalizes the names of variable bindings. vars is returned
// as is when no name changes. Two names which normalize to the same key
// give a *DuplicateNameError.
func normalizeVars[T any](vars map[string]T, caseSensitive bool) (map[string]T, error) {
	if caseSensitive {
		return vars, nil
	}
	for k := range vars {
		if k == strings.ToLower(k) {
			continue
		}
		m := make(map[string]T, len(vars))
		for k, v := range vars {
			key := strings.ToLower(k)
			if _, ok := m[key]; ok {
				return nil, &DuplicateNameError{Name: key}
			}
			m[key] = v
		}
		return m, nil
	}
	return vars, nil
}

// checkCase panics if funcs and consts normalize names differently.
func checkCase[T any](funcs *FunctionRegistry[T], consts *ConstantRegistry[T]) {
	if consts != nil && consts.caseSensitive != funcs.caseSensitive {
		panic("formula: function and constant registries differ in case sensitivity")
	}
}

func normalize(name string, caseSensitive bool) string {
	if caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// RegistrationError is an error registering a function or constant.
type RegistrationError struct {
	Name   string
	Reason string
}

func (err *RegistrationError) Error() string {
	return "cannot register " + strconv.Quote(err.Name) + ": " + err.Reason
}

// DuplicateNameError is an error from variable bindings which give more
// than one value to the same name after case normalization.
type DuplicateNameError struct {
	Name string
}

func (err *DuplicateNameError) Error() string {
	return "variable " + strconv.Quote(err.Name) + " bound more than once"
}

// ReservedNameError is an error from a variable binding that uses the name
// of a function or of a constant which cannot be overwritten.
type ReservedNameError struct {
	Name string
	// Function is whether the name belongs to a function.
	Function bool
}

func (err *ReservedNameError) Error() string {
	if err.Function {
		return "variable name " + strconv.Quote(err.Name) + " is a function name"
	}
	return "variable name " + strconv.Quote(err.Name) + " is a constant which cannot be overwritten"
}

// DomainError is an error returned when an operation or function is applied
// to arguments outside its domain.
type DomainError struct {
	// X is the out-of-domain argument.
	X string
	// Arg is the 1-based index of the argument.
	Arg int
	// Func is a name identifying the function or operator.
	Func string
}

func (err *DomainError) Error() string {
	r := err.X + " outside domain"
	if err.Func != "" {
		r += " of " + err.Func
	}
	if err.Arg > 0 {
		r += " (argument " + strconv.Itoa(err.Arg) + ")"
	}
	return r
}
