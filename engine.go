package formula

import (
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"

	"github.com/zephyrtronium/formula/cache"
)

// Backend selects how an Engine evaluates built formulas.
type Backend string

const (
	// Interpreted evaluates formulas by walking their trees.
	Interpreted Backend = "interpreted"
	// Compiled evaluates formulas through closures built once per formula.
	Compiled Backend = "compiled"
)

var errBackend = errors.New("unknown backend")

// EngineConfig is the config for an Engine.
type EngineConfig struct {
	Backend       Backend      `yaml:"backend" toml:"backend"`
	Optimize      bool         `yaml:"optimize" toml:"optimize"`
	CaseSensitive bool         `yaml:"case_sensitive" toml:"case_sensitive"`
	Locale        string       `yaml:"locale" toml:"locale"`
	Cache         cache.Config `yaml:"cache" toml:"cache"`
}

// RegisterFlags registers flags.
func (cfg *EngineConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar((*string)(&cfg.Backend), "backend", string(Compiled), "Evaluation backend, interpreted or compiled.")
	f.BoolVar(&cfg.Optimize, "optimize", true, "Fold constant subexpressions before evaluation.")
	f.BoolVar(&cfg.CaseSensitive, "case-sensitive", false, "Treat variable and function names case sensitively.")
	f.StringVar(&cfg.Locale, "locale", "", "BCP 47 language tag selecting number separators. Empty uses '.' for decimals and ',' between arguments.")
	cfg.Cache.RegisterFlags(f)
}

func (cfg *EngineConfig) Validate() error {
	switch cfg.Backend {
	case Interpreted, Compiled:
	default:
		return errors.Wrapf(errBackend, "%q", cfg.Backend)
	}
	if cfg.Locale != "" {
		if _, err := language.Parse(cfg.Locale); err != nil {
			return errors.Wrap(err, "invalid locale")
		}
	}
	return cfg.Cache.Validate()
}

// DefaultEngineConfig returns the config that RegisterFlags defaults to.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Backend:  Compiled,
		Optimize: true,
		Cache: cache.Config{
			MaxSize:       cache.DefaultMaxSize,
			ReductionSize: cache.DefaultReductionSize,
		},
	}
}

// Engine parses, optimizes and evaluates formulas, caching built formulas.
// Registering functions or constants through the Engine clears its cache;
// registering directly on the registries while formulas are evaluated
// concurrently is a data race.
type Engine[T any] struct {
	cfg    EngineConfig
	ops    Operations[T]
	loc    Locale
	funcs  *FunctionRegistry[T]
	consts *ConstantRegistry[T]
	parser *Parser[T]
	opt    *Optimizer[T]
	interp *Interpreter[T]
	comp   *Compiler[T]
	cache  *cache.Cache[Evaluator[T]]
	logger log.Logger
}

// NewEngine creates an engine with the built-in functions and constants.
// logger and reg may be nil.
func NewEngine[T any](ops Operations[T], cfg EngineConfig, logger log.Logger, reg prometheus.Registerer) (*Engine[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine config")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	loc := DefaultLocale
	if cfg.Locale != "" {
		loc = LocaleFor(language.MustParse(cfg.Locale))
	}
	c, err := cache.New[Evaluator[T]](cfg.Cache, reg)
	if err != nil {
		return nil, err
	}
	funcs := DefaultFunctions(ops, cfg.CaseSensitive)
	consts := DefaultConstants(ops, cfg.CaseSensitive)
	return &Engine[T]{
		cfg:    cfg,
		ops:    ops,
		loc:    loc,
		funcs:  funcs,
		consts: consts,
		parser: NewParser(ops, funcs, loc),
		opt:    NewOptimizer(ops, funcs, consts),
		interp: NewInterpreter(ops, funcs, consts),
		comp:   NewCompiler(ops, funcs, consts),
		cache:  c,
		logger: log.With(logger, "component", "formula"),
	}, nil
}

// Locale returns the locale the engine reads numbers in.
func (e *Engine[T]) Locale() Locale {
	return e.loc
}

// Functions returns the engine's function registry.
func (e *Engine[T]) Functions() *FunctionRegistry[T] {
	return e.funcs
}

// Constants returns the engine's constant registry.
func (e *Engine[T]) Constants() *ConstantRegistry[T] {
	return e.consts
}

// RegisterFunction adds or replaces a function and drops every cached
// formula, since they may have folded calls to the old function.
func (e *Engine[T]) RegisterFunction(info FunctionInfo[T]) error {
	if err := e.funcs.Register(info); err != nil {
		return err
	}
	e.cache.Clear()
	level.Debug(e.logger).Log("msg", "registered function", "name", info.Name, "arity", info.Arity, "variadic", info.Variadic)
	return nil
}

// RegisterConstant adds or replaces a constant and drops every cached
// formula.
func (e *Engine[T]) RegisterConstant(info ConstantInfo[T]) error {
	if err := e.consts.Register(info); err != nil {
		return err
	}
	e.cache.Clear()
	level.Debug(e.logger).Log("msg", "registered constant", "name", info.Name)
	return nil
}

// Calculate evaluates a formula once with the given variables.
func (e *Engine[T]) Calculate(formula string, vars map[string]T) (T, error) {
	ev, err := e.Build(formula, nil)
	if err != nil {
		return e.ops.Zero(), err
	}
	return ev(vars)
}

// Build returns an evaluator for a formula in which the names in consts are
// bound to fixed values. Evaluators are cached by formula text and bound
// constants.
func (e *Engine[T]) Build(formula string, consts map[string]T) (Evaluator[T], error) {
	consts, err := normalizeVars(consts, e.funcs.CaseSensitive())
	if err != nil {
		return nil, errors.Wrapf(err, "binding constants for %q", formula)
	}
	key := fingerprint(formula, consts)
	return e.cache.GetOrBuild(key, func() (Evaluator[T], error) {
		return e.build(formula, consts)
	})
}

// Tree parses a formula and optimizes it if the engine is configured to.
func (e *Engine[T]) Tree(formula string, consts map[string]T) (*Node[T], error) {
	consts, err := normalizeVars(consts, e.funcs.CaseSensitive())
	if err != nil {
		return nil, errors.Wrapf(err, "binding constants for %q", formula)
	}
	if err := Verify(consts, e.funcs, e.consts); err != nil {
		return nil, errors.Wrapf(err, "binding constants for %q", formula)
	}
	n, err := e.parser.Parse(formula, consts)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", formula)
	}
	if !e.cfg.Optimize {
		return n, nil
	}
	o, err := e.opt.Optimize(n)
	if err != nil {
		return nil, errors.Wrapf(err, "optimizing %q", formula)
	}
	return o, nil
}

func (e *Engine[T]) build(formula string, consts map[string]T) (Evaluator[T], error) {
	n, err := e.Tree(formula, consts)
	if err != nil {
		return nil, err
	}
	level.Debug(e.logger).Log("msg", "built formula", "formula", formula, "tree", n, "backend", e.cfg.Backend)
	if e.cfg.Backend == Interpreted {
		in := e.interp
		return func(vars map[string]T) (T, error) { return in.Execute(n, vars) }, nil
	}
	ev, err := e.comp.Compile(n)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %q", formula)
	}
	return ev, nil
}

// CacheLen returns the number of cached formulas.
func (e *Engine[T]) CacheLen() int {
	return e.cache.Len()
}

// fingerprint is the cache key for a formula with bound constants.
func fingerprint[T any](formula string, consts map[string]T) string {
	if len(consts) == 0 {
		return formula
	}
	names := make([]string, 0, len(consts))
	for k := range consts {
		names = append(names, k)
	}
	slices.Sort(names)
	var b strings.Builder
	b.WriteString(formula)
	b.WriteByte('@')
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%v", k, consts[k])
	}
	return b.String()
}
