package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/zephyrtronium/formula"
)

// eval command flags
var (
	evalGiven []string
	evalBind  []string
	evalIn    string
	evalEcho  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [formula...]",
	Short: "Evaluate formulas",
	Long: `Evaluate each formula and print its result on its own line.

With no formulas as arguments, formulas are read one per line from --in or
standard input. Values of --given and --bind are themselves formulas.

Examples:
  formula eval '(42+8)*2'
  formula eval --given r=2 'pi*r^2'
  formula eval --bind rate=0.07 --given p=100 'p*(1+rate)^10'
  echo 'sqrt(2)' | formula eval --decimal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if useDecimal {
			return runEval[decimal.Decimal](cmd, args, formula.Decimal{})
		}
		return runEval[float64](cmd, args, formula.Float64{})
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens formula",
	Short: "Print the tokens of a formula",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useDecimal {
			return runTokens[decimal.Decimal](cmd, args[0], formula.Decimal{})
		}
		return runTokens[float64](cmd, args[0], formula.Float64{})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree formula",
	Short: "Print the expression tree of a formula",
	Long: `Print the expression tree of a formula after optimization, followed by the
variables it depends on. Use --optimize=false to see the tree as parsed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useDecimal {
			return runTree[decimal.Decimal](cmd, args[0], formula.Decimal{})
		}
		return runTree[float64](cmd, args[0], formula.Float64{})
	},
}

func init() {
	evalCmd.Flags().StringArrayVar(&evalGiven, "given", nil, "name=value variable definition (any number of times)")
	evalCmd.Flags().StringArrayVar(&evalBind, "bind", nil, "name=value constant bound when the formula is built (any number of times)")
	evalCmd.Flags().StringVar(&evalIn, "in", "", "input file, one formula per line (default stdin if no args given)")
	evalCmd.Flags().BoolVar(&evalEcho, "echo", false, "print parse trees")
}

func runEval[T any](cmd *cobra.Command, args []string, ops formula.Operations[T]) error {
	eng, err := formula.NewEngine(ops, cfg, logger, nil)
	if err != nil {
		return err
	}
	vars, err := definitions(eng, evalGiven)
	if err != nil {
		return err
	}
	consts, err := definitions(eng, evalBind)
	if err != nil {
		return err
	}
	srcs := args
	if len(srcs) == 0 {
		if srcs, err = readFormulas(cmd.InOrStdin(), evalIn); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	failed := false
	for _, src := range srcs {
		if evalEcho {
			t, err := eng.Tree(src, consts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%v : ", t)
		}
		ev, err := eng.Build(src, consts)
		if err != nil {
			return err
		}
		r, err := ev(vars)
		if err != nil {
			// Keep going so one bad binding doesn't hide the other results.
			fmt.Fprintln(out, err)
			level.Warn(logger).Log("msg", "evaluation failed", "formula", src, "err", err)
			failed = true
			continue
		}
		fmt.Fprintln(out, r)
	}
	if failed {
		return errors.New("some formulas could not be evaluated")
	}
	return nil
}

func runTokens[T any](cmd *cobra.Command, src string, ops formula.Operations[T]) error {
	eng, err := formula.NewEngine(ops, cfg, logger, nil)
	if err != nil {
		return err
	}
	toks, err := formula.Tokenize(src, ops, eng.Locale())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range toks {
		fmt.Fprintf(out, "%-4d %-22s %s\n", t.Pos, t.Kind, t.Text)
	}
	return nil
}

func runTree[T any](cmd *cobra.Command, src string, ops formula.Operations[T]) error {
	eng, err := formula.NewEngine(ops, cfg, logger, nil)
	if err != nil {
		return err
	}
	t, err := eng.Tree(src, nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, t)
	fmt.Fprintf(out, "type: %v\n", t.Type())
	if vars := t.Vars(); len(vars) > 0 {
		fmt.Fprintf(out, "variables: %s\n", strings.Join(vars, ", "))
	}
	return nil
}

// definitions evaluates name=value pairs.
func definitions[T any](eng *formula.Engine[T], defs []string) (map[string]T, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	m := make(map[string]T, len(defs))
	for _, d := range defs {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			return nil, errors.Errorf(`definitions must be "name=value", not %q`, d)
		}
		name = strings.TrimSpace(name)
		r, err := eng.Calculate(strings.TrimSpace(value), m)
		if err != nil {
			return nil, errors.Wrapf(err, "setting %s", name)
		}
		m[name] = r
	}
	return m, nil
}

// readFormulas reads non-empty lines from the named file, or from stdin if
// name is empty or "-".
func readFormulas(stdin io.Reader, name string) ([]string, error) {
	r := stdin
	if name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var srcs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			srcs = append(srcs, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading formulas")
	}
	return srcs, nil
}
