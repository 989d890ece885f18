package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/formula"
)

// Root command flags
var (
	cfg        = formula.DefaultEngineConfig()
	engineArgs *flag.FlagSet
	configFile string
	useDecimal bool
	logLevel   string

	logger log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "formula",
	Short: "Evaluate arithmetic formulas",
	Long: `Evaluate arithmetic formulas with variables, comparisons and functions.

Examples:
  formula eval '2+8*3'
  formula eval --given x=3 'x^2 - 1'
  formula eval --decimal '0.1 + 0.2'
  formula tree '-(2+43)*y'
  formula tokens 'max(1, 2.5e3)'`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	engineArgs = flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg.RegisterFlags(engineArgs)
	pf := rootCmd.PersistentFlags()
	pf.AddGoFlagSet(engineArgs)
	pf.StringVar(&configFile, "config", "", "YAML or TOML file with engine settings. Flags given explicitly override it.")
	pf.BoolVar(&useDecimal, "decimal", false, "Calculate with fixed-point decimals instead of float64.")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error.")

	rootCmd.AddCommand(evalCmd, tokensCmd, treeCmd)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func setup(cmd *cobra.Command, args []string) error {
	logger = newLogger(logLevel)
	if configFile != "" {
		if err := loadConfig(cmd.Flags(), configFile); err != nil {
			return err
		}
		level.Debug(logger).Log("msg", "loaded config", "file", configFile)
	}
	return cfg.Validate()
}

func newLogger(lvl string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowWarn()
	}
	return level.NewFilter(log.With(l, "ts", log.DefaultTimestampUTC), opt)
}

// loadConfig reads engine settings from a file into cfg. Flags set on the
// command line keep their values.
func loadConfig(flags *pflag.FlagSet, name string) error {
	set := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		if engineArgs.Lookup(f.Name) != nil {
			set[f.Name] = f.Value.String()
		}
	})
	b, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return errors.Wrapf(err, "parsing %s", name)
		}
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", name)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return errors.Errorf("parsing %s: unknown keys %v", name, undec)
		}
	default:
		return errors.Errorf("config file %s: unknown extension %q, want .yaml, .yml or .toml", name, ext)
	}
	for k, v := range set {
		if err := flags.Set(k, v); err != nil {
			return errors.Wrapf(err, "reapplying --%s", k)
		}
	}
	return nil
}
