// Package config holds the junction enumerator's run parameters, bound
// from CLI flags in the teacher's flag.NewFlagSet style (see the
// teacher's importer.RunCommand), with optional YAML-file defaults that
// flags override.
package config

import (
	"flag"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/arvn-bio/junctions/internal/errs"
)

// Config is the full parameter set for one run, matching the CLI surface
// in spec.md §6.
type Config struct {
	FilterBits   uint   `yaml:"filterBits"`
	Threads      int    `yaml:"threads"`
	K            int    `yaml:"k"`
	OutPath      string `yaml:"outPath"`
	TmpDir       string `yaml:"tmpDir"`
	Rounds       int    `yaml:"rounds"`
	MetricsAddr  string `yaml:"metricsAddr"`
	DumpHistPath string `yaml:"dumpHistogram"`
	Verbose      bool   `yaml:"verbose"`
	Inputs       []string
}

// Defaults mirrors the spec's CLI defaults (§6): single round, current
// directory as the temp dir.
func Defaults() Config {
	return Config{
		Rounds: 1,
		TmpDir: ".",
	}
}

// Parse binds flags onto a FlagSet in the teacher's per-command style
// (flags.StringVar/IntVar, `flag.ErrHelp` short-circuits to exit code 0,
// any other parse error to exit code 2) and layers an optional -config
// YAML file's defaults underneath them.
func Parse(args []string, stderr io.Writer) (Config, int) {
	cfg := Defaults()

	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "optional YAML `file` of defaults, overridden by any flag also given")
	flags.UintVar(&cfg.FilterBits, "f", 20, "log2 of the Cuckoo/Bloom filter size")
	flags.IntVar(&cfg.Threads, "t", 4, "worker thread count")
	flags.IntVar(&cfg.K, "k", 25, "k-mer length")
	flags.StringVar(&cfg.OutPath, "o", "", "output junction stream `path`")
	flags.StringVar(&cfg.TmpDir, "tmpdir", ".", "temp `directory`")
	flags.IntVar(&cfg.Rounds, "rounds", 1, "number of rounds")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve prometheus metrics at http://`[addr]:port`")
	flags.StringVar(&cfg.DumpHistPath, "dump-histogram", "", "write the round planner's bin histogram to `path.npy`")
	flags.BoolVar(&cfg.Verbose, "v", false, "verbose logging")

	if err := flags.Parse(args); err == flag.ErrHelp {
		return cfg, 0
	} else if err != nil {
		return cfg, 2
	}

	if *configPath != "" {
		fromYAML, err := load(*configPath)
		if err != nil {
			return cfg, 2
		}
		cfg = mergeDefaults(fromYAML, cfg, flags)
	}

	cfg.Inputs = flags.Args()
	if len(cfg.Inputs) == 0 {
		return cfg, 2
	}
	if err := cfg.Validate(); err != nil {
		return cfg, 2
	}
	return cfg, -1
}

// load reads a YAML config file of defaults.
func load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errs.Wrap(errs.IoError, err)
	}
	defer f.Close()
	cfg := Defaults()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errs.Wrap(errs.ParseError, err)
	}
	return cfg, nil
}

// mergeDefaults applies fromYAML's values as defaults, but only for flags
// the caller did not explicitly set on the command line (flags.Visit
// enumerates the set ones).
func mergeDefaults(fromYAML, explicit Config, flags *flag.FlagSet) Config {
	set := map[string]bool{}
	flags.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	out := explicit
	if !set["f"] && fromYAML.FilterBits != 0 {
		out.FilterBits = fromYAML.FilterBits
	}
	if !set["t"] && fromYAML.Threads != 0 {
		out.Threads = fromYAML.Threads
	}
	if !set["k"] && fromYAML.K != 0 {
		out.K = fromYAML.K
	}
	if !set["o"] && fromYAML.OutPath != "" {
		out.OutPath = fromYAML.OutPath
	}
	if !set["tmpdir"] && fromYAML.TmpDir != "" {
		out.TmpDir = fromYAML.TmpDir
	}
	if !set["rounds"] && fromYAML.Rounds != 0 {
		out.Rounds = fromYAML.Rounds
	}
	if !set["metrics-addr"] && fromYAML.MetricsAddr != "" {
		out.MetricsAddr = fromYAML.MetricsAddr
	}
	if !set["dump-histogram"] && fromYAML.DumpHistPath != "" {
		out.DumpHistPath = fromYAML.DumpHistPath
	}
	if !set["v"] && fromYAML.Verbose {
		out.Verbose = true
	}
	return out
}

// Validate checks the ConfigError conditions in spec.md §7: invalid k,
// threads, or filter size.
func (c Config) Validate() error {
	if c.K <= 0 || c.K > 31 {
		return errs.New(errs.ConfigError, "invalid k=%d (must be 1..31, so the k+1-mer edge key fits a uint64)", c.K)
	}
	if c.Threads <= 0 {
		return errs.New(errs.ConfigError, "invalid threads=%d", c.Threads)
	}
	if c.FilterBits == 0 || c.FilterBits > 48 {
		return errs.New(errs.ConfigError, "invalid filter bits=%d", c.FilterBits)
	}
	if c.Rounds <= 0 {
		return errs.New(errs.ConfigError, "invalid rounds=%d", c.Rounds)
	}
	if c.OutPath == "" {
		return errs.New(errs.ConfigError, "output path (-o) not specified")
	}
	return nil
}
