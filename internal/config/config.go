// Package config centralizes diff-run configuration. It follows a
// "clean" configuration pattern where all tunables live outside the
// code and are sourced from command-line flags with environment-variable
// fallbacks (12-factor friendly). Flags are defined first so that
// `-help` shows all available knobs and their defaults.
//
// Typical usage:
//
//	cfg := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg := config.LoadFromArgs(fs, getenv, []string{"-mode=keyed", "-key=id"})
package config

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"csvdiff/internal/diffcore"
)

// Mode selects the matching strategy (§4.6-4.8).
type Mode string

const (
	ModeKeyed      Mode = "keyed"
	ModePositional Mode = "positional"
)

// HeaderMode selects how the two headers must relate (§4.2).
type HeaderMode string

const (
	HeaderModeStrict HeaderMode = "strict"
	HeaderModeSorted HeaderMode = "sorted"
)

// Config holds every tunable of one diff run, derived from flags and
// environment variables. All fields are plain values so the struct can
// be safely copied and shared across goroutines after Validate succeeds.
type Config struct {
	// IO controls input file locations.
	PathA string
	PathB string

	// Matching strategy.
	Mode           Mode
	KeyColumns     []string
	HeaderMode     HeaderMode
	EmitUnchanged  bool
	IgnoreRowOrder bool

	// Partitioning & spill.
	PartitionCount int
	SpillBackend   string // tempdir | indexeddb | memory | sql
	SpillDSN       string // consulted only by spill_backend=sql
	SpillDir       string // overrides the OS temp dir for spill_backend=tempdir

	// Progress & concurrency.
	EmitProgress        bool
	ProgressInterval    time.Duration
	MaxPartitionWorkers int

	// BatchSize is the Partitioner's Spill Backend flush cadence, in
	// records, and also its partitioning-progress cadence. Cancellation
	// is polled before every row, not only at batch boundaries.
	BatchSize int

	// Metrics backend selection; empty disables metrics (nop backend).
	MetricsBackend string // "" | prometheus | datadog
	MetricsAddr    string // Pushgateway URL (prometheus) or DogStatsD addr (datadog)
	MetricsJobName string // Pushgateway "job" grouping key
}

// Validate enforces the Config enumeration's cross-field rules (§6):
// key_columns required iff mode=keyed, and ignore_row_order valid only
// with positional mode. An unregistered spill_backend is caught later,
// when the engine calls spill.Open — Validate deliberately doesn't
// import internal/spill to check it up front, keeping config a leaf
// package with no dependency on the component it configures.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeKeyed:
		if len(c.KeyColumns) == 0 {
			return diffcore.New(diffcore.CodeMissingKeyColumn, "At least one key column is required when mode=keyed")
		}
		if c.IgnoreRowOrder {
			return diffcore.New(diffcore.CodeInvalidOptionCombo, "ignore_row_order is only valid with mode=positional")
		}
	case ModePositional:
		// no key_columns requirement
	default:
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "Unsupported mode: %s", c.Mode)
	}
	switch c.HeaderMode {
	case HeaderModeStrict, HeaderModeSorted:
	default:
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "Unsupported header_mode: %s", c.HeaderMode)
	}
	if c.PartitionCount <= 0 {
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "partition_count must be >= 1")
	}
	switch c.MetricsBackend {
	case "", "prometheus", "datadog":
	default:
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "Unsupported metrics_backend: %s", c.MetricsBackend)
	}
	if c.MetricsBackend != "" && c.MetricsAddr == "" {
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "metrics_addr is required when metrics_backend is set")
	}
	return nil
}

// LoadFromArgs builds a Config by defining flags on fs, wiring each flag
// to an environment-variable fallback via getenv, and then parsing args.
// This is the most testable entry point: callers supply a private
// FlagSet, a getenv func (often backed by a map), and a synthetic arg
// slice.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
//
// The returned Config is fully populated but not yet validated; callers
// must call Validate before using it.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) *Config {
	cfg := &Config{}

	envOrDefaultFn := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefaultFn := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOrDefaultFn := func(k string, d bool) bool {
		if v := strings.ToLower(getenv(k)); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}
	durationEnvOrDefaultFn := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				return dur
			}
		}
		return d
	}

	var keyColumnsCSV string
	var mode, headerMode string

	fs.StringVar(&cfg.PathA, "a", getenv("CSVDIFF_A"), "Path to side-A CSV")
	fs.StringVar(&cfg.PathB, "b", getenv("CSVDIFF_B"), "Path to side-B CSV")

	fs.StringVar(&mode, "mode", envOrDefaultFn("CSVDIFF_MODE", string(ModePositional)), "Matching strategy: keyed or positional")
	fs.StringVar(&keyColumnsCSV, "key", envOrDefaultFn("CSVDIFF_KEY", ""), "Comma-separated key column names (mode=keyed)")
	fs.StringVar(&headerMode, "header-mode", envOrDefaultFn("CSVDIFF_HEADER_MODE", string(HeaderModeStrict)), "Header reconciliation: strict or sorted")
	fs.BoolVar(&cfg.EmitUnchanged, "emit-unchanged", boolEnvOrDefaultFn("CSVDIFF_EMIT_UNCHANGED", false), "Emit unchanged events")
	fs.BoolVar(&cfg.IgnoreRowOrder, "ignore-row-order", boolEnvOrDefaultFn("CSVDIFF_IGNORE_ROW_ORDER", false), "Use the multiset matcher (mode=positional only)")

	fs.IntVar(&cfg.PartitionCount, "partitions", intEnvOrDefaultFn("CSVDIFF_PARTITIONS", 64), "Partition count; 1 disables external partitioning")
	fs.StringVar(&cfg.SpillBackend, "spill-backend", envOrDefaultFn("CSVDIFF_SPILL_BACKEND", defaultSpillBackend()), "Spill backend: tempdir, memory, sql, or indexeddb")
	fs.StringVar(&cfg.SpillDSN, "spill-dsn", getenv("CSVDIFF_SPILL_DSN"), "DSN for spill-backend=sql")
	fs.StringVar(&cfg.SpillDir, "spill-dir", getenv("CSVDIFF_SPILL_DIR"), "Override temp directory for spill-backend=tempdir")

	fs.BoolVar(&cfg.EmitProgress, "emit-progress", boolEnvOrDefaultFn("CSVDIFF_EMIT_PROGRESS", false), "Emit progress events")
	fs.DurationVar(&cfg.ProgressInterval, "progress-interval", durationEnvOrDefaultFn("CSVDIFF_PROGRESS_INTERVAL", 125*time.Millisecond), "Minimum spacing between progress events")
	fs.IntVar(&cfg.MaxPartitionWorkers, "max-partition-workers", intEnvOrDefaultFn("CSVDIFF_MAX_PARTITION_WORKERS", runtime.GOMAXPROCS(0)), "Pass-2 partition concurrency")
	fs.IntVar(&cfg.BatchSize, "batch-size", intEnvOrDefaultFn("CSVDIFF_BATCH_SIZE", 5000), "Records per Spill Backend flush")

	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOrDefaultFn("CSVDIFF_METRICS_BACKEND", ""), "Metrics backend: prometheus, datadog, or empty to disable")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("CSVDIFF_METRICS_ADDR"), "Pushgateway URL (prometheus) or DogStatsD addr (datadog)")
	fs.StringVar(&cfg.MetricsJobName, "metrics-job", envOrDefaultFn("CSVDIFF_METRICS_JOB", "csvdiff"), "Pushgateway job name (prometheus only)")

	if args == nil {
		args = []string{}
	}
	_ = fs.Parse(args)

	cfg.Mode = Mode(mode)
	cfg.HeaderMode = HeaderMode(headerMode)
	if keyColumnsCSV != "" {
		cfg.KeyColumns = splitCSV(keyColumnsCSV)
	}
	return cfg
}

// LoadFrom is a compatibility wrapper around LoadFromArgs for call-sites
// that don't need to pass args explicitly.
func LoadFrom(fs *flag.FlagSet, getenv func(string) string) *Config {
	return LoadFromArgs(fs, getenv, nil)
}

// Load is the production entry point. It wires the loader to the
// process flag set, reads environment variables via os.Getenv, and
// parses os.Args[1:] as the CLI arguments.
func Load() *Config {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// defaultSpillBackend picks memory under js/wasm (no writable temp
// filesystem) and tempdir everywhere else — the "platform-appropriate
// default" the Config enumeration calls for.
func defaultSpillBackend() string {
	if runtime.GOOS == "js" {
		return "memory"
	}
	return "tempdir"
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
