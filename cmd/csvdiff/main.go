// Command csvdiff runs one diff between two CSV files and writes the
// resulting event stream as JSONL to stdout (or a -out file), mirroring
// the wire contract's error envelope on stderr for any failure.
//
// QUICK START (keyed diff by id column):
//
//	csvdiff -a old.csv -b new.csv -mode=keyed -key=id
//
// QUICK START (positional diff, ignoring row order):
//
//	csvdiff -a old.csv -b new.csv -mode=positional -ignore-row-order
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"

	"csvdiff/internal/config"
	"csvdiff/internal/diffcore"
	"csvdiff/internal/engine"
	"csvdiff/internal/metrics"
	"csvdiff/internal/metrics/datadog"
	"csvdiff/internal/metrics/prompush"
	"csvdiff/internal/sink"
)

func main() {
	// Registered before config.Load(), which parses os.Args itself via
	// its own flag.FlagSet plumbing — flags not yet defined at that
	// point would abort the process with "flag provided but not
	// defined" under flag.CommandLine's default ExitOnError handling.
	outPath := flag.String("out", "", "Write JSONL events here instead of stdout")
	quiet := flag.Bool("quiet", false, "Suppress progress logging on stderr")

	cfg := config.Load()

	if err := setupMetrics(cfg); err != nil {
		log.Printf("metrics: %v; continuing without metrics", err)
	} else if cfg.MetricsBackend != "" {
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics: flush error: %v", err)
			}
		}()
	}

	if err := run(cfg, *outPath, *quiet); err != nil {
		writeErrorEnvelope(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, outPath string, quiet bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.PathA == "" || cfg.PathB == "" {
		return diffcore.New(diffcore.CodeInvalidOptionCombo, "Both -a and -b CSV paths are required")
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return diffcore.Wrap(diffcore.CodeStorageError, err, "creating %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logSink := &loggingSink{EventSink: sink.NewWriter(out), quiet: quiet}
	result, err := engine.DiffPaths(ctx, cfg.PathA, cfg.PathB, cfg, logSink)
	if err != nil {
		return err
	}

	if !quiet {
		log.Printf("done: compared=%s added=%s removed=%s changed=%s unchanged=%s",
			humanize.Comma(int64(result.RowsTotalCompared)),
			humanize.Comma(int64(result.RowsAdded)),
			humanize.Comma(int64(result.RowsRemoved)),
			humanize.Comma(int64(result.RowsChanged)),
			humanize.Comma(int64(result.RowsUnchanged)))
	}
	return nil
}

// setupMetrics installs the configured metrics backend (§2 expansion),
// mirroring the teacher's flag/env-selected backend switch in
// etl/cmd/etl/main.go. An empty MetricsBackend leaves the package's
// default no-op backend in place.
func setupMetrics(cfg *config.Config) error {
	switch cfg.MetricsBackend {
	case "":
		return nil
	case "prometheus":
		b, err := prompush.NewBackend(cfg.MetricsJobName, cfg.MetricsAddr)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.MetricsAddr, Namespace: "csvdiff."})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
	}
	return nil
}

// loggingSink wraps an EventSink and logs Progress events to stderr as
// they pass through, so -quiet is the only knob needed to silence them
// without touching the JSONL stream itself.
type loggingSink struct {
	sink.EventSink
	quiet bool
}

func (s *loggingSink) Emit(ev diffcore.Event) error {
	if !s.quiet {
		if pe, ok := ev.(*diffcore.ProgressEvent); ok {
			log.Printf("%s: %s / %s", pe.Phase, humanize.Comma(int64(pe.Done)), humanize.Comma(int64(pe.Total)))
		}
	}
	return s.EventSink.Emit(ev)
}

// errorEnvelope mirrors the wire contract's {code, message} shape so a
// CLI failure is machine-parseable the same way an engine-level
// DiffError is.
type errorEnvelope struct {
	Code    diffcore.Code `json:"code"`
	Message string        `json:"message"`
}

func writeErrorEnvelope(w io.Writer, err error) {
	de, ok := diffcore.AsDiffError(err)
	if !ok {
		de = diffcore.Wrap(diffcore.CodeCompareFailed, err, "%v", err)
	}
	enc := json.NewEncoder(w)
	if encErr := enc.Encode(errorEnvelope{Code: de.Code, Message: de.Message}); encErr != nil {
		fmt.Fprintf(w, "%s: %s\n", de.Code, de.Message)
	}
}
