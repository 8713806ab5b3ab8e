package config

import (
	"flag"
	"testing"
	"time"

	"csvdiff/internal/diffcore"
)

// TestLoadFromArgs_EnvDefaultsAndFlags validates the basic precedence
// model for LoadFromArgs: environment seeds defaults, explicit flags
// override env.
func TestLoadFromArgs_EnvDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	env := map[string]string{
		"CSVDIFF_MODE":       "keyed",
		"CSVDIFF_KEY":        "id,region",
		"CSVDIFF_PARTITIONS": "8",
	}
	getenv := func(k string) string { return env[k] }

	cfg := LoadFromArgs(fs, getenv, []string{"-partitions=16"})

	if cfg.Mode != ModeKeyed {
		t.Fatalf("env mode not applied: %s", cfg.Mode)
	}
	if len(cfg.KeyColumns) != 2 || cfg.KeyColumns[0] != "id" || cfg.KeyColumns[1] != "region" {
		t.Fatalf("key columns not split: %+v", cfg.KeyColumns)
	}
	if cfg.PartitionCount != 16 {
		t.Fatalf("flag override not applied: %d", cfg.PartitionCount)
	}
}

func TestLoadFromArgs_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := LoadFrom(fs, func(string) string { return "" })

	if cfg.Mode != ModePositional {
		t.Fatalf("want positional default, got %s", cfg.Mode)
	}
	if cfg.HeaderMode != HeaderModeStrict {
		t.Fatalf("want strict default, got %s", cfg.HeaderMode)
	}
	if cfg.PartitionCount != 64 {
		t.Fatalf("want 64, got %d", cfg.PartitionCount)
	}
	if cfg.ProgressInterval != 125*time.Millisecond {
		t.Fatalf("want 125ms, got %s", cfg.ProgressInterval)
	}
	if cfg.MaxPartitionWorkers <= 0 {
		t.Fatalf("MaxPartitionWorkers must have a positive default")
	}
	if cfg.SpillBackend == "" {
		t.Fatalf("SpillBackend must have a default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateKeyedRequiresKeyColumns(t *testing.T) {
	cfg := &Config{Mode: ModeKeyed, HeaderMode: HeaderModeStrict, PartitionCount: 1}
	err := cfg.Validate()
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeMissingKeyColumn {
		t.Fatalf("got %v, want missing_key_column", err)
	}
}

func TestValidateIgnoreRowOrderRejectsKeyed(t *testing.T) {
	cfg := &Config{Mode: ModeKeyed, KeyColumns: []string{"id"}, HeaderMode: HeaderModeStrict, PartitionCount: 1, IgnoreRowOrder: true}
	err := cfg.Validate()
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeInvalidOptionCombo {
		t.Fatalf("got %v, want invalid_option_combination", err)
	}
}

func TestValidateRejectsUnknownHeaderMode(t *testing.T) {
	cfg := &Config{Mode: ModePositional, HeaderMode: "loose", PartitionCount: 1}
	err := cfg.Validate()
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeInvalidOptionCombo {
		t.Fatalf("got %v, want invalid_option_combination", err)
	}
}

func TestValidateRejectsUnknownMetricsBackend(t *testing.T) {
	cfg := &Config{Mode: ModePositional, HeaderMode: HeaderModeStrict, PartitionCount: 1, MetricsBackend: "graphite"}
	err := cfg.Validate()
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeInvalidOptionCombo {
		t.Fatalf("got %v, want invalid_option_combination", err)
	}
}

func TestValidateRequiresMetricsAddrWhenBackendSet(t *testing.T) {
	cfg := &Config{Mode: ModePositional, HeaderMode: HeaderModeStrict, PartitionCount: 1, MetricsBackend: "prometheus"}
	err := cfg.Validate()
	de, ok := diffcore.AsDiffError(err)
	if !ok || de.Code != diffcore.CodeInvalidOptionCombo {
		t.Fatalf("got %v, want invalid_option_combination", err)
	}

	cfg.MetricsAddr = "http://localhost:9091"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error once metrics_addr is set: %v", err)
	}
}
