package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specforge/specforge/internal/run"
)

func captureConfig(t *testing.T) *struct{ cfg *GenerateConfig } {
	t.Helper()
	captured := &struct{ cfg *GenerateConfig }{}
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured.cfg = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return captured
}

func execRoot(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured := captureConfig(t)

	err := execRoot(t,
		"--verbose",
		"generate",
		"--input", "spec.yaml",
		"--framework", "pytest",
		"--out", "./build",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--seed", "42",
		"--concurrency", "8",
		"--mock",
		"--dry-run",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := captured.cfg
	if cfg == nil {
		t.Fatal("expected config to be captured")
	}
	if cfg.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", cfg.Input)
	}
	if cfg.Framework != "pytest" {
		t.Errorf("framework mismatch: got %q", cfg.Framework)
	}
	if cfg.Out != "./build" {
		t.Errorf("out mismatch: got %q", cfg.Out)
	}
	if len(cfg.IncludeTags) != 2 || cfg.IncludeTags[0] != "foo" || cfg.IncludeTags[1] != "bar" {
		t.Errorf("include tags mismatch: %v", cfg.IncludeTags)
	}
	if len(cfg.ExcludeTags) != 1 || cfg.ExcludeTags[0] != "baz" {
		t.Errorf("exclude tags mismatch: %v", cfg.ExcludeTags)
	}
	if cfg.Seed != 42 {
		t.Errorf("seed mismatch: %d", cfg.Seed)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("concurrency mismatch: %d", cfg.Concurrency)
	}
	if !cfg.Mock || !cfg.DryRun || !cfg.Force || !cfg.Verbose {
		t.Errorf("boolean flags lost: %+v", cfg)
	}
}

func TestGenerateDefaultsApplied(t *testing.T) {
	captured := captureConfig(t)

	if err := execRoot(t, "generate", "--input", "spec.yaml"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := captured.cfg
	if cfg.Framework != "jest" {
		t.Errorf("default framework should be jest, got %q", cfg.Framework)
	}
	if cfg.RefDepth <= 0 {
		t.Errorf("ref depth default missing: %d", cfg.RefDepth)
	}
	if cfg.DryRun || cfg.Force || cfg.Mock {
		t.Errorf("boolean flags should default off: %+v", cfg)
	}
}

func TestGenerateRequiresInput(t *testing.T) {
	captureConfig(t)

	err := execRoot(t, "generate")
	if err == nil {
		t.Fatal("expected usage error without --input")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestGenerateRejectsUnknownFramework(t *testing.T) {
	captureConfig(t)

	err := execRoot(t, "generate", "--input", "spec.yaml", "--framework", "mocha")
	if err == nil {
		t.Fatal("expected usage error for unknown framework")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
	if !strings.Contains(err.Error(), "jest") {
		t.Errorf("error should list allowed frameworks: %v", err)
	}
}

func TestGenerateRejectsOverlappingTagFilters(t *testing.T) {
	captureConfig(t)

	err := execRoot(t, "generate", "--input", "spec.yaml",
		"--include-tags", "pets", "--exclude-tags", "pets")
	if err == nil {
		t.Fatal("expected usage error for overlapping tag filters")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestGenerateUnknownFlagIsUsageError(t *testing.T) {
	captureConfig(t)

	err := execRoot(t, "generate", "--input", "spec.yaml", "--no-such-flag")
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestGenerateConfigFile(t *testing.T) {
	captured := captureConfig(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"input: from-config.yaml",
		"framework: pytest",
		"out: ./cfg-out",
		"include-tags:",
		"  - pets",
		"seed: 7",
		"mock: true",
	}, "\n")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execRoot(t, "--config", cfgPath, "generate"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := captured.cfg
	if cfg.Input != "from-config.yaml" || cfg.Framework != "pytest" || cfg.Out != "./cfg-out" {
		t.Errorf("config file values not applied: %+v", cfg)
	}
	if len(cfg.IncludeTags) != 1 || cfg.IncludeTags[0] != "pets" {
		t.Errorf("config include tags lost: %v", cfg.IncludeTags)
	}
	if cfg.Seed != 7 || !cfg.Mock {
		t.Errorf("config scalars lost: %+v", cfg)
	}
}

func TestGenerateFlagsOverrideConfigFile(t *testing.T) {
	captured := captureConfig(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("input: config.yaml\nframework: pytest\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execRoot(t, "--config", cfgPath, "generate", "--framework", "jest"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured.cfg.Framework != "jest" {
		t.Errorf("flag should override config file, got %q", captured.cfg.Framework)
	}
	if captured.cfg.Input != "config.yaml" {
		t.Errorf("untouched config values should survive, got %q", captured.cfg.Input)
	}
}

func TestGenerateConfigFileUnknownField(t *testing.T) {
	captureConfig(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("input: x.yaml\nbogus: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := execRoot(t, "--config", cfgPath, "generate")
	if err == nil {
		t.Fatal("expected error for unknown config field")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}

func TestPrintRunReportIncludesRunID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	result := &run.Result{
		RunID: "8e2f0a34-1111-2222-3333-444455556666",
		Summary: run.Summary{
			TotalScenarios:     12,
			OperationsCovered:  3,
			TotalOperations:    3,
			CoveragePercentage: 100,
			Success:            true,
		},
	}

	printRunReport(&stdout, &stderr, "jest-tests", &GenerateConfig{}, result)

	if !strings.Contains(stdout.String(), "Run 8e2f0a34-1111-2222-3333-444455556666") {
		t.Errorf("report should name the run id, got:\n%s", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("no diagnostics expected, got:\n%s", stderr.String())
	}
}
