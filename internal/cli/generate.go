package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/specforge/specforge/internal/diag"
	"github.com/specforge/specforge/internal/emit"
	"github.com/specforge/specforge/internal/plan"
	"github.com/specforge/specforge/internal/run"
	genspec "github.com/specforge/specforge/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command
// after merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input       string
	Framework   string
	Out         string
	IncludeTags []string
	ExcludeTags []string
	Seed        int64
	Concurrency int
	RefDepth    int
	Mock        bool
	DryRun      bool
	Force       bool
	Verbose     bool
	ConfigPath  string
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Framework: "jest", RefDepth: genspec.DefaultRefDepth}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a test suite from an OpenAPI/Swagger document",
		Long: "Generate a test suite from an OpenAPI/Swagger document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  specforge generate --input spec.yaml --framework jest --out ./tests
  specforge --config config.yaml generate --framework pytest --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("framework", "", "Target test framework (jest|pytest); defaults to jest")
	flags.String("out", "", "Output directory (derived from the framework when omitted)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.Int64("seed", 0, "Seed for deterministic data synthesis")
	flags.Int("concurrency", 0, "Max operations processed in parallel")
	flags.Int("ref-depth", 0, "Max $ref resolution depth for cyclic schemas")
	flags.Bool("mock", false, "Stub the HTTP layer in generated tests")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		cfg.Verbose = true
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("framework") {
		value, err := flags.GetString("framework")
		if err != nil {
			return err
		}
		cfg.Framework = strings.TrimSpace(value)
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("seed") {
		value, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = value
	}
	if flags.Changed("concurrency") {
		value, err := flags.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = value
	}
	if flags.Changed("ref-depth") {
		value, err := flags.GetInt("ref-depth")
		if err != nil {
			return err
		}
		cfg.RefDepth = value
	}
	if flags.Changed("mock") {
		value, err := flags.GetBool("mock")
		if err != nil {
			return err
		}
		cfg.Mock = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Framework = strings.ToLower(strings.TrimSpace(c.Framework))
	c.Out = strings.TrimSpace(c.Out)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}
	if c.Framework == "" {
		c.Framework = "jest"
	}
	known := false
	for _, f := range emit.Frameworks() {
		if f == c.Framework {
			known = true
			break
		}
	}
	if !known {
		return newUsageError(fmt.Sprintf("generate: unsupported --framework %q (allowed: %s)",
			c.Framework, strings.Join(emit.Frameworks(), ", ")))
	}
	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	// 1) Load the document (file or http/https URL). Parse failures are
	// the only fatal outcome of a run.
	doc, err := genspec.Load(ctx, cfg.Input)
	if err != nil {
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}

	// 2) Normalize into operation descriptors; structural problems
	// become diagnostics carried into the run summary.
	model, ingestDiags, err := genspec.Ingest(doc,
		genspec.WithIncludeTags(cfg.IncludeTags),
		genspec.WithExcludeTags(cfg.ExcludeTags),
		genspec.WithRefDepth(cfg.RefDepth),
	)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	outDir := cfg.Out
	if outDir == "" {
		outDir = cfg.Framework + "-tests"
	}

	// 3) Generate with per-operation isolation.
	runner, err := run.New(run.Options{
		Seed:        cfg.Seed,
		Concurrency: cfg.Concurrency,
		Plan:        plan.DefaultOptions(),
		Emit: emit.Options{
			OutDir:    outDir,
			Framework: cfg.Framework,
			DryRun:    cfg.DryRun,
			Force:     cfg.Force,
			MockMode:  cfg.Mock,
		},
	})
	if err != nil {
		return err
	}
	result, err := runner.RunAll(ctx, model.Operations)
	if err != nil {
		return wrapOutputError(err, outDir)
	}
	result.Diagnostics = append(ingestDiags, result.Diagnostics...)

	printRunReport(os.Stdout, os.Stderr, outDir, cfg, result)
	return nil
}

func printRunReport(stdout, stderr io.Writer, outDir string, cfg *GenerateConfig, result *run.Result) {
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}
	verb := "Wrote"
	if cfg.DryRun {
		verb = "Planned"
	}
	fmt.Fprintf(stdout, "Run %s\n", result.RunID)
	fmt.Fprintf(stdout, "%s %d files under %s (%d scenarios, %d/%d operations, %.1f%% coverage)\n",
		verb, len(result.Artifacts), absOut,
		result.Summary.TotalScenarios,
		result.Summary.OperationsCovered, result.Summary.TotalOperations,
		result.Summary.CoveragePercentage)
	if cfg.DryRun || cfg.Verbose {
		for _, a := range result.Artifacts {
			fmt.Fprintf(stdout, "- %s (%d scenarios, %d bytes)\n", a.Path, a.ScenarioCount, a.SizeBytes)
		}
	}
	if len(result.Diagnostics) > 0 {
		counts := diag.CountBySeverity(result.Diagnostics)
		fmt.Fprintf(stderr, "Completed with %d warnings, %d errors:\n",
			counts[diag.SeverityWarning], counts[diag.SeverityError])
		for _, d := range result.Diagnostics {
			fmt.Fprintf(stderr, "- %s\n", d)
		}
	}
}

func wrapOutputError(err error, outDir string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") ||
		strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") ||
		strings.Contains(lower, "already exists") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		switch normalizeKey(key) {
		case "input":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Input = str
		case "framework":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Framework = str
		case "out":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Out = str
		case "includetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.IncludeTags = sanitizeTags(list)
		case "excludetags":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.ExcludeTags = sanitizeTags(list)
		case "seed":
			n, err := valueAsInt(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Seed = int64(n)
		case "concurrency":
			n, err := valueAsInt(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Concurrency = n
		case "refdepth":
			n, err := valueAsInt(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.RefDepth = n
		case "mock":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Mock = val
		case "dryrun":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.DryRun = val
		case "force":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Force = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
