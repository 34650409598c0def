// Package run orchestrates planning, synthesis, and emission across all
// operations of a document. Each operation is isolated: a failure in any
// stage degrades to a diagnostic and a placeholder test instead of
// aborting the run.
package run

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/specforge/specforge/internal/diag"
	"github.com/specforge/specforge/internal/emit"
	"github.com/specforge/specforge/internal/plan"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/internal/synth"
)

// Defaults for the concurrency and batching knobs.
const (
	DefaultConcurrency = 4
	DefaultBatchSize   = 64
)

// Options configures a generation run.
type Options struct {
	Seed        int64
	Concurrency int // max operations planned in parallel
	BatchSize   int // operations scheduled per batch to cap peak memory
	Plan        plan.Options
	Emit        emit.Options
}

// Summary is the machine-readable outcome of a run.
type Summary struct {
	TotalScenarios     int     `json:"totalScenarios"`
	OperationsCovered  int     `json:"operationsCovered"`
	TotalOperations    int     `json:"totalOperations"`
	CoveragePercentage float64 `json:"coveragePercentage"`
	Success            bool    `json:"success"`
}

// Result bundles everything a reporting layer needs.
type Result struct {
	RunID       string
	Artifacts   []emit.Artifact
	Diagnostics []diag.Diagnostic
	Summary     Summary
}

// Runner drives per-operation generation.
type Runner struct {
	opts    Options
	planner *plan.Planner
	emitter *emit.Emitter
}

// New validates options and builds a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	emitter, err := emit.New(opts.Emit)
	if err != nil {
		return nil, err
	}
	return &Runner{
		opts:    opts,
		planner: plan.New(opts.Plan),
		emitter: emitter,
	}, nil
}

// RunAll plans every operation (bounded parallel, deterministic via
// per-operation sub-seeds), then emits the grouped files. A run returns
// an error only for configuration or cancellation problems; degraded
// coverage is reported as success with diagnostics.
func (r *Runner) RunAll(ctx context.Context, ops []spec.OperationDescriptor) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}

	bundles := make([]emit.Bundle, len(ops))
	diagsPerOp := make([][]diag.Diagnostic, len(ops))

	for start := 0; start < len(ops); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(ops) {
			end = len(ops)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.opts.Concurrency)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				bundles[i], diagsPerOp[i] = r.planOne(ops[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, d := range diagsPerOp {
		result.Diagnostics = append(result.Diagnostics, d...)
	}

	artifacts, emitDiags, err := r.emitter.Emit(bundles)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Diagnostics = append(result.Diagnostics, emitDiags...)

	covered := 0
	total := 0
	for _, b := range bundles {
		live := 0
		for _, sc := range b.Scenarios {
			total++
			if !sc.Disabled {
				live++
			}
		}
		if live > 0 {
			covered++
		}
	}
	result.Summary = Summary{
		TotalScenarios:    total,
		OperationsCovered: covered,
		TotalOperations:   len(ops),
		Success:           true,
	}
	if len(ops) > 0 {
		result.Summary.CoveragePercentage = float64(covered) / float64(len(ops)) * 100
	}
	return result, nil
}

// planOne runs planning and synthesis for a single operation, turning
// any panic into a diagnostic plus a disabled placeholder so the
// operation still yields an artifact.
func (r *Runner) planOne(op spec.OperationDescriptor) (bundle emit.Bundle, diags []diag.Diagnostic) {
	bundle.Op = op
	defer func() {
		if rec := recover(); rec != nil {
			diags = append(diags, diag.Errorf(op.Ref(),
				"inspect the operation's schemas for unsupported constructs and re-run",
				"scenario generation failed: %v", rec))
			bundle.Scenarios = []plan.Scenario{placeholderScenario(op, rec)}
		}
	}()

	rng := synth.NewRNG(synth.SubSeed(r.opts.Seed, op.ID))
	bundle.Scenarios = r.planner.Plan(op, rng)
	if len(bundle.Scenarios) == 0 {
		diags = append(diags, diag.Warnf(op.Ref(),
			"declare responses or enable more scenario families",
			"no scenarios could be planned"))
		bundle.Scenarios = []plan.Scenario{placeholderScenario(op, "no scenarios planned")}
	}
	return bundle, diags
}

// placeholderScenario documents skipped coverage as a disabled test so
// the gap is visible in the generated suite.
func placeholderScenario(op spec.OperationDescriptor, cause any) plan.Scenario {
	return plan.Scenario{
		ID:       "placeholder",
		Name:     fmt.Sprintf("%s %s (generation skipped)", op.Method, op.Path),
		Type:     plan.TypeIntegration,
		Priority: 5,
		Disabled: true,
		Comment:  fmt.Sprintf("TODO: coverage for this operation was skipped: %v", cause),
	}
}
