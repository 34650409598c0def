package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/specforge/specforge/internal/diag"
	"github.com/specforge/specforge/internal/plan"
	"github.com/specforge/specforge/internal/spec"
)

// ArtifactKind classifies an emitted file.
type ArtifactKind string

const (
	KindTest   ArtifactKind = "test"
	KindType   ArtifactKind = "type"
	KindMock   ArtifactKind = "mock"
	KindHelper ArtifactKind = "helper"
)

// Artifact records one emitted (or planned, under dry-run) file.
type Artifact struct {
	Path          string
	Kind          ArtifactKind
	SizeBytes     int
	ScenarioCount int
}

// Bundle pairs an operation with its planned scenarios.
type Bundle struct {
	Op        spec.OperationDescriptor
	Scenarios []plan.Scenario
}

// Options configures emission.
type Options struct {
	OutDir    string
	Framework string
	DryRun    bool
	Force     bool
	// MockMode stubs the HTTP layer in generated tests instead of
	// calling a live server.
	MockMode   bool
	BaseURLEnv string
}

// Emitter renders scenario bundles into test files through one Template.
type Emitter struct {
	tmpl Template
	opts Options
}

// New builds an Emitter for the configured framework.
func New(opts Options) (*Emitter, error) {
	if strings.TrimSpace(opts.OutDir) == "" && !opts.DryRun {
		return nil, fmt.Errorf("emit: OutDir is required")
	}
	tmpl, err := NewTemplate(opts.Framework)
	if err != nil {
		return nil, err
	}
	return &Emitter{tmpl: tmpl, opts: opts}, nil
}

// Framework returns the active template's identifier.
func (e *Emitter) Framework() string { return e.tmpl.Framework() }

// Emit groups scenarios into files by primary tag (falling back to the
// operation path), renders each file, and writes it atomically. A
// failure on one file becomes a diagnostic; the remaining files still
// land. Writes are serialized; file content order is deterministic.
func (e *Emitter) Emit(bundles []Bundle) ([]Artifact, []diag.Diagnostic, error) {
	var diags []diag.Diagnostic

	groups := make(map[string][]Bundle)
	for _, b := range bundles {
		groups[groupOf(b.Op)] = append(groups[groupOf(b.Op)], b)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var artifacts []Artifact
	for _, name := range names {
		group := groups[name]
		sort.Slice(group, func(i, j int) bool { return group[i].Op.ID < group[j].Op.ID })

		file, count := e.buildFile(name, group)
		content := e.tmpl.Render(file)

		artifact := Artifact{
			Path:          file.Path,
			Kind:          KindTest,
			SizeBytes:     len(content),
			ScenarioCount: count,
		}
		if !e.opts.DryRun {
			if err := writeFileAtomic(e.opts.OutDir, file.Path, content, e.opts.Force); err != nil {
				diags = append(diags, diag.Errorf("", "check output directory permissions and --force",
					"emit %s: %v", file.Path, err))
				continue
			}
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, diags, nil
}

// groupOf picks a bundle's file group: the operation's primary tag, or
// its sanitized path when untagged.
func groupOf(op spec.OperationDescriptor) string {
	if len(op.Tags) > 0 {
		return op.Tags[0]
	}
	return sanitizeFileName(op.Path, "-")
}

func (e *Emitter) buildFile(group string, bundles []Bundle) (*File, int) {
	file := &File{Path: e.tmpl.FilePath(group)}

	authEnv := ""
	for _, b := range bundles {
		if len(b.Op.Security) > 0 {
			authEnv = plan.CredentialEnvVar
			break
		}
	}
	e.tmpl.AddSetup(file, SetupSpec{
		BaseURLEnv: e.opts.BaseURLEnv,
		AuthEnv:    authEnv,
		MockMode:   e.opts.MockMode,
	})

	total := 0
	for _, b := range bundles {
		suiteName := strings.ToUpper(string(b.Op.Method)) + " " + b.Op.Path
		suite := e.tmpl.AddTestSuite(file, suiteName)
		for _, sc := range b.Scenarios {
			e.tmpl.AddTestCase(suite, e.buildCase(b.Op, sc))
			total++
		}
	}
	e.tmpl.AddTeardown(file)
	return file, total
}

func (e *Emitter) buildCase(op spec.OperationDescriptor, sc plan.Scenario) *Case {
	c := &Case{Name: sc.Name, Disabled: sc.Disabled}
	if sc.Comment != "" {
		c.Comments = append(c.Comments, sc.Comment)
	}
	if sc.Disabled {
		// Placeholder documenting skipped coverage; no executable body.
		return c
	}

	if e.opts.MockMode {
		c.Steps = append(c.Steps, e.tmpl.GenerateMockSetup(MockConfig{
			Method:     string(sc.Method),
			Path:       sc.Path,
			PathParams: sc.Request.PathParams,
			Status:     sc.ExpectedStatus,
			Body:       sc.ExpectedResponse,
		}))
	}

	call := APICall{
		Method:      string(sc.Method),
		Path:        sc.Path,
		PathParams:  sc.Request.PathParams,
		QueryParams: sc.Request.QueryParams,
		Headers:     sc.Request.Headers,
		Body:        sc.Request.Body,
	}
	applyAuth(&call, op, sc)
	c.Steps = append(c.Steps, e.tmpl.GenerateAPICall(call))

	c.Assertions = append(c.Assertions, e.tmpl.GenerateAssertion(Assertion{
		Kind:     AssertStatusCode,
		Expected: sc.ExpectedStatus,
	}))
	if tmplValue, ok := sc.ExpectedResponse.(map[string]any); ok && len(tmplValue) > 0 {
		c.Assertions = append(c.Assertions, e.tmpl.GenerateAssertion(Assertion{
			Kind:     AssertStructural,
			Actual:   e.tmpl.ResponseBodyExpr(),
			Expected: tmplValue,
		}))
	}
	if sc.Type == plan.TypeContract && sc.ResponseSchema != nil && sc.ResponseSchema.Type != "" {
		c.Assertions = append(c.Assertions, e.tmpl.GenerateAssertion(Assertion{
			Kind:     AssertTypeCheck,
			Actual:   e.tmpl.ResponseBodyExpr(),
			Expected: sc.ResponseSchema.Type,
		}))
	}
	return c
}

// applyAuth wires credential handling: explicit auth scenarios control
// the header themselves; everything else on a secured operation carries
// the symbolic token from the environment.
func applyAuth(call *APICall, op spec.OperationDescriptor, sc plan.Scenario) {
	if sc.Auth != nil {
		switch sc.Auth.Mode {
		case plan.AuthNone:
			// header deliberately absent
		case plan.AuthInvalid:
			call.AuthHeader = sc.Auth.Header
			call.AuthValue = "Bearer invalid-token"
		case plan.AuthExpired:
			call.AuthHeader = sc.Auth.Header
			call.AuthValue = "Bearer eyJhbGciOiJub25lIn0.eyJleHAiOjB9."
		default:
			call.AuthHeader = sc.Auth.Header
			call.AuthValue = "env:" + sc.Auth.EnvVar
		}
		return
	}
	if len(op.Security) > 0 {
		call.AuthHeader = op.Security[0].Header
		call.AuthValue = "env:" + plan.CredentialEnvVar
	}
}

// writeFileAtomic writes via temp file + rename so a cancelled run never
// leaves a truncated file behind.
func writeFileAtomic(outDir, rel string, content []byte, force bool) error {
	abs, err := filepath.Abs(filepath.Join(outDir, rel))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if !force {
		if _, err := os.Stat(abs); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", rel)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := abs + ".tmp-" + time.Now().Format("20060102150405.000000000")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", rel, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}
