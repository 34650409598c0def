package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/internal/synth"
)

// Fixed catalogs. Small on purpose: each entry earns its place by
// representing a distinct failure class, not by volume.

var injectionPayloads = []struct {
	kind    string
	payload string
}{
	{"sql-injection", "' OR '1'='1"},
	{"sql-injection-stacked", "1; DROP TABLE users--"},
	{"xss", "<script>alert(1)</script>"},
	{"path-traversal", "../../../etc/passwd"},
	{"null-byte", "value\x00injected"},
}

var unicodeSamples = []struct {
	kind   string
	sample string
}{
	{"multibyte", "日本語テキスト"},
	{"emoji", "🎉🚀✨"},
	{"rtl", "مرحبا بالعالم"},
	{"combining", "é́́"},
	{"control-adjacent", "line1 line2"},
}

// stateTransitions is the candidate table for heuristic business-logic
// scenarios: a path segment on the left suggests the transition test on
// the right.
var stateTransitions = []struct {
	segment string
	test    string
}{
	{"activate", "activating an already-active resource"},
	{"deactivate", "deactivating an already-inactive resource"},
	{"cancel", "cancelling an already-cancelled resource"},
	{"approve", "approving an already-approved request"},
	{"reject", "rejecting an already-rejected request"},
	{"complete", "completing an already-completed task"},
	{"publish", "publishing an already-published item"},
	{"archive", "archiving an already-archived record"},
}

var workflowHints = []string{"workflow", "process", "submit"}

// boundaryScenarios emit one scenario per constrained parameter per
// computed boundary: the limit itself (valid) and one step past it
// (invalid, expecting a 400-class rejection).
func (p *Planner) boundaryScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	var out []Scenario
	okStatus := firstSuccessStatus(op)

	for _, param := range op.Parameters {
		s := param.Schema
		if s == nil || !s.HasConstraints() {
			continue
		}
		for _, b := range boundariesOf(s) {
			req := p.buildRequest(op, synth.ModeValid, rng)
			switch param.In {
			case "path":
				if req.PathParams == nil {
					req.PathParams = make(map[string]any)
				}
				req.PathParams[param.Name] = b.value
			case "header":
				if req.Headers == nil {
					req.Headers = make(map[string]string)
				}
				req.Headers[param.Name] = fmt.Sprintf("%v", b.value)
			default:
				if req.QueryParams == nil {
					req.QueryParams = make(map[string]any)
				}
				req.QueryParams[param.Name] = b.value
			}

			expected := okStatus
			if !b.valid {
				expected = 400
			}
			out = append(out, Scenario{
				ID:             fmt.Sprintf("boundary-%s-%s", param.Name, b.label),
				Name:           fmt.Sprintf("%s %s with %s at %s", strings.ToUpper(string(op.Method)), op.Path, param.Name, b.label),
				Type:           TypeEdge,
				Priority:       3,
				Request:        req,
				ExpectedStatus: expected,
			})
		}
	}
	return out
}

type boundaryCase struct {
	label string
	value any
	valid bool
}

// boundariesOf computes the boundary probes for one schema:
// minLength / minLength-1 / maxLength / maxLength+1 for strings, and
// the numeric analogues for integers and numbers.
func boundariesOf(s *spec.SchemaNode) []boundaryCase {
	var out []boundaryCase
	switch s.Type {
	case "string":
		if s.MinLength > 0 {
			out = append(out,
				boundaryCase{"min-length", strings.Repeat("a", s.MinLength), true},
				boundaryCase{"below-min-length", strings.Repeat("a", s.MinLength-1), false},
			)
		}
		if s.MaxLength != nil {
			out = append(out,
				boundaryCase{"max-length", strings.Repeat("a", *s.MaxLength), true},
				boundaryCase{"above-max-length", strings.Repeat("a", *s.MaxLength+1), false},
			)
		}
	case "integer", "number":
		if s.Minimum != nil {
			min := *s.Minimum
			if s.ExclusiveMinimum {
				min++
			}
			out = append(out,
				boundaryCase{"minimum", numValue(s, min), true},
				boundaryCase{"below-minimum", numValue(s, min-1), false},
			)
		}
		if s.Maximum != nil {
			max := *s.Maximum
			if s.ExclusiveMaximum {
				max--
			}
			out = append(out,
				boundaryCase{"maximum", numValue(s, max), true},
				boundaryCase{"above-maximum", numValue(s, max+1), false},
			)
		}
	}
	return out
}

func numValue(s *spec.SchemaNode, f float64) any {
	if s.Type == "integer" {
		return int(f)
	}
	return f
}

// largePayloadScenarios stress maximal-mode synthesis on the request body.
func (p *Planner) largePayloadScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	if op.RequestBody == nil {
		return nil
	}
	req := p.buildRequest(op, synth.ModeMaximal, rng)
	return []Scenario{{
		ID:             "edge-large-payload",
		Name:           fmt.Sprintf("%s %s accepts a maximal payload", strings.ToUpper(string(op.Method)), op.Path),
		Type:           TypeEdge,
		Priority:       3,
		Request:        req,
		ExpectedStatus: firstSuccessStatus(op),
	}}
}

// unicodeScenarios replace string inputs with non-ASCII samples; a
// schema-conforming server should store and echo them untouched.
func (p *Planner) unicodeScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	field, in := firstStringInput(op)
	if field == "" {
		return nil
	}
	var out []Scenario
	for _, u := range unicodeSamples {
		req := p.buildRequest(op, synth.ModeValid, rng)
		injectInto(&req, in, field, u.sample)
		out = append(out, Scenario{
			ID:             "edge-unicode-" + u.kind,
			Name:           fmt.Sprintf("%s %s handles %s input in %s", strings.ToUpper(string(op.Method)), op.Path, u.kind, field),
			Type:           TypeEdge,
			Priority:       3,
			Request:        req,
			ExpectedStatus: firstSuccessStatus(op),
		})
	}
	return out
}

// nullEmptyScenarios probe required-input enforcement with empty values.
func (p *Planner) nullEmptyScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	var out []Scenario
	if op.RequestBody != nil {
		req := p.buildRequest(op, synth.ModeValid, rng)
		req.Body = map[string]any{}
		expected := 400
		if len(op.RequestBody.Required) == 0 && len(collectRequired(op.RequestBody)) == 0 {
			expected = firstSuccessStatus(op)
		}
		out = append(out, Scenario{
			ID:             "edge-empty-body",
			Name:           fmt.Sprintf("%s %s with an empty body", strings.ToUpper(string(op.Method)), op.Path),
			Type:           TypeEdge,
			Priority:       3,
			Request:        req,
			ExpectedStatus: expected,
		})
	}
	for _, param := range op.Parameters {
		if !param.Required || param.In != "query" {
			continue
		}
		req := p.buildRequest(op, synth.ModeValid, rng)
		if req.QueryParams == nil {
			req.QueryParams = make(map[string]any)
		}
		req.QueryParams[param.Name] = ""
		out = append(out, Scenario{
			ID:             "edge-empty-" + param.Name,
			Name:           fmt.Sprintf("%s %s with empty required %s", strings.ToUpper(string(op.Method)), op.Path, param.Name),
			Type:           TypeEdge,
			Priority:       3,
			Request:        req,
			ExpectedStatus: 400,
		})
		break // one representative parameter is enough
	}
	return out
}

// injectionScenarios feed the attack-string catalog into the first
// string input and expect a 400-class rejection.
func (p *Planner) injectionScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	field, in := firstStringInput(op)
	if field == "" {
		return nil
	}
	var out []Scenario
	for _, a := range injectionPayloads {
		req := p.buildRequest(op, synth.ModeValid, rng)
		injectInto(&req, in, field, a.payload)
		out = append(out, Scenario{
			ID:             "security-" + a.kind,
			Name:           fmt.Sprintf("%s %s rejects %s payload in %s", strings.ToUpper(string(op.Method)), op.Path, a.kind, field),
			Type:           TypeSecurity,
			Priority:       2,
			Request:        req,
			ExpectedStatus: 400,
		})
	}
	return out
}

// businessLogicScenarios apply heuristics: a known state-transition verb
// in the path suggests a repeat-transition test; workflow-ish paths get
// an ordering test. These are hints for a human to flesh out, so they
// carry explanatory comments.
func (p *Planner) businessLogicScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	var out []Scenario
	lower := strings.ToLower(op.Path)

	for _, tr := range stateTransitions {
		if !strings.Contains(lower, tr.segment) {
			continue
		}
		out = append(out, Scenario{
			ID:             "business-transition-" + tr.segment,
			Name:           fmt.Sprintf("%s %s rejects %s", strings.ToUpper(string(op.Method)), op.Path, tr.test),
			Type:           TypeBusinessLogic,
			Priority:       4,
			Request:        p.buildRequest(op, synth.ModeValid, rng),
			ExpectedStatus: 409,
			Comment:        "heuristic state-transition test; verify the expected conflict status against the API's semantics",
		})
		break
	}

	for _, hint := range workflowHints {
		if !strings.Contains(lower, hint) {
			continue
		}
		out = append(out, Scenario{
			ID:             "business-workflow-" + hint,
			Name:           fmt.Sprintf("%s %s enforces workflow preconditions", strings.ToUpper(string(op.Method)), op.Path),
			Type:           TypeBusinessLogic,
			Priority:       4,
			Request:        p.buildRequest(op, synth.ModeValid, rng),
			ExpectedStatus: 422,
			Comment:        "heuristic workflow test; confirm precondition handling for out-of-order calls",
		})
		break
	}
	return out
}

// firstStringInput finds the first string-typed input: a body property
// (sorted order) or a query parameter. Returns ("", "") when none exist.
func firstStringInput(op spec.OperationDescriptor) (field, in string) {
	if op.RequestBody != nil {
		if name := firstStringProperty(op.RequestBody); name != "" {
			return name, "body"
		}
	}
	for _, param := range op.Parameters {
		if param.In == "query" && param.Schema != nil && param.Schema.Type == "string" {
			return param.Name, "query"
		}
	}
	return "", ""
}

func firstStringProperty(s *spec.SchemaNode) string {
	if s == nil {
		return ""
	}
	if len(s.AllOf) > 0 {
		for _, b := range s.AllOf {
			if name := firstStringProperty(b); name != "" {
				return name
			}
		}
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if prop := s.Properties[name]; prop != nil && prop.Type == "string" && len(prop.Enum) == 0 {
			return name
		}
	}
	return ""
}

func injectInto(req *RequestData, in, field string, value string) {
	switch in {
	case "body":
		if body, ok := req.Body.(map[string]any); ok {
			body[field] = value
		}
	case "query":
		if req.QueryParams == nil {
			req.QueryParams = make(map[string]any)
		}
		req.QueryParams[field] = value
	}
}

// firstSuccessStatus picks the lowest declared 2xx, defaulting to 200.
func firstSuccessStatus(op spec.OperationDescriptor) int {
	best := 0
	for code := range op.Responses {
		if n, ok := statusOf(code); ok && n >= 200 && n < 300 {
			if best == 0 || n < best {
				best = n
			}
		}
	}
	if best == 0 {
		return 200
	}
	return best
}

func collectRequired(s *spec.SchemaNode) []string {
	if s == nil {
		return nil
	}
	out := append([]string(nil), s.Required...)
	for _, b := range s.AllOf {
		out = append(out, collectRequired(b)...)
	}
	return out
}
