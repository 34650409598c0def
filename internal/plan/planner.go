package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/internal/synth"
)

// CredentialEnvVar is the symbolic credential reference emitted into
// generated tests. The surrounding runner supplies the real value.
const CredentialEnvVar = "API_AUTH_TOKEN"

// Planner produces scenarios for operations using a shared generator.
type Planner struct {
	Gen  *synth.Generator
	Opts Options
}

// New returns a Planner with the given options and a default generator.
func New(opts Options) *Planner {
	return &Planner{Gen: synth.NewGenerator(), Opts: opts}
}

// Plan builds the ordered scenario set for one operation. Output order
// is deterministic for a fixed seed: status scenarios first, then each
// enabled family in a fixed sequence.
func (p *Planner) Plan(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	var out []Scenario

	out = append(out, p.statusScenarios(op, rng)...)
	if p.Opts.Boundary {
		out = append(out, p.boundaryScenarios(op, rng)...)
	}
	if p.Opts.LargePayload {
		out = append(out, p.largePayloadScenarios(op, rng)...)
	}
	if p.Opts.Unicode {
		out = append(out, p.unicodeScenarios(op, rng)...)
	}
	if p.Opts.NullEmpty {
		out = append(out, p.nullEmptyScenarios(op, rng)...)
	}
	if p.Opts.Authorization {
		out = append(out, p.authScenarios(op, rng)...)
	}
	if p.Opts.Contract {
		out = append(out, p.contractScenarios(op, rng)...)
	}
	if p.Opts.SecurityPayloads {
		out = append(out, p.injectionScenarios(op, rng)...)
	}
	if p.Opts.BusinessLogic {
		out = append(out, p.businessLogicScenarios(op, rng)...)
	}

	for i := range out {
		out[i].Method = op.Method
		out[i].Path = op.Path
		out[i].Tags = append(out[i].Tags, op.Tags...)
	}
	return out
}

// statusScenarios emits one scenario per declared status code: valid
// request data for 2xx, deliberately invalid data for 4xx/5xx. When
// multiple codes share a class, each still gets its own scenario.
func (p *Planner) statusScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	codes := sortedCodes(op.Responses)
	if len(codes) == 0 {
		// No responses declared (already diagnosed during ingestion):
		// the assumed success stays disabled until someone confirms the
		// expected status against the API.
		req := p.buildRequest(op, synth.ModeValid, rng)
		return []Scenario{{
			ID:             "success-200-assumed",
			Name:           fmt.Sprintf("%s %s returns 200", strings.ToUpper(string(op.Method)), op.Path),
			Type:           TypeSuccess,
			Priority:       1,
			Disabled:       true,
			Request:        req,
			ExpectedStatus: 200,
			Comment:        "operation declared no responses; 200 assumed",
		}}
	}

	var out []Scenario
	for _, code := range codes {
		status, ok := statusOf(code)
		if !ok {
			continue // "default" and friends carry no concrete expectation
		}
		schema := op.Responses[code]
		switch {
		case status >= 200 && status < 300:
			req := p.buildRequest(op, synth.ModeValid, rng)
			out = append(out, Scenario{
				ID:               "success-" + code,
				Name:             fmt.Sprintf("%s %s returns %d", strings.ToUpper(string(op.Method)), op.Path, status),
				Type:             TypeSuccess,
				Priority:         1,
				Request:          req,
				ExpectedStatus:   status,
				ExpectedResponse: p.responseTemplate(schema, rng),
				ResponseSchema:   schema,
			})
		case status >= 400:
			req := p.buildRequest(op, synth.ModeInvalid, rng)
			out = append(out, Scenario{
				ID:             "error-" + code,
				Name:           fmt.Sprintf("%s %s rejects bad input with %d", strings.ToUpper(string(op.Method)), op.Path, status),
				Type:           TypeError,
				Priority:       2,
				Request:        req,
				ExpectedStatus: status,
				ResponseSchema: schema,
			})
		}
	}
	return out
}

// contractScenarios validate that successful responses conform to their
// declared schemas.
func (p *Planner) contractScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	var out []Scenario
	for _, code := range sortedCodes(op.Responses) {
		status, ok := statusOf(code)
		if !ok || status < 200 || status >= 300 {
			continue
		}
		schema := op.Responses[code]
		if schema.IsEmpty() {
			continue
		}
		out = append(out, Scenario{
			ID:               "contract-" + code,
			Name:             fmt.Sprintf("%s %s response matches declared %d schema", strings.ToUpper(string(op.Method)), op.Path, status),
			Type:             TypeContract,
			Priority:         2,
			Request:          p.buildRequest(op, synth.ModeValid, rng),
			ExpectedStatus:   status,
			ExpectedResponse: p.responseTemplate(schema, rng),
			ResponseSchema:   schema,
		})
	}
	return out
}

// authScenarios cover credential handling, planned only when the
// operation (or the document) declares a security requirement.
func (p *Planner) authScenarios(op spec.OperationDescriptor, rng *synth.RNG) []Scenario {
	if len(op.Security) == 0 {
		return nil
	}
	header := op.Security[0].Header
	modes := []struct {
		mode AuthMode
		name string
	}{
		{AuthNone, "without credentials"},
		{AuthInvalid, "with an invalid token"},
		{AuthExpired, "with an expired token"},
	}
	out := make([]Scenario, 0, len(modes))
	for _, m := range modes {
		out = append(out, Scenario{
			ID:             "auth-" + string(m.mode),
			Name:           fmt.Sprintf("%s %s %s is rejected", strings.ToUpper(string(op.Method)), op.Path, m.name),
			Type:           TypeSecurity,
			Priority:       2,
			Request:        p.buildRequest(op, synth.ModeValid, rng),
			ExpectedStatus: 401,
			Auth:           &AuthSpec{Mode: m.mode, Header: header, EnvVar: CredentialEnvVar},
		})
	}
	return out
}

// buildRequest synthesizes a full request for the operation. Path
// parameters are always valid so the URL template resolves; the mode
// applies to the body when present, otherwise to the first constrained
// query parameter, keeping invalidity localized to one input.
func (p *Planner) buildRequest(op spec.OperationDescriptor, mode synth.Mode, rng *synth.RNG) RequestData {
	req := RequestData{}

	invalidTargetUsed := false
	for _, param := range op.Parameters {
		pm := synth.ModeValid
		if mode == synth.ModeInvalid && param.In == "query" && op.RequestBody == nil && !invalidTargetUsed && param.Schema.HasConstraints() {
			pm = synth.ModeInvalid
			invalidTargetUsed = true
		}
		value := p.Gen.Generate(param.Schema, pm, rng)
		switch param.In {
		case "path":
			if req.PathParams == nil {
				req.PathParams = make(map[string]any)
			}
			req.PathParams[param.Name] = value
		case "query":
			if !param.Required && mode == synth.ModeMinimal {
				continue
			}
			if req.QueryParams == nil {
				req.QueryParams = make(map[string]any)
			}
			req.QueryParams[param.Name] = value
		case "header":
			if req.Headers == nil {
				req.Headers = make(map[string]string)
			}
			req.Headers[param.Name] = fmt.Sprintf("%v", value)
		}
	}

	if op.RequestBody != nil {
		req.Body = p.Gen.Generate(op.RequestBody, mode, rng)
	}
	return req
}

// responseTemplate produces the representative valid response used for
// structural assertions; nil when the status is schemaless.
func (p *Planner) responseTemplate(schema *spec.SchemaNode, rng *synth.RNG) any {
	if schema.IsEmpty() {
		return nil
	}
	return p.Gen.Generate(schema, synth.ModeValid, rng)
}

func sortedCodes(responses map[string]*spec.SchemaNode) []string {
	if len(responses) == 0 {
		return nil
	}
	codes := make([]string, 0, len(responses))
	for c := range responses {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func statusOf(code string) (int, bool) {
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 599 {
		return 0, false
	}
	return n, true
}
