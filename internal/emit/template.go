// Package emit renders planned scenarios into test source files through
// a per-framework Template. Files are built as structured trees and only
// serialized at the end, so every emitted file is syntactically valid
// for its target framework.
package emit

import (
	"fmt"
	"sort"
)

// File is the neutral source tree one template instance fills in. Line
// slices hold framework-rendered snippets; structure (imports, setup,
// suites, teardown) stays framework-agnostic.
type File struct {
	Path          string
	Imports       []string
	SetupLines    []string
	Suites        []*Suite
	TeardownLines []string
}

// Suite groups the cases generated for one operation.
type Suite struct {
	Name  string
	Cases []*Case
}

// Case is one rendered test case.
type Case struct {
	Name       string
	Disabled   bool
	Comments   []string
	Steps      []string // statements, e.g. the API call binding
	Assertions []string
}

// SetupSpec configures per-file setup. Credentials and the target host
// are referenced through environment variables only.
type SetupSpec struct {
	BaseURLEnv string
	AuthEnv    string
	MockMode   bool
}

// AssertionKind enumerates the supported assertion styles.
type AssertionKind string

const (
	AssertEquals     AssertionKind = "equals"
	AssertContains   AssertionKind = "contains"
	AssertStructural AssertionKind = "structural-match"
	AssertThrows     AssertionKind = "throws"
	AssertStatusCode AssertionKind = "status-code"
	AssertTypeCheck  AssertionKind = "type-check"
)

// Assertion describes one check to render. Actual is a source expression
// in the target language; Expected is a Go value rendered as a literal.
type Assertion struct {
	Kind     AssertionKind
	Actual   string
	Expected any
}

// APICall is the input to GenerateAPICall: a method, a path template
// with {param} placeholders, and the synthesized request parts.
type APICall struct {
	Method      string
	Path        string
	PathParams  map[string]any
	QueryParams map[string]any
	Headers     map[string]string
	Body        any
	AuthHeader  string // set when the scenario overrides credentials
	AuthValue   string // literal header value ("" means omit the header)
}

// MockConfig describes a stubbed upstream response for mock-mode files.
// Path is the {param} template; PathParams must resolve it the same way
// the paired APICall does so the stub matches the request.
type MockConfig struct {
	Method     string
	Path       string
	PathParams map[string]any
	Status     int
	Body       any
}

// Template is the per-framework rendering capability set. One instance
// renders one or more files; instances are cheap and stateless.
type Template interface {
	Framework() string
	// FilePath maps a scenario group name to the file it lands in.
	FilePath(group string) string

	AddImports(f *File, imports ...string)
	AddSetup(f *File, s SetupSpec)
	AddTestSuite(f *File, name string) *Suite
	AddTestCase(suite *Suite, c *Case)
	AddTeardown(f *File)

	GenerateAssertion(a Assertion) string
	GenerateAPICall(call APICall) string
	GenerateMockSetup(m MockConfig) string
	// ResponseBodyExpr is the expression reading the decoded response
	// body after a GenerateAPICall statement ran.
	ResponseBodyExpr() string

	Render(f *File) []byte
}

var registry = map[string]func() Template{}

// Register adds a template constructor under a framework identifier.
// Concrete templates register themselves at init time.
func Register(name string, ctor func() Template) {
	registry[name] = ctor
}

// NewTemplate looks up a registered framework template.
func NewTemplate(name string) (Template, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("emit: unknown framework %q (available: %v)", name, Frameworks())
	}
	return ctor(), nil
}

// Frameworks lists registered framework identifiers, sorted.
func Frameworks() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
