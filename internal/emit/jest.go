package emit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func init() {
	Register("jest", func() Template { return &jestTemplate{} })
}

// jestTemplate renders JavaScript test files for Jest with axios as the
// HTTP client and nock for mock-mode stubs. Literals are produced with
// encoding/json, so every emitted value is a valid JS expression.
type jestTemplate struct{}

func (t *jestTemplate) Framework() string { return "jest" }

func (t *jestTemplate) FilePath(group string) string {
	return sanitizeFileName(group, "-") + ".test.js"
}

func (t *jestTemplate) AddImports(f *File, imports ...string) {
	for _, mod := range imports {
		line := fmt.Sprintf("const %s = require(%s);", identifier(mod), jsLiteral(mod))
		if !containsLine(f.Imports, line) {
			f.Imports = append(f.Imports, line)
		}
	}
}

func (t *jestTemplate) AddSetup(f *File, s SetupSpec) {
	t.AddImports(f, "axios")
	if s.MockMode {
		t.AddImports(f, "nock")
	}
	baseEnv := s.BaseURLEnv
	if baseEnv == "" {
		baseEnv = "API_BASE_URL"
	}
	f.SetupLines = append(f.SetupLines,
		fmt.Sprintf("const BASE_URL = process.env.%s || 'http://localhost:3000';", baseEnv))
	if s.AuthEnv != "" {
		f.SetupLines = append(f.SetupLines,
			fmt.Sprintf("const AUTH_TOKEN = process.env.%s || 'test-token';", s.AuthEnv))
	}
}

func (t *jestTemplate) AddTestSuite(f *File, name string) *Suite {
	suite := &Suite{Name: name}
	f.Suites = append(f.Suites, suite)
	return suite
}

func (t *jestTemplate) AddTestCase(suite *Suite, c *Case) {
	suite.Cases = append(suite.Cases, c)
}

func (t *jestTemplate) AddTeardown(f *File) {
	if containsLine(f.Imports, "const nock = require(\"nock\");") {
		f.TeardownLines = append(f.TeardownLines,
			"afterAll(() => {",
			"  nock.cleanAll();",
			"});")
		return
	}
	f.TeardownLines = append(f.TeardownLines,
		"afterAll(() => {",
		"  // no shared resources to release",
		"});")
}

func (t *jestTemplate) GenerateAssertion(a Assertion) string {
	switch a.Kind {
	case AssertEquals:
		return fmt.Sprintf("expect(%s).toEqual(%s);", a.Actual, jsLiteral(a.Expected))
	case AssertContains:
		return fmt.Sprintf("expect(%s).toContain(%s);", a.Actual, jsLiteral(a.Expected))
	case AssertStructural:
		return fmt.Sprintf("expect(%s).toMatchObject(%s);", a.Actual, jsLiteral(a.Expected))
	case AssertThrows:
		return fmt.Sprintf("await expect(%s).rejects.toThrow();", a.Actual)
	case AssertStatusCode:
		return fmt.Sprintf("expect(response.status).toBe(%s);", jsLiteral(a.Expected))
	case AssertTypeCheck:
		return fmt.Sprintf("expect(typeof %s).toBe(%s);", a.Actual, jsLiteral(a.Expected))
	default:
		return fmt.Sprintf("expect(%s).toBeDefined();", a.Actual)
	}
}

func (t *jestTemplate) GenerateAPICall(call APICall) string {
	method := strings.ToLower(call.Method)
	url := "`${BASE_URL}" + substitutePath(call.Path, call.PathParams, func(v any) string {
		return "${encodeURIComponent(" + jsLiteral(v) + ")}"
	}) + "`"

	parts := []string{
		"method: " + jsLiteral(method),
		"url: " + url,
	}
	if len(call.QueryParams) > 0 {
		parts = append(parts, "params: "+jsObject(call.QueryParams))
	}
	if headers := callHeaders(call); len(headers) > 0 {
		entries := make([]string, 0, len(headers))
		for _, k := range sortedKeys(headers) {
			entries = append(entries, fmt.Sprintf("%s: %s", jsLiteral(k), headers[k]))
		}
		parts = append(parts, "headers: { "+strings.Join(entries, ", ")+" }")
	}
	if bodyAllowed(method) && call.Body != nil {
		parts = append(parts, "data: "+jsLiteral(call.Body))
	}
	parts = append(parts, "validateStatus: () => true")

	return "const response = await axios({ " + strings.Join(parts, ", ") + " });"
}

func (t *jestTemplate) GenerateMockSetup(m MockConfig) string {
	body := "''"
	if m.Body != nil {
		body = jsLiteral(m.Body)
	}
	// nock matches the literal request path, so values are substituted
	// here the same way GenerateAPICall resolves the URL.
	path := substitutePath(m.Path, m.PathParams, func(v any) string {
		return fmt.Sprintf("%v", v)
	})
	return fmt.Sprintf("nock(BASE_URL).%s(%s).reply(%d, %s);",
		strings.ToLower(m.Method), jsLiteral(path), m.Status, body)
}

func (t *jestTemplate) ResponseBodyExpr() string { return "response.data" }

func (t *jestTemplate) Render(f *File) []byte {
	var b strings.Builder
	b.WriteString("// Code generated by specforge. DO NOT EDIT.\n")
	for _, imp := range f.Imports {
		b.WriteString(imp + "\n")
	}
	b.WriteString("\n")
	for _, line := range f.SetupLines {
		b.WriteString(line + "\n")
	}
	if len(f.SetupLines) > 0 {
		b.WriteString("\n")
	}
	for _, line := range f.TeardownLines {
		b.WriteString(line + "\n")
	}
	if len(f.TeardownLines) > 0 {
		b.WriteString("\n")
	}

	for si, suite := range f.Suites {
		if si > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "describe(%s, () => {\n", jsLiteral(suite.Name))
		for ci, c := range suite.Cases {
			if ci > 0 {
				b.WriteString("\n")
			}
			keyword := "test"
			if c.Disabled {
				keyword = "test.skip"
			}
			for _, comment := range c.Comments {
				fmt.Fprintf(&b, "  // %s\n", comment)
			}
			fmt.Fprintf(&b, "  %s(%s, async () => {\n", keyword, jsLiteral(c.Name))
			for _, step := range c.Steps {
				fmt.Fprintf(&b, "    %s\n", step)
			}
			for _, assertion := range c.Assertions {
				fmt.Fprintf(&b, "    %s\n", assertion)
			}
			b.WriteString("  });\n")
		}
		b.WriteString("});\n")
	}
	return []byte(b.String())
}

// jsLiteral renders any Go value as a JavaScript literal. JSON is a
// strict subset of JS expression syntax, so marshalling is sufficient.
func jsLiteral(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func jsObject(m map[string]any) string {
	return jsLiteral(m)
}

// callHeaders merges plain headers with the auth header, values already
// rendered as JS expressions.
func callHeaders(call APICall) map[string]string {
	out := make(map[string]string)
	for k, v := range call.Headers {
		out[k] = jsLiteral(v)
	}
	if call.AuthHeader != "" {
		if strings.HasPrefix(call.AuthValue, "env:") {
			out[call.AuthHeader] = "`Bearer ${AUTH_TOKEN}`"
		} else {
			out[call.AuthHeader] = jsLiteral(call.AuthValue)
		}
	}
	return out
}

func bodyAllowed(method string) bool {
	switch method {
	case "post", "put", "patch":
		return true
	default:
		return false
	}
}

// substitutePath replaces {param} placeholders with encoded values.
// The template is scanned placeholder by placeholder, so encoded values
// containing braces are never rescanned. Parameters without synthesized
// values degrade to a fixed probe value so the URL still resolves.
func substitutePath(path string, params map[string]any, encode func(any) string) string {
	var b strings.Builder
	rest := path
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		name := rest[start+1 : start+end]
		if value, ok := params[name]; ok {
			b.WriteString(encode(value))
		} else {
			b.WriteString("1")
		}
		rest = rest[start+end+1:]
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedAnyKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsLine(lines []string, line string) bool {
	for _, l := range lines {
		if l == line {
			return true
		}
	}
	return false
}

// identifier derives a JS identifier from a module name.
func identifier(mod string) string {
	var b strings.Builder
	for _, r := range mod {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "mod"
	}
	return b.String()
}

// sanitizeFileName mirrors the tool-name sanitizer used across emitters.
func sanitizeFileName(name, sep string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastSep := true
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteString(sep)
				lastSep = true
			}
		}
	}
	out := strings.Trim(b.String(), sep)
	if out == "" {
		return "generated"
	}
	return out
}
