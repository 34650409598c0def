package emit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func init() {
	Register("pytest", func() Template { return &pytestTemplate{} })
}

// pytestTemplate renders Python test files for pytest with requests as
// the HTTP client and the responses library for mock-mode stubs.
type pytestTemplate struct{}

func (t *pytestTemplate) Framework() string { return "pytest" }

func (t *pytestTemplate) FilePath(group string) string {
	return "test_" + sanitizeFileName(group, "_") + ".py"
}

func (t *pytestTemplate) AddImports(f *File, imports ...string) {
	for _, mod := range imports {
		line := "import " + mod
		if !containsLine(f.Imports, line) {
			f.Imports = append(f.Imports, line)
		}
	}
}

func (t *pytestTemplate) AddSetup(f *File, s SetupSpec) {
	t.AddImports(f, "os", "pytest", "requests")
	if s.MockMode {
		t.AddImports(f, "responses")
	}
	baseEnv := s.BaseURLEnv
	if baseEnv == "" {
		baseEnv = "API_BASE_URL"
	}
	f.SetupLines = append(f.SetupLines,
		fmt.Sprintf("BASE_URL = os.environ.get(%s, \"http://localhost:8000\")", pyLiteral(baseEnv)))
	if s.AuthEnv != "" {
		f.SetupLines = append(f.SetupLines,
			fmt.Sprintf("AUTH_TOKEN = os.environ.get(%s, \"test-token\")", pyLiteral(s.AuthEnv)))
	}
	if s.MockMode {
		f.SetupLines = append(f.SetupLines, "", "responses.start()")
	}
	f.SetupLines = append(f.SetupLines,
		"",
		"",
		"def _matches(actual, template):",
		"    if isinstance(template, dict):",
		"        return isinstance(actual, dict) and all(",
		"            key in actual and _matches(actual[key], value)",
		"            for key, value in template.items()",
		"        )",
		"    if isinstance(template, list):",
		"        return isinstance(actual, list)",
		"    return isinstance(actual, type(template))",
	)
}

func (t *pytestTemplate) AddTestSuite(f *File, name string) *Suite {
	suite := &Suite{Name: name}
	f.Suites = append(f.Suites, suite)
	return suite
}

func (t *pytestTemplate) AddTestCase(suite *Suite, c *Case) {
	suite.Cases = append(suite.Cases, c)
}

func (t *pytestTemplate) AddTeardown(f *File) {
	if containsLine(f.Imports, "import responses") {
		f.TeardownLines = append(f.TeardownLines,
			"def teardown_module(module):",
			"    responses.stop()",
			"    responses.reset()")
		return
	}
	f.TeardownLines = append(f.TeardownLines,
		"def teardown_module(module):",
		"    pass  # no shared resources to release")
}

func (t *pytestTemplate) GenerateAssertion(a Assertion) string {
	switch a.Kind {
	case AssertEquals:
		return fmt.Sprintf("assert %s == %s", a.Actual, pyLiteral(a.Expected))
	case AssertContains:
		return fmt.Sprintf("assert %s in %s", pyLiteral(a.Expected), a.Actual)
	case AssertStructural:
		return fmt.Sprintf("assert _matches(%s, %s)", a.Actual, pyLiteral(a.Expected))
	case AssertThrows:
		return fmt.Sprintf("with pytest.raises(Exception):\n            %s", a.Actual)
	case AssertStatusCode:
		return fmt.Sprintf("assert response.status_code == %s", pyLiteral(a.Expected))
	case AssertTypeCheck:
		return fmt.Sprintf("assert isinstance(%s, %s)", a.Actual, pyTypeName(a.Expected))
	default:
		return fmt.Sprintf("assert %s is not None", a.Actual)
	}
}

func (t *pytestTemplate) GenerateAPICall(call APICall) string {
	method := strings.ToLower(call.Method)
	url := "f\"{BASE_URL}" + substitutePath(call.Path, call.PathParams, func(v any) string {
		return pyPathValue(v)
	}) + "\""

	args := []string{pyLiteral(method), url}
	if len(call.QueryParams) > 0 {
		args = append(args, "params="+pyLiteral(call.QueryParams))
	}
	if headers := pyHeaders(call); headers != "" {
		args = append(args, "headers="+headers)
	}
	if bodyAllowed(method) && call.Body != nil {
		args = append(args, "json="+pyLiteral(call.Body))
	}
	return "response = requests.request(" + strings.Join(args, ", ") + ")"
}

func (t *pytestTemplate) GenerateMockSetup(m MockConfig) string {
	body := "None"
	if m.Body != nil {
		body = pyLiteral(m.Body)
	}
	// The stub URL lives inside an f-string, so placeholders must be
	// resolved to plain values matching the GenerateAPICall URL.
	path := substitutePath(m.Path, m.PathParams, pyPathValue)
	return fmt.Sprintf("responses.add(responses.%s, f\"{BASE_URL}%s\", json=%s, status=%d)",
		strings.ToUpper(m.Method), path, body, m.Status)
}

func (t *pytestTemplate) ResponseBodyExpr() string { return "response.json()" }

func (t *pytestTemplate) Render(f *File) []byte {
	var b strings.Builder
	b.WriteString("# Code generated by specforge. DO NOT EDIT.\n")
	for _, imp := range f.Imports {
		b.WriteString(imp + "\n")
	}
	b.WriteString("\n")
	for _, line := range f.SetupLines {
		b.WriteString(line + "\n")
	}

	for _, suite := range f.Suites {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "class %s:\n", pyClassName(suite.Name))
		if len(suite.Cases) == 0 {
			b.WriteString("    pass\n")
			continue
		}
		for ci, c := range suite.Cases {
			if ci > 0 {
				b.WriteString("\n")
			}
			if c.Disabled {
				fmt.Fprintf(&b, "    @pytest.mark.skip(reason=%s)\n", pyLiteral(skipReason(c)))
			}
			fmt.Fprintf(&b, "    def %s(self):\n", pyMethodName(c.Name, ci))
			for _, comment := range c.Comments {
				fmt.Fprintf(&b, "        # %s\n", comment)
			}
			if len(c.Steps) == 0 && len(c.Assertions) == 0 {
				b.WriteString("        pass\n")
				continue
			}
			for _, step := range c.Steps {
				fmt.Fprintf(&b, "        %s\n", step)
			}
			for _, assertion := range c.Assertions {
				fmt.Fprintf(&b, "        %s\n", assertion)
			}
		}
	}

	if len(f.TeardownLines) > 0 {
		b.WriteString("\n\n")
		for _, line := range f.TeardownLines {
			b.WriteString(line + "\n")
		}
	}
	return []byte(b.String())
}

func skipReason(c *Case) string {
	if len(c.Comments) > 0 {
		return c.Comments[0]
	}
	return "disabled"
}

// pyLiteral renders a Go value as a Python literal.
func pyLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return pyString(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatFloat(val, 'f', 1, 64)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return pyLiteral(float64(val))
	case map[string]any:
		keys := sortedAnyKeys(val)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, pyString(k)+": "+pyLiteral(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, pyLiteral(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		// JSON round-trip covers remaining scalar kinds.
		data, err := json.Marshal(v)
		if err != nil {
			return "None"
		}
		return string(data)
	}
}

// pyString renders a double-quoted Python string. JSON string escaping
// is a subset of Python's, so marshalling the string is safe.
func pyString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// pyPathValue renders a path-parameter value inside an f-string.
func pyPathValue(v any) string {
	switch val := v.(type) {
	case string:
		return fstringSafe(val)
	case int, int64:
		return fmt.Sprintf("%v", val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return "1"
	}
}

// fstringSafe strips characters that would break out of an f-string.
func fstringSafe(s string) string {
	replacer := strings.NewReplacer("{", "", "}", "", "\"", "", "\\", "", "\n", "", "\r", "", "\x00", "")
	return replacer.Replace(s)
}

func pyHeaders(call APICall) string {
	merged := make(map[string]string)
	for k, v := range call.Headers {
		merged[k] = pyString(v)
	}
	if call.AuthHeader != "" {
		if strings.HasPrefix(call.AuthValue, "env:") {
			merged[call.AuthHeader] = "f\"Bearer {AUTH_TOKEN}\""
		} else {
			merged[call.AuthHeader] = pyString(call.AuthValue)
		}
	}
	if len(merged) == 0 {
		return ""
	}
	parts := make([]string, 0, len(merged))
	for _, k := range sortedKeys(merged) {
		parts = append(parts, pyString(k)+": "+merged[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func pyTypeName(expected any) string {
	switch expected {
	case "string":
		return "str"
	case "integer":
		return "int"
	case "number":
		return "(int, float)"
	case "boolean":
		return "bool"
	case "array":
		return "list"
	case "object":
		return "dict"
	default:
		return "object"
	}
}

// pyClassName turns a suite name into a CamelCase Test class name.
func pyClassName(name string) string {
	parts := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var b strings.Builder
	b.WriteString("Test")
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	if b.Len() == len("Test") {
		b.WriteString("Generated")
	}
	return b.String()
}

// pyMethodName turns a case name into a unique snake_case test method.
func pyMethodName(name string, index int) string {
	s := sanitizeFileName(name, "_")
	if !strings.HasPrefix(s, "test_") {
		s = "test_" + s
	}
	return fmt.Sprintf("%s_%d", s, index)
}
