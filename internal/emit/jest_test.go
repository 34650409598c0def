package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryListsBothFrameworks(t *testing.T) {
	assert.Equal(t, []string{"jest", "pytest"}, Frameworks())

	_, err := NewTemplate("jest")
	assert.NoError(t, err)
	_, err = NewTemplate("mocha")
	assert.Error(t, err)
}

func TestJestFilePath(t *testing.T) {
	tmpl := &jestTemplate{}
	assert.Equal(t, "users.test.js", tmpl.FilePath("users"))
	assert.Equal(t, "pet-store.test.js", tmpl.FilePath("Pet Store"))
	assert.Equal(t, "generated.test.js", tmpl.FilePath("!!!"))
}

func TestJestAssertions(t *testing.T) {
	tmpl := &jestTemplate{}

	assert.Equal(t, `expect(response.status).toBe(404);`,
		tmpl.GenerateAssertion(Assertion{Kind: AssertStatusCode, Expected: 404}))
	assert.Equal(t, `expect(response.data).toEqual({"id":"abc"});`,
		tmpl.GenerateAssertion(Assertion{Kind: AssertEquals, Actual: "response.data", Expected: map[string]any{"id": "abc"}}))
	assert.Equal(t, `expect(response.data).toMatchObject({"name":"x"});`,
		tmpl.GenerateAssertion(Assertion{Kind: AssertStructural, Actual: "response.data", Expected: map[string]any{"name": "x"}}))
	assert.Equal(t, `expect(typeof response.data).toBe("object");`,
		tmpl.GenerateAssertion(Assertion{Kind: AssertTypeCheck, Actual: "response.data", Expected: "object"}))
	assert.Equal(t, `await expect(call()).rejects.toThrow();`,
		tmpl.GenerateAssertion(Assertion{Kind: AssertThrows, Actual: "call()"}))
}

func TestJestAPICall(t *testing.T) {
	tmpl := &jestTemplate{}
	stmt := tmpl.GenerateAPICall(APICall{
		Method:      "POST",
		Path:        "/users/{id}/notes",
		PathParams:  map[string]any{"id": "u-1"},
		QueryParams: map[string]any{"limit": 10},
		Body:        map[string]any{"text": "hello"},
		AuthHeader:  "Authorization",
		AuthValue:   "env:API_AUTH_TOKEN",
	})

	assert.Contains(t, stmt, "const response = await axios({")
	assert.Contains(t, stmt, `method: "post"`)
	assert.Contains(t, stmt, "${encodeURIComponent(\"u-1\")}/notes")
	assert.Contains(t, stmt, `params: {"limit":10}`)
	assert.Contains(t, stmt, "\"Authorization\": `Bearer ${AUTH_TOKEN}`")
	assert.Contains(t, stmt, `data: {"text":"hello"}`)
	assert.Contains(t, stmt, "validateStatus: () => true")
}

func TestJestAPICallOmitsBodyForGet(t *testing.T) {
	tmpl := &jestTemplate{}
	stmt := tmpl.GenerateAPICall(APICall{
		Method: "GET",
		Path:   "/users",
		Body:   map[string]any{"ignored": true},
	})
	assert.NotContains(t, stmt, "data:")
}

func TestJestAPICallResolvesEveryPathParam(t *testing.T) {
	tmpl := &jestTemplate{}
	stmt := tmpl.GenerateAPICall(APICall{
		Method:     "GET",
		Path:       "/orgs/{orgId}/users/{id}",
		PathParams: map[string]any{"orgId": "o-9", "id": "u-1"},
	})
	assert.Contains(t, stmt,
		"url: `${BASE_URL}/orgs/${encodeURIComponent(\"o-9\")}/users/${encodeURIComponent(\"u-1\")}`")
	assert.NotContains(t, stmt, "$1")
}

func TestJestUnboundPathParamDegrades(t *testing.T) {
	tmpl := &jestTemplate{}
	stmt := tmpl.GenerateAPICall(APICall{Method: "GET", Path: "/users/{id}"})
	assert.Contains(t, stmt, "/users/1")
	assert.NotContains(t, stmt, "{id}")

	// A bound parameter next to an unbound one keeps its value.
	stmt = tmpl.GenerateAPICall(APICall{
		Method:     "GET",
		Path:       "/users/{id}/notes/{noteId}",
		PathParams: map[string]any{"id": "u-1"},
	})
	assert.Contains(t, stmt, `${encodeURIComponent("u-1")}/notes/1`)
}

func TestJestRenderBalancedAndSkips(t *testing.T) {
	tmpl := &jestTemplate{}
	f := &File{Path: "users.test.js"}
	tmpl.AddSetup(f, SetupSpec{AuthEnv: "API_AUTH_TOKEN"})
	suite := tmpl.AddTestSuite(f, "GET /users")
	tmpl.AddTestCase(suite, &Case{
		Name:       "GET /users returns 200",
		Steps:      []string{tmpl.GenerateAPICall(APICall{Method: "GET", Path: "/users"})},
		Assertions: []string{tmpl.GenerateAssertion(Assertion{Kind: AssertStatusCode, Expected: 200})},
	})
	tmpl.AddTestCase(suite, &Case{
		Name:     "placeholder",
		Disabled: true,
		Comments: []string{"TODO: coverage for this operation was skipped"},
	})
	tmpl.AddTeardown(f)

	out := string(tmpl.Render(f))
	assert.Equal(t, strings.Count(out, "{"), strings.Count(out, "}"), "unbalanced braces:\n%s", out)
	assert.Equal(t, strings.Count(out, "("), strings.Count(out, ")"))
	assert.Contains(t, out, `const axios = require("axios");`)
	assert.Contains(t, out, "const BASE_URL = process.env.API_BASE_URL")
	assert.Contains(t, out, "const AUTH_TOKEN = process.env.API_AUTH_TOKEN")
	assert.Contains(t, out, `describe("GET /users", () => {`)
	assert.Contains(t, out, `test("GET /users returns 200", async () => {`)
	assert.Contains(t, out, `test.skip("placeholder", async () => {`)
	assert.Contains(t, out, "// TODO: coverage for this operation was skipped")
	assert.True(t, strings.HasPrefix(out, "// Code generated"))
}

func TestJestMockMode(t *testing.T) {
	tmpl := &jestTemplate{}
	f := &File{}
	tmpl.AddSetup(f, SetupSpec{MockMode: true})
	tmpl.AddTeardown(f)

	require.Contains(t, f.Imports, `const nock = require("nock");`)
	joined := strings.Join(f.TeardownLines, "\n")
	assert.Contains(t, joined, "nock.cleanAll()")

	stub := tmpl.GenerateMockSetup(MockConfig{Method: "get", Path: "/users", Status: 200, Body: map[string]any{"ok": true}})
	assert.Equal(t, `nock(BASE_URL).get("/users").reply(200, {"ok":true});`, stub)

	stub = tmpl.GenerateMockSetup(MockConfig{
		Method:     "get",
		Path:       "/pets/{petId}",
		PathParams: map[string]any{"petId": "p-1"},
		Status:     200,
	})
	assert.Equal(t, `nock(BASE_URL).get("/pets/p-1").reply(200, '');`, stub)
}

func TestJestImportsDeduplicated(t *testing.T) {
	tmpl := &jestTemplate{}
	f := &File{}
	tmpl.AddImports(f, "axios", "axios", "nock")
	assert.Len(t, f.Imports, 2)
}
