package spec

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specforge/specforge/internal/diag"
)

const petstoreV3 = `
openapi: 3.0.0
info:
  title: Petstore
  version: 1.0.0
servers:
  - url: https://api.example.com/v1
paths:
  /pets:
    get:
      tags: [pets]
      summary: List pets
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            minimum: 1
            maximum: 100
      responses:
        '200':
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Pet'
    post:
      tags: [pets]
      security:
        - bearerAuth: []
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/NewPet'
      responses:
        '201':
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        '400':
          description: bad request
  /admin/stats:
    get:
      tags: [admin]
      responses:
        '200':
          description: ok
components:
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: string
          format: uuid
        name:
          type: string
    NewPet:
      type: object
      required: [name]
      properties:
        name:
          type: string
          minLength: 1
          maxLength: 50
  securitySchemes:
    bearerAuth:
      type: http
      scheme: bearer
`

func loadPetstore(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := LoadFromData(context.Background(), []byte(petstoreV3))
	if err != nil {
		t.Fatalf("LoadFromData: %v", err)
	}
	return doc
}

func findOp(t *testing.T, ops []OperationDescriptor, id string) OperationDescriptor {
	t.Helper()
	for _, op := range ops {
		if op.ID == id {
			return op
		}
	}
	t.Fatalf("operation %q not found in %d operations", id, len(ops))
	return OperationDescriptor{}
}

func TestIngestBasics(t *testing.T) {
	model, diags, err := Ingest(loadPetstore(t))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if model.Title != "Petstore" || model.Version != "1.0.0" {
		t.Fatalf("unexpected document info: %q %q", model.Title, model.Version)
	}
	if len(model.Servers) != 1 || model.Servers[0] != "https://api.example.com/v1" {
		t.Fatalf("unexpected servers: %v", model.Servers)
	}
	if len(model.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(model.Operations))
	}
	// Paths sort first, then the fixed method order within a path.
	ids := []string{model.Operations[0].ID, model.Operations[1].ID, model.Operations[2].ID}
	want := []string{"get /admin/stats", "get /pets", "post /pets"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("operation order %v, want %v", ids, want)
		}
	}
	if len(model.Tags) != 2 || model.Tags[0] != "admin" || model.Tags[1] != "pets" {
		t.Fatalf("unexpected tags: %v", model.Tags)
	}
}

func TestIngestResolvesSchemas(t *testing.T) {
	model, _, err := Ingest(loadPetstore(t))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	createPet := findOp(t, model.Operations, "post /pets")
	body := createPet.RequestBody
	if body == nil || body.Type != "object" {
		t.Fatalf("expected resolved object body, got %+v", body)
	}
	name := body.Properties["name"]
	if name == nil || name.MinLength != 1 || name.MaxLength == nil || *name.MaxLength != 50 {
		t.Fatalf("constraints lost on body property: %+v", name)
	}
	if len(body.Required) != 1 || body.Required[0] != "name" {
		t.Fatalf("required list lost: %v", body.Required)
	}

	listPets := findOp(t, model.Operations, "get /pets")
	resp := listPets.Responses["200"]
	if resp == nil || resp.Type != "array" || resp.Items == nil || resp.Items.Type != "object" {
		t.Fatalf("response schema not resolved: %+v", resp)
	}
}

func TestIngestParameters(t *testing.T) {
	model, _, err := Ingest(loadPetstore(t))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	listPets := findOp(t, model.Operations, "get /pets")
	if len(listPets.Parameters) != 1 {
		t.Fatalf("expected 1 parameter, got %d", len(listPets.Parameters))
	}
	p := listPets.Parameters[0]
	if p.Name != "limit" || p.In != "query" {
		t.Fatalf("unexpected parameter: %+v", p)
	}
	if p.Schema == nil || p.Schema.Minimum == nil || *p.Schema.Minimum != 1 {
		t.Fatalf("parameter constraints lost: %+v", p.Schema)
	}
}

func TestIngestSecurity(t *testing.T) {
	model, _, err := Ingest(loadPetstore(t))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	createPet := findOp(t, model.Operations, "post /pets")
	if len(createPet.Security) != 1 {
		t.Fatalf("expected 1 security requirement, got %d", len(createPet.Security))
	}
	sec := createPet.Security[0]
	if sec.Name != "bearerAuth" || sec.Header != "Authorization" {
		t.Fatalf("unexpected security requirement: %+v", sec)
	}

	listPets := findOp(t, model.Operations, "get /pets")
	if len(listPets.Security) != 0 {
		t.Fatalf("unsecured operation picked up security: %v", listPets.Security)
	}
}

func TestIngestTagFilters(t *testing.T) {
	doc := loadPetstore(t)

	model, _, err := Ingest(doc, WithIncludeTags([]string{"admin"}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(model.Operations) != 1 || model.Operations[0].ID != "get /admin/stats" {
		t.Fatalf("include filter failed: %+v", model.Operations)
	}

	model, _, err = Ingest(doc, WithExcludeTags([]string{"admin"}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(model.Operations) != 2 {
		t.Fatalf("exclude filter failed: %+v", model.Operations)
	}
}

func TestIngestMethodAndPathFilters(t *testing.T) {
	doc := loadPetstore(t)

	model, _, err := Ingest(doc, WithMethods([]HTTPMethod{POST}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(model.Operations) != 1 || model.Operations[0].Method != POST {
		t.Fatalf("method filter failed: %+v", model.Operations)
	}

	model, _, err = Ingest(doc, WithPathPatterns([]string{"^/pets"}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(model.Operations) != 2 {
		t.Fatalf("path filter failed: %+v", model.Operations)
	}
}

func TestIngestMissingResponsesDiagnostic(t *testing.T) {
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "t", Version: "1"},
		Paths: openapi3.Paths{
			"/things": &openapi3.PathItem{Get: &openapi3.Operation{}},
		},
	}
	model, diags, err := Ingest(doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(model.Operations) != 1 {
		t.Fatalf("operation should survive without responses, got %d", len(model.Operations))
	}
	if len(diags) != 1 || diags[0].Severity != diag.SeverityWarning {
		t.Fatalf("expected one warning diagnostic, got %v", diags)
	}
	if diags[0].OperationRef != "get /things" {
		t.Fatalf("diagnostic not attributed to the operation: %+v", diags[0])
	}
}

func TestIngestUnresolvedRefDiagnostic(t *testing.T) {
	missing := &openapi3.SchemaRef{Ref: "#/components/schemas/Missing"}
	doc := &openapi3.T{
		OpenAPI: "3.0.0",
		Info:    &openapi3.Info{Title: "t", Version: "1"},
		Paths: openapi3.Paths{
			"/a": &openapi3.PathItem{Get: &openapi3.Operation{
				Responses: openapi3.Responses{
					"200": &openapi3.ResponseRef{Value: &openapi3.Response{
						Content: openapi3.NewContentWithJSONSchemaRef(missing),
					}},
				},
			}},
		},
	}
	model, diags, err := Ingest(doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
	op := model.Operations[0]
	resp := op.Responses["200"]
	if resp == nil || resp.Ref == "" {
		t.Fatalf("unresolved ref should keep its marker, got %+v", resp)
	}
}

func TestIngestCyclicSchemaTerminates(t *testing.T) {
	node := &openapi3.Schema{Type: "object"}
	ref := &openapi3.SchemaRef{Ref: "#/components/schemas/Node", Value: node}
	node.Properties = openapi3.Schemas{
		"name":  {Value: &openapi3.Schema{Type: "string"}},
		"child": ref,
	}
	doc := &openapi3.T{
		OpenAPI:    "3.0.0",
		Info:       &openapi3.Info{Title: "t", Version: "1"},
		Paths:      openapi3.Paths{},
		Components: &openapi3.Components{Schemas: openapi3.Schemas{"Node": ref}},
	}

	model, _, err := Ingest(doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	resolved := model.Schemas["Node"]
	depth := 0
	for resolved != nil && resolved.Ref == "" {
		resolved = resolved.Properties["child"]
		depth++
		if depth > DefaultRefDepth+1 {
			t.Fatalf("cycle not capped, descended %d levels", depth)
		}
	}
	if resolved == nil || resolved.Ref == "" {
		t.Fatal("expected a depth-capped ref marker at the bottom")
	}
}

func TestIngestNilDocument(t *testing.T) {
	if _, _, err := Ingest(nil); err == nil {
		t.Fatal("expected error for nil document")
	}
}
