package spec

// Internal model produced by ingestion and consumed by the planner,
// synthesizer, and emitters.

type HTTPMethod string

const (
	GET     HTTPMethod = "get"
	POST    HTTPMethod = "post"
	PUT     HTTPMethod = "put"
	DELETE  HTTPMethod = "delete"
	PATCH   HTTPMethod = "patch"
	HEAD    HTTPMethod = "head"
	OPTIONS HTTPMethod = "options"
	TRACE   HTTPMethod = "trace"
)

// Document is the normalized form of one API description: the operation
// list plus the shared schema table used for $ref resolution.
type Document struct {
	Title      string
	Version    string
	Servers    []string
	Tags       []string
	Operations []OperationDescriptor
	Schemas    map[string]*SchemaNode // components.schemas, by name
}

// OperationDescriptor captures everything the planner needs about one
// HTTP operation. It is immutable once built.
type OperationDescriptor struct {
	ID          string // "method path"
	Method      HTTPMethod
	Path        string
	Summary     string
	Tags        []string
	Parameters  []Parameter
	RequestBody *SchemaNode
	// Responses maps a status code string ("200", "404", "default")
	// to the response body schema; a nil schema means the status is
	// declared but schemaless (e.g. 204).
	Responses map[string]*SchemaNode
	Security  []SecurityRequirement
}

// Ref returns the "METHOD /path" form used in diagnostics.
func (o OperationDescriptor) Ref() string {
	return string(o.Method) + " " + o.Path
}

// Parameter is one declared operation parameter.
type Parameter struct {
	Name     string
	In       string // path|query|header|cookie
	Required bool
	Schema   *SchemaNode
}

// SecurityRequirement carries the declarative auth metadata needed to
// plan authorization scenarios. Scheme values mirror OpenAPI
// securityScheme types (apiKey, http, oauth2, openIdConnect).
type SecurityRequirement struct {
	Name   string // scheme name as declared in components
	Scheme string
	In     string // apiKey location: header|query|cookie
	Header string // header or query key carrying the credential
}

// SchemaNode is a JSON-Schema-style recursive type description.
// Composition (AllOf/OneOf/AnyOf) is resolved by the synthesizer before
// a leaf value is produced; an unresolved Ref is a diagnosable
// condition handled during ingestion, never a crash.
type SchemaNode struct {
	Type   string
	Format string

	// numeric constraints
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool
	MultipleOf       *float64

	// string constraints
	MinLength int
	MaxLength *int
	Pattern   string

	// array constraints
	Items       *SchemaNode
	MinItems    int
	MaxItems    *int
	UniqueItems bool

	// object shape
	Properties map[string]*SchemaNode
	Required   []string

	Enum     []any
	Nullable bool
	Example  any

	AllOf []*SchemaNode
	OneOf []*SchemaNode
	AnyOf []*SchemaNode

	// Ref holds the original $ref target when resolution failed or was
	// depth-capped; a node with a non-empty Ref carries no other content.
	Ref string
}

// IsEmpty reports whether the node constrains nothing at all.
func (s *SchemaNode) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.Type == "" && s.Ref == "" && len(s.Properties) == 0 &&
		s.Items == nil && len(s.Enum) == 0 &&
		len(s.AllOf) == 0 && len(s.OneOf) == 0 && len(s.AnyOf) == 0
}

// HasConstraints reports whether the node declares boundary-testable
// limits (length, numeric range, or item count).
func (s *SchemaNode) HasConstraints() bool {
	if s == nil {
		return false
	}
	return s.MinLength > 0 || s.MaxLength != nil ||
		s.Minimum != nil || s.Maximum != nil ||
		s.MinItems > 0 || s.MaxItems != nil
}
