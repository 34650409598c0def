package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/spec"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func userSchema() *spec.SchemaNode {
	return &spec.SchemaNode{
		Type:     "object",
		Required: []string{"name", "age"},
		Properties: map[string]*spec.SchemaNode{
			"name": {Type: "string", MinLength: 1, MaxLength: iptr(40)},
			"age":  {Type: "integer", Minimum: fptr(0), Maximum: fptr(130)},
			"email": {
				Type:   "string",
				Format: "email",
			},
			"tags": {
				Type:     "array",
				Items:    &spec.SchemaNode{Type: "string", MinLength: 1},
				MaxItems: iptr(5),
			},
		},
	}
}

func TestGenerateValidConforms(t *testing.T) {
	g := NewGenerator()
	s := userSchema()
	for seed := int64(0); seed < 20; seed++ {
		v := g.Generate(s, ModeValid, NewRNG(seed))
		violations := Validate(s, v)
		assert.Emptyf(t, violations, "seed %d produced %v", seed, v)
	}
}

func TestGenerateValidIncludesRequired(t *testing.T) {
	g := NewGenerator()
	s := userSchema()
	v := g.Generate(s, ModeValid, NewRNG(7))
	obj, ok := v.(map[string]any)
	require.True(t, ok, "expected object, got %T", v)
	assert.Contains(t, obj, "name")
	assert.Contains(t, obj, "age")
}

func TestGenerateInvalidDoesNotConform(t *testing.T) {
	g := NewGenerator()
	cases := map[string]*spec.SchemaNode{
		"string-minlength": {Type: "string", MinLength: 3},
		"string-maxlength": {Type: "string", MaxLength: iptr(4)},
		"string-plain":     {Type: "string"},
		"integer-bounded":  {Type: "integer", Minimum: fptr(10), Maximum: fptr(20)},
		"number-unbounded": {Type: "number"},
		"boolean":          {Type: "boolean"},
		"array-minitems":   {Type: "array", Items: &spec.SchemaNode{Type: "string"}, MinItems: 1},
		"object-required": {
			Type:       "object",
			Required:   []string{"id"},
			Properties: map[string]*spec.SchemaNode{"id": {Type: "string"}},
		},
		"enum": {Type: "string", Enum: []any{"red", "green"}},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			v := g.Generate(s, ModeInvalid, NewRNG(1))
			assert.Falsef(t, Conforms(s, v), "invalid value %v unexpectedly conforms", v)
		})
	}
}

func TestGenerateInvalidObjectChildrenStayValid(t *testing.T) {
	// Invalidity lives at the root: the omitted required key makes the
	// object bad, but every property that is present must still conform.
	g := NewGenerator()
	s := userSchema()
	v := g.Generate(s, ModeInvalid, NewRNG(3))
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, obj, "age", "lowest-sorted required key should be omitted")
	for name, prop := range s.Properties {
		if got, present := obj[name]; present {
			assert.Emptyf(t, Validate(prop, got), "property %q: %v", name, got)
		}
	}
}

func TestGenerateMinimalAndMaximalBounds(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{Type: "integer", Minimum: fptr(10), Maximum: fptr(20)}

	assert.Equal(t, 10, g.Generate(s, ModeMinimal, NewRNG(1)))
	assert.Equal(t, 20, g.Generate(s, ModeMaximal, NewRNG(1)))
}

func TestGenerateExactLengthString(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{Type: "string", MinLength: 5, MaxLength: iptr(5)}
	for seed := int64(0); seed < 5; seed++ {
		v := g.Generate(s, ModeValid, NewRNG(seed))
		str, ok := v.(string)
		require.True(t, ok)
		assert.Len(t, str, 5)
	}
}

func TestGenerateExclusiveBounds(t *testing.T) {
	g := NewGenerator()

	intSchema := &spec.SchemaNode{Type: "integer", Minimum: fptr(10), ExclusiveMinimum: true, Maximum: fptr(20), ExclusiveMaximum: true}
	assert.Equal(t, 11, g.Generate(intSchema, ModeMinimal, NewRNG(1)))
	assert.Equal(t, 19, g.Generate(intSchema, ModeMaximal, NewRNG(1)))

	numSchema := &spec.SchemaNode{Type: "number", Minimum: fptr(1.0), ExclusiveMinimum: true}
	v := g.Generate(numSchema, ModeMinimal, NewRNG(1))
	f, ok := v.(float64)
	require.True(t, ok)
	assert.Greater(t, f, 1.0)
	assert.Empty(t, Validate(numSchema, f))

	// The deliberately-invalid value must stay invalid even after the
	// bound is stepped inward for generation.
	bad := g.Generate(intSchema, ModeInvalid, NewRNG(1))
	assert.NotEmpty(t, Validate(intSchema, bad))
}

func TestGenerateDeterministic(t *testing.T) {
	g := NewGenerator()
	s := userSchema()
	a := g.Generate(s, ModeValid, NewRNG(42))
	b := g.Generate(s, ModeValid, NewRNG(42))
	assert.Equal(t, a, b)
}

func TestGenerateOneOfPicksSingleBranch(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{
		OneOf: []*spec.SchemaNode{
			{Type: "string", MinLength: 1},
			{Type: "integer", Minimum: fptr(0)},
		},
	}
	for seed := int64(0); seed < 10; seed++ {
		v := g.Generate(s, ModeValid, NewRNG(seed))
		assert.Emptyf(t, Validate(s, v), "seed %d: %v", seed, v)
	}
	// Same seed, same branch.
	assert.Equal(t, g.Generate(s, ModeValid, NewRNG(9)), g.Generate(s, ModeValid, NewRNG(9)))
}

func TestGenerateAllOfMergesConstraints(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{
		AllOf: []*spec.SchemaNode{
			{Type: "object", Required: []string{"id"}, Properties: map[string]*spec.SchemaNode{"id": {Type: "string", Format: "uuid"}}},
			{Type: "object", Required: []string{"count"}, Properties: map[string]*spec.SchemaNode{"count": {Type: "integer", Minimum: fptr(1)}}},
		},
	}
	v := g.Generate(s, ModeValid, NewRNG(5))
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, obj, "id")
	assert.Contains(t, obj, "count")
	assert.Empty(t, Validate(s, v))
}

func TestGenerateNestedAllOfKeepsInnerConstraints(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{
		AllOf: []*spec.SchemaNode{
			{AllOf: []*spec.SchemaNode{
				{Type: "object", Required: []string{"name"}, Properties: map[string]*spec.SchemaNode{"name": {Type: "string", MinLength: 3}}},
				{Type: "object", Required: []string{"kind"}, Properties: map[string]*spec.SchemaNode{"kind": {Type: "string", Enum: []any{"a", "b"}}}},
			}},
			{Type: "object", Required: []string{"count"}, Properties: map[string]*spec.SchemaNode{"count": {Type: "integer", Minimum: fptr(1)}}},
		},
	}
	v := g.Generate(s, ModeValid, NewRNG(5))
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, obj, "name")
	assert.Contains(t, obj, "kind")
	assert.Contains(t, obj, "count")
	name, ok := obj["name"].(string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(name), 3)
	assert.Contains(t, []any{"a", "b"}, obj["kind"])
}

func TestGenerateEnum(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{Type: "string", Enum: []any{"small", "medium", "large"}}

	assert.Equal(t, "small", g.Generate(s, ModeEdge, NewRNG(1)))
	valid := g.Generate(s, ModeValid, NewRNG(1))
	assert.Contains(t, s.Enum, valid)
	assert.False(t, Conforms(s, g.Generate(s, ModeInvalid, NewRNG(1))))
}

func TestGenerateFormatLiterals(t *testing.T) {
	g := NewGenerator()
	v := g.Generate(&spec.SchemaNode{Type: "string", Format: "email"}, ModeValid, NewRNG(1))
	assert.Equal(t, "user@example.com", v)
	v = g.Generate(&spec.SchemaNode{Type: "string", Format: "date-time"}, ModeValid, NewRNG(1))
	assert.Equal(t, "2024-01-15T10:30:00Z", v)
}

func TestGenerateRecursiveSchemaTerminates(t *testing.T) {
	g := NewGenerator()
	node := &spec.SchemaNode{Type: "object", Required: []string{"name"}}
	node.Properties = map[string]*spec.SchemaNode{
		"name":  {Type: "string", MinLength: 1},
		"child": node,
	}
	v := g.Generate(node, ModeMaximal, NewRNG(1))
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, obj, "name")
}

func TestGenerateUniqueItems(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{
		Type:        "array",
		Items:       &spec.SchemaNode{Type: "string", Enum: []any{"only"}},
		MaxItems:    iptr(4),
		UniqueItems: true,
	}
	v := g.Generate(s, ModeMaximal, NewRNG(1))
	items, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, items, 1, "duplicates should collapse")
}

func TestGenerateMultipleOf(t *testing.T) {
	g := NewGenerator()
	s := &spec.SchemaNode{Type: "integer", Minimum: fptr(0), Maximum: fptr(100), MultipleOf: fptr(5)}
	for seed := int64(0); seed < 10; seed++ {
		v := g.Generate(s, ModeValid, NewRNG(seed))
		n, ok := v.(int)
		require.True(t, ok)
		assert.Zerof(t, n%5, "seed %d: %d", seed, n)
	}
}

func TestSubSeedStablePerKey(t *testing.T) {
	a := SubSeed(42, "get /users")
	b := SubSeed(42, "get /users")
	c := SubSeed(42, "post /users")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNullableSchema(t *testing.T) {
	s := &spec.SchemaNode{Type: "string", Nullable: true}
	assert.Empty(t, Validate(s, nil))
	strict := &spec.SchemaNode{Type: "string"}
	assert.NotEmpty(t, Validate(strict, nil))
}
