// Package synth turns schema nodes into concrete request and response
// values. Generation is a pure function of (schema, mode, rng): no I/O,
// no hidden state, so results can be memoized and replayed.
package synth

import (
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/specforge/specforge/internal/spec"
)

// Mode selects the synthesis intent.
type Mode string

const (
	ModeValid   Mode = "valid"
	ModeInvalid Mode = "invalid"
	ModeMinimal Mode = "minimal"
	ModeMaximal Mode = "maximal"
	ModeEdge    Mode = "edge"
)

// DefaultMaxDepth bounds recursion for self-referential schemas. Past
// the bound the generator returns an empty object or array instead of
// descending further.
const DefaultMaxDepth = 8

// Defaults applied when a schema declares no explicit constraint.
const (
	defaultStringLen = 12
	defaultMaxNum    = 100
	defaultMaxItems  = 3
)

// Exclusive bounds are stepped inward by a fixed amount: 1 for
// integers, 1e-3 for floating point. One rule, applied everywhere
// (minimal, maximal, and edge modes alike).
const floatStep = 1e-3

// Generator synthesizes values from schema nodes.
type Generator struct {
	MaxDepth int
}

// NewGenerator returns a Generator with the default recursion bound.
func NewGenerator() *Generator {
	return &Generator{MaxDepth: DefaultMaxDepth}
}

// Generate produces a value for the schema under the given mode. The
// same (schema, mode, seed) triple always yields the same value.
func (g *Generator) Generate(s *spec.SchemaNode, mode Mode, rng *RNG) any {
	return g.gen(s, mode, rng, 0)
}

func (g *Generator) gen(s *spec.SchemaNode, mode Mode, rng *RNG, depth int) any {
	if s == nil || s.Ref != "" {
		// Unresolved or depth-capped reference: generic empty value.
		return map[string]any{}
	}

	// Composition resolves before any leaf value is produced.
	if len(s.AllOf) > 0 {
		return g.gen(mergeAllOf(s), mode, rng, depth)
	}
	if len(s.OneOf) > 0 {
		return g.gen(s.OneOf[rng.Intn(len(s.OneOf))], childMode(mode), rng, depth)
	}
	if len(s.AnyOf) > 0 {
		return g.gen(s.AnyOf[rng.Intn(len(s.AnyOf))], childMode(mode), rng, depth)
	}

	if len(s.Enum) > 0 {
		return genEnum(s, mode, rng)
	}

	switch s.Type {
	case "string":
		return genString(s, mode, rng)
	case "integer":
		return genNumber(s, mode, rng, true)
	case "number":
		return genNumber(s, mode, rng, false)
	case "boolean":
		return genBool(mode, rng)
	case "array":
		return g.genArray(s, mode, rng, depth)
	case "object":
		return g.genObject(s, mode, rng, depth)
	case "null":
		return nil
	default:
		// Untyped node: treat property maps as objects, otherwise fall
		// back to a plain string so request bodies stay serializable.
		if len(s.Properties) > 0 || len(s.Required) > 0 {
			return g.genObject(s, mode, rng, depth)
		}
		if s.Items != nil {
			return g.genArray(s, mode, rng, depth)
		}
		return genString(s, mode, rng)
	}
}

// childMode localizes invalidity: when a composite or container is the
// deliberately-invalid target, its children are still generated valid.
func childMode(mode Mode) Mode {
	if mode == ModeInvalid {
		return ModeValid
	}
	return mode
}

func genEnum(s *spec.SchemaNode, mode Mode, rng *RNG) any {
	switch mode {
	case ModeInvalid:
		return "__not_in_enum__"
	case ModeEdge:
		return s.Enum[0]
	default:
		return s.Enum[rng.Intn(len(s.Enum))]
	}
}

func genString(s *spec.SchemaNode, mode Mode, rng *RNG) any {
	if mode == ModeInvalid {
		if s.MinLength > 0 {
			return "" // violates minLength
		}
		if s.MaxLength != nil {
			return fillString(*s.MaxLength + 1)
		}
		return 12345 // type mismatch
	}

	if lit := formatLiteral(s.Format); lit != "" {
		return lit
	}

	min := s.MinLength
	max := defaultStringLen
	if max < min {
		max = min
	}
	if s.MaxLength != nil {
		max = *s.MaxLength
	}

	var target int
	switch mode {
	case ModeMinimal:
		target = min
	case ModeMaximal:
		target = max
	case ModeEdge:
		target = min
		if target < 1 {
			target = 1
		}
	default: // valid
		target = rng.IntBetween(min, max)
	}
	if s.MaxLength != nil && target > *s.MaxLength {
		target = *s.MaxLength
	}
	return fillString(target)
}

// fillString builds a string of the exact length from a fixed charset.
// The fill is positional, not random, so lengths alone determine content.
func fillString(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(charset[i%len(charset)])
	}
	return b.String()
}

func formatLiteral(format string) string {
	switch format {
	case "email":
		return "user@example.com"
	case "uri", "url":
		return "https://example.com/resource"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "date":
		return "2024-01-15"
	case "date-time":
		return "2024-01-15T10:30:00Z"
	case "password":
		return "Str0ng!Passw0rd"
	case "hostname":
		return "api.example.com"
	case "ipv4":
		return "192.0.2.1"
	case "ipv6":
		return "2001:db8::1"
	default:
		return ""
	}
}

func genNumber(s *spec.SchemaNode, mode Mode, rng *RNG, integer bool) any {
	step := 1.0
	if !integer {
		step = floatStep
	}

	min, hasMin := bound(s.Minimum, s.ExclusiveMinimum, step)
	max, hasMax := bound(s.Maximum, s.ExclusiveMaximum, -step)
	if !hasMin {
		min = 0
		if hasMax && max < min {
			min = max - defaultMaxNum
		}
	}
	if !hasMax {
		max = min + defaultMaxNum
	}

	if mode == ModeInvalid {
		if hasMin {
			out := min - 1
			if integer {
				return int(out)
			}
			return out
		}
		if hasMax {
			out := max + 1
			if integer {
				return int(out)
			}
			return out
		}
		return "not-a-number" // no domain to violate; mismatch the type
	}

	var target float64
	switch mode {
	case ModeMinimal:
		target = min
	case ModeMaximal:
		target = max
	case ModeEdge:
		if hasMin {
			target = min
		} else if hasMax {
			target = max
		}
	default: // valid
		target = rng.Float64Between(min, max)
	}

	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		target = math.Round(target / *s.MultipleOf) * *s.MultipleOf
		if target < min {
			target += *s.MultipleOf
		}
		if target > max {
			target -= *s.MultipleOf
		}
	}
	if integer {
		return int(math.Round(clamp(target, min, max)))
	}
	return clamp(target, min, max)
}

// bound applies the exclusive-bound step rule and reports whether the
// bound was declared at all.
func bound(v *float64, exclusive bool, step float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if exclusive {
		return *v + step, true
	}
	return *v, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func genBool(mode Mode, rng *RNG) any {
	switch mode {
	case ModeInvalid:
		return "not-a-boolean"
	case ModeMinimal:
		return false
	case ModeMaximal, ModeEdge:
		return true
	default:
		return rng.Chance(0.5)
	}
}

func (g *Generator) genArray(s *spec.SchemaNode, mode Mode, rng *RNG, depth int) any {
	if depth >= g.maxDepth() {
		return []any{}
	}

	if mode == ModeInvalid {
		if s.MinItems > 0 {
			return []any{} // violates minItems
		}
		if s.MaxItems != nil {
			return g.buildItems(s, *s.MaxItems+1, ModeValid, rng, depth)
		}
		return "not-an-array"
	}

	min := s.MinItems
	max := defaultMaxItems
	if max < min {
		max = min
	}
	if s.MaxItems != nil {
		max = *s.MaxItems
	}

	var target int
	switch mode {
	case ModeMinimal:
		target = min
	case ModeMaximal:
		target = max
	case ModeEdge:
		target = min
		if target < 1 && (s.MaxItems == nil || *s.MaxItems >= 1) {
			target = 1
		}
	default:
		target = rng.IntBetween(min, max)
	}
	return g.buildItems(s, target, childMode(mode), rng, depth)
}

func (g *Generator) buildItems(s *spec.SchemaNode, n int, mode Mode, rng *RNG, depth int) []any {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.gen(s.Items, mode, rng, depth+1))
	}
	if s.UniqueItems {
		out = dedupe(out)
	}
	return out
}

// dedupe removes structurally equal items, preserving first occurrence.
func dedupe(items []any) []any {
	out := items[:0]
	for _, item := range items {
		dup := false
		for _, kept := range out {
			if reflect.DeepEqual(item, kept) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out
}

func (g *Generator) genObject(s *spec.SchemaNode, mode Mode, rng *RNG, depth int) any {
	if depth >= g.maxDepth() {
		return map[string]any{}
	}

	required := make(map[string]struct{}, len(s.Required))
	for _, r := range s.Required {
		required[r] = struct{}{}
	}

	// The deliberately-invalid object omits one required property; with
	// nothing required there is no shape to violate, so mismatch the type.
	omit := ""
	if mode == ModeInvalid {
		if len(s.Required) == 0 {
			return "not-an-object"
		}
		sorted := append([]string(nil), s.Required...)
		sort.Strings(sorted)
		omit = sorted[0]
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(names))
	for _, name := range names {
		_, isRequired := required[name]
		if name == omit {
			continue
		}
		if !isRequired {
			switch mode {
			case ModeMinimal:
				continue
			case ModeValid, ModeMaximal, ModeEdge:
				// include fully
			default:
				if !rng.Chance(0.5) {
					continue
				}
			}
		}
		out[name] = g.gen(s.Properties[name], childMode(mode), rng, depth+1)
	}

	// Required names without a declared property schema still appear.
	reqSorted := append([]string(nil), s.Required...)
	sort.Strings(reqSorted)
	for _, name := range reqSorted {
		if name == omit {
			continue
		}
		if _, present := out[name]; !present {
			out[name] = fillString(defaultStringLen)
		}
	}
	return out
}

func (g *Generator) maxDepth() int {
	if g.MaxDepth > 0 {
		return g.MaxDepth
	}
	return DefaultMaxDepth
}

// mergeAllOf flattens an allOf composition into one synthetic schema.
// Later branches override scalar fields; properties, required lists,
// and constraints accumulate.
func mergeAllOf(s *spec.SchemaNode) *spec.SchemaNode {
	merged := &spec.SchemaNode{
		Type:   s.Type,
		Format: s.Format,
	}
	branches := append([]*spec.SchemaNode{}, s.AllOf...)
	// The host node's own shape participates in the merge too.
	host := *s
	host.AllOf = nil
	branches = append(branches, &host)

	for _, b := range branches {
		if b == nil {
			continue
		}
		if len(b.AllOf) > 0 {
			// Nested compositions are flattened first so their inner
			// constraints survive the merge.
			b = mergeAllOf(b)
		}
		if b.Type != "" {
			merged.Type = b.Type
		}
		if b.Format != "" {
			merged.Format = b.Format
		}
		if b.Minimum != nil {
			merged.Minimum = b.Minimum
			merged.ExclusiveMinimum = b.ExclusiveMinimum
		}
		if b.Maximum != nil {
			merged.Maximum = b.Maximum
			merged.ExclusiveMaximum = b.ExclusiveMaximum
		}
		if b.MultipleOf != nil {
			merged.MultipleOf = b.MultipleOf
		}
		if b.MinLength > merged.MinLength {
			merged.MinLength = b.MinLength
		}
		if b.MaxLength != nil {
			merged.MaxLength = b.MaxLength
		}
		if b.Pattern != "" {
			merged.Pattern = b.Pattern
		}
		if b.Items != nil {
			merged.Items = b.Items
		}
		if b.MinItems > merged.MinItems {
			merged.MinItems = b.MinItems
		}
		if b.MaxItems != nil {
			merged.MaxItems = b.MaxItems
		}
		merged.UniqueItems = merged.UniqueItems || b.UniqueItems
		if len(b.Enum) > 0 {
			merged.Enum = b.Enum
		}
		if len(b.Properties) > 0 {
			if merged.Properties == nil {
				merged.Properties = make(map[string]*spec.SchemaNode)
			}
			for name, p := range b.Properties {
				merged.Properties[name] = p
			}
		}
		merged.Required = appendUnique(merged.Required, b.Required)
	}
	if merged.Type == "" && len(merged.Properties) > 0 {
		merged.Type = "object"
	}
	return merged
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
