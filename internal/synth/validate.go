package synth

import (
	"fmt"
	"math"
	"reflect"
	"regexp"

	"github.com/specforge/specforge/internal/spec"
)

// Validate checks a value against a schema and returns the list of
// violations, empty when the value conforms. It covers the declared
// constraint surface (types, bounds, lengths, enums, required keys,
// composition); semantic format checks are out of scope.
func Validate(s *spec.SchemaNode, value any) []string {
	var out []string
	validate(s, value, "$", &out)
	return out
}

// Conforms reports whether the value satisfies the schema.
func Conforms(s *spec.SchemaNode, value any) bool {
	return len(Validate(s, value)) == 0
}

func validate(s *spec.SchemaNode, value any, path string, out *[]string) {
	if s == nil || s.Ref != "" {
		return // nothing checkable
	}

	if len(s.AllOf) > 0 {
		validate(mergeAllOf(s), value, path, out)
		return
	}
	if len(s.OneOf) > 0 {
		if !anyBranchConforms(s.OneOf, value) {
			*out = append(*out, fmt.Sprintf("%s: no oneOf branch matches", path))
		}
		return
	}
	if len(s.AnyOf) > 0 {
		if !anyBranchConforms(s.AnyOf, value) {
			*out = append(*out, fmt.Sprintf("%s: no anyOf branch matches", path))
		}
		return
	}

	if value == nil {
		if !s.Nullable && s.Type != "" && s.Type != "null" {
			*out = append(*out, fmt.Sprintf("%s: null not allowed", path))
		}
		return
	}

	if len(s.Enum) > 0 {
		for _, e := range s.Enum {
			if looseEqual(e, value) {
				return
			}
		}
		*out = append(*out, fmt.Sprintf("%s: %v not in enum", path, value))
		return
	}

	switch s.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			*out = append(*out, fmt.Sprintf("%s: expected string, got %T", path, value))
			return
		}
		if len(str) < s.MinLength {
			*out = append(*out, fmt.Sprintf("%s: length %d < minLength %d", path, len(str), s.MinLength))
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			*out = append(*out, fmt.Sprintf("%s: length %d > maxLength %d", path, len(str), *s.MaxLength))
		}
		if s.Pattern != "" {
			if re, err := regexp.Compile(s.Pattern); err == nil && !re.MatchString(str) {
				*out = append(*out, fmt.Sprintf("%s: does not match pattern %q", path, s.Pattern))
			}
		}
	case "integer":
		f, ok := asNumber(value)
		if !ok || f != math.Trunc(f) {
			*out = append(*out, fmt.Sprintf("%s: expected integer, got %T %v", path, value, value))
			return
		}
		checkRange(s, f, path, out)
	case "number":
		f, ok := asNumber(value)
		if !ok {
			*out = append(*out, fmt.Sprintf("%s: expected number, got %T", path, value))
			return
		}
		checkRange(s, f, path, out)
	case "boolean":
		if _, ok := value.(bool); !ok {
			*out = append(*out, fmt.Sprintf("%s: expected boolean, got %T", path, value))
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			*out = append(*out, fmt.Sprintf("%s: expected array, got %T", path, value))
			return
		}
		if len(items) < s.MinItems {
			*out = append(*out, fmt.Sprintf("%s: %d items < minItems %d", path, len(items), s.MinItems))
		}
		if s.MaxItems != nil && len(items) > *s.MaxItems {
			*out = append(*out, fmt.Sprintf("%s: %d items > maxItems %d", path, len(items), *s.MaxItems))
		}
		if s.UniqueItems {
			for i := 0; i < len(items); i++ {
				for j := i + 1; j < len(items); j++ {
					if reflect.DeepEqual(items[i], items[j]) {
						*out = append(*out, fmt.Sprintf("%s: duplicate items at %d and %d", path, i, j))
					}
				}
			}
		}
		for i, item := range items {
			validate(s.Items, item, fmt.Sprintf("%s[%d]", path, i), out)
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			*out = append(*out, fmt.Sprintf("%s: expected object, got %T", path, value))
			return
		}
		for _, req := range s.Required {
			if _, present := obj[req]; !present {
				*out = append(*out, fmt.Sprintf("%s: missing required property %q", path, req))
			}
		}
		for name, prop := range s.Properties {
			if v, present := obj[name]; present {
				validate(prop, v, path+"."+name, out)
			}
		}
	}
}

func anyBranchConforms(branches []*spec.SchemaNode, value any) bool {
	for _, b := range branches {
		if Conforms(b, value) {
			return true
		}
	}
	return false
}

func checkRange(s *spec.SchemaNode, f float64, path string, out *[]string) {
	if s.Minimum != nil {
		if s.ExclusiveMinimum && f <= *s.Minimum {
			*out = append(*out, fmt.Sprintf("%s: %v <= exclusive minimum %v", path, f, *s.Minimum))
		} else if f < *s.Minimum {
			*out = append(*out, fmt.Sprintf("%s: %v < minimum %v", path, f, *s.Minimum))
		}
	}
	if s.Maximum != nil {
		if s.ExclusiveMaximum && f >= *s.Maximum {
			*out = append(*out, fmt.Sprintf("%s: %v >= exclusive maximum %v", path, f, *s.Maximum))
		} else if f > *s.Maximum {
			*out = append(*out, fmt.Sprintf("%s: %v > maximum %v", path, f, *s.Maximum))
		}
	}
	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		ratio := f / *s.MultipleOf
		if math.Abs(ratio-math.Round(ratio)) > 1e-9 {
			*out = append(*out, fmt.Sprintf("%s: %v is not a multiple of %v", path, f, *s.MultipleOf))
		}
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// looseEqual compares enum members against generated values, tolerating
// the int/float64 split JSON decoding introduces.
func looseEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	return aok && bok && af == bf
}
