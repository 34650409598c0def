package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specforge/specforge/internal/diag"
)

// DefaultRefDepth bounds $ref resolution so cyclic schemas terminate.
const DefaultRefDepth = 5

// IngestOption configures how operations are extracted from a document.
type IngestOption func(*ingestConfig)

type ingestConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HTTPMethod]struct{}
	pathRes     []*regexp.Regexp
	refDepth    int
}

// WithIncludeTags keeps only operations carrying at least one of the tags.
func WithIncludeTags(tags []string) IngestOption {
	return func(c *ingestConfig) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.includeTags == nil {
					c.includeTags = make(map[string]struct{})
				}
				c.includeTags[t] = struct{}{}
			}
		}
	}
}

// WithExcludeTags drops operations carrying any of the tags.
func WithExcludeTags(tags []string) IngestOption {
	return func(c *ingestConfig) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.excludeTags == nil {
					c.excludeTags = make(map[string]struct{})
				}
				c.excludeTags[t] = struct{}{}
			}
		}
	}
}

// WithMethods keeps only operations using one of the given HTTP methods.
func WithMethods(methods []HTTPMethod) IngestOption {
	return func(c *ingestConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HTTPMethod]struct{})
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one
// of the given regular expressions. Invalid patterns never match.
func WithPathPatterns(patterns []string) IngestOption {
	return func(c *ingestConfig) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithRefDepth overrides the $ref resolution depth bound.
func WithRefDepth(depth int) IngestOption {
	return func(c *ingestConfig) {
		if depth > 0 {
			c.refDepth = depth
		}
	}
}

// Ingest normalizes a parsed OpenAPI v3 document into the internal model.
// Structural problems inside individual operations (missing responses,
// unresolved or cyclic $refs) become diagnostics; only a nil document is
// an error. Output ordering is deterministic: sorted paths, fixed method
// order, sorted parameters and response codes.
func Ingest(doc *openapi3.T, opts ...IngestOption) (*Document, []diag.Diagnostic, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("spec: nil document")
	}

	cfg := &ingestConfig{refDepth: DefaultRefDepth}
	for _, opt := range opts {
		opt(cfg)
	}

	var diags []diag.Diagnostic
	res := &resolver{maxDepth: cfg.refDepth, diags: &diags}

	out := &Document{}
	if doc.Info != nil {
		out.Title = strings.TrimSpace(doc.Info.Title)
		out.Version = strings.TrimSpace(doc.Info.Version)
	}
	for _, s := range doc.Servers {
		if s != nil && strings.TrimSpace(s.URL) != "" {
			out.Servers = append(out.Servers, strings.TrimSpace(s.URL))
		}
	}

	// Shared schema table; read-only after ingestion.
	if doc.Components != nil && len(doc.Components.Schemas) > 0 {
		out.Schemas = make(map[string]*SchemaNode, len(doc.Components.Schemas))
		names := make([]string, 0, len(doc.Components.Schemas))
		for name := range doc.Components.Schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out.Schemas[name] = res.schema(doc.Components.Schemas[name], 0, "components.schemas."+name)
		}
	}

	schemes := securitySchemes(doc)
	globalSec := securityRequirements(doc.Security, schemes)

	pathKeys := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, p := range pathKeys {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		ops := []struct {
			m HTTPMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{POST, item.Post},
			{PUT, item.Put},
			{DELETE, item.Delete},
			{PATCH, item.Patch},
			{HEAD, item.Head},
			{OPTIONS, item.Options},
			{TRACE, item.Trace},
		}
		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[pair.m]; !ok {
					continue
				}
			}
			if len(cfg.pathRes) > 0 && !matchAny(cfg.pathRes, p) {
				continue
			}
			tags := cleanTags(pair.o.Tags)
			if !allowByTags(tags, cfg) {
				continue
			}

			od := OperationDescriptor{
				ID:      string(pair.m) + " " + p,
				Method:  pair.m,
				Path:    p,
				Summary: strings.TrimSpace(pair.o.Summary),
				Tags:    tags,
			}

			od.Parameters = mergeParameters(item.Parameters, pair.o.Parameters, res)

			if pair.o.RequestBody != nil && pair.o.RequestBody.Value != nil {
				od.RequestBody = bodySchema(pair.o.RequestBody.Value.Content, res, od.ID)
			}

			if len(pair.o.Responses) == 0 {
				diags = append(diags, diag.Warnf(od.Ref(),
					"declare at least one response status so expected outcomes can be derived",
					"operation has no responses map"))
			} else {
				od.Responses = make(map[string]*SchemaNode, len(pair.o.Responses))
				codes := make([]string, 0, len(pair.o.Responses))
				for c := range pair.o.Responses {
					codes = append(codes, c)
				}
				sort.Strings(codes)
				for _, code := range codes {
					rref := pair.o.Responses[code]
					if rref == nil || rref.Value == nil {
						od.Responses[code] = nil
						continue
					}
					od.Responses[code] = bodySchema(rref.Value.Content, res, od.ID)
				}
			}

			if pair.o.Security != nil {
				od.Security = securityRequirements(*pair.o.Security, schemes)
			} else {
				od.Security = globalSec
			}

			out.Operations = append(out.Operations, od)
		}
	}

	out.Tags = collectSortedTags(out.Operations)
	return out, diags, nil
}

// resolver converts openapi3 schema refs into SchemaNodes with a hard
// depth bound instead of cycle detection.
type resolver struct {
	maxDepth int
	diags    *[]diag.Diagnostic
}

func (r *resolver) schema(ref *openapi3.SchemaRef, depth int, where string) *SchemaNode {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		if depth >= r.maxDepth {
			// Depth-capped: leave the marker so the synthesizer falls
			// back to an empty value for this branch.
			return &SchemaNode{Ref: ref.Ref}
		}
		depth++
	}
	if ref.Value == nil {
		if ref.Ref != "" {
			*r.diags = append(*r.diags, diag.Warnf(where,
				"check that the $ref target exists under components.schemas",
				"unresolved $ref %q", ref.Ref))
			return &SchemaNode{Ref: ref.Ref}
		}
		return nil
	}
	v := ref.Value

	n := &SchemaNode{
		Type:             strings.TrimSpace(v.Type),
		Format:           strings.TrimSpace(v.Format),
		Minimum:          v.Min,
		Maximum:          v.Max,
		ExclusiveMinimum: v.ExclusiveMin,
		ExclusiveMaximum: v.ExclusiveMax,
		MultipleOf:       v.MultipleOf,
		MinLength:        int(v.MinLength),
		Pattern:          v.Pattern,
		MinItems:         int(v.MinItems),
		UniqueItems:      v.UniqueItems,
		Nullable:         v.Nullable,
		Example:          v.Example,
		Required:         append([]string(nil), v.Required...),
	}
	if v.MaxLength != nil {
		ml := int(*v.MaxLength)
		n.MaxLength = &ml
	}
	if v.MaxItems != nil {
		mi := int(*v.MaxItems)
		n.MaxItems = &mi
	}
	if len(v.Enum) > 0 {
		n.Enum = append([]any(nil), v.Enum...)
	}
	if v.Items != nil {
		n.Items = r.schema(v.Items, depth, where)
	}
	if len(v.Properties) > 0 {
		n.Properties = make(map[string]*SchemaNode, len(v.Properties))
		names := make([]string, 0, len(v.Properties))
		for name := range v.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			n.Properties[name] = r.schema(v.Properties[name], depth, where+"."+name)
		}
	}
	for _, sub := range v.AllOf {
		n.AllOf = append(n.AllOf, r.schema(sub, depth, where))
	}
	for _, sub := range v.OneOf {
		n.OneOf = append(n.OneOf, r.schema(sub, depth, where))
	}
	for _, sub := range v.AnyOf {
		n.AnyOf = append(n.AnyOf, r.schema(sub, depth, where))
	}
	return n
}

// bodySchema picks the JSON media type when present, otherwise the first
// mime in sorted order, mirroring how examples are picked deterministically.
func bodySchema(content openapi3.Content, res *resolver, where string) *SchemaNode {
	if len(content) == 0 {
		return nil
	}
	if mt := content.Get("application/json"); mt != nil && mt.Schema != nil {
		return res.schema(mt.Schema, 0, where)
	}
	mimes := make([]string, 0, len(content))
	for m := range content {
		mimes = append(mimes, m)
	}
	sort.Strings(mimes)
	for _, m := range mimes {
		if mt := content[m]; mt != nil && mt.Schema != nil {
			return res.schema(mt.Schema, 0, where)
		}
	}
	return nil
}

// mergeParameters applies path-level parameters first, overridden by
// operation-level ones, and returns them sorted by (in, name).
func mergeParameters(base, override openapi3.Parameters, res *resolver) []Parameter {
	merged := make(map[string]Parameter)
	add := func(list openapi3.Parameters) {
		for _, pref := range list {
			if pref == nil || pref.Value == nil {
				continue
			}
			pv := pref.Value
			p := Parameter{
				Name:     strings.TrimSpace(pv.Name),
				In:       strings.TrimSpace(pv.In),
				Required: pv.Required,
			}
			if pv.Schema != nil {
				p.Schema = res.schema(pv.Schema, 0, "parameter "+p.Name)
			}
			merged[p.In+":"+p.Name] = p
		}
	}
	add(base)
	add(override)
	if len(merged) == 0 {
		return nil
	}
	out := make([]Parameter, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].In == out[j].In {
			return out[i].Name < out[j].Name
		}
		return out[i].In < out[j].In
	})
	return out
}

func securitySchemes(doc *openapi3.T) map[string]SecurityRequirement {
	out := make(map[string]SecurityRequirement)
	if doc.Components == nil {
		return out
	}
	for name, ref := range doc.Components.SecuritySchemes {
		if ref == nil || ref.Value == nil {
			continue
		}
		v := ref.Value
		req := SecurityRequirement{Name: name, Scheme: v.Type, In: v.In, Header: v.Name}
		if req.Header == "" {
			// http bearer/basic and oauth2 flows all travel in Authorization.
			req.Header = "Authorization"
		}
		out[name] = req
	}
	return out
}

func securityRequirements(reqs openapi3.SecurityRequirements, schemes map[string]SecurityRequirement) []SecurityRequirement {
	if len(reqs) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []SecurityRequirement
	for _, req := range reqs {
		names := make([]string, 0, len(req))
		for name := range req {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if s, ok := schemes[name]; ok {
				out = append(out, s)
			} else {
				// Declared but undescribed scheme: keep the name so auth
				// scenarios can still be planned against Authorization.
				out = append(out, SecurityRequirement{Name: name, Header: "Authorization"})
			}
		}
	}
	return out
}

func allowByTags(tags []string, cfg *ingestConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func collectSortedTags(ops []OperationDescriptor) []string {
	set := make(map[string]struct{})
	for _, op := range ops {
		for _, t := range op.Tags {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
