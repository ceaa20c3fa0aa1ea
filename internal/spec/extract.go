package spec

import (
	"strings"

	"github.com/yourorg/apitestgen/pkg/types"
)

const (
	DefaultTitle   = "API"
	DefaultVersion = "1.0.0"
	DefaultBaseURL = "http://localhost"
	UnknownType    = "unknown"
)

var httpMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {},
	"options": {}, "head": {}, "patch": {}, "trace": {},
}

// Extract builds an APIDescription from a normalized document. Missing
// sections are treated as empty and never reported as errors.
func Extract(doc *Node) *types.APIDescription {
	info := doc.Get("info")
	api := &types.APIDescription{
		Title:       info.Get("title").StringOr(DefaultTitle),
		Version:     info.Get("version").StringOr(DefaultVersion),
		Description: info.Get("description").String(),
		BaseURL:     baseURL(doc),
		Endpoints:   []types.Endpoint{},
		Schemas:     extractSchemas(doc),
	}

	paths := doc.Get("paths")
	for _, path := range paths.Keys() {
		item := paths.Get(path)
		shared := extractParameters(doc, item.Get("parameters"))
		for _, key := range item.Keys() {
			if _, ok := httpMethods[strings.ToLower(key)]; !ok {
				continue
			}
			op := item.Get(key)
			api.Endpoints = append(api.Endpoints, types.Endpoint{
				Method:     strings.ToUpper(key),
				Path:       path,
				Summary:    op.Get("summary").String(),
				Parameters: mergeParameters(shared, extractParameters(doc, op.Get("parameters"))),
				Responses:  extractResponses(op.Get("responses")),
			})
		}
	}
	return api
}

func baseURL(doc *Node) string {
	if u := doc.Get("servers").Index(0).Get("url").StringOr(""); u != "" {
		return u
	}
	// Swagger 2.0 describes the server as host + basePath.
	if host := doc.Get("host").StringOr(""); host != "" {
		scheme := doc.Get("schemes").Index(0).StringOr("http")
		return scheme + "://" + host + doc.Get("basePath").String()
	}
	return DefaultBaseURL
}

func extractParameters(doc *Node, list *Node) []types.Parameter {
	out := make([]types.Parameter, 0, list.Len())
	for _, p := range list.Items() {
		p = resolveRef(doc, p)
		typ := p.Get("schema").Get("type").String()
		if typ == "" {
			typ = p.Get("type").String()
		}
		out = append(out, types.Parameter{
			Name:     p.Get("name").String(),
			In:       p.Get("in").String(),
			Required: p.Get("required").BoolOr(false),
			Type:     typ,
		})
	}
	return out
}

// mergeParameters lets an operation parameter replace a path-level one with
// the same name and location.
func mergeParameters(shared, own []types.Parameter) []types.Parameter {
	if len(shared) == 0 {
		return own
	}
	out := make([]types.Parameter, len(shared), len(shared)+len(own))
	copy(out, shared)
	for _, p := range own {
		replaced := false
		if p.Name != "" {
			for i := range out {
				if out[i].Name == p.Name && out[i].In == p.In {
					out[i] = p
					replaced = true
					break
				}
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

func extractResponses(responses *Node) []types.Response {
	out := make([]types.Response, 0, responses.Len())
	for _, code := range responses.Keys() {
		out = append(out, types.Response{
			Code:        code,
			Description: responses.Get(code).Get("description").StringOr(code),
		})
	}
	return out
}

func extractSchemas(doc *Node) []types.Schema {
	section := doc.Get("components").Get("schemas")
	if !section.IsMap() {
		section = doc.Get("definitions")
	}
	out := make([]types.Schema, 0, section.Len())
	for _, name := range section.Keys() {
		props := section.Get(name).Get("properties")
		schema := types.Schema{Name: name, Properties: make([]types.Property, 0, props.Len())}
		for _, prop := range props.Keys() {
			p := props.Get(prop)
			schema.Properties = append(schema.Properties, types.Property{
				Name:   prop,
				Type:   propertyType(p),
				Format: p.Get("format").String(),
			})
		}
		out = append(out, schema)
	}
	return out
}

func propertyType(p *Node) string {
	if t := p.Get("type").StringOr(""); t != "" {
		return t
	}
	if ref := p.Get("$ref").StringOr(""); ref != "" {
		return ref[strings.LastIndex(ref, "/")+1:]
	}
	return UnknownType
}

// resolveRef follows a local "#/..." reference. Unresolvable references
// return n unchanged.
func resolveRef(doc, n *Node) *Node {
	for hops := 0; hops < 32; hops++ {
		ref := n.Get("$ref").StringOr("")
		if !strings.HasPrefix(ref, "#/") {
			return n
		}
		target := doc
		for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
			part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
			target = target.Get(part)
		}
		if target == nil {
			return n
		}
		n = target
	}
	return n
}
