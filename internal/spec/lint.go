package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// Lint runs kin-openapi validation over doc and returns the findings as
// warnings. It never blocks generation: documents that fail here are still
// extracted with defaults. A panic inside kin-openapi on a malformed document
// is reported as a warning as well.
func Lint(ctx context.Context, doc *Node) (warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			warnings = append(warnings, fmt.Sprintf("lint aborted: %v", r))
		}
	}()
	return lint(ctx, dropNulls(doc))
}

func lint(ctx context.Context, doc *Node) []string {
	if !doc.IsMap() {
		return []string{"document root is not a mapping"}
	}

	var (
		v3  *openapi3.T
		err error
	)
	switch {
	case strings.HasPrefix(doc.Get("openapi").String(), "3."):
		v3, err = loadV3(withStringField(doc, "openapi"))
	case strings.HasPrefix(doc.Get("swagger").String(), "2."):
		v3, err = convertV2(withStringField(doc, "swagger"))
	default:
		return []string{"missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')"}
	}
	if err != nil {
		return []string{err.Error()}
	}
	if err := v3.Validate(ctx); err != nil {
		return flatten(err)
	}
	return nil
}

func loadV3(doc *Node) (*openapi3.T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	v3, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi 3 document: %w", err)
	}
	return v3, nil
}

func convertV2(doc *Node) (*openapi3.T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, fmt.Errorf("decode swagger 2 document: %w", err)
	}
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return nil, fmt.Errorf("convert v2 to v3: %w", err)
	}
	return v3, nil
}

// withStringField returns a shallow copy of doc whose key holds a string,
// since YAML reads an unquoted "2.0" as a number.
func withStringField(doc *Node, key string) *Node {
	v := doc.Get(key)
	if v.Kind() == KindString {
		return doc
	}
	out := NewMap()
	for _, k := range doc.Keys() {
		if k == key {
			out.Set(k, NewString(v.String()))
			continue
		}
		out.Set(k, doc.Get(k))
	}
	return out
}

// dropNulls returns a copy of n without null map values or list items.
// openapi2conv dereferences such entries without checking them.
func dropNulls(n *Node) *Node {
	switch {
	case n.IsMap():
		out := NewMap()
		for _, k := range n.Keys() {
			v := n.Get(k)
			if v.IsNull() {
				continue
			}
			out.Set(k, dropNulls(v))
		}
		return out
	case n.IsList():
		out := NewList()
		for _, v := range n.Items() {
			if v.IsNull() {
				continue
			}
			out.Append(dropNulls(v))
		}
		return out
	}
	return n
}

func flatten(err error) []string {
	var me openapi3.MultiError
	if errors.As(err, &me) {
		out := make([]string, 0, len(me))
		for _, e := range me {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
