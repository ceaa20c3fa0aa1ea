package spec

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindMap
	KindList
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Node is a generic document value. Maps keep source key order.
//
// Every accessor is safe on a nil *Node and reports absence through defaults,
// so callers can chain lookups such as doc.Get("info").Get("title").
type Node struct {
	kind   Kind
	keys   []string
	fields map[string]*Node
	items  []*Node
	// scalar holds the source literal for strings, numbers and bools.
	scalar string
}

func NewMap() *Node { return &Node{kind: KindMap, fields: map[string]*Node{}} }

func NewList(items ...*Node) *Node { return &Node{kind: KindList, items: items} }

func NewString(s string) *Node { return &Node{kind: KindString, scalar: s} }

// NewNumber keeps lit verbatim, e.g. "2.0" stays "2.0".
func NewNumber(lit string) *Node { return &Node{kind: KindNumber, scalar: lit} }

func NewBool(b bool) *Node { return &Node{kind: KindBool, scalar: strconv.FormatBool(b)} }

func NewNull() *Node { return &Node{kind: KindNull} }

// Kind returns KindNull for a nil node.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

func (n *Node) IsMap() bool  { return n.Kind() == KindMap }
func (n *Node) IsList() bool { return n.Kind() == KindList }
func (n *Node) IsNull() bool { return n.Kind() == KindNull }

// IsScalar reports whether n is a string, number or bool.
func (n *Node) IsScalar() bool {
	switch n.Kind() {
	case KindString, KindNumber, KindBool:
		return true
	}
	return false
}

// Set adds key to a map node. A repeated key replaces the value but keeps
// the position of its first occurrence.
func (n *Node) Set(key string, v *Node) {
	if n == nil || n.kind != KindMap {
		return
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
}

// Append adds an item to a list node.
func (n *Node) Append(v *Node) {
	if n == nil || n.kind != KindList {
		return
	}
	n.items = append(n.items, v)
}

// Get returns the value under key, or nil when n is not a map or lacks key.
func (n *Node) Get(key string) *Node {
	if !n.IsMap() {
		return nil
	}
	return n.fields[key]
}

// Has reports whether a map node declares key, even with a null value.
func (n *Node) Has(key string) bool {
	if !n.IsMap() {
		return false
	}
	_, ok := n.fields[key]
	return ok
}

// Keys returns map keys in source order.
func (n *Node) Keys() []string {
	if !n.IsMap() {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Index returns the i-th list item, or nil when out of range.
func (n *Node) Index(i int) *Node {
	if !n.IsList() || i < 0 || i >= len(n.items) {
		return nil
	}
	return n.items[i]
}

// Items returns list items in order.
func (n *Node) Items() []*Node {
	if !n.IsList() {
		return nil
	}
	out := make([]*Node, len(n.items))
	copy(out, n.items)
	return out
}

// Len is the number of map entries or list items.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindMap:
		return len(n.keys)
	case KindList:
		return len(n.items)
	}
	return 0
}

// String returns the scalar literal, or "" for null and collections.
func (n *Node) String() string {
	if !n.IsScalar() {
		return ""
	}
	return n.scalar
}

// StringOr returns the scalar literal, or def when n is absent, null, a
// collection or blank.
func (n *Node) StringOr(def string) string {
	if !n.IsScalar() || strings.TrimSpace(n.scalar) == "" {
		return def
	}
	return n.scalar
}

// BoolOr interprets a bool scalar, or a "true"/"false" string.
func (n *Node) BoolOr(def bool) bool {
	switch n.Kind() {
	case KindBool, KindString:
		if b, err := strconv.ParseBool(strings.TrimSpace(n.scalar)); err == nil {
			return b
		}
	}
	return def
}

// MarshalJSON writes the node back as JSON keeping map key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	switch n.Kind() {
	case KindMap:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := n.fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindList:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindString:
		b, err := json.Marshal(n.scalar)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		// YAML literals such as 0x1F or .inf are not valid JSON numbers.
		if json.Valid([]byte(n.scalar)) {
			buf.WriteString(n.scalar)
			return nil
		}
		b, err := json.Marshal(n.scalar)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindBool:
		buf.WriteString(n.scalar)
	default:
		buf.WriteString("null")
	}
	return nil
}
