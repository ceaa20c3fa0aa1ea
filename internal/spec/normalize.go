package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatYML  = "yml"
)

// maxDepth bounds nesting so alias chains cannot recurse forever.
const maxDepth = 1000

// maxAliasExpansion is the number of nodes aliases may add on top of twice
// the size of the source document.
const maxAliasExpansion = 100000

var errExcessiveAliasing = errors.New("document contains excessive aliasing")

// FormatFromFilename returns the lower-cased extension of name without the dot.
func FormatFromFilename(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsSupportedFormat reports whether Normalize accepts format.
func IsSupportedFormat(format string) bool {
	switch canonicalFormat(format) {
	case FormatJSON, FormatYAML:
		return true
	}
	return false
}

func canonicalFormat(format string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if f == FormatYML {
		return FormatYAML
	}
	return f
}

// Normalize parses text into a generic node tree. JSON is parsed strictly;
// YAML goes through yaml.v3 which never executes tags.
func Normalize(text []byte, format string) (*Node, error) {
	switch canonicalFormat(format) {
	case FormatJSON:
		return normalizeJSON(text)
	case FormatYAML:
		return normalizeYAML(text)
	default:
		return nil, &UnsupportedFormatError{Format: format}
	}
}

func normalizeJSON(text []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	n, err := decodeJSONValue(dec, 0)
	if err != nil {
		return nil, jsonParseError(text, dec, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("invalid data after top-level value")
		}
		return nil, jsonParseError(text, dec, err)
	}
	return n, nil
}

func decodeJSONValue(dec *json.Decoder, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, errors.New("document nesting too deep")
	}
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, errors.New("object key must be a string")
				}
				v, err := decodeJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				m.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			l := NewList()
			for dec.More() {
				v, err := decodeJSONValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				l.Append(v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return l, nil
		}
		return nil, errors.New("unexpected delimiter " + t.String())
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return NewNull(), nil
	}
	return nil, errors.New("unexpected token")
}

func jsonParseError(text []byte, dec *json.Decoder, err error) *ParseError {
	offset := dec.InputOffset()
	msg := err.Error()
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		offset = syn.Offset
	} else if errors.Is(err, io.ErrUnexpectedEOF) {
		msg = "unexpected end of JSON input"
	}
	line, col := lineColumn(text, offset)
	return &ParseError{Format: FormatJSON, Offset: offset, Line: line, Column: col, Msg: msg, Err: err}
}

// lineColumn converts a byte offset into 1-based line and column numbers.
func lineColumn(text []byte, offset int64) (int, int) {
	if offset < 0 {
		return 0, 0
	}
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	prefix := text[:offset]
	line := bytes.Count(prefix, []byte("\n")) + 1
	col := int(offset) - (bytes.LastIndexByte(prefix, '\n') + 1) + 1
	return line, col
}

var yamlLineRe = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

func normalizeYAML(text []byte) (*Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(text, &root); err != nil {
		return nil, yamlParseError(err)
	}
	c := &yamlConverter{budget: 2*countYAML(&root) + maxAliasExpansion}
	n, err := c.convert(&root, 0)
	if err != nil {
		return nil, &ParseError{Format: FormatYAML, Offset: -1, Msg: err.Error(), Err: err}
	}
	return n, nil
}

func yamlParseError(err error) *ParseError {
	pe := &ParseError{Format: FormatYAML, Offset: -1, Msg: strings.TrimPrefix(err.Error(), "yaml: "), Err: err}
	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
		pe.Msg = m[2]
	}
	return pe
}

// yamlConverter turns a yaml.Node tree into Nodes. Every alias is expanded
// into its own copy, so the total output is capped by budget.
type yamlConverter struct {
	budget int
}

// countYAML counts the nodes of y without following aliases.
func countYAML(y *yaml.Node) int {
	if y == nil {
		return 0
	}
	n := 1
	for _, c := range y.Content {
		n += countYAML(c)
	}
	return n
}

func (c *yamlConverter) convert(y *yaml.Node, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, errors.New("document nesting too deep")
	}
	c.budget--
	if c.budget < 0 {
		return nil, errExcessiveAliasing
	}
	if y == nil {
		return NewNull(), nil
	}
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return NewNull(), nil
		}
		return c.convert(y.Content[0], depth+1)
	case yaml.AliasNode:
		return c.convert(y.Alias, depth+1)
	case yaml.MappingNode:
		m := NewMap()
		var merges []*yaml.Node
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
				merges = append(merges, v)
				continue
			}
			val, err := c.convert(v, depth+1)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, val)
		}
		// Merged keys never override explicit ones.
		for _, src := range merges {
			if err := c.mergeInto(m, src, depth+1); err != nil {
				return nil, err
			}
		}
		return m, nil
	case yaml.SequenceNode:
		l := NewList()
		for _, item := range y.Content {
			val, err := c.convert(item, depth+1)
			if err != nil {
				return nil, err
			}
			l.Append(val)
		}
		return l, nil
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!null":
			return NewNull(), nil
		case "!!bool":
			var b bool
			if err := y.Decode(&b); err != nil {
				return NewString(y.Value), nil
			}
			return NewBool(b), nil
		case "!!int", "!!float":
			return NewNumber(y.Value), nil
		default:
			return NewString(y.Value), nil
		}
	}
	return NewNull(), nil
}

func (c *yamlConverter) mergeInto(dst *Node, src *yaml.Node, depth int) error {
	val, err := c.convert(src, depth)
	if err != nil {
		return err
	}
	sources := []*Node{val}
	if val.IsList() {
		sources = val.Items()
	}
	for _, s := range sources {
		for _, k := range s.Keys() {
			if !dst.Has(k) {
				dst.Set(k, s.Get(k))
			}
		}
	}
	return nil
}
