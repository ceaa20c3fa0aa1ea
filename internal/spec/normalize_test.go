package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONKeepsKeyOrder(t *testing.T) {
	doc, err := Normalize([]byte(`{"paths":{"/b":{},"/a":{},"/c":{}}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b", "/a", "/c"}, doc.Get("paths").Keys())
}

func TestNormalizeJSONScalars(t *testing.T) {
	doc, err := Normalize([]byte(`{"s":"x","n":2.0,"b":true,"z":null,"l":[1,"two"]}`), "JSON")
	require.NoError(t, err)
	assert.Equal(t, KindString, doc.Get("s").Kind())
	assert.Equal(t, "2.0", doc.Get("n").String())
	assert.Equal(t, KindNumber, doc.Get("n").Kind())
	assert.True(t, doc.Get("b").BoolOr(false))
	assert.True(t, doc.Has("z"))
	assert.True(t, doc.Get("z").IsNull())
	assert.Equal(t, 2, doc.Get("l").Len())
	assert.Equal(t, "two", doc.Get("l").Index(1).String())
}

func TestNormalizeJSONDuplicateKeyKeepsFirstPosition(t *testing.T) {
	doc, err := Normalize([]byte(`{"a":1,"b":2,"a":3}`), "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, doc.Keys())
	assert.Equal(t, "3", doc.Get("a").String())
}

func TestNormalizeJSONSyntaxErrorPosition(t *testing.T) {
	_, err := Normalize([]byte("{\n  \"a\": 1,\n  \"b\": ]\n}"), "json")
	require.Error(t, err)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "expected ParseError, got %T", err)
	assert.Equal(t, FormatJSON, pe.Format)
	assert.Equal(t, 3, pe.Line)
	assert.Greater(t, pe.Column, 0)
}

func TestNormalizeJSONRejectsTrailingData(t *testing.T) {
	_, err := Normalize([]byte(`{"a":1} {"b":2}`), "json")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
}

func TestNormalizeJSONEmptyInput(t *testing.T) {
	_, err := Normalize([]byte("   "), "json")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Msg, "unexpected end")
}

func TestNormalizeYAML(t *testing.T) {
	src := `
info:
  title: Pet Store
  version: 2.0
paths:
  /pets:
    get:
      responses:
        200:
          description: ok
        "404":
          description: missing
`
	doc, err := Normalize([]byte(src), ".yml")
	require.NoError(t, err)
	assert.Equal(t, "Pet Store", doc.Get("info").Get("title").String())
	assert.Equal(t, "2.0", doc.Get("info").Get("version").String())
	responses := doc.Get("paths").Get("/pets").Get("get").Get("responses")
	assert.Equal(t, []string{"200", "404"}, responses.Keys())
}

func TestNormalizeYAMLAliasAndMerge(t *testing.T) {
	src := `
base: &base
  type: string
  format: uuid
id:
  <<: *base
  format: custom
ref: *base
`
	doc, err := Normalize([]byte(src), "yaml")
	require.NoError(t, err)
	assert.Equal(t, "string", doc.Get("id").Get("type").String())
	assert.Equal(t, "custom", doc.Get("id").Get("format").String())
	assert.Equal(t, "uuid", doc.Get("ref").Get("format").String())
}

func TestNormalizeYAMLRejectsAliasBomb(t *testing.T) {
	var b strings.Builder
	b.WriteString("a0: &a0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 7; i++ {
		prev := fmt.Sprintf("*a%d", i-1)
		fmt.Fprintf(&b, "a%d: &a%d [%s]\n", i, i, strings.TrimSuffix(strings.Repeat(prev+", ", 10), ", "))
	}

	_, err := Normalize([]byte(b.String()), "yaml")
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
	assert.ErrorIs(t, err, errExcessiveAliasing)
	assert.Equal(t, FormatYAML, pe.Format)
}

func TestNormalizeYAMLAllowsModestAliasReuse(t *testing.T) {
	var b strings.Builder
	b.WriteString("shared: &s {type: string, format: uuid}\nfields:\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "  f%d: *s\n", i)
	}
	doc, err := Normalize([]byte(b.String()), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 500, doc.Get("fields").Len())
	assert.Equal(t, "uuid", doc.Get("fields").Get("f499").Get("format").String())
}

func TestNormalizeYAMLSyntaxError(t *testing.T) {
	_, err := Normalize([]byte("info:\n  title: [unclosed\n"), "yaml")
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
	assert.Equal(t, FormatYAML, pe.Format)
	assert.NotEmpty(t, pe.Msg)
}

func TestNormalizeYAMLEmptyDocument(t *testing.T) {
	doc, err := Normalize([]byte(""), "yaml")
	require.NoError(t, err)
	assert.True(t, doc.IsNull())
}

func TestNormalizeUnsupportedFormat(t *testing.T) {
	_, err := Normalize([]byte("<xml/>"), "xml")
	var ue *UnsupportedFormatError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "xml", ue.Format)
}

func TestFormatFromFilename(t *testing.T) {
	assert.Equal(t, "yml", FormatFromFilename("petstore.YML"))
	assert.Equal(t, "json", FormatFromFilename("/tmp/a.b/spec.json"))
	assert.Equal(t, "", FormatFromFilename("spec"))
	assert.True(t, IsSupportedFormat("yml"))
	assert.False(t, IsSupportedFormat("txt"))
}

func TestNodeNilSafety(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Get("a").Get("b"))
	assert.Equal(t, "d", n.StringOr("d"))
	assert.Equal(t, 0, n.Len())
	assert.Nil(t, n.Keys())
	assert.Nil(t, n.Index(0))
}

func TestNodeMarshalJSONKeepsOrder(t *testing.T) {
	doc, err := Normalize([]byte("z: 1\na: [true, null, x]\nm: 0x1F\n"), "yaml")
	require.NoError(t, err)
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":[true,null,"x"],"m":"0x1F"}`, string(b))
}
