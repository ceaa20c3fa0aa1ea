package spec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/apitestgen/pkg/types"
)

func mustNormalize(t *testing.T, src, format string) *Node {
	t.Helper()
	doc, err := Normalize([]byte(src), format)
	require.NoError(t, err)
	return doc
}

func TestExtractPetStore(t *testing.T) {
	doc := mustNormalize(t, `{"info":{"title":"Pet Store","version":"2.0"},"paths":{"/pets":{"get":{"summary":"List pets","parameters":[],"responses":{"200":{}}}}}}`, "json")
	got := Extract(doc)

	want := &types.APIDescription{
		Title:   "Pet Store",
		Version: "2.0",
		BaseURL: DefaultBaseURL,
		Endpoints: []types.Endpoint{{
			Method:     "GET",
			Path:       "/pets",
			Summary:    "List pets",
			Parameters: []types.Parameter{},
			Responses:  []types.Response{{Code: "200", Description: "200"}},
		}},
		Schemas: []types.Schema{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDefaults(t *testing.T) {
	api := Extract(mustNormalize(t, `{"paths":{}}`, "json"))
	assert.Equal(t, DefaultTitle, api.Title)
	assert.Equal(t, DefaultVersion, api.Version)
	assert.Equal(t, "", api.Description)
	assert.Equal(t, DefaultBaseURL, api.BaseURL)
	assert.NotNil(t, api.Endpoints)
	assert.Empty(t, api.Endpoints)
	assert.Empty(t, api.Schemas)
}

func TestExtractNilAndNonMapDocuments(t *testing.T) {
	for _, doc := range []*Node{nil, NewNull(), NewList(), NewString("x")} {
		api := Extract(doc)
		assert.Equal(t, DefaultTitle, api.Title)
		assert.Empty(t, api.Endpoints)
	}
}

func TestExtractKeepsPathAndMethodOrder(t *testing.T) {
	doc := mustNormalize(t, `{"paths":{"/b":{"post":{},"GET":{}},"/a":{"get":{},"parameters":[],"summary":"x"}}}`, "json")
	api := Extract(doc)
	var got []string
	for _, ep := range api.Endpoints {
		got = append(got, ep.Method+" "+ep.Path)
	}
	assert.Equal(t, []string{"POST /b", "GET /b", "GET /a"}, got)
}

func TestExtractServers(t *testing.T) {
	api := Extract(mustNormalize(t, `{"servers":[{"url":"https://api.example.com/v1"},{"url":"http://other"}]}`, "json"))
	assert.Equal(t, "https://api.example.com/v1", api.BaseURL)

	api = Extract(mustNormalize(t, `{"servers":[]}`, "json"))
	assert.Equal(t, DefaultBaseURL, api.BaseURL)
}

func TestExtractSwagger2(t *testing.T) {
	src := `
swagger: "2.0"
info:
  title: Legacy
host: legacy.example.com
basePath: /api
schemes: [https]
parameters:
  limitParam:
    name: limit
    in: query
    type: integer
paths:
  /items:
    get:
      parameters:
        - $ref: '#/parameters/limitParam'
        - name: q
          in: query
          required: true
          type: string
      responses:
        200:
          description: OK
definitions:
  Item:
    properties:
      id: {type: integer, format: int64}
      owner: {$ref: '#/definitions/User'}
      note: {}
`
	api := Extract(mustNormalize(t, src, "yaml"))
	assert.Equal(t, "https://legacy.example.com/api", api.BaseURL)
	require.Len(t, api.Endpoints, 1)
	want := []types.Parameter{
		{Name: "limit", In: "query", Type: "integer"},
		{Name: "q", In: "query", Required: true, Type: "string"},
	}
	if diff := cmp.Diff(want, api.Endpoints[0].Parameters); diff != "" {
		t.Fatalf("parameters mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []types.Response{{Code: "200", Description: "OK"}}, api.Endpoints[0].Responses)

	require.Len(t, api.Schemas, 1)
	assert.Equal(t, []types.Property{
		{Name: "id", Type: "integer", Format: "int64"},
		{Name: "owner", Type: "User"},
		{Name: "note", Type: UnknownType},
	}, api.Schemas[0].Properties)
}

func TestExtractParametersTolerateMissingFields(t *testing.T) {
	doc := mustNormalize(t, `{"paths":{"/x":{"get":{"parameters":[{"in":"query"},{"name":"id","schema":{"type":"string"}},"junk"]}}}}`, "json")
	params := Extract(doc).Endpoints[0].Parameters
	require.Len(t, params, 3)
	assert.Equal(t, "", params[0].Name)
	assert.Equal(t, "query", params[0].In)
	assert.Equal(t, "string", params[1].Type)
	assert.Equal(t, types.Parameter{}, params[2])
}

func TestExtractPathLevelParameters(t *testing.T) {
	doc := mustNormalize(t, `{"paths":{"/pets/{id}":{"parameters":[{"name":"id","in":"path"},{"name":"trace","in":"header"}],"get":{"parameters":[{"name":"id","in":"path","required":true}]}}}}`, "json")
	params := Extract(doc).Endpoints[0].Parameters
	assert.Equal(t, []types.Parameter{
		{Name: "id", In: "path", Required: true},
		{Name: "trace", In: "header"},
	}, params)
}

func TestExtractSchemasPreferComponents(t *testing.T) {
	doc := mustNormalize(t, `{"components":{"schemas":{"Pet":{"properties":{"name":{"type":"string"}}},"Err":{},"Pet":{"properties":{"id":{"type":"integer"}}}}},"definitions":{"Old":{}}}`, "json")
	schemas := Extract(doc).Schemas
	require.Len(t, schemas, 2)
	assert.Equal(t, "Pet", schemas[0].Name)
	assert.Equal(t, []types.Property{{Name: "id", Type: "integer"}}, schemas[0].Properties)
	assert.Equal(t, "Err", schemas[1].Name)
	assert.Empty(t, schemas[1].Properties)
}

func TestExtractBlankTitleFallsBack(t *testing.T) {
	api := Extract(mustNormalize(t, "info:\n  title: \"  \"\n  version: 3\n", "yaml"))
	assert.Equal(t, DefaultTitle, api.Title)
	assert.Equal(t, "3", api.Version)
}
