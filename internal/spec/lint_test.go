package spec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLintValidOpenAPI3(t *testing.T) {
	src := `
openapi: 3.0.0
info:
  title: Pets
  version: "1.0.0"
paths:
  /pets:
    get:
      responses:
        "200":
          description: ok
`
	assert.Empty(t, Lint(context.Background(), mustNormalize(t, src, "yaml")))
}

func TestLintReportsMissingVersion(t *testing.T) {
	warnings := Lint(context.Background(), mustNormalize(t, `{"info":{"title":"x"}}`, "json"))
	if assert.Len(t, warnings, 1) {
		assert.True(t, strings.Contains(warnings[0], "version"))
	}
}

func TestLintReportsInvalidDocument(t *testing.T) {
	src := `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":{"get":{"responses":{}}}}}`
	assert.NotEmpty(t, Lint(context.Background(), mustNormalize(t, src, "json")))
}

func TestLintConvertsSwagger2(t *testing.T) {
	src := `
swagger: 2.0
info:
  title: Legacy
  version: "1"
paths:
  /items:
    get:
      responses:
        "200":
          description: ok
`
	assert.Empty(t, Lint(context.Background(), mustNormalize(t, src, "yaml")))
}

func TestLintNonMapRoot(t *testing.T) {
	assert.Len(t, Lint(context.Background(), NewList()), 1)
}

func TestLintToleratesNullEntries(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"v2 null definition", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{},"definitions":{"A":null}}`},
		{"v2 null parameter", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{"/a":{"get":{"parameters":[null],"responses":{"200":{"description":"ok"}}}}}}`},
		{"v2 null response", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{"/a":{"get":{"responses":{"200":null}}}}}`},
		{"v2 null operation", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{"/a":{"get":null}}}`},
		{"v2 null path item", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{"/a":null}}`},
		{"v2 null top-level parameter", `{"swagger":"2.0","info":{"title":"Legacy","version":"1"},"paths":{},"parameters":{"P":null}}`},
		{"v3 null path item", `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":null}}`},
		{"v3 null operation", `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":{"get":null}}}`},
		{"v3 null parameter", `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":{"get":{"parameters":[null],"responses":{"200":{"description":"ok"}}}}}}`},
		{"v3 null response", `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{"/a":{"get":{"responses":{"200":null}}}}}`},
		{"v3 null schema", `{"openapi":"3.0.0","info":{"title":"x","version":"1"},"paths":{},"components":{"schemas":{"A":null}}}`},
		{"null info", `{"openapi":"3.0.0","info":null,"paths":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustNormalize(t, tt.src, "json")
			assert.NotPanics(t, func() { Lint(context.Background(), doc) })
			assert.NotPanics(t, func() { Extract(doc) })
		})
	}
}

func TestLintDropNullsKeepsOtherEntries(t *testing.T) {
	doc := mustNormalize(t, `{"a":null,"b":[1,null,2],"c":{"d":null,"e":"x"}}`, "json")
	got := dropNulls(doc)
	assert.Equal(t, []string{"b", "c"}, got.Keys())
	assert.Equal(t, 2, got.Get("b").Len())
	assert.Equal(t, []string{"e"}, got.Get("c").Keys())
	assert.True(t, doc.Has("a"), "input must not be modified")
}
