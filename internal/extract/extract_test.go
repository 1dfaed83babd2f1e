package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `{
	"users": [
		{"name": "tobi", "email": "tobi@example.com", "age": 3},
		{"name": "loki", "email": null}
	],
	"total": 2,
	"meta": {"next page": "/users?page=2"}
}`

func TestExtract(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"$.users[0].name", "tobi"},
		{"$.users[1].email", "null"},
		{"$.total", "2"},
		{"$['meta']['next page']", "/users?page=2"},
		{"users.0.age", "3"},
		{"users.#", "2"},
		{"$.users[0]", `{"name": "tobi", "email": "tobi@example.com", "age": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Extract(doc, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Root(t *testing.T) {
	got, err := Extract(`[1,2]`, "$")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got)

	got, err = Extract(`[1,2]`, "$[1]")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract("", "$.a")
	assert.Error(t, err)

	_, err = Extract(doc, "")
	assert.Error(t, err)

	_, err = Extract("{not json", "$.a")
	assert.EqualError(t, err, "invalid JSON")

	_, err = Extract(doc, "$.missing")
	assert.EqualError(t, err, "path not found: $.missing")
}

func TestExtractMultiple(t *testing.T) {
	got, err := ExtractMultiple(doc, map[string]string{
		"first": "$.users[0].name",
		"count": "$.total",
		"nope":  "$.nope",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope: path not found")
	assert.Equal(t, map[string]string{"first": "tobi", "count": "2"}, got)

	_, err = ExtractMultiple(doc, nil)
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{"id=$.id", "q=$.a==b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "$.id", "q": "$.a==b"}, got)

	_, err = ParseAssignments([]string{"broken"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"=path"})
	assert.Error(t, err)
}
