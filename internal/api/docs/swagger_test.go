package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSwagger(t *testing.T) {
	raw := NewSwagger().MustToJson()

	var doc struct {
		BasePath string         `json:"basePath"`
		Paths    map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/results/{session_key}/{candidate_email}")
	assert.Contains(t, doc.Paths, "/results/{session_key}")
}
