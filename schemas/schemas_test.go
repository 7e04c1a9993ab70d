package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSchema_ValidJSON(t *testing.T) {
	var schemaObj map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Config), &schemaObj))

	assert.Equal(t, "object", schemaObj["type"])
	assert.Contains(t, schemaObj, "$schema")

	props, ok := schemaObj["properties"].(map[string]interface{})
	require.True(t, ok, "schema should declare properties")
	for _, key := range []string{"input", "output", "concurrency", "timeout", "extractor", "database_url"} {
		assert.Contains(t, props, key)
	}
}
