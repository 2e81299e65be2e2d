package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CoversWorkers(t *testing.T) {
	reg := Default()

	for _, taskType := range []string{"run-leak-audit", "send-leak-alert"} {
		a, ok := reg.Lookup(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.ErrorCodes)

		schema, err := reg.InputSchema(taskType)
		require.NoError(t, err)
		require.NotNil(t, schema)
	}
}

func TestInputSchema_ValidatesJobVariables(t *testing.T) {
	schema, err := Default().InputSchema("run-leak-audit")
	require.NoError(t, err)

	res, err := schema.ValidateJSON([]byte(`{"provider":"hubspot","credentials":{"apiKey":"abcdef"},"processVar":1}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = schema.ValidateJSON([]byte(`{"credentials":{"apiKey":42}}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestInputSchema_UnknownTask(t *testing.T) {
	_, err := Default().InputSchema("nope")
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte(`{"activities":[{"id":"a"}]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"activities":[{"id":"a","taskType":"x"},{"id":"b","taskType":"x"}]}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{`))
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, os.WriteFile(path, defaultActivities, 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 2)
}
