package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actionSchema = `{
  "type": "object",
  "properties": {
    "leakId": {"type": "string"},
    "recommendedAction": {"type": "string", "maxLength": 10}
  },
  "required": ["leakId"]
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile("action", actionSchema)

	tests := []struct {
		name  string
		body  string
		valid bool
		field string
	}{
		{"valid", `{"leakId":"leak-1"}`, true, ""},
		{"missing required", `{}`, false, "(root)"},
		{"wrong type", `{"leakId":42}`, false, "leakId"},
		{"too long", `{"leakId":"x","recommendedAction":"call them right now"}`, false, "recommendedAction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateJSON([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.field, res.Errors[0].Field)
				assert.Contains(t, res.Message(), tt.field)
			}
		})
	}
}

func TestSchema_MalformedDocument(t *testing.T) {
	_, err := MustCompile("action", actionSchema).ValidateJSON([]byte(`{"leakId":`))
	assert.Error(t, err)
}

func TestSchema_ValidateInput(t *testing.T) {
	res, err := MustCompile("action", actionSchema).ValidateInput(map[string]interface{}{"leakId": "leak-2"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCompile_BadSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
}
