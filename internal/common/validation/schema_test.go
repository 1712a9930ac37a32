package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreSchema(t *testing.T) {
	schema := MustCompile(ScoreSchema("traction_score"))

	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"number", `{"traction_score":0.4}`, true},
		{"integer", `{"traction_score":1}`, true},
		{"lower bound", `{"traction_score":0}`, true},
		{"above one", `{"traction_score":1.7}`, false},
		{"negative", `{"traction_score":-0.4}`, false},
		{"extra fields", `{"traction_score":0.4,"features_used":3}`, true},
		{"empty error", `{"traction_score":0.4,"error":""}`, true},
		{"null error", `{"traction_score":0.4,"error":null}`, true},
		{"missing", `{}`, false},
		{"string", `{"traction_score":"0.4"}`, false},
		{"error set", `{"traction_score":0.4,"error":"boom"}`, false},
		{"not an object", `[1]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := schema.ValidateBytes([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid, result.Summary())
			if !tt.valid {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

func TestSchema_ValidateBytesRejectsInvalidJSON(t *testing.T) {
	schema := MustCompile(ScoreSchema("x"))

	_, err := schema.ValidateBytes([]byte(`{"x":`))
	assert.Error(t, err)
}

func TestSchema_ValidateGoValue(t *testing.T) {
	schema := MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"investor", "startup"},
	})

	result, err := schema.Validate(map[string]interface{}{"investor": map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Summary(), "startup")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 42})
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustCompile(map[string]interface{}{"type": 42})
	})
}
