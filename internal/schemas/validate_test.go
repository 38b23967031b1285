package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{Ambiguity, Suggestions, Verify, WellFormed}, Names())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		body   string
		valid  bool
	}{
		{"ambiguity ok", Ambiguity, `{"ambiguity_prediction": 0, "outcome_text": "Ambiguous"}`, true},
		{"ambiguity out of range", Ambiguity, `{"ambiguity_prediction": 2}`, false},
		{"ambiguity wrong field", Ambiguity, `{"well_formed_prediction": 1}`, false},
		{"ambiguity string verdict", Ambiguity, `{"ambiguity_prediction": "1"}`, false},
		{"well-formed ok", WellFormed, `{"well_formed_prediction": 1}`, true},
		{"well-formed fractional", WellFormed, `{"well_formed_prediction": 0.5}`, false},
		{"suggestions ok", Suggestions, `{"suggestions": ["Enhancing clarity: x"]}`, true},
		{"suggestions empty list", Suggestions, `{"suggestions": []}`, true},
		{"suggestions missing", Suggestions, `{}`, false},
		{"suggestions not a list", Suggestions, `{"suggestions": "Enhancing clarity: x"}`, false},
		{"suggestions null", Suggestions, `{"suggestions": null}`, false},
		{"suggestions non-string item", Suggestions, `{"suggestions": [1]}`, false},
		{"verify ok", Verify, `{"success": true, "message": "Credentials are valid"}`, true},
		{"verify failure ok", Verify, `{"success": false, "error": "Invalid credentials"}`, true},
		{"verify error only", Verify, `{"error": "boom"}`, true},
		{"verify missing success and error", Verify, `{"ok": true}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.schema, []byte(tt.body))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "error should be ValidationError type")
			assert.NotEmpty(t, ve.Errors)
			assert.Equal(t, tt.schema, ve.Schema)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	var le *SchemaLoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "nope", le.Name)
}

func TestValidate_NotJSON(t *testing.T) {
	err := Validate(Suggestions, []byte(`<html>502 Bad Gateway</html>`))
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}
