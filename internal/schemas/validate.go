// Package schemas holds the JSON Schemas for every response the prediction
// service returns and validates response bodies against them.
package schemas

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names
const (
	Ambiguity   = "ambiguity"
	WellFormed  = "well-formed"
	Suggestions = "suggestions"
	Verify      = "verify"
)

//go:embed json/*.schema.json
var files embed.FS

// ValidationError lists every schema violation found in a document
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError is a single violation at a field path
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s response does not match schema:", ve.Schema)
	for _, fe := range ve.Errors {
		fmt.Fprintf(&sb, " %s: %s;", fe.Field, fe.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// SchemaLoadError means the named schema is missing or unusable
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Names returns the available schema names, sorted
func Names() []string {
	entries, err := files.ReadDir("json")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".schema.json"))
	}
	sort.Strings(names)
	return names
}

// Source returns the raw schema document
func Source(name string) (string, error) {
	raw, err := files.ReadFile("json/" + name + ".schema.json")
	if err != nil {
		return "", &SchemaLoadError{Name: name, Cause: err}
	}
	return string(raw), nil
}

// Validate checks body against the named schema. A body that is not JSON at
// all yields a wrapped parse error rather than a ValidationError.
func Validate(name string, body []byte) error {
	schema, err := Source(name)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("validate %s response: %w", name, err)
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
