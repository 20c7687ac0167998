package fhir

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks a serialized payload before it is sent or after it is received
type Validator interface {
	Validate(content []byte) error
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(content []byte) error

// Validate implements Validator
func (f ValidatorFunc) Validate(content []byte) error {
	return f(content)
}

// InvalidContentError lists why a payload was rejected
type InvalidContentError struct {
	Issues []string
	Cause  error
}

func (e *InvalidContentError) Error() string {
	if len(e.Issues) == 0 {
		return "content is invalid"
	}
	return "content is invalid: " + strings.Join(e.Issues, "; ")
}

func (e *InvalidContentError) Unwrap() error {
	return e.Cause
}

// schemaLocation is the id the compiled schema is registered under
const schemaLocation = "https://erp-vau-go.local/fhir.schema.json"

// SchemaValidator validates JSON payloads against a JSON schema, typically
// the published fhir.schema.json. Empty content has nothing to validate and
// passes.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles schema
func NewSchemaValidator(schema []byte) (*SchemaValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaLocation, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &SchemaValidator{schema: compiled}, nil
}

// Validate implements Validator
func (v *SchemaValidator) Validate(content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return &InvalidContentError{Issues: []string{"not a JSON document"}, Cause: err}
	}

	if err := v.schema.Validate(instance); err != nil {
		return &InvalidContentError{Issues: schemaIssues(err), Cause: err}
	}
	return nil
}

// schemaIssues flattens the validation output into one issue per line. The
// first line of a multi-line report only names the schema.
func schemaIssues(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}

	lines := strings.Split(ve.Error(), "\n")
	if len(lines) > 1 {
		lines = lines[1:]
	}

	issues := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-"))
		if line != "" {
			issues = append(issues, line)
		}
	}
	if len(issues) == 0 {
		issues = append(issues, ve.Error())
	}
	return issues
}
