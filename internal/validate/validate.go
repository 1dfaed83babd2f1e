// Package validate checks JSON bodies against JSON Schema documents.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema given as JSON text, raw bytes or an already
// decoded document such as a schema embedded in a YAML config.
func Compile(schema any) (*Schema, error) {
	var data []byte
	switch s := schema.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		encoded, err := json.Marshal(s)
		if err != nil {
			return nil, errors.Wrap(err, "encoding schema")
		}
		data = encoded
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "invalid schema")
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, errors.Wrap(err, "invalid schema")
	}
	return &Schema{schema: compiled}, nil
}

// CompileFile compiles the schema stored at path.
func CompileFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading schema file")
	}
	return Compile(data)
}

// Validate checks body against the schema. It returns nil when the body is
// valid.
func (s *Schema) Validate(body []byte) ValidationErrors {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}

	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		if causes := flatten(verr); len(causes) > 0 {
			return causes
		}
	}
	return ValidationErrors{err}
}

// Validate validates a JSON string against a JSON Schema string.
func Validate(jsonStr, schemaStr string) (bool, error) {
	schema, err := Compile(schemaStr)
	if err != nil {
		return false, err
	}
	var doc any
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}
	return schema.schema.Validate(doc) == nil, nil
}

// flatten returns the leaf errors of a validation error tree.
func flatten(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		return ValidationErrors{fmt.Errorf("validation error at %s: %s", location, err.Message)}
	}

	var out ValidationErrors
	for _, cause := range err.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
