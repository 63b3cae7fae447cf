package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsvalidate "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// manifestSchema is the JSON Schema every manifest must satisfy. Field
// semantics beyond shape (semver syntax, id charset) are enforced by
// the descriptor constructor; this layer rejects malformed documents
// early with readable findings.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "displayName", "version", "author", "apiVersion"],
  "properties": {
    "id": {
      "type": "string",
      "minLength": 1,
      "maxLength": 64,
      "pattern": "^[a-z0-9][a-z0-9._-]*$"
    },
    "displayName": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "author": {"type": "string", "minLength": 1},
    "apiVersion": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "loadOrder": {"type": "integer"},
    "permissions": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "dependencies": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  },
  "additionalProperties": false
}`

// SchemaValidator validates manifests against the embedded JSON schema.
type SchemaValidator struct {
	schema *jsvalidate.Schema
}

// NewSchemaValidator compiles the manifest schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	compiler := jsvalidate.NewCompiler()
	const url = "inline://manifest.schema.json"
	if err := compiler.AddResource(url, bytes.NewReader([]byte(manifestSchema))); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate implements ManifestValidator.
func (v *SchemaValidator) Validate(manifest *entities.Manifest) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}
	if manifest == nil {
		result.AddError("manifest is nil")
		return result, nil
	}

	b, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		var validationErr *jsvalidate.ValidationError
		if ok := asValidationError(err, &validationErr); ok {
			for _, cause := range flatten(validationErr) {
				result.AddError(cause)
			}
		} else {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func asValidationError(err error, target **jsvalidate.ValidationError) bool {
	ve, ok := err.(*jsvalidate.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

// flatten walks the validation error tree and returns the leaf messages.
func flatten(err *jsvalidate.ValidationError) []string {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, err.Message)}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
