package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	jsvalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaRegistry holds JSON schemas per resource type so override
// payloads can be validated before they enter the table. Types without
// a registered schema accept any payload.
type SchemaRegistry struct {
	mu        sync.RWMutex
	schemas   map[string]string
	compiled  map[string]*jsvalidate.Schema
	reflector *jsonschema.Reflector
}

// NewSchemaRegistry creates an empty schema registry.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{
		schemas:   make(map[string]string),
		compiled:  make(map[string]*jsvalidate.Schema),
		reflector: new(jsonschema.Reflector),
	}
	r.reflector.ExpandedStruct = true
	return r
}

// Register adds a schema for a resource type. model can be a Go struct
// (the schema is generated by reflection), a raw JSON schema string, or
// a schema map.
func (r *SchemaRegistry) Register(resourceType string, model any) error {
	var schemaStr string
	switch v := model.(type) {
	case string:
		schemaStr = v
	case []byte:
		schemaStr = string(v)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal schema map: %w", err)
		}
		schemaStr = string(b)
	default:
		s := r.reflector.Reflect(model)
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal generated schema: %w", err)
		}
		schemaStr = string(b)
	}

	compiler := jsvalidate.NewCompiler()
	url := "inline://" + resourceType + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader([]byte(schemaStr))); err != nil {
		return fmt.Errorf("add schema for %q: %w", resourceType, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", resourceType, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[resourceType]; exists {
		return fmt.Errorf("resource type already registered: %s", resourceType)
	}
	r.schemas[resourceType] = schemaStr
	r.compiled[resourceType] = compiled
	return nil
}

// Validate checks a payload against the type's schema. Types without a
// schema pass.
func (r *SchemaRegistry) Validate(resourceType string, payload any) error {
	r.mu.RLock()
	compiled, ok := r.compiled[resourceType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	// Round-trip through JSON so struct payloads validate the same as
	// map payloads.
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("unmarshal payload for validation: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("payload for resource type %q: %w", resourceType, err)
	}
	return nil
}

// Schema returns the registered schema for a resource type.
func (r *SchemaRegistry) Schema(resourceType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[resourceType]
	return s, ok
}

// List returns all registered resource types, sorted.
func (r *SchemaRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
