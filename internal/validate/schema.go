package validate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaSet holds compiled JSON Schemas keyed by tool name. Schemas are
// compiled once at registration and reused for every validation, including
// re-validation of operator-edited arguments at the verification gate.
type SchemaSet struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaSet creates an empty schema set.
func NewSchemaSet() *SchemaSet {
	return &SchemaSet{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles and stores the schema for a tool. An invalid schema is
// a programming or configuration error and is returned to the caller.
func (s *SchemaSet) Register(toolName string, rawSchema json.RawMessage) error {
	if len(rawSchema) == 0 {
		return fmt.Errorf("empty schema for tool %q", toolName)
	}
	compiled, err := jsonschema.CompileString(toolName+".json", string(rawSchema))
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", toolName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[toolName] = compiled
	return nil
}

// Has reports whether a schema is registered for the tool.
func (s *SchemaSet) Has(toolName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.schemas[toolName]
	return ok
}

// Validate checks tool arguments against the registered schema. Unknown
// tools pass: schema validation is an additional control, not a registry.
func (s *SchemaSet) Validate(toolName string, args map[string]any) error {
	s.mu.RLock()
	compiled, ok := s.schemas[toolName]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	// Round-trip through JSON so numeric types match what the schema
	// library expects from decoded documents.
	encoded, err := json.Marshal(args)
	if err != nil {
		return &ValidationError{Field: toolName, Reason: fmt.Sprintf("arguments are not JSON-encodable: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return &ValidationError{Field: toolName, Reason: fmt.Sprintf("arguments are not valid JSON: %v", err)}
	}

	if err := compiled.Validate(doc); err != nil {
		return &ValidationError{Field: toolName, Reason: fmt.Sprintf("arguments failed schema validation: %v", err)}
	}
	return nil
}
