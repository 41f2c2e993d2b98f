package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator checks completion payloads against request schemas. Schemas are compiled
// once per schema name; requests without a name are compiled on every call.
type SchemaValidator struct {
	compiled sync.Map // schema name -> *jsonschema.Schema
}

// Validate checks that data is JSON matching the schema of req.
func (v *SchemaValidator) Validate(req CompletionRequest, data []byte) error {
	schema, err := v.schemaFor(req)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s payload does not match schema: %w", req.SchemaName, err)
	}
	return nil
}

func (v *SchemaValidator) schemaFor(req CompletionRequest) (*jsonschema.Schema, error) {
	if req.SchemaName != "" {
		if s, ok := v.compiled.Load(req.SchemaName); ok {
			return s.(*jsonschema.Schema), nil
		}
	}
	s, err := compileSchema(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", req.SchemaName, err)
	}
	if req.SchemaName != "" {
		actual, _ := v.compiled.LoadOrStore(req.SchemaName, s)
		s = actual.(*jsonschema.Schema)
	}
	return s, nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("schema.json")
}
