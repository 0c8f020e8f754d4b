package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gateflow/gateflow/pkg/models"
)

// definitionSchema is the JSON schema raw definition documents must satisfy
// before decoding. Structural graph invariants are checked afterwards by
// ValidateDefinition; the schema only rejects documents that do not have the
// right shape.
var definitionSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "name", "entity_type", "states"},
	"properties": map[string]any{
		"id":          map[string]any{"type": "string", "minLength": 1},
		"name":        map[string]any{"type": "string", "minLength": 1},
		"entity_type": map[string]any{"type": "string", "minLength": 1},
		"version":     map[string]any{"type": "integer", "minimum": 1},
		"is_default":  map[string]any{"type": "boolean"},
		"states": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"id", "name"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string", "minLength": 1},
					"name":        map[string]any{"type": "string", "minLength": 1},
					"is_initial":  map[string]any{"type": "boolean"},
					"is_terminal": map[string]any{"type": "boolean"},
					"required_permissions": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
			},
		},
		"transitions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"id", "name", "from_state_id", "to_state_id"},
				"properties": map[string]any{
					"id":            map[string]any{"type": "string", "minLength": 1},
					"name":          map[string]any{"type": "string", "minLength": 1},
					"from_state_id": map[string]any{"type": "string", "minLength": 1},
					"to_state_id":   map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
}

// ParseDefinition decodes and validates a raw definition document. The
// document is validated against the definition JSON schema first, then
// decoded into the typed model, which parses every rule tree exactly once.
// Graph invariants are checked last.
func ParseDefinition(document []byte) (*models.WorkflowDefinition, error) {
	var raw map[string]any
	if err := json.Unmarshal(document, &raw); err != nil {
		return nil, fmt.Errorf("%w: definition document is not valid JSON: %w", ErrDefinitionInvalid, err)
	}

	if err := validateDefinitionSchema(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinitionInvalid, err)
	}

	var definition models.WorkflowDefinition
	if err := json.Unmarshal(document, &definition); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinitionInvalid, err)
	}

	if definition.Version == 0 {
		definition.Version = 1
	}

	if err := ValidateDefinition(&definition); err != nil {
		return nil, err
	}

	return &definition, nil
}

// validateDefinitionSchema validates a decoded document against the
// definition JSON schema.
func validateDefinitionSchema(document map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(definitionSchema)
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
