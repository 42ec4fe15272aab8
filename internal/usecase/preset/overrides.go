package preset

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"appboot/internal/domain"
)

// overridesSchema constrains caller-supplied override payloads before they
// are merged into a preset. Unknown fields are rejected so a typo'd key
// fails loudly instead of silently doing nothing.
const overridesSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "args":             {"type": "array", "items": {"type": "string"}},
    "env":              {"type": "object", "additionalProperties": {"type": "string"}},
    "dir":              {"type": "string"},
    "command":          {"type": "string"},
    "attachEndpoint":   {"type": "string"},
    "attachPort":       {"type": "integer", "minimum": 1, "maximum": 65535},
    "fallbackEndpoint": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiledOverridesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile([]byte(overridesSchema))
	})
	return compiledSchema, schemaErr
}

// ParseOverrides validates a JSON override payload against the schema and
// unmarshals it. Empty input yields nil overrides.
func ParseOverrides(data []byte) (*domain.LaunchOverrides, error) {
	if len(data) == 0 {
		return nil, nil
	}

	schema, err := compiledOverridesSchema()
	if err != nil {
		return nil, domain.WrapOp("compile overrides schema", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewDomainError("ParseOverrides", domain.ErrInvalidInput,
			fmt.Sprintf("overrides are not valid JSON: %v", err))
	}
	if result := schema.Validate(raw); !result.IsValid() {
		return nil, domain.NewDomainError("ParseOverrides", domain.ErrInvalidInput,
			fmt.Sprintf("overrides rejected by schema: %s", result.Error()))
	}

	var ov domain.LaunchOverrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return nil, domain.NewDomainError("ParseOverrides", domain.ErrInvalidInput, err.Error())
	}
	return &ov, nil
}
