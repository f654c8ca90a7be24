package config

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/grovetools/roster/logging"
)

// GenerateSchema generates the JSON Schema for the roster configuration by
// reflecting the Config struct. The Extensions field is excluded; unknown
// top-level keys are extension sections owned by other tools and stay
// unvalidated.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Reject unknown keys inside known sections so typos surface.
		AllowAdditionalProperties: false,
		// Expand the root struct instead of hiding it behind a $ref.
		ExpandedStruct: true,
		// Use YAML field names for property names.
		FieldNameTag: "yaml",
		Mapper:       schemaTypeMapper,
		// $defs are keyed by bare type name; logging.Config would collide
		// with Config itself, and ExpandedStruct deletes that key, leaving
		// the logging property's $ref dangling. Give it its own name.
		Namer: func(t reflect.Type) string {
			if t == reflect.TypeOf(logging.Config{}) {
				return "LoggingConfig"
			}
			return ""
		},
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Roster Configuration"
	schema.Description = "Schema for roster.yml properties."
	schema.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(schema, "", "  ")
}

// schemaTypeMapper overrides reflection for types with custom marshaling.
func schemaTypeMapper(t reflect.Type) *jsonschema.Schema {
	if t == reflect.TypeOf(Duration{}) {
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^-?([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: "Duration string such as 150ms or 30s",
		}
	}
	return nil
}
