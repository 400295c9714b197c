package coerce

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaHint renders a compact JSON schema for T, used to tell the repairer
// what shape the broken output was meant to have.
func SchemaHint[T any]() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(data)
}
