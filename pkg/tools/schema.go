package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/casetutor/casetutor/pkg/errors"
)

// ReflectSchema derives a JSON-schema object from a tool argument struct.
// Struct fields use `json` names and `jsonschema` tags for required flags
// and descriptions.
func ReflectSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to marshal reflected schema")
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, errors.Config, "failed to decode reflected schema")
	}
	// The reflector emits draft metadata the validator and the routing
	// model do not need.
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustReflectSchema is ReflectSchema for static descriptor tables; schema
// reflection failing on a compiled-in struct is a programmer error.
func MustReflectSchema[T any]() map[string]any {
	schema, err := ReflectSchema[T]()
	if err != nil {
		panic(err)
	}
	return schema
}
