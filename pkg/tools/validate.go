package tools

import (
	"reflect"
	"strconv"

	"github.com/casetutor/casetutor/pkg/errors"
)

// ValidateArgs checks args against a JSON-schema object ("type",
// "properties", "required", "additionalProperties"). Failures are
// Validation errors carrying the offending path.
func ValidateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	return validateObject(schema, args, "$")
}

func validateObject(schema map[string]any, value map[string]any, path string) error {
	props, _ := schema["properties"].(map[string]any)

	for _, name := range requiredNames(schema) {
		if _, present := value[name]; !present {
			return errors.WithFields(
				errors.New(errors.Validation, "missing required argument"),
				errors.Fields{"path": path + "." + name},
			)
		}
	}

	if additional, ok := schema["additionalProperties"].(bool); ok && !additional {
		for name := range value {
			if _, known := props[name]; !known {
				return errors.WithFields(
					errors.New(errors.Validation, "unknown argument"),
					errors.Fields{"path": path + "." + name},
				)
			}
		}
	}

	for name, raw := range value {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(propSchema, raw, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(schema map[string]any, value any, path string) error {
	want, _ := schema["type"].(string)
	if want == "" || value == nil {
		return nil
	}

	mismatch := func() error {
		return errors.WithFields(
			errors.New(errors.Validation, "argument has wrong type"),
			errors.Fields{"path": path, "expected": want},
		)
	}

	switch want {
	case "string":
		if _, ok := value.(string); !ok {
			return mismatch()
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return mismatch()
		}
	case "integer", "number":
		if !isNumeric(value) {
			return mismatch()
		}
	case "array":
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return mismatch()
		}
		items, _ := schema["items"].(map[string]any)
		if items == nil {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := validateValue(items, rv.Index(i).Interface(), path+indexPath(i)); err != nil {
				return err
			}
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			// Typed structs and message slices arrive as concrete Go
			// values; anything map-like passes, anything else fails.
			rv := reflect.ValueOf(value)
			if rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct {
				return nil
			}
			return mismatch()
		}
		return validateObject(schema, obj, path)
	}
	return nil
}

func requiredNames(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func indexPath(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
