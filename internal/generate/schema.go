package generate

import (
	"fmt"
	"math"
	"strings"
)

// Closed JSON schema builders. Every object schema produced here sets
// additionalProperties=false and requires all of its properties, which is
// what the strict structured-output mode expects.

func Object(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func String(description string) map[string]any {
	s := map[string]any{"type": "string"}
	if description != "" {
		s["description"] = description
	}
	return s
}

func Integer(description string) map[string]any {
	s := map[string]any{"type": "integer"}
	if description != "" {
		s["description"] = description
	}
	return s
}

func Boolean(description string) map[string]any {
	s := map[string]any{"type": "boolean"}
	if description != "" {
		s["description"] = description
	}
	return s
}

func ArrayOf(items map[string]any, minItems, maxItems int) map[string]any {
	s := map[string]any{"type": "array", "items": items}
	if minItems > 0 {
		s["minItems"] = minItems
	}
	if maxItems > 0 {
		s["maxItems"] = maxItems
	}
	return s
}

func Enum(description string, values ...string) map[string]any {
	s := map[string]any{"type": "string", "enum": values}
	if description != "" {
		s["description"] = description
	}
	return s
}

// Validate checks value against schema. It covers the subset the builders
// above can produce; providers occasionally return well-formed JSON that
// still breaks the schema, so parsed output is always validated again here.
func Validate(schema map[string]any, value any) error {
	return validateAt("$", schema, value)
}

func validateAt(path string, schema map[string]any, value any) error {
	typ, _ := schema["type"].(string)
	switch typ {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		props, _ := schema["properties"].(map[string]any)
		if required, ok := schema["required"].([]string); ok {
			for _, name := range required {
				if _, present := obj[name]; !present {
					return fmt.Errorf("%s: missing required property %q", path, name)
				}
			}
		}
		if ap, ok := schema["additionalProperties"].(bool); ok && !ap {
			for name := range obj {
				if _, known := props[name]; !known {
					return fmt.Errorf("%s: unexpected property %q", path, name)
				}
			}
		}
		for name, sub := range props {
			subSchema, ok := sub.(map[string]any)
			if !ok {
				continue
			}
			if v, present := obj[name]; present {
				if err := validateAt(path+"."+name, subSchema, v); err != nil {
					return err
				}
			}
		}
		return nil

	case "array":
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		if min, ok := numericBound(schema["minItems"]); ok && len(arr) < min {
			return fmt.Errorf("%s: expected at least %d items, got %d", path, min, len(arr))
		}
		if max, ok := numericBound(schema["maxItems"]); ok && len(arr) > max {
			return fmt.Errorf("%s: expected at most %d items, got %d", path, max, len(arr))
		}
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}
		for i, v := range arr {
			if err := validateAt(fmt.Sprintf("%s[%d]", path, i), items, v); err != nil {
				return err
			}
		}
		return nil

	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if enum, ok := schema["enum"].([]string); ok {
			for _, allowed := range enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("%s: %q is not one of [%s]", path, s, strings.Join(enum, ", "))
		}
		return nil

	case "integer":
		switch n := value.(type) {
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("%s: expected integer, got %v", path, n)
			}
			return nil
		case int:
			return nil
		default:
			return fmt.Errorf("%s: expected integer, got %T", path, value)
		}

	case "number":
		switch value.(type) {
		case float64, int:
			return nil
		default:
			return fmt.Errorf("%s: expected number, got %T", path, value)
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
		return nil
	}
	return nil
}

func numericBound(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
