// Package params validates and normalizes capability invocation arguments
// against a declared parameter schema before any execution happens.
//
// This is deliberately a shallow structural check: required presence,
// top-level type match, default filling. Nested object and array contents
// are not recursed into, preserving the validation semantics capability
// authors already depend on. Structural soundness of the schema itself is
// enforced at registration time instead.
package params

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
)

// Schema is the JSON-Schema-like parameter declaration of a capability.
type Schema struct {
	Type       string              `json:"type,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property declares a single parameter.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// declaredTypes is the closed set of property types the validator checks.
var declaredTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// KnownType reports whether t is a checkable property type.
func KnownType(t string) bool {
	return declaredTypes[t]
}

// Validate checks args against the schema and returns a normalized copy.
//
// Rules: every required name must be present; every declared property that
// is present must match its declared type; absent properties with a default
// are filled in; unknown extra properties pass through unmodified.
func Validate(args map[string]any, schema Schema) (map[string]any, error) {
	normalized := make(map[string]any, len(args)+len(schema.Properties))
	for k, v := range args {
		normalized[k] = v
	}

	for _, name := range schema.Required {
		if _, ok := normalized[name]; !ok {
			return nil, caperr.Validationf("missing required parameter %q", name)
		}
	}

	for name, prop := range schema.Properties {
		v, present := normalized[name]
		if !present {
			if prop.Default != nil {
				normalized[name] = prop.Default
			}
			continue
		}
		if !matchesType(v, prop.Type) {
			return nil, caperr.Validationf("parameter %q must be of type %s, got %s",
				name, prop.Type, runtimeTypeName(v))
		}
		if len(prop.Enum) > 0 {
			if s, ok := v.(string); ok && !contains(prop.Enum, s) {
				return nil, caperr.Validationf("parameter %q must be one of %v", name, prop.Enum)
			}
		}
	}

	return normalized, nil
}

// matchesType checks a runtime value against a declared type. Undeclared
// types are passed through: registration rejects them up front, so hitting
// one here means an older spec and the shallow contract applies.
func matchesType(v any, declared string) bool {
	if v == nil {
		// Explicit null is treated as absent-with-value; type cannot be judged.
		return true
	}
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

// Number coerces a validated numeric argument to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// StringSlice coerces a validated array argument to []string.
func StringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

func runtimeTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	}
	if v == nil {
		return "null"
	}
	k := reflect.TypeOf(v).Kind()
	if k == reflect.Slice || k == reflect.Array {
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

func contains(set []string, s string) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
