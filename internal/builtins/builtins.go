// Package builtins is the compile-time dispatch table of capabilities the
// agent may invoke. Each implementation is a plain function wired at
// startup; nothing here synthesizes code at call time.
package builtins

import (
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/query"
)

// RegisterAll installs the built-in capability set into the registry.
func RegisterAll(reg *capability.Registry) error {
	for _, spec := range equipmentCapabilities() {
		if _, err := reg.Register(spec); err != nil {
			return err
		}
	}
	for _, spec := range powerCapabilities() {
		if _, err := reg.Register(spec); err != nil {
			return err
		}
	}
	for _, spec := range schemaCapabilities() {
		if _, err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// --- argument coercion helpers ---

func argString(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

func argNumber(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	return params.Number(v)
}

func argStrings(args map[string]any, key string) ([]string, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	return params.StringSlice(v)
}

func argFilters(args map[string]any, key string) map[string]any {
	m, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// argMetrics converts the metrics argument into aggregate terms.
func argMetrics(args map[string]any, key string) ([]query.AggregateTerm, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, caperr.Validationf("parameter %q must be an array of {function, field}", key)
	}
	terms := make([]query.AggregateTerm, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, caperr.Validationf("parameter %q must be an array of {function, field}", key)
		}
		fn, _ := m["function"].(string)
		field, _ := m["field"].(string)
		if fn == "" {
			return nil, caperr.Validationf("metric entries require a function")
		}
		terms = append(terms, query.AggregateTerm{Func: fn, Column: field})
	}
	return terms, nil
}

func argLimit(args map[string]any) int {
	if n, ok := argNumber(args, "limit"); ok && n > 0 {
		return int(n)
	}
	return 0
}
