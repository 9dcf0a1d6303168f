package params

import (
	"strings"
	"testing"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
)

func testSchema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"name":    {Type: "string"},
			"limit":   {Type: "number", Default: float64(50)},
			"active":  {Type: "boolean"},
			"fields":  {Type: "array"},
			"filters": {Type: "object"},
			"bucket":  {Type: "string", Enum: []string{"hour", "day"}},
		},
		Required: []string{"name"},
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	_, err := Validate(map[string]any{}, testSchema())
	if err == nil {
		t.Fatal("expected missing required parameter to fail")
	}
	if !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("expected validation_error, got %v", caperr.KindOf(err))
	}
	if !strings.Contains(err.Error(), `"name"`) {
		t.Fatalf("error must name the missing field, got %q", err.Error())
	}
}

func TestValidate_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"string got number", map[string]any{"name": float64(3)}},
		{"number got string", map[string]any{"name": "x", "limit": "ten"}},
		{"boolean got string", map[string]any{"name": "x", "active": "yes"}},
		{"array got object", map[string]any{"name": "x", "fields": map[string]any{}}},
		{"object got array", map[string]any{"name": "x", "filters": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.args, testSchema())
			if err == nil {
				t.Fatal("expected type mismatch to fail")
			}
			if !caperr.IsKind(err, caperr.KindValidation) {
				t.Fatalf("expected validation_error, got %v", caperr.KindOf(err))
			}
		})
	}
}

func TestValidate_DefaultsFilled(t *testing.T) {
	out, err := Validate(map[string]any{"name": "x"}, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if out["limit"] != float64(50) {
		t.Fatalf("expected default limit 50, got %v", out["limit"])
	}
}

func TestValidate_PresentValueNotOverwritten(t *testing.T) {
	out, err := Validate(map[string]any{"name": "x", "limit": float64(5)}, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if out["limit"] != float64(5) {
		t.Fatalf("expected caller limit 5, got %v", out["limit"])
	}
}

func TestValidate_ExtrasPassThrough(t *testing.T) {
	out, err := Validate(map[string]any{"name": "x", "debugFlag": true}, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if out["debugFlag"] != true {
		t.Fatal("unknown extra properties must pass through unmodified")
	}
}

func TestValidate_Enum(t *testing.T) {
	if _, err := Validate(map[string]any{"name": "x", "bucket": "day"}, testSchema()); err != nil {
		t.Fatal(err)
	}
	_, err := Validate(map[string]any{"name": "x", "bucket": "decade"}, testSchema())
	if !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("expected validation_error for bad enum value, got %v", err)
	}
}

func TestValidate_IntegersCountAsNumbers(t *testing.T) {
	out, err := Validate(map[string]any{"name": "x", "limit": 7}, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if out["limit"] != 7 {
		t.Fatalf("expected 7, got %v", out["limit"])
	}
}

// Nested contents are deliberately not recursed into.
func TestValidate_ShallowOnly(t *testing.T) {
	args := map[string]any{
		"name":    "x",
		"filters": map[string]any{"limit": "not-a-number"},
	}
	if _, err := Validate(args, testSchema()); err != nil {
		t.Fatalf("nested values must not be validated, got %v", err)
	}
}

func TestNumber(t *testing.T) {
	for _, v := range []any{float64(2), float32(2), 2, int32(2), int64(2)} {
		if n, ok := Number(v); !ok || n != 2 {
			t.Errorf("Number(%T) = %v, %v", v, n, ok)
		}
	}
	if _, ok := Number("2"); ok {
		t.Error("strings must not coerce to numbers")
	}
}

func TestStringSlice(t *testing.T) {
	out, ok := StringSlice([]any{"a", "b"})
	if !ok || len(out) != 2 || out[1] != "b" {
		t.Fatalf("unexpected result: %v, %v", out, ok)
	}
	if _, ok := StringSlice([]any{"a", 1}); ok {
		t.Fatal("mixed slice must not coerce")
	}
}
