package capability

import (
	"context"
	"testing"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
	"go.uber.org/zap"
)

func nopHandler(_ context.Context, _ *sandbox.Facade, _ map[string]any) (any, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	ev := access.NewEvaluator(access.EvaluatorConfig{})
	return NewRegistry(RegistryConfig{Access: ev, Logger: zap.NewNop()})
}

func specFixture(name string, level access.Level) *Spec {
	return &Spec{
		Name:        name,
		Description: "fixture",
		Module:      "power",
		AccessLevel: level,
		Tags:        []string{"analytics"},
		Parameters: params.Schema{
			Type: "object",
			Properties: map[string]params.Property{
				"table": {Type: "string"},
			},
			Required: []string{"table"},
		},
		Handler: nopHandler,
	}
}

func TestRegister_GetRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	in := specFixture("aggregate_power_data", access.LevelUser)
	stored, err := reg.Register(in)
	if err != nil {
		t.Fatal(err)
	}
	got := reg.Get("aggregate_power_data")
	if got == nil {
		t.Fatal("registered capability not retrievable")
	}
	if got.Name != stored.Name || got.AccessLevel != stored.AccessLevel ||
		got.Module != stored.Module || got.Description != stored.Description {
		t.Fatalf("retrieved spec diverged: %+v vs %+v", got, stored)
	}
	if len(got.Parameters.Required) != 1 || got.Parameters.Required[0] != "table" {
		t.Fatalf("parameter schema not preserved: %+v", got.Parameters)
	}
}

func TestRegister_ReplacesByName(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Register(specFixture("cap", access.LevelUser)); err != nil {
		t.Fatal(err)
	}
	replacement := specFixture("cap", access.LevelAdmin)
	replacement.Description = "second"
	if _, err := reg.Register(replacement); err != nil {
		t.Fatal(err)
	}
	got := reg.Get("cap")
	if got.AccessLevel != access.LevelAdmin || got.Description != "second" {
		t.Fatalf("re-registration must replace the record, got %+v", got)
	}
}

func TestRegister_Rejections(t *testing.T) {
	reg := newTestRegistry(t)

	noName := specFixture("", access.LevelUser)
	if _, err := reg.Register(noName); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("empty name: expected validation_error, got %v", err)
	}

	noHandler := specFixture("cap", access.LevelUser)
	noHandler.Handler = nil
	if _, err := reg.Register(noHandler); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("nil handler: expected validation_error, got %v", err)
	}

	badLevel := specFixture("cap", access.Level("superuser"))
	if _, err := reg.Register(badLevel); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("unknown level: expected validation_error, got %v", err)
	}

	badType := specFixture("cap", access.LevelUser)
	badType.Parameters.Properties = map[string]params.Property{"x": {Type: "integer"}}
	badType.Parameters.Required = nil
	if _, err := reg.Register(badType); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("unsupported property type: expected validation_error, got %v", err)
	}

	undeclared := specFixture("cap", access.LevelUser)
	undeclared.Parameters.Required = []string{"missing"}
	if _, err := reg.Register(undeclared); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("undeclared required: expected validation_error, got %v", err)
	}

	notObject := specFixture("cap", access.LevelUser)
	notObject.Parameters.Type = "array"
	if _, err := reg.Register(notObject); !caperr.IsKind(err, caperr.KindValidation) {
		t.Fatalf("non-object schema: expected validation_error, got %v", err)
	}
}

func TestGet_UnknownReturnsNil(t *testing.T) {
	reg := newTestRegistry(t)
	if got := reg.Get("nope"); got != nil {
		t.Fatalf("expected nil for unregistered name, got %+v", got)
	}
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Register(specFixture("cap", access.LevelUser)); err != nil {
		t.Fatal(err)
	}
	first := reg.Get("cap")
	first.Tags[0] = "mutated"
	first.Parameters.Properties["table"] = params.Property{Type: "number"}
	second := reg.Get("cap")
	if second.Tags[0] != "analytics" {
		t.Fatal("caller mutation leaked into registry tags")
	}
	if second.Parameters.Properties["table"].Type != "string" {
		t.Fatal("caller mutation leaked into registry schema")
	}
}

func TestListByModuleAndTag(t *testing.T) {
	reg := newTestRegistry(t)
	a := specFixture("b_cap", access.LevelUser)
	b := specFixture("a_cap", access.LevelUser)
	other := specFixture("c_cap", access.LevelUser)
	other.Module = "equipment"
	other.Tags = nil
	for _, s := range []*Spec{a, b, other} {
		if _, err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	byModule := reg.ListByModule("power")
	if len(byModule) != 2 || byModule[0].Name != "a_cap" || byModule[1].Name != "b_cap" {
		t.Fatalf("unexpected module listing: %+v", byModule)
	}
	byTag := reg.ListByTag("analytics")
	if len(byTag) != 2 {
		t.Fatalf("expected 2 tagged specs, got %d", len(byTag))
	}
}

func TestListAccessibleTo(t *testing.T) {
	reg := newTestRegistry(t)
	pub := specFixture("list_equipment", access.LevelPublic)
	adm := specFixture("import_readings", access.LevelRestricted)
	for _, s := range []*Spec{pub, adm} {
		if _, err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	forGuest := reg.ListAccessibleTo(access.RoleGuest)
	if len(forGuest) != 1 || forGuest[0].Name != "list_equipment" {
		t.Fatalf("guest menu wrong: %+v", forGuest)
	}
	forAdmin := reg.ListAccessibleTo(access.RoleAdmin)
	if len(forAdmin) != 2 {
		t.Fatalf("admin must see both, got %d", len(forAdmin))
	}
}
