package builtins

import (
	"testing"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"go.uber.org/zap"
)

func newRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	ev := access.NewEvaluator(access.EvaluatorConfig{Tables: access.DefaultTablePermissions()})
	reg := capability.NewRegistry(capability.RegistryConfig{Access: ev, Logger: zap.NewNop()})
	if err := RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestRegisterAll_NamesAndLevels(t *testing.T) {
	reg := newRegistry(t)
	want := map[string]access.Level{
		"getEquipmentList":      access.LevelPublic,
		"getEquipmentDetail":    access.LevelUser,
		"updateEquipmentStatus": access.LevelManager,
		"logMaintenance":        access.LevelUser,
		"aggregatePowerData":    access.LevelUser,
		"getPowerTimeSeries":    access.LevelUser,
		"getPowerStats":         access.LevelUser,
		"detectPowerAnomalies":  access.LevelManager,
		"correlatePowerMetrics": access.LevelManager,
		"importPowerReadings":   access.LevelRestricted,
		"listTables":            access.LevelUser,
		"describeTable":         access.LevelUser,
	}
	for name, level := range want {
		spec := reg.Get(name)
		if spec == nil {
			t.Errorf("builtin %q not registered", name)
			continue
		}
		if spec.AccessLevel != level {
			t.Errorf("builtin %q has level %s, want %s", name, spec.AccessLevel, level)
		}
		if spec.Handler == nil {
			t.Errorf("builtin %q has no handler", name)
		}
		if spec.Description == "" {
			t.Errorf("builtin %q has no description", name)
		}
	}
}

func TestRegisterAll_RestrictedOnlyForAdmin(t *testing.T) {
	reg := newRegistry(t)
	for _, spec := range reg.ListAccessibleTo(access.RoleManager) {
		if spec.Name == "importPowerReadings" {
			t.Fatal("restricted capability leaked into the manager menu")
		}
	}
	found := false
	for _, spec := range reg.ListAccessibleTo(access.RoleAdmin) {
		if spec.Name == "importPowerReadings" {
			found = true
		}
	}
	if !found {
		t.Fatal("admin menu must include restricted capabilities")
	}
}

func TestArgMetrics(t *testing.T) {
	terms, err := argMetrics(map[string]any{
		"metrics": []any{
			map[string]any{"function": "avg", "field": "solarOutput"},
			map[string]any{"function": "count"},
		},
	}, "metrics")
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	if terms[0].Func != "avg" || terms[0].Column != "solarOutput" {
		t.Fatalf("unexpected first term: %+v", terms[0])
	}
	if terms[1].Func != "count" || terms[1].Column != "" {
		t.Fatalf("unexpected second term: %+v", terms[1])
	}
}

func TestArgMetrics_Rejections(t *testing.T) {
	cases := map[string]map[string]any{
		"not an array":     {"metrics": "avg"},
		"entry not object": {"metrics": []any{"avg"}},
		"missing function": {"metrics": []any{map[string]any{"field": "solarOutput"}}},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := argMetrics(args, "metrics"); !caperr.IsKind(err, caperr.KindValidation) {
				t.Fatalf("expected validation_error, got %v", err)
			}
		})
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"table":   "power_data",
		"limit":   float64(25),
		"fields":  []any{"a", "b"},
		"filters": map[string]any{"status": "online"},
	}
	if s, ok := argString(args, "table"); !ok || s != "power_data" {
		t.Fatalf("argString: %v %v", s, ok)
	}
	if argLimit(args) != 25 {
		t.Fatalf("argLimit: %d", argLimit(args))
	}
	if fs, ok := argStrings(args, "fields"); !ok || len(fs) != 2 {
		t.Fatalf("argStrings: %v %v", fs, ok)
	}
	if f := argFilters(args, "filters"); f["status"] != "online" {
		t.Fatalf("argFilters: %v", f)
	}
	if argLimit(map[string]any{"limit": float64(-1)}) != 0 {
		t.Fatal("negative limit must coerce to 0")
	}
	if f := argFilters(args, "missing"); f != nil {
		t.Fatalf("missing filters must be nil, got %v", f)
	}
}
