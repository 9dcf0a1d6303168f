package caperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindStrings(t *testing.T) {
	// Wire values of the errorKind field; changing one breaks clients.
	want := map[Kind]string{
		KindValidation: "validation_error",
		KindPermission: "permission_error",
		KindNotFound:   "not_found",
		KindQuery:      "query_error",
		KindExecution:  "execution_error",
	}
	for kind, s := range want {
		if string(kind) != s {
			t.Errorf("kind %v serializes as %q, want %q", kind, string(kind), s)
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindQuery, cause, "select from %q failed", "power_data")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must survive errors.Is")
	}
	if KindOf(err) != KindQuery {
		t.Fatalf("expected query_error, got %v", KindOf(err))
	}
}

func TestKindOf_DefaultsToExecution(t *testing.T) {
	if KindOf(fmt.Errorf("some driver failure")) != KindExecution {
		t.Fatal("unclassified errors must report execution_error")
	}
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	inner := Permissionf("role %q may not read %q", "guest", "power_data")
	outer := fmt.Errorf("invoke: %w", inner)
	if !IsKind(outer, KindPermission) {
		t.Fatal("kind must be detectable through fmt.Errorf wrapping")
	}
	if IsKind(outer, KindQuery) {
		t.Fatal("wrong kind must not match")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Validationf("bad args"), false},
		{Permissionf("denied"), false},
		{NotFoundf("missing"), false},
		{Queryf("timeout"), true},
		{Executionf("panic"), true},
		{errors.New("raw"), true},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
