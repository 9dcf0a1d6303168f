package audit

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogWriter(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))
	defer w.Close()

	w.Write(&InvocationEvent{
		RequestID:  "req-1",
		Timestamp:  time.Now(),
		Capability: "getEquipmentList",
		Module:     "equipment",
		CallerID:   42,
		Role:       "user",
		Outcome:    "ok",
		LatencyMs:  1.5,
	})

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["capability"] != "getEquipmentList" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["outcome"] != "ok" {
		t.Fatalf("unexpected outcome: %v", fields["outcome"])
	}
}
