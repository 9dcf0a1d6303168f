// Package audit persists capability invocation events out-of-band.
package audit

import "time"

// EventWriter is the interface for writing invocation events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *InvocationEvent)
	Close()
}

// InvocationEvent records one capability invocation outcome.
type InvocationEvent struct {
	RequestID      string
	Timestamp      time.Time
	Capability     string
	Module         string
	CallerID       int64
	Role           string
	ConversationID int64
	ArgumentsJSON  string
	Outcome        string // "ok" or the errorKind
	Message        string // failure message, empty on success
	LatencyMs      float32
}
