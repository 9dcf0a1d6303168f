package service

import "github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"

// Request is an invocation submitted by the agent loop. Caller identity is
// assumed already resolved by the surrounding application.
type Request struct {
	CapabilityName string         `json:"capabilityName"`
	Arguments      map[string]any `json:"arguments"`
	CallerID       int64          `json:"callerId"`
	CallerRole     string         `json:"callerRole"`
	ConversationID int64          `json:"conversationId,omitempty"`
}

// Result is the structured outcome of an invocation. Failures always carry
// an errorKind from the taxonomy plus a message fit to surface verbatim.
type Result struct {
	OK        bool   `json:"ok"`
	Value     any    `json:"value,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId"`
}

// Descriptor is one entry of the capability listing the agent loop builds
// its tool menu from.
type Descriptor struct {
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	ParameterSchema params.Schema `json:"parameterSchema"`
}
