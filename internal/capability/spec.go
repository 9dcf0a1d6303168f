// Package capability holds the registry of invokable capabilities. Every
// implementation is a statically compiled handler in a closed dispatch
// table keyed by capability name; there is no runtime code synthesis.
package capability

import (
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
)

// Spec is one registered capability. Immutable by name: re-registering an
// existing name replaces the record.
type Spec struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Module      string              `json:"module"`
	Parameters  params.Schema       `json:"parameterSchema"`
	ReturnHint  string              `json:"returnTypeHint,omitempty"`
	AccessLevel access.Level        `json:"accessLevel"`
	Tags        []string            `json:"tags,omitempty"`
	Handler     sandbox.HandlerFunc `json:"-"`
}

// clone copies a spec so registry internals never alias caller memory.
func (s *Spec) clone() *Spec {
	c := *s
	if s.Tags != nil {
		c.Tags = make([]string, len(s.Tags))
		copy(c.Tags, s.Tags)
	}
	if s.Parameters.Required != nil {
		c.Parameters.Required = make([]string, len(s.Parameters.Required))
		copy(c.Parameters.Required, s.Parameters.Required)
	}
	if s.Parameters.Properties != nil {
		props := make(map[string]params.Property, len(s.Parameters.Properties))
		for k, v := range s.Parameters.Properties {
			props[k] = v
		}
		c.Parameters.Properties = props
	}
	return &c
}

// HasTag reports whether the spec carries the given tag.
func (s *Spec) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
