// Package service is the front door of the capability core: it authorizes,
// resolves, validates, and executes invocation requests, and emits an
// audit event per call. Permission and validation run before any data
// access, so a rejected call has no partial side effects.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/audit"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/schema"
	"go.uber.org/zap"
)

// Invoker executes capability invocations end to end. Constructed once at
// startup with immutable collaborators; safe for concurrent use.
type Invoker struct {
	registry *capability.Registry
	access   *access.Evaluator
	db       *sql.DB
	catalog  schema.Provider
	writer   audit.EventWriter
	retry    sandbox.RetryPolicy
	logger   *zap.Logger
}

// InvokerConfig configures an Invoker.
type InvokerConfig struct {
	Registry *capability.Registry
	Access   *access.Evaluator
	DB       *sql.DB
	Catalog  schema.Provider
	Writer   audit.EventWriter
	Retry    sandbox.RetryPolicy
	Logger   *zap.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	return &Invoker{
		registry: cfg.Registry,
		access:   cfg.Access,
		db:       cfg.DB,
		catalog:  cfg.Catalog,
		writer:   cfg.Writer,
		retry:    cfg.Retry,
		logger:   cfg.Logger,
	}
}

// Invoke runs one capability invocation: permission check, spec lookup,
// argument validation, sandboxed execution. Every failure maps to a
// structured result; nothing escapes as an opaque error.
func (s *Invoker) Invoke(ctx context.Context, req Request) Result {
	start := time.Now()
	requestID := uuid.New().String()

	value, err := s.invoke(ctx, req)

	latencyMs := float32(float64(time.Since(start)) / float64(time.Millisecond))
	s.writeEvent(req, requestID, err, latencyMs)

	if err != nil {
		kind, message := classify(err)
		s.logger.Info("invocation failed",
			zap.String("request_id", requestID),
			zap.String("capability", req.CapabilityName),
			zap.Int64("caller_id", req.CallerID),
			zap.String("role", req.CallerRole),
			zap.String("error_kind", string(kind)),
			zap.Float32("latency_ms", latencyMs),
		)
		return Result{OK: false, ErrorKind: string(kind), Message: message, RequestID: requestID}
	}

	s.logger.Debug("invocation succeeded",
		zap.String("request_id", requestID),
		zap.String("capability", req.CapabilityName),
		zap.Float32("latency_ms", latencyMs),
	)
	return Result{OK: true, Value: value, RequestID: requestID}
}

func (s *Invoker) invoke(ctx context.Context, req Request) (any, error) {
	if req.CapabilityName == "" {
		return nil, caperr.Validationf("capabilityName is required")
	}

	// Unknown roles keep their raw value; the evaluator resolves them to
	// the empty level set, so the deny below still fires.
	role, _ := access.ParseRole(req.CallerRole)

	spec := s.registry.Get(req.CapabilityName)
	if spec == nil {
		return nil, caperr.NotFoundf("unknown capability %q", req.CapabilityName)
	}

	if !s.access.CanExecute(spec.AccessLevel, role) {
		return nil, caperr.Permissionf("role %q may not execute capability %q (requires level %s)",
			req.CallerRole, spec.Name, spec.AccessLevel)
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	normalized, err := params.Validate(args, spec.Parameters)
	if err != nil {
		return nil, err
	}

	facade := sandbox.NewFacade(sandbox.FacadeConfig{
		DB:      s.db,
		Catalog: s.catalog,
		Access:  s.access,
		Caller: sandbox.Caller{
			ID:             req.CallerID,
			Role:           role,
			ConversationID: req.ConversationID,
		},
		Retry:  s.retry,
		Logger: s.logger,
	})

	return sandbox.Run(ctx, spec.Name, spec.Handler, facade, normalized)
}

// ListCapabilities returns the tool menu for a role: name, description and
// parameter schema of every capability the role may execute.
func (s *Invoker) ListCapabilities(callerRole string) []Descriptor {
	role, _ := access.ParseRole(callerRole)
	specs := s.registry.ListAccessibleTo(role)
	out := make([]Descriptor, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Descriptor{
			Name:            spec.Name,
			Description:     spec.Description,
			ParameterSchema: spec.Parameters,
		})
	}
	return out
}

// Register upserts a capability spec. Administrative path; never reachable
// through an agent-initiated invocation.
func (s *Invoker) Register(spec *capability.Spec) (*capability.Spec, error) {
	return s.registry.Register(spec)
}

// Reloader is satisfied by catalog providers that support an explicit
// refresh of the table allow-list.
type Reloader interface {
	Reload(ctx context.Context) error
}

// RefreshCatalog re-reads the schema allow-list if the catalog provider
// supports it. Administrative path only.
func (s *Invoker) RefreshCatalog(ctx context.Context) error {
	r, ok := s.catalog.(Reloader)
	if !ok {
		return errors.New("catalog provider is not reloadable")
	}
	return r.Reload(ctx)
}

func (s *Invoker) writeEvent(req Request, requestID string, invokeErr error, latencyMs float32) {
	if s.writer == nil {
		return
	}
	outcome := "ok"
	message := ""
	if invokeErr != nil {
		kind, msg := classify(invokeErr)
		outcome = string(kind)
		message = msg
	}

	var module string
	if spec := s.registry.Get(req.CapabilityName); spec != nil {
		module = spec.Module
	}

	argsJSON := ""
	if req.Arguments != nil {
		if raw, err := json.Marshal(req.Arguments); err == nil {
			argsJSON = string(raw)
		}
	}

	s.writer.Write(&audit.InvocationEvent{
		RequestID:      requestID,
		Timestamp:      time.Now(),
		Capability:     req.CapabilityName,
		Module:         module,
		CallerID:       req.CallerID,
		Role:           req.CallerRole,
		ConversationID: req.ConversationID,
		ArgumentsJSON:  argsJSON,
		Outcome:        outcome,
		Message:        message,
		LatencyMs:      latencyMs,
	})
}

// classify maps an error chain to its errorKind and user-facing message.
func classify(err error) (caperr.Kind, string) {
	var ce *caperr.Error
	if errors.As(err, &ce) {
		return ce.Kind, ce.Message
	}
	return caperr.KindExecution, err.Error()
}
