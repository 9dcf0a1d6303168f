package capability

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"go.uber.org/zap"
)

// Registry stores capability specs keyed by unique name. Registration is
// an administrative, low-frequency path; concurrent writers on the same
// name resolve last-writer-wins.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]*Spec
	access *access.Evaluator
	logger *zap.Logger
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Access *access.Evaluator
	Logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		specs:  make(map[string]*Spec),
		access: cfg.Access,
		logger: cfg.Logger,
	}
}

// Register upserts a spec by name and returns the stored copy. The spec
// must carry a handler, a valid access level, and a structurally sound
// parameter schema.
func (r *Registry) Register(spec *Spec) (*Spec, error) {
	if spec == nil || spec.Name == "" {
		return nil, caperr.Validationf("capability name is required")
	}
	if spec.Handler == nil {
		return nil, caperr.Validationf("capability %q has no handler", spec.Name)
	}
	if _, ok := access.ParseLevel(string(spec.AccessLevel)); !ok {
		return nil, caperr.Validationf("capability %q has unknown access level %q", spec.Name, spec.AccessLevel)
	}
	if err := validateSchema(spec.Name, spec.Parameters); err != nil {
		return nil, err
	}

	stored := spec.clone()

	r.mu.Lock()
	_, replaced := r.specs[stored.Name]
	r.specs[stored.Name] = stored
	r.mu.Unlock()

	r.logger.Info("capability registered",
		zap.String("name", stored.Name),
		zap.String("module", stored.Module),
		zap.String("access_level", string(stored.AccessLevel)),
		zap.Bool("replaced", replaced),
	)
	return stored.clone(), nil
}

// Get returns the spec for a name, or nil if unregistered.
func (r *Registry) Get(name string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return nil
	}
	return spec.clone()
}

// ListByModule returns all specs in a module group, sorted by name.
func (r *Registry) ListByModule(module string) []*Spec {
	return r.list(func(s *Spec) bool { return s.Module == module })
}

// ListByTag returns all specs carrying a tag, sorted by name.
func (r *Registry) ListByTag(tag string) []*Spec {
	return r.list(func(s *Spec) bool { return s.HasTag(tag) })
}

// ListAccessibleTo returns the specs executable by the role, sorted by
// name. This is what the agent loop builds its tool menu from.
func (r *Registry) ListAccessibleTo(role access.Role) []*Spec {
	return r.list(func(s *Spec) bool { return r.access.CanExecute(s.AccessLevel, role) })
}

func (r *Registry) list(keep func(*Spec) bool) []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Spec
	for _, spec := range r.specs {
		if keep(spec) {
			out = append(out, spec.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// validateSchema compiles the parameter schema to catch structural errors
// at registration time instead of on the invocation path, and restricts
// property types to the closed set the validator checks.
func validateSchema(name string, schema params.Schema) error {
	if schema.Type != "" && schema.Type != "object" {
		return caperr.Validationf("capability %q parameter schema must have type object", name)
	}
	for propName, prop := range schema.Properties {
		if !params.KnownType(prop.Type) {
			return caperr.Validationf("capability %q parameter %q has unsupported type %q",
				name, propName, prop.Type)
		}
	}
	for _, req := range schema.Required {
		if _, ok := schema.Properties[req]; !ok {
			return caperr.Validationf("capability %q requires undeclared parameter %q", name, req)
		}
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return caperr.Wrap(caperr.KindValidation, err, "capability %q parameter schema is not serializable", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return caperr.Wrap(caperr.KindValidation, err, "capability %q parameter schema is not valid JSON", name)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return caperr.Wrap(caperr.KindValidation, err, "capability %q parameter schema rejected", name)
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return caperr.Wrap(caperr.KindValidation, err, "capability %q parameter schema rejected", name)
	}
	return nil
}
