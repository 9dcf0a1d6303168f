// Package access maps caller roles to capability access levels and
// per-table operation permissions. Everything here is deny-by-default:
// an unknown role resolves to the empty permission set, never to an error
// path that could be mistaken for "allow".
package access

import (
	"sort"
	"strings"
)

// Role is the caller's privilege classification. Closed set.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Level is the privilege tier attached to a capability or table operation.
// Closed set.
type Level string

const (
	LevelPublic     Level = "public"
	LevelUser       Level = "user"
	LevelManager    Level = "manager"
	LevelAdmin      Level = "admin"
	LevelRestricted Level = "restricted"
)

// Op is a table-level operation class.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// ParseRole validates a role string against the closed set.
// The second return is false for unrecognized roles; callers keep the raw
// value so permission checks deny it rather than erroring.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleGuest, RoleUser, RoleManager, RoleAdmin:
		return Role(s), true
	}
	return Role(s), false
}

// ParseLevel validates an access level string against the closed set.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelPublic, LevelUser, LevelManager, LevelAdmin, LevelRestricted:
		return Level(s), true
	}
	return Level(s), false
}

// TablePermissions maps role → operation → table patterns. A pattern is an
// exact table name, a "prefix*" wildcard, or "*" for all tables.
type TablePermissions map[Role]map[Op][]string

// Evaluator resolves role hierarchy and table permissions. Immutable after
// construction; safe for concurrent use.
type Evaluator struct {
	levels map[Role][]Level
	tables TablePermissions
}

// EvaluatorConfig configures an Evaluator. Zero-value fields fall back to
// the built-in defaults.
type EvaluatorConfig struct {
	// Levels overrides the role → accessible levels mapping.
	Levels map[Role][]Level
	// Tables holds the per-table permission patterns per role.
	Tables TablePermissions
}

// defaultRoleLevels is the strict hierarchy: admin ⊇ manager ⊇ user ⊇ guest.
// The restricted level is reachable only by admin.
func defaultRoleLevels() map[Role][]Level {
	return map[Role][]Level{
		RoleGuest:   {LevelPublic},
		RoleUser:    {LevelPublic, LevelUser},
		RoleManager: {LevelPublic, LevelUser, LevelManager},
		RoleAdmin:   {LevelPublic, LevelUser, LevelManager, LevelAdmin, LevelRestricted},
	}
}

// NewEvaluator creates an Evaluator from the given config.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	levels := cfg.Levels
	if levels == nil {
		levels = defaultRoleLevels()
	}
	tables := cfg.Tables
	if tables == nil {
		tables = TablePermissions{}
	}
	return &Evaluator{levels: levels, tables: tables}
}

// AccessibleLevels returns the ordered set of levels the role may execute.
// Unknown roles get an empty set.
func (e *Evaluator) AccessibleLevels(role Role) []Level {
	src := e.levels[role]
	out := make([]Level, len(src))
	copy(out, src)
	return out
}

// CanExecute reports whether a capability at the given level is executable
// by the role.
func (e *Evaluator) CanExecute(level Level, role Role) bool {
	for _, l := range e.levels[role] {
		if l == level {
			return true
		}
	}
	return false
}

// HasTablePermission reports whether the role may perform op on the table.
// Match order: exact name, then longest prefix* wildcard, then global *.
// Default is deny.
func (e *Evaluator) HasTablePermission(table string, role Role, op Op) bool {
	perms, ok := e.tables[role]
	if !ok {
		return false
	}
	patterns := perms[op]
	if len(patterns) == 0 {
		return false
	}

	// Exact match wins outright.
	for _, p := range patterns {
		if p == table {
			return true
		}
	}

	// Longest matching prefix wildcard.
	best := -1
	for _, p := range patterns {
		if p == "*" || !strings.HasSuffix(p, "*") {
			continue
		}
		prefix := strings.TrimSuffix(p, "*")
		if strings.HasPrefix(table, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	if best >= 0 {
		return true
	}

	for _, p := range patterns {
		if p == "*" {
			return true
		}
	}
	return false
}

// ReadableTables filters a table directory to those the role may read,
// preserving input order after sorting.
func (e *Evaluator) ReadableTables(role Role, tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if e.HasTablePermission(t, role, OpRead) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
