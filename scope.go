package permkit

import (
	"fmt"
	"strings"
)

// ScopeKind discriminates the two breadths a grant can have.
type ScopeKind string

const (
	// ScopeAll grants the action across every instance of the resource.
	ScopeAll ScopeKind = "all"

	// ScopeInstance restricts the grant to one named instance.
	ScopeInstance ScopeKind = "instance"
)

// Scope is the breadth of a grant: all instances of a resource, or a single
// named instance. The instance value is opaque to PermKit; it is not checked
// against any inventory.
//
// Scope is a closed sum over ScopeAll and ScopeInstance. Sites that reason
// about grants switch on Kind and treat any other value as invalid, so a new
// kind cannot slip through silently.
type Scope struct {
	Kind     ScopeKind
	Instance string // set only when Kind == ScopeInstance
}

// AllScope returns the scope covering every instance of a resource.
func AllScope() Scope {
	return Scope{Kind: ScopeAll}
}

// InstanceScope returns the scope covering a single named instance.
func InstanceScope(instance string) Scope {
	return Scope{Kind: ScopeInstance, Instance: instance}
}

// Validate checks the scope invariants: the kind must be one of the known
// variants and an instance scope must carry a non-empty value.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeAll:
		if s.Instance != "" {
			return NewError(ErrValidation, "all scope must not carry an instance value")
		}
		return nil
	case ScopeInstance:
		if s.Instance == "" {
			return NewError(ErrValidation, "instance scope requires a non-empty value")
		}
		return nil
	default:
		return NewError(ErrValidation, fmt.Sprintf("unknown scope kind %q", s.Kind))
	}
}

// IsAll returns true for the all-instances scope.
func (s Scope) IsAll() bool {
	return s.Kind == ScopeAll
}

// Key returns the stable string form used for tuple keys and storage.
// "all" for the all scope, "instance:<value>" for an instance scope.
func (s Scope) Key() string {
	if s.Kind == ScopeInstance {
		return string(ScopeInstance) + ":" + s.Instance
	}
	return string(ScopeAll)
}

// String returns a human-readable representation of the scope.
func (s Scope) String() string {
	if s.Kind == ScopeInstance {
		return "instance " + s.Instance
	}
	return "all instances"
}

// ParseScopeKey parses the string form produced by Key back into a Scope.
func ParseScopeKey(key string) (Scope, error) {
	if key == string(ScopeAll) {
		return AllScope(), nil
	}
	if value, ok := strings.CutPrefix(key, string(ScopeInstance)+":"); ok {
		if value == "" {
			return Scope{}, NewError(ErrValidation, "instance scope requires a non-empty value")
		}
		return InstanceScope(value), nil
	}
	return Scope{}, NewError(ErrValidation, fmt.Sprintf("malformed scope key %q", key))
}
