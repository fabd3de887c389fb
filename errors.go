package permkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for PermKit operations.
var (
	// ErrValidation is returned for malformed input: a bad role name, an
	// action the resource does not declare, or an empty instance scope value.
	ErrValidation = errors.New("permkit: validation failed")

	// ErrConflict is returned when a role name or a (resource, action, scope)
	// tuple already exists.
	ErrConflict = errors.New("permkit: conflict")

	// ErrNotFound is returned when a role, permission, or resource is missing.
	ErrNotFound = errors.New("permkit: not found")

	// ErrProtectedRole is returned when a mutation targets a system role.
	ErrProtectedRole = errors.New("permkit: system role is protected")

	// ErrStaleSession is returned when a baseline refresh is requested while
	// the session still holds pending edits.
	ErrStaleSession = errors.New("permkit: session has pending edits")

	// ErrApplyInProgress is returned for operations that are invalid while a
	// batch apply is in flight.
	ErrApplyInProgress = errors.New("permkit: apply in progress")

	// ErrSessionClosed is returned when operating on a closed session.
	ErrSessionClosed = errors.New("permkit: session closed")

	// ErrNoActorID is returned when actor ID is not found in context for audit.
	ErrNoActorID = errors.New("permkit: no actor ID in context")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("permkit: database error")
)

// Error wraps a sentinel error with additional context about the grant cell
// and role involved.
type Error struct {
	Err          error  // Underlying sentinel error
	Message      string // Additional context
	RoleID       string // Role involved (if applicable)
	RoleName     string // Role name involved (if applicable)
	Resource     string // Resource involved (if applicable)
	Action       string // Action involved (if applicable)
	Scope        string // Scope key involved (if applicable)
	PermissionID string // Permission involved (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithRole adds role information to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithRoleName adds the role name to the error.
func (e *Error) WithRoleName(name string) *Error {
	e.RoleName = name
	return e
}

// WithCell adds the (resource, action, scope) cell to the error.
func (e *Error) WithCell(resource, action string, scope Scope) *Error {
	e.Resource = resource
	e.Action = action
	e.Scope = scope.Key()
	return e
}

// WithPermission adds the permission ID to the error.
func (e *Error) WithPermission(permissionID string) *Error {
	e.PermissionID = permissionID
	return e
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsProtectedRole checks if an error is due to a protected system role.
func IsProtectedRole(err error) bool {
	return errors.Is(err, ErrProtectedRole)
}

// IsStaleSession checks if an error is due to refreshing a dirty session.
func IsStaleSession(err error) bool {
	return errors.Is(err, ErrStaleSession)
}
