package permkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store and UserDirectory implementation. It
// enforces the same validation, conflict, and system-role rules as the
// database-backed Service, and is used by staging-engine tests and by
// embedders that do not need persistence.
type MemStore struct {
	catalog *Catalog

	mu          sync.RWMutex
	roles       map[string]*Role           // roleID -> role
	names       map[string]string          // role name -> roleID
	perms       map[string]*Permission     // permissionID -> permission
	assignments map[string]*UserAssignment // assignmentID -> assignment

	// failGrants/failRevokes inject per-cell failures for tests.
	failGrants  map[string]error // cell key -> error
	failRevokes map[string]error // permission ID -> error
}

// NewMemStore creates an empty in-memory store validated against the catalog.
func NewMemStore(catalog *Catalog) *MemStore {
	return &MemStore{
		catalog:     catalog,
		roles:       make(map[string]*Role),
		names:       make(map[string]string),
		perms:       make(map[string]*Permission),
		assignments: make(map[string]*UserAssignment),
		failGrants:  make(map[string]error),
		failRevokes: make(map[string]error),
	}
}

// CreateRole creates a non-system role with no permissions.
func (m *MemStore) CreateRole(ctx context.Context, input CreateRoleInput) (*Role, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[input.Name]; taken {
		return nil, NewError(ErrConflict, "role name already taken").WithRoleName(input.Name)
	}

	role := &Role{
		ID:          uuid.NewString(),
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Description: input.Description,
		IsSystem:    false,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Permissions: []*Permission{},
	}
	m.roles[role.ID] = role
	m.names[role.Name] = role.ID
	return cloneRole(role), nil
}

// CreateSystemRole seeds a built-in role with its grants. Grants are
// validated against the catalog. Fails with ErrConflict if the name exists.
func (m *MemStore) CreateSystemRole(ctx context.Context, input CreateRoleInput, grants []SystemGrant) (*Role, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	for _, g := range grants {
		if err := m.catalog.ValidateCell(g.Resource, g.Action, g.Scope); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.names[input.Name]; taken {
		return nil, NewError(ErrConflict, "role name already taken").WithRoleName(input.Name)
	}

	role := &Role{
		ID:          uuid.NewString(),
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Description: input.Description,
		IsSystem:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	for _, g := range grants {
		perm := &Permission{
			ID:            uuid.NewString(),
			RoleID:        role.ID,
			Resource:      g.Resource,
			Action:        g.Action,
			ScopeKind:     g.Scope.Kind,
			ScopeInstance: g.Scope.Instance,
			CreatedAt:     time.Now(),
		}
		role.Permissions = append(role.Permissions, perm)
		m.perms[perm.ID] = perm
	}
	m.roles[role.ID] = role
	m.names[role.Name] = role.ID
	return cloneRole(role), nil
}

// DeleteRole removes a non-system role, its permissions, and its user
// assignments.
func (m *MemStore) DeleteRole(ctx context.Context, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleID]
	if !ok {
		return NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	if role.IsSystem {
		return NewError(ErrProtectedRole, "system roles cannot be deleted").
			WithRole(roleID).
			WithRoleName(role.Name)
	}

	for _, p := range role.Permissions {
		delete(m.perms, p.ID)
	}
	for id, a := range m.assignments {
		if a.RoleID == roleID {
			delete(m.assignments, id)
		}
	}
	delete(m.names, role.Name)
	delete(m.roles, roleID)
	return nil
}

// GetRole retrieves a role with its permissions.
func (m *MemStore) GetRole(ctx context.Context, roleID string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, ok := m.roles[roleID]
	if !ok {
		return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	return cloneRole(role), nil
}

// GetRoleByName retrieves a role by its unique name.
func (m *MemStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.names[name]
	if !ok {
		return nil, NewError(ErrNotFound, "role does not exist").WithRoleName(name)
	}
	return cloneRole(m.roles[id]), nil
}

// ListRoles retrieves all roles with their permissions. Order is unspecified.
func (m *MemStore) ListRoles(ctx context.Context) ([]*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, cloneRole(r))
	}
	return out, nil
}

// AddPermission grants (resource, action, scope) to a role.
func (m *MemStore) AddPermission(ctx context.Context, roleID, resource, action string, scope Scope) (*Permission, error) {
	if err := m.catalog.ValidateCell(resource, action, scope); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleID]
	if !ok {
		return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	if role.IsSystem {
		return nil, NewError(ErrProtectedRole, "permissions of system roles cannot be changed").
			WithRole(roleID).
			WithRoleName(role.Name).
			WithCell(resource, action, scope)
	}

	key := CellKey(roleID, resource, action, scope)
	if err, injected := m.failGrants[key]; injected {
		return nil, err
	}

	for _, p := range role.Permissions {
		if p.Resource == resource && p.Action == action && p.Scope() == scope {
			return nil, NewError(ErrConflict, "permission tuple already granted").
				WithRole(roleID).
				WithCell(resource, action, scope)
		}
	}

	perm := &Permission{
		ID:            uuid.NewString(),
		RoleID:        roleID,
		Resource:      resource,
		Action:        action,
		ScopeKind:     scope.Kind,
		ScopeInstance: scope.Instance,
		CreatedAt:     time.Now(),
	}
	role.Permissions = append(role.Permissions, perm)
	role.UpdatedAt = time.Now()
	m.perms[perm.ID] = perm
	return clonePermission(perm), nil
}

// RemovePermission revokes a permission from a role by permission ID.
func (m *MemStore) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[roleID]
	if !ok {
		return NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	if role.IsSystem {
		return NewError(ErrProtectedRole, "permissions of system roles cannot be changed").
			WithRole(roleID).
			WithRoleName(role.Name).
			WithPermission(permissionID)
	}

	if err, injected := m.failRevokes[permissionID]; injected {
		return err
	}

	perm, ok := m.perms[permissionID]
	if !ok || perm.RoleID != roleID {
		return NewError(ErrNotFound, "permission does not exist on this role").
			WithRole(roleID).
			WithPermission(permissionID)
	}

	for i, p := range role.Permissions {
		if p.ID == permissionID {
			role.Permissions = append(role.Permissions[:i], role.Permissions[i+1:]...)
			break
		}
	}
	role.UpdatedAt = time.Now()
	delete(m.perms, permissionID)
	return nil
}

// ListPermissions retrieves all permissions granted to a role.
func (m *MemStore) ListPermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, ok := m.roles[roleID]
	if !ok {
		return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	out := make([]*Permission, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		out = append(out, clonePermission(p))
	}
	return out, nil
}

// AssignUser links a user to a role.
func (m *MemStore) AssignUser(ctx context.Context, userID, roleID string) (*UserAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roles[roleID]; !ok {
		return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
	}
	for _, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			return nil, NewError(ErrConflict, "user already holds this role").WithRole(roleID)
		}
	}

	assignment := &UserAssignment{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoleID:    roleID,
		CreatedAt: time.Now(),
	}
	m.assignments[assignment.ID] = assignment
	out := *assignment
	return &out, nil
}

// UnassignUser removes a user's membership in a role.
func (m *MemStore) UnassignUser(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			delete(m.assignments, id)
			return nil
		}
	}
	return NewError(ErrNotFound, "user does not hold this role").WithRole(roleID)
}

// ListRoleMembers retrieves all assignments for a role.
func (m *MemStore) ListRoleMembers(ctx context.Context, roleID string) ([]*UserAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UserAssignment
	for _, a := range m.assignments {
		if a.RoleID == roleID {
			item := *a
			out = append(out, &item)
		}
	}
	return out, nil
}

// ListUserRoles retrieves all role assignments held by a user.
func (m *MemStore) ListUserRoles(ctx context.Context, userID string) ([]*UserAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UserAssignment
	for _, a := range m.assignments {
		if a.UserID == userID {
			item := *a
			out = append(out, &item)
		}
	}
	return out, nil
}

// FailNextGrant makes AddPermission fail for one cell until cleared. Test
// hook for exercising partial apply failure.
func (m *MemStore) FailNextGrant(roleID, resource, action string, scope Scope, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("injected grant failure")
	}
	m.failGrants[CellKey(roleID, resource, action, scope)] = err
}

// FailNextRevoke makes RemovePermission fail for one permission ID until
// cleared. Test hook for exercising partial apply failure.
func (m *MemStore) FailNextRevoke(permissionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("injected revoke failure")
	}
	m.failRevokes[permissionID] = err
}

// ClearFailures removes all injected failures.
func (m *MemStore) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGrants = make(map[string]error)
	m.failRevokes = make(map[string]error)
}

func cloneRole(r *Role) *Role {
	out := *r
	out.Permissions = make([]*Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		out.Permissions = append(out.Permissions, clonePermission(p))
	}
	return &out
}

func clonePermission(p *Permission) *Permission {
	out := *p
	return &out
}
