package permkit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// PERMISSION STORE OPERATIONS (per role)
// ============================================================================

// AddPermission grants (resource, action, scope) to a role.
//
// Fails with ErrValidation if the resource does not declare the action,
// ErrConflict if the exact tuple already exists on the role, and
// ErrProtectedRole if the role is a system role.
//
// Example:
//
//	perm, err := service.AddPermission(ctx, roleID, "node", "read", permkit.AllScope())
func (s *Service) AddPermission(ctx context.Context, roleID, resource, action string, scope Scope) (*Permission, error) {
	if err := s.catalog.ValidateCell(resource, action, scope); err != nil {
		return nil, err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, NewError(ErrProtectedRole, "permissions of system roles cannot be changed").
			WithRole(roleID).
			WithRoleName(role.Name).
			WithCell(resource, action, scope)
	}

	exists, err := dbkit.Exists[Permission](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ? AND resource = ? AND action = ? AND scope_kind = ? AND scope_instance = ?",
			roleID, resource, action, scope.Kind, scope.Instance)
	})
	if err != nil {
		return nil, dbkit.WithErr1(err, "AddPermissionLookup").Err()
	}
	if exists {
		return nil, NewError(ErrConflict, "permission tuple already granted").
			WithRole(roleID).
			WithCell(resource, action, scope)
	}

	perm := &Permission{
		RoleID:        roleID,
		Resource:      resource,
		Action:        action,
		ScopeKind:     scope.Kind,
		ScopeInstance: scope.Instance,
	}

	result, err := s.db.NewInsert().Model(perm).Returning("id, created_at").Exec(ctx)
	err = dbkit.WithErr(result, err, "AddPermission").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "permission tuple already granted").
				WithRole(roleID).
				WithCell(resource, action, scope)
		}
		return nil, NewError(ErrDatabaseError, "failed to add permission").
			WithRole(roleID).
			WithCell(resource, action, scope)
	}

	audit := GetAuditContext(ctx)
	_ = s.logAudit(ctx, &AuditEntry{
		ActorID:      audit.ActorID,
		Action:       AuditActionGranted,
		RoleID:       roleID,
		RoleName:     role.Name,
		Resource:     resource,
		GrantAction:  action,
		Scope:        scope,
		PermissionID: perm.ID,
		SessionID:    GetSessionID(ctx),
		IPAddress:    audit.IPAddress,
		UserAgent:    audit.UserAgent,
		RequestID:    audit.RequestID,
	}) // Log error but don't fail the grant

	return perm, nil
}

// RemovePermission revokes a permission from a role by permission ID.
//
// Fails with ErrNotFound if the permission does not exist on the role and
// ErrProtectedRole if the role is a system role.
func (s *Service) RemovePermission(ctx context.Context, roleID, permissionID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return NewError(ErrProtectedRole, "permissions of system roles cannot be changed").
			WithRole(roleID).
			WithRoleName(role.Name).
			WithPermission(permissionID)
	}

	var perm Permission
	err = dbkit.WithErr1(
		s.db.NewSelect().Model(&perm).Where("id = ? AND role_id = ?", permissionID, roleID).Scan(ctx),
		"RemovePermissionLookup",
	).Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return NewError(ErrNotFound, "permission does not exist on this role").
				WithRole(roleID).
				WithPermission(permissionID)
		}
		return err
	}

	result, err := s.db.NewDelete().Table("role_permissions").
		Where("id = ? AND role_id = ?", permissionID, roleID).Exec(ctx)
	err = dbkit.WithErr(result, err, "RemovePermission").Err()
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "permission does not exist on this role").
			WithRole(roleID).
			WithPermission(permissionID)
	}

	audit := GetAuditContext(ctx)
	_ = s.logAudit(ctx, &AuditEntry{
		ActorID:      audit.ActorID,
		Action:       AuditActionRevoked,
		RoleID:       roleID,
		RoleName:     role.Name,
		Resource:     perm.Resource,
		GrantAction:  perm.Action,
		Scope:        perm.Scope(),
		PermissionID: permissionID,
		SessionID:    GetSessionID(ctx),
		IPAddress:    audit.IPAddress,
		UserAgent:    audit.UserAgent,
		RequestID:    audit.RequestID,
	}) // Log error but don't fail the revoke

	return nil
}

// ListPermissions retrieves all permissions granted to a role.
func (s *Service) ListPermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	var perms []*Permission
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&perms).Where("role_id = ?", roleID).Scan(ctx),
		"ListPermissions",
	).Err()
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// CountPermissions returns the number of permissions granted to a role.
func (s *Service) CountPermissions(ctx context.Context, roleID string) (int, error) {
	return dbkit.Count[Permission](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ?", roleID)
	})
}

// HasPermission reports whether the role holds the exact
// (resource, action, scope) tuple. This checks the stored tuple only; it
// does not widen instance scopes to all-scope grants.
func (s *Service) HasPermission(ctx context.Context, roleID, resource, action string, scope Scope) bool {
	exists, err := dbkit.Exists[Permission](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ? AND resource = ? AND action = ? AND scope_kind = ? AND scope_instance = ?",
			roleID, resource, action, scope.Kind, scope.Instance)
	})
	if err != nil {
		return false
	}
	return exists
}
