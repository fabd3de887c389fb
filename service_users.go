package permkit

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// USER-ROLE ASSIGNMENT
// ============================================================================

// AssignUser links a user to a role. Membership is tracked for display; it
// does not affect the role's permission set.
func (s *Service) AssignUser(ctx context.Context, userID, roleID string) (*UserAssignment, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}

	exists, err := dbkit.Exists[UserAssignment](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ? AND role_id = ?", userID, roleID)
	})
	if err != nil {
		return nil, dbkit.WithErr1(err, "AssignUserLookup").Err()
	}
	if exists {
		return nil, NewError(ErrConflict, "user already holds this role").WithRole(roleID)
	}

	assignment := &UserAssignment{
		UserID: userID,
		RoleID: roleID,
	}
	result, err := s.db.NewInsert().Model(assignment).Returning("id, created_at").Exec(ctx)
	err = dbkit.WithErr(result, err, "AssignUser").Err()
	if err != nil {
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "user already holds this role").WithRole(roleID)
		}
		return nil, NewError(ErrDatabaseError, "failed to assign user").WithRole(roleID)
	}
	return assignment, nil
}

// UnassignUser removes a user's membership in a role.
func (s *Service) UnassignUser(ctx context.Context, userID, roleID string) error {
	result, err := s.db.NewDelete().Table("user_roles").
		Where("user_id = ? AND role_id = ?", userID, roleID).Exec(ctx)
	err = dbkit.WithErr(result, err, "UnassignUser").Err()
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewError(ErrNotFound, "user does not hold this role").WithRole(roleID)
	}
	return nil
}

// ListRoleMembers retrieves all assignments for a role.
func (s *Service) ListRoleMembers(ctx context.Context, roleID string) ([]*UserAssignment, error) {
	var assignments []*UserAssignment
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&assignments).Where("role_id = ?", roleID).Scan(ctx),
		"ListRoleMembers",
	).Err()
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListUserRoles retrieves all role assignments held by a user.
func (s *Service) ListUserRoles(ctx context.Context, userID string) ([]*UserAssignment, error) {
	var assignments []*UserAssignment
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&assignments).Where("user_id = ?", userID).Scan(ctx),
		"ListUserRoles",
	).Err()
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// CountRoleMembers returns the number of users holding a role.
func (s *Service) CountRoleMembers(ctx context.Context, roleID string) (int, error) {
	return dbkit.Count[UserAssignment](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("role_id = ?", roleID)
	})
}
