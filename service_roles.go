package permkit

import (
	"context"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// roleNameFormat is the token format role names must follow: lowercase
// letters, digits, underscores and hyphens, starting with a letter.
var roleNameFormat = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// CreateRoleInput carries the fields for creating a role.
type CreateRoleInput struct {
	Name        string
	DisplayName string
	Description string
}

// Validate checks the input against the role naming rules.
func (in CreateRoleInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.Match(roleNameFormat).Error("name must be a lowercase token (letters, digits, _ or -)"),
			validation.Length(1, 64).Error("name must be between 1 and 64 characters"),
		),
		validation.Field(&in.DisplayName,
			validation.Length(0, 255).Error("display name must be at most 255 characters"),
		),
	)
	if err != nil {
		return NewError(ErrValidation, err.Error()).WithRoleName(in.Name)
	}
	return nil
}

// normalize lowercases and trims the role name so lookups and uniqueness are
// case-insensitive.
func (in CreateRoleInput) normalize() CreateRoleInput {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	if in.DisplayName == "" {
		in.DisplayName = in.Name
	}
	return in
}

// ============================================================================
// ROLE REGISTRY OPERATIONS
// ============================================================================

// CreateRole creates a new non-system role with no permissions.
//
// Example:
//
//	role, err := service.CreateRole(ctx, permkit.CreateRoleInput{
//	    Name:        "auditor",
//	    DisplayName: "Auditor",
//	})
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (*Role, error) {
	input = input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Reject a taken name before hitting the unique constraint, so the
	// common case reports cleanly.
	exists, err := dbkit.Exists[Role](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name = ?", input.Name)
	})
	if err != nil {
		return nil, dbkit.WithErr1(err, "CreateRoleLookup").Err()
	}
	if exists {
		return nil, NewError(ErrConflict, "role name already taken").WithRoleName(input.Name)
	}

	role := &Role{
		Name:        input.Name,
		DisplayName: input.DisplayName,
		Description: input.Description,
		IsSystem:    false,
	}

	result, err := s.db.NewInsert().Model(role).Returning("id, created_at, updated_at").Exec(ctx)
	err = dbkit.WithErr(result, err, "CreateRole").Err()
	if err != nil {
		// The system of record may still reject the name as duplicate if a
		// concurrent create won the race.
		if dbkit.IsDuplicate(err) {
			return nil, NewError(ErrConflict, "role name already taken").WithRoleName(input.Name)
		}
		return nil, NewError(ErrDatabaseError, "failed to create role").WithRoleName(input.Name)
	}

	role.Permissions = []*Permission{}
	return role, nil
}

// DeleteRole removes a non-system role and cascades removal of its
// permissions and user assignments. Live editing sessions holding pending
// edits for the role discard them.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return NewError(ErrProtectedRole, "system roles cannot be deleted").
			WithRole(roleID).
			WithRoleName(role.Name)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		result, err := s.db.NewDelete().Table("role_permissions").Where("role_id = ?", roleID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRolePermissions").Err(); err != nil {
			return err
		}
		result, err = s.db.NewDelete().Table("user_roles").Where("role_id = ?", roleID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRoleAssignments").Err(); err != nil {
			return err
		}
		result, err = s.db.NewDelete().Table("roles").Where("id = ?", roleID).Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRole").Err(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discardRoleFromSessions(roleID)
	return nil
}

// GetRole retrieves a role with its permissions.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	var role Role
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&role).Relation("Permissions").Where("r.id = ?", roleID).Scan(ctx),
		"GetRole",
	).Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "role does not exist").WithRole(roleID)
		}
		return nil, err
	}
	return &role, nil
}

// GetRoleByName retrieves a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	var role Role
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&role).Relation("Permissions").Where("r.name = ?", name).Scan(ctx),
		"GetRoleByName",
	).Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrNotFound, "role does not exist").WithRoleName(name)
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles retrieves all roles with their permissions. Order is not
// guaranteed stable across calls; callers sort at presentation time.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	var roles []*Role
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&roles).Relation("Permissions").Scan(ctx),
		"ListRoles",
	).Err()
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// CountRoles returns the total number of roles.
func (s *Service) CountRoles(ctx context.Context) (int, error) {
	return dbkit.Count[Role](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	})
}

// SystemRoleInput defines one built-in role for EnsureSystemRoles.
type SystemRoleInput struct {
	Name        string
	DisplayName string
	Description string
	Grants      []SystemGrant
}

// SystemGrant is one (resource, action, scope) granted to a built-in role.
type SystemGrant struct {
	Resource string
	Action   string
	Scope    Scope
}

// EnsureSystemRoles upserts built-in roles and their permission sets at
// bootstrap. Existing rows are left untouched, so operator-visible state
// survives restarts. Grants are validated against the catalog.
func (s *Service) EnsureSystemRoles(ctx context.Context, defs []SystemRoleInput) error {
	for _, def := range defs {
		for _, g := range def.Grants {
			if err := s.catalog.ValidateCell(g.Resource, g.Action, g.Scope); err != nil {
				return err
			}
		}
	}

	return s.Transaction(ctx, func(ctx context.Context) error {
		for _, def := range defs {
			input := CreateRoleInput{Name: def.Name, DisplayName: def.DisplayName, Description: def.Description}.normalize()
			if err := input.Validate(); err != nil {
				return err
			}

			role := &Role{
				Name:        input.Name,
				DisplayName: input.DisplayName,
				Description: input.Description,
				IsSystem:    true,
			}
			result, err := s.db.NewInsert().Model(role).
				On("CONFLICT (name) DO NOTHING").
				Exec(ctx)
			if err := dbkit.WithErr(result, err, "EnsureSystemRole").Err(); err != nil {
				return err
			}

			existing, err := s.GetRoleByName(ctx, input.Name)
			if err != nil {
				return err
			}

			for _, g := range def.Grants {
				perm := &Permission{
					RoleID:        existing.ID,
					Resource:      g.Resource,
					Action:        g.Action,
					ScopeKind:     g.Scope.Kind,
					ScopeInstance: g.Scope.Instance,
				}
				result, err := s.db.NewInsert().Model(perm).
					On("CONFLICT (role_id, resource, action, scope_kind, scope_instance) DO NOTHING").
					Exec(ctx)
				if err := dbkit.WithErr(result, err, "EnsureSystemGrant").Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
