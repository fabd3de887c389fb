package permkit

import (
	"github.com/fernandezvara/dbkit"
)

// Migrations returns all database migrations required for PermKit.
// Use db.Migrate(ctx, service.Migrations()) to run them.
func (s *Service) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "permkit-001",
			Description: "Create roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    name TEXT NOT NULL UNIQUE,
                    display_name TEXT NOT NULL,
                    description TEXT,
                    is_system BOOLEAN NOT NULL DEFAULT FALSE,
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "permkit-002",
			Description: "Create role_permissions table",
			SQL: `
                CREATE TABLE IF NOT EXISTS role_permissions (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    role_id UUID NOT NULL REFERENCES roles(id),
                    resource TEXT NOT NULL,
                    action TEXT NOT NULL,
                    scope_kind TEXT NOT NULL,
                    scope_instance TEXT NOT NULL DEFAULT '',
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (role_id, resource, action, scope_kind, scope_instance)
                )`,
		},
		{
			ID:          "permkit-003",
			Description: "Create user_roles table",
			SQL: `
                CREATE TABLE IF NOT EXISTS user_roles (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    user_id TEXT NOT NULL,
                    role_id UUID NOT NULL REFERENCES roles(id),
                    created_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    UNIQUE (user_id, role_id)
                )`,
		},
		{
			ID:          "permkit-004",
			Description: "Create matrix_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS matrix_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    action TEXT NOT NULL,
                    role_id UUID NOT NULL,
                    role_name TEXT NOT NULL,
                    resource TEXT NOT NULL,
                    grant_action TEXT NOT NULL,
                    scope_kind TEXT NOT NULL,
                    scope_instance TEXT NOT NULL DEFAULT '',
                    permission_id TEXT,
                    session_id TEXT,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT
                )`,
		},
		{
			ID:          "permkit-005",
			Description: "Index role_permissions by role",
			SQL: `
                CREATE INDEX IF NOT EXISTS idx_role_permissions_role_id
                    ON role_permissions (role_id)`,
		},
	}
}
