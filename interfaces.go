package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Store is the system-of-record contract the staging engine works against.
// The database-backed Service implements it; MemStore implements it in
// memory for tests and light embedders.
type Store interface {
	// Role registry
	CreateRole(ctx context.Context, input CreateRoleInput) (*Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	GetRole(ctx context.Context, roleID string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)

	// Permission store, scoped to a role
	AddPermission(ctx context.Context, roleID, resource, action string, scope Scope) (*Permission, error)
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	ListPermissions(ctx context.Context, roleID string) ([]*Permission, error)
}

// UserDirectory exposes role membership for display. Read-only from
// PermKit's perspective beyond assignment bookkeeping.
type UserDirectory interface {
	AssignUser(ctx context.Context, userID, roleID string) (*UserAssignment, error)
	UnassignUser(ctx context.Context, userID, roleID string) error
	ListRoleMembers(ctx context.Context, roleID string) ([]*UserAssignment, error)
	ListUserRoles(ctx context.Context, userID string) ([]*UserAssignment, error)
}

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// AuditLogger defines the audit logging interface
type AuditLogger interface {
	logAudit(ctx context.Context, entry *AuditEntry) error
}
