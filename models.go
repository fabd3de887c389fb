package permkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is a named bundle of permissions assignable to users.
// System roles (IsSystem) are read-only through PermKit's mutation
// operations: they cannot be deleted and their permission set is frozen.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Name        string    `bun:"name,notnull,unique"` // lowercase token, no whitespace
	DisplayName string    `bun:"display_name,notnull"`
	Description string    `bun:"description"`
	IsSystem    bool      `bun:"is_system,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	Permissions []*Permission `bun:"rel:has-many,join:id=role_id"`
}

// Permission is a concrete grant of (resource, action, scope) to a role.
// Within one role the (resource, action, scope) tuple is unique.
type Permission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	ID            string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	RoleID        string    `bun:"role_id,notnull,type:uuid"`
	Resource      string    `bun:"resource,notnull"`
	Action        string    `bun:"action,notnull"`
	ScopeKind     ScopeKind `bun:"scope_kind,notnull"`
	ScopeInstance string    `bun:"scope_instance,notnull,default:''"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Scope reassembles the stored scope columns into the Scope sum type.
func (p *Permission) Scope() Scope {
	if p.ScopeKind == ScopeInstance {
		return InstanceScope(p.ScopeInstance)
	}
	return AllScope()
}

// CellKey returns the key identifying this permission's matrix cell within
// its role. Pending edits to the same cell collapse onto this key.
func (p *Permission) CellKey() string {
	return CellKey(p.RoleID, p.Resource, p.Action, p.Scope())
}

// CellKey builds the (role, resource, action, scope) tuple key used to
// index baseline permissions and pending edits.
func CellKey(roleID, resource, action string, scope Scope) string {
	return roleID + "\x1f" + resource + "\x1f" + action + "\x1f" + scope.Key()
}

// UserAssignment links a user to a role. PermKit tracks membership for
// display; it does not interpret it beyond that.
type UserAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    string    `bun:"user_id,notnull"`
	RoleID    string    `bun:"role_id,notnull,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// MatrixAuditLog records every grant and revoke that reaches the system of
// record, for compliance and debugging.
type MatrixAuditLog struct {
	bun.BaseModel `bun:"table:matrix_audit_log,alias:mal"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who performed the change
	ActorID string `bun:"actor_id,notnull"`

	// What was changed
	Action        string    `bun:"action,notnull"` // "granted", "revoked"
	RoleID        string    `bun:"role_id,notnull,type:uuid"`
	RoleName      string    `bun:"role_name,notnull"`
	Resource      string    `bun:"resource,notnull"`
	GrantAction   string    `bun:"grant_action,notnull"`
	ScopeKind     ScopeKind `bun:"scope_kind,notnull"`
	ScopeInstance string    `bun:"scope_instance,notnull,default:''"`
	PermissionID  string    `bun:"permission_id"`

	// Batch correlation: set when the change came through a staged apply
	SessionID string `bun:"session_id"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionGranted AuditAction = "granted"
	AuditActionRevoked AuditAction = "revoked"
)

// AuditEntry is used to create new audit log entries.
type AuditEntry struct {
	ActorID      string
	Action       AuditAction
	RoleID       string
	RoleName     string
	Resource     string
	GrantAction  string
	Scope        Scope
	PermissionID string
	SessionID    string
	IPAddress    string
	UserAgent    string
	RequestID    string
}

// ToModel converts an AuditEntry to a MatrixAuditLog model.
func (e *AuditEntry) ToModel() *MatrixAuditLog {
	return &MatrixAuditLog{
		ActorID:       e.ActorID,
		Action:        string(e.Action),
		RoleID:        e.RoleID,
		RoleName:      e.RoleName,
		Resource:      e.Resource,
		GrantAction:   e.GrantAction,
		ScopeKind:     e.Scope.Kind,
		ScopeInstance: e.Scope.Instance,
		PermissionID:  e.PermissionID,
		SessionID:     e.SessionID,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		RequestID:     e.RequestID,
		Timestamp:     time.Now(),
	}
}
