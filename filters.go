package permkit

import "time"

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by actor who performed the change
	ActorID string

	// Filter by role
	RoleID string

	// Filter by resource
	Resource string

	// Filter by the granted action (e.g. "read")
	GrantAction string

	// Filter by audit action ("granted" or "revoked")
	Action string

	// Filter by staging session batch
	SessionID string

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: 100,
	}
}

// WithActor sets the actor ID filter.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithRole sets the role filter.
func (f AuditLogFilter) WithRole(roleID string) AuditLogFilter {
	f.RoleID = roleID
	return f
}

// WithResource sets the resource filter.
func (f AuditLogFilter) WithResource(resource string) AuditLogFilter {
	f.Resource = resource
	return f
}

// WithGrantAction sets the granted-action filter.
func (f AuditLogFilter) WithGrantAction(action string) AuditLogFilter {
	f.GrantAction = action
	return f
}

// WithAction sets the audit action filter.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = string(action)
	return f
}

// WithSession sets the staging session filter.
func (f AuditLogFilter) WithSession(sessionID string) AuditLogFilter {
	f.SessionID = sessionID
	return f
}

// WithTimeRange sets the time range filter.
func (f AuditLogFilter) WithTimeRange(since, until time.Time) AuditLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithPagination sets limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
