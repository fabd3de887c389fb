package permkit

import (
	"context"
	"sync"

	"github.com/fernandezvara/dbkit"
)

// Service is the database-backed system of record for roles and permissions.
// It implements Store and UserDirectory, validates every mutation against
// the catalog, and protects system roles from destructive edits.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping to provide
// detailed context about failed operations. PermKit's own taxonomy
// (ErrValidation, ErrConflict, ErrNotFound, ErrProtectedRole) is layered on
// top, so callers classify with permkit.IsConflict and friends:
//
//	_, err := service.AddPermission(ctx, roleID, "node", "read", permkit.AllScope())
//	if err != nil {
//	    switch {
//	    case permkit.IsConflict(err):
//	        // duplicate (resource, action, scope) tuple on this role
//	    case permkit.IsProtectedRole(err):
//	        // attempted to edit a system role
//	    case permkit.IsValidation(err):
//	        // action not declared by the resource
//	    }
//	}
type Service struct {
	db      dbkit.IDB
	catalog *Catalog
	monitor *serviceMonitor

	sessMu   sync.Mutex
	sessions map[string]*Session
}

// NewService creates a new PermKit service.
//
// Example:
//
//	catalog := permkit.NewCatalog()
//	// ... define resources and actions ...
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(catalog, db)
func NewService(catalog *Catalog, db dbkit.IDB) *Service {
	return &Service{
		db:       db,
		catalog:  catalog,
		monitor:  newServiceMonitor(),
		sessions: make(map[string]*Session),
	}
}

// Catalog returns the resource/action catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// registerSession tracks a live editing session so that role deletion can
// discard pending edits that reference the removed role.
func (s *Service) registerSession(sess *Session) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.sessions[sess.ID()] = sess
}

// unregisterSession drops a closed session.
func (s *Service) unregisterSession(id string) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	delete(s.sessions, id)
}

// discardRoleFromSessions removes pending edits and baseline entries for a
// deleted role from every live session.
func (s *Service) discardRoleFromSessions(roleID string) {
	s.sessMu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessMu.Unlock()

	for _, sess := range sessions {
		sess.discardRole(roleID)
	}
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]MatrixAuditLog, error) {
	var logs []MatrixAuditLog
	q := s.db.NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.RoleID != "" {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.Resource != "" {
		q = q.Where("resource = ?", filter.Resource)
	}
	if filter.GrantAction != "" {
		q = q.Where("grant_action = ?", filter.GrantAction)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}

func (s *Service) logAudit(ctx context.Context, entry *AuditEntry) error {
	_, err := s.db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	return dbkit.WithErr1(err, "LogAudit").Err()
}
