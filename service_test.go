package permkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewService tests service construction.
func TestNewService(t *testing.T) {
	catalog := newTestCatalog()
	service := NewService(catalog, nil)

	assert.NotNil(t, service)
	assert.Same(t, catalog, service.Catalog())
	assert.NotNil(t, service.monitor)
}

// TestServiceCatalogGetter tests the Catalog accessor.
func TestServiceCatalogGetter(t *testing.T) {
	catalog := newTestCatalog()
	service := NewService(catalog, nil)

	assert.Same(t, catalog, service.Catalog())
}

// TestServiceGetAuditLogNilDB verifies panic behavior when db is nil.
func TestServiceGetAuditLogNilDB(t *testing.T) {
	service := NewService(newTestCatalog(), nil)
	ctx := context.Background()

	assert.Panics(t, func() {
		_, _ = service.GetAuditLog(ctx, NewAuditLogFilter())
	})
}

// TestServiceGetAuditLogFiltersNilDB checks filters still panic when db is nil.
func TestServiceGetAuditLogFiltersNilDB(t *testing.T) {
	service := NewService(newTestCatalog(), nil)
	ctx := context.Background()

	filter := NewAuditLogFilter().
		WithActor("actor123").
		WithRole("role456").
		WithResource("node").
		WithAction(AuditActionGranted).
		WithPagination(10, 5)

	assert.Panics(t, func() {
		_, _ = service.GetAuditLog(ctx, filter)
	})
}

// TestServiceSessionRegistry tests session registration bookkeeping.
func TestServiceSessionRegistry(t *testing.T) {
	service := NewService(newTestCatalog(), nil)

	sess := &Session{
		id:      "sess-1",
		pending: make(map[string]PendingEdit),
		roles:   map[string]*Role{"role-1": {ID: "role-1", Name: "support"}},
		baseline: map[string]*Permission{
			CellKey("role-1", "node", "read", AllScope()): {
				ID:     "perm-1",
				RoleID: "role-1",
			},
		},
		state: SessionClean,
	}
	service.registerSession(sess)

	t.Run("Discard role reaches registered sessions", func(t *testing.T) {
		service.discardRoleFromSessions("role-1")

		sess.mu.Lock()
		defer sess.mu.Unlock()
		assert.Empty(t, sess.roles)
		assert.Empty(t, sess.baseline)
	})

	t.Run("Unregister", func(t *testing.T) {
		service.unregisterSession("sess-1")

		service.sessMu.Lock()
		defer service.sessMu.Unlock()
		assert.Empty(t, service.sessions)
	})
}
