package permkit

import (
	"context"
	"testing"
)

// TestStagedApplyDatabase tests the staging engine end to end against a
// real database through Service.NewSession.
func TestStagedApplyDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	ctx = WithActorID(ctx, uniqueName("operator"))

	role, err := service.CreateRole(ctx, CreateRoleInput{Name: uniqueName("staged")})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	baseline, err := service.AddPermission(ctx, role.ID, "node", "read", AllScope())
	if err != nil {
		t.Fatalf("AddPermission failed: %v", err)
	}

	sess, err := service.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if !sess.EffectiveState(role.ID, "node", "read", AllScope()) {
		t.Fatal("Baseline grant not visible in session")
	}

	// Stage one revoke and one grant, and cancel a third toggle.
	if err := sess.ToggleCell(role.ID, "node", "read", AllScope()); err != nil {
		t.Fatalf("ToggleCell failed: %v", err)
	}
	if err := sess.ToggleCell(role.ID, "node", "write", AllScope()); err != nil {
		t.Fatalf("ToggleCell failed: %v", err)
	}
	if err := sess.ToggleCell(role.ID, "node", "delete", AllScope()); err != nil {
		t.Fatalf("ToggleCell failed: %v", err)
	}
	if err := sess.ToggleCell(role.ID, "node", "delete", AllScope()); err != nil {
		t.Fatalf("ToggleCell failed: %v", err)
	}

	result, err := sess.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("Apply reported %d failures: %+v", result.Failed, result.Outcomes)
	}
	if len(result.Outcomes) != 2 {
		t.Errorf("Expected minimal diff of 2 edits, got %d", len(result.Outcomes))
	}
	if sess.State() != SessionClean {
		t.Errorf("Expected clean session after apply, got %s", sess.State())
	}

	// The system of record reflects the diff.
	if service.HasPermission(ctx, role.ID, "node", "read", AllScope()) {
		t.Error("Revoked cell still granted in database")
	}
	if !service.HasPermission(ctx, role.ID, "node", "write", AllScope()) {
		t.Error("Granted cell missing in database")
	}
	if service.HasPermission(ctx, role.ID, "node", "delete", AllScope()) {
		t.Error("Cancelled toggle reached the database")
	}

	t.Run("Apply is audit-correlated to the session", func(t *testing.T) {
		logs, err := service.GetAuditLog(ctx, NewAuditLogFilter().WithSession(sess.ID()))
		if err != nil {
			t.Fatalf("GetAuditLog failed: %v", err)
		}
		if len(logs) != 2 {
			t.Errorf("Expected 2 session-correlated audit entries, got %d", len(logs))
		}
		for _, l := range logs {
			if l.RoleID != role.ID {
				t.Errorf("Unexpected role in audit entry: %q", l.RoleID)
			}
		}
	})

	t.Run("Revoked baseline permission is gone", func(t *testing.T) {
		perms, err := service.ListPermissions(ctx, role.ID)
		if err != nil {
			t.Fatalf("ListPermissions failed: %v", err)
		}
		for _, p := range perms {
			if p.ID == baseline.ID {
				t.Error("Baseline permission should have been removed")
			}
		}
	})
}

// TestDeleteRoleDiscardsSessionEditsDatabase tests that deleting a role
// purges its pending edits from live sessions.
func TestDeleteRoleDiscardsSessionEditsDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	ctx = WithActorID(ctx, uniqueName("operator"))

	role, err := service.CreateRole(ctx, CreateRoleInput{Name: uniqueName("doomed")})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}

	sess, err := service.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer sess.Close()

	if err := sess.ToggleCell(role.ID, "node", "write", AllScope()); err != nil {
		t.Fatalf("ToggleCell failed: %v", err)
	}
	if sess.State() != SessionDirty {
		t.Fatalf("Expected dirty session, got %s", sess.State())
	}

	if err := service.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("DeleteRole failed: %v", err)
	}

	if sess.State() != SessionClean {
		t.Errorf("Expected clean session after role deletion, got %s", sess.State())
	}
	if sess.PendingCount() != 0 {
		t.Errorf("Expected no pending edits, got %d", sess.PendingCount())
	}
	if err := sess.ToggleCell(role.ID, "node", "write", AllScope()); !IsNotFound(err) {
		t.Errorf("Expected not found toggling deleted role, got: %v", err)
	}
}
