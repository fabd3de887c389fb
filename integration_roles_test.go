package permkit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// uniqueName returns a role name unique to this run. Role names must be
// lowercase tokens, so only the nano timestamp varies.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestRoleLifecycleDatabase tests role CRUD against a real database.
func TestRoleLifecycleDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	ctx = WithActorID(ctx, "integration-operator")

	name := uniqueName("support")

	role, err := service.CreateRole(ctx, CreateRoleInput{
		Name:        name,
		DisplayName: "Support",
		Description: "First-line support",
	})
	if err != nil {
		t.Fatalf("CreateRole failed: %v", err)
	}
	if role.ID == "" {
		t.Error("CreateRole did not return an ID")
	}
	if role.IsSystem {
		t.Error("CreateRole must not create system roles")
	}

	t.Run("Duplicate name conflicts", func(t *testing.T) {
		_, err := service.CreateRole(ctx, CreateRoleInput{Name: name})
		if !IsConflict(err) {
			t.Errorf("Expected conflict, got: %v", err)
		}
	})

	t.Run("Duplicate name differing only in case conflicts", func(t *testing.T) {
		upper := "S" + name[1:]
		_, err := service.CreateRole(ctx, CreateRoleInput{Name: upper})
		if !IsConflict(err) {
			t.Errorf("Expected conflict, got: %v", err)
		}
	})

	t.Run("Get by ID and name", func(t *testing.T) {
		byID, err := service.GetRole(ctx, role.ID)
		if err != nil {
			t.Fatalf("GetRole failed: %v", err)
		}
		if byID.Name != name {
			t.Errorf("Expected name %q, got %q", name, byID.Name)
		}

		byName, err := service.GetRoleByName(ctx, name)
		if err != nil {
			t.Fatalf("GetRoleByName failed: %v", err)
		}
		if byName.ID != role.ID {
			t.Errorf("Expected ID %q, got %q", role.ID, byName.ID)
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		if _, err := service.AddPermission(ctx, role.ID, "node", "read", AllScope()); err != nil {
			t.Fatalf("AddPermission failed: %v", err)
		}
		if _, err := service.AssignUser(ctx, "user-"+name, role.ID); err != nil {
			t.Fatalf("AssignUser failed: %v", err)
		}

		if err := service.DeleteRole(ctx, role.ID); err != nil {
			t.Fatalf("DeleteRole failed: %v", err)
		}
		if _, err := service.GetRole(ctx, role.ID); !IsNotFound(err) {
			t.Errorf("Expected not found after delete, got: %v", err)
		}
		roles, err := service.ListUserRoles(ctx, "user-"+name)
		if err != nil {
			t.Fatalf("ListUserRoles failed: %v", err)
		}
		if len(roles) != 0 {
			t.Errorf("Expected no assignments after cascade, got %d", len(roles))
		}
	})
}

// TestEnsureSystemRolesDatabase tests system role seeding and protection.
func TestEnsureSystemRolesDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	ctx = WithActorID(ctx, "integration-operator")

	name := uniqueName("sysadmin")
	defs := []SystemRoleInput{
		{
			Name:        name,
			DisplayName: "System Administrator",
			Grants: []SystemGrant{
				{Resource: "node", Action: "read", Scope: AllScope()},
				{Resource: "node", Action: "write", Scope: AllScope()},
			},
		},
	}

	if err := service.EnsureSystemRoles(ctx, defs); err != nil {
		t.Fatalf("EnsureSystemRoles failed: %v", err)
	}

	role, err := service.GetRoleByName(ctx, name)
	if err != nil {
		t.Fatalf("GetRoleByName failed: %v", err)
	}
	if !role.IsSystem {
		t.Error("Seeded role should be a system role")
	}
	if len(role.Permissions) != 2 {
		t.Errorf("Expected 2 grants, got %d", len(role.Permissions))
	}

	t.Run("Re-seeding is idempotent", func(t *testing.T) {
		if err := service.EnsureSystemRoles(ctx, defs); err != nil {
			t.Fatalf("EnsureSystemRoles failed on re-seed: %v", err)
		}
		again, err := service.GetRoleByName(ctx, name)
		if err != nil {
			t.Fatalf("GetRoleByName failed: %v", err)
		}
		if len(again.Permissions) != 2 {
			t.Errorf("Expected 2 grants after re-seed, got %d", len(again.Permissions))
		}
	})

	t.Run("System role is protected", func(t *testing.T) {
		if err := service.DeleteRole(ctx, role.ID); !IsProtectedRole(err) {
			t.Errorf("Expected protected role error on delete, got: %v", err)
		}
		if _, err := service.AddPermission(ctx, role.ID, "node", "delete", AllScope()); !IsProtectedRole(err) {
			t.Errorf("Expected protected role error on grant, got: %v", err)
		}
		if err := service.RemovePermission(ctx, role.ID, role.Permissions[0].ID); !IsProtectedRole(err) {
			t.Errorf("Expected protected role error on revoke, got: %v", err)
		}
	})

	t.Run("Unknown grant is rejected up front", func(t *testing.T) {
		err := service.EnsureSystemRoles(ctx, []SystemRoleInput{{
			Name:   uniqueName("bad"),
			Grants: []SystemGrant{{Resource: "node", Action: "fly", Scope: AllScope()}},
		}})
		if !IsValidation(err) {
			t.Errorf("Expected validation error, got: %v", err)
		}
	})
}
