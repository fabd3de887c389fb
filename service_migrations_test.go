package permkit

import (
	"strings"
	"testing"
)

// TestMigrations tests that migrations are properly defined
func TestMigrations(t *testing.T) {
	service := &Service{}
	migrations := service.Migrations()

	if len(migrations) == 0 {
		t.Error("Expected at least one migration")
	}

	seen := make(map[string]bool)
	for _, m := range migrations {
		if m.ID == "" {
			t.Error("Migration ID should not be empty")
		}
		if seen[m.ID] {
			t.Errorf("Duplicate migration ID: %s", m.ID)
		}
		seen[m.ID] = true
		if m.Description == "" {
			t.Error("Migration description should not be empty")
		}
		if m.SQL == "" {
			t.Error("Migration SQL should not be empty")
		}
	}
}

// TestMigrationsCoverAllTables tests that every model table has a migration.
func TestMigrationsCoverAllTables(t *testing.T) {
	service := &Service{}

	var all strings.Builder
	for _, m := range service.Migrations() {
		all.WriteString(m.SQL)
	}
	sql := all.String()

	for _, table := range []string{"roles", "role_permissions", "user_roles", "matrix_audit_log"} {
		if !strings.Contains(sql, table) {
			t.Errorf("No migration creates table %s", table)
		}
	}

	// The permission tuple must be unique per role.
	if !strings.Contains(sql, "UNIQUE (role_id, resource, action, scope_kind, scope_instance)") {
		t.Error("role_permissions is missing the tuple uniqueness constraint")
	}
}
