package permkit

import (
	"context"
	"fmt"
	"testing"
)

// TestHealthServiceDatabase tests health checks against a real database.
func TestHealthServiceDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	health := NewHealthService(service)

	t.Run("Health check", func(t *testing.T) {
		status := health.Health(ctx)
		if !status.Healthy {
			t.Errorf("Database should be healthy, got: %+v", status)
		}
	})

	t.Run("IsHealthy check", func(t *testing.T) {
		if !health.IsHealthy(ctx) {
			t.Error("Database should be healthy")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := health.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Pool stats", func(t *testing.T) {
		stats := health.GetPoolStats()
		if stats.OpenConnections < 0 {
			t.Error("OpenConnections should be non-negative")
		}
	})
}

// TestTransactionsDatabase tests transaction commit and rollback against a
// real database, and the metrics they record.
func TestTransactionsDatabase(t *testing.T) {
	if !RequireDatabase(t) {
		return
	}

	ctx := context.Background()
	service, err := SetupTestDatabase(ctx)
	if err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	ctx = WithActorID(ctx, "integration-operator")
	service.ResetMetrics()

	t.Run("Commit", func(t *testing.T) {
		name := uniqueName("txcommit")
		err := service.Transaction(ctx, func(ctx context.Context) error {
			_, err := service.CreateRole(ctx, CreateRoleInput{Name: name})
			return err
		})
		if err != nil {
			t.Fatalf("Transaction failed: %v", err)
		}
		if _, err := service.GetRoleByName(ctx, name); err != nil {
			t.Errorf("Committed role not found: %v", err)
		}
	})

	t.Run("Error propagates and rolls back", func(t *testing.T) {
		err := service.Transaction(ctx, func(ctx context.Context) error {
			return fmt.Errorf("force rollback")
		})
		if err == nil {
			t.Fatal("Expected transaction error")
		}
	})

	t.Run("Read-only snapshot", func(t *testing.T) {
		err := service.ReadOnlyTransaction(ctx, func(ctx context.Context) error {
			_, err := service.ListRoles(ctx)
			return err
		})
		if err != nil {
			t.Errorf("ReadOnlyTransaction failed: %v", err)
		}
	})

	t.Run("Metrics recorded", func(t *testing.T) {
		metrics := service.Metrics()
		if metrics.TotalTransactions < 3 {
			t.Errorf("Expected at least 3 transactions recorded, got %d", metrics.TotalTransactions)
		}
		if metrics.FailedTransactions < 1 {
			t.Errorf("Expected at least 1 failed transaction, got %d", metrics.FailedTransactions)
		}
	})
}
