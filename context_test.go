package permkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestActorIDContext tests storing and retrieving the actor ID.
func TestActorIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetActorID(ctx))

	ctx = WithActorID(ctx, "operator-1")
	assert.Equal(t, "operator-1", GetActorID(ctx))
}

// TestRequestMetadataContext tests the audit request metadata accessors.
func TestRequestMetadataContext(t *testing.T) {
	ctx := context.Background()

	ctx = WithIPAddress(ctx, "192.168.1.1")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "192.168.1.1", GetIPAddress(ctx))
	assert.Equal(t, "test-agent/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-123", GetRequestID(ctx))
}

// TestSessionIDContext tests batch correlation plumbing.
func TestSessionIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetSessionID(ctx))

	ctx = WithSessionID(ctx, "sess-1")
	assert.Equal(t, "sess-1", GetSessionID(ctx))
}

// TestGetAuditContext tests extracting all audit values at once.
func TestGetAuditContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithActorID(ctx, "operator-1")
	ctx = WithIPAddress(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "browser")
	ctx = WithRequestID(ctx, "req-9")

	ac := GetAuditContext(ctx)
	assert.Equal(t, "operator-1", ac.ActorID)
	assert.Equal(t, "10.0.0.1", ac.IPAddress)
	assert.Equal(t, "browser", ac.UserAgent)
	assert.Equal(t, "req-9", ac.RequestID)
}

// TestWithAuditContext tests round-tripping an AuditContext through context.
func TestWithAuditContext(t *testing.T) {
	original := AuditContext{
		ActorID:   "operator-2",
		IPAddress: "172.16.0.1",
		UserAgent: "cli",
		RequestID: "req-42",
	}

	ctx := WithAuditContext(context.Background(), original)
	assert.Equal(t, original, GetAuditContext(ctx))

	t.Run("Empty fields are not set", func(t *testing.T) {
		ctx := WithAuditContext(context.Background(), AuditContext{ActorID: "only-actor"})
		assert.Equal(t, "only-actor", GetActorID(ctx))
		assert.Empty(t, GetIPAddress(ctx))
		assert.Empty(t, GetRequestID(ctx))
	})
}
