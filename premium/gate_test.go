package premium

import (
	"context"
	"testing"
	"time"

	"github.com/raushankrgupta/hair-director/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateLifecycle(t *testing.T) {
	ctx := context.Background()
	g := NewGate(storage.NewMemoryKV(0, 0), "device-1")
	fixed := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	assert.False(t, g.IsGranted(ctx))

	require.NoError(t, g.Grant(ctx, "buyer@example.com", "chk_123"))
	assert.True(t, g.IsGranted(ctx))
	status := g.Status(ctx)
	assert.Equal(t, "chk_123", status.CheckoutID)
	assert.Equal(t, "buyer@example.com", status.Email)
	require.NotNil(t, status.PurchaseDate)
	assert.True(t, status.PurchaseDate.Equal(fixed))

	g.Consume(ctx)
	assert.False(t, g.IsGranted(ctx))
	assert.Empty(t, g.Status(ctx).CheckoutID)

	g.Consume(ctx)
	assert.False(t, g.IsGranted(ctx))
}

func TestGateScopedPerDevice(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV(0, 0)
	require.NoError(t, NewGate(kv, "a").Grant(ctx, "", ""))
	assert.False(t, NewGate(kv, "b").IsGranted(ctx))
}

func TestGateUnreadableRecordIsUnset(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV(0, 0)
	require.NoError(t, kv.Set(ctx, "a", storage.KeyPremium, []byte("garbage")))
	assert.False(t, NewGate(kv, "a").IsGranted(ctx))
}

func TestGateCheckoutGrantsOnce(t *testing.T) {
	ctx := context.Background()
	g := NewGate(storage.NewMemoryKV(0, 0), "device-1")

	require.NoError(t, g.Grant(ctx, "", "chk_1"))
	g.Consume(ctx)

	assert.ErrorIs(t, g.Grant(ctx, "", "chk_1"), ErrCheckoutRedeemed)
	assert.False(t, g.IsGranted(ctx))

	require.NoError(t, g.Grant(ctx, "", "chk_2"))
	assert.True(t, g.IsGranted(ctx))
	require.NoError(t, g.Grant(ctx, "", ""))
}
