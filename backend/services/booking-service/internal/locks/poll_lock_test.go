package locks

import (
	"context"
	"testing"
	"time"

	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPollLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryPollLock()

	release, err := l.Acquire(ctx, "bk1700000000-aaaa0000", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "bk1700000000-aaaa0000", time.Minute)
	assert.ErrorIs(t, err, internal_utils.ErrPollLockHeld)

	// A different booking is unaffected.
	other, err := l.Acquire(ctx, "bk1700000001-bbbb0000", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, "bk1700000000-aaaa0000", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryPollLock_ExpiredLockCanBeTakenOver(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	l := NewMemoryPollLock()
	l.now = func() time.Time { return now }

	staleRelease, err := l.Acquire(ctx, "bk1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	freshRelease, err := l.Acquire(ctx, "bk1", time.Second)
	require.NoError(t, err)

	// The stale owner must not free the new owner's lock.
	require.NoError(t, staleRelease(ctx))
	_, err = l.Acquire(ctx, "bk1", time.Second)
	assert.ErrorIs(t, err, internal_utils.ErrPollLockHeld)

	require.NoError(t, freshRelease(ctx))
}
