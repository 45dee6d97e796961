package locking

import (
	"context"
	"testing"

	"cellarledger/internal/common"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_ExclusiveUntilReleased(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	key := BottleKey(uuid.New())

	release, err := locker.Lock(ctx, key)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, common.ErrUnitLocked)

	release()
	release()

	again, err := locker.Lock(ctx, key)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	id := uuid.New()

	releaseBottle, err := locker.Lock(ctx, BottleKey(id))
	require.NoError(t, err)
	defer releaseBottle()

	releaseCase, err := locker.Lock(ctx, CaseKey(id))
	require.NoError(t, err)
	defer releaseCase()
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("6f1c1d8e-5a43-4d36-9a55-1b7f0a6f1a10")
	assert.Equal(t, "lock:bottle:6f1c1d8e-5a43-4d36-9a55-1b7f0a6f1a10", BottleKey(id))
	assert.Equal(t, "lock:case:6f1c1d8e-5a43-4d36-9a55-1b7f0a6f1a10", CaseKey(id))
}
