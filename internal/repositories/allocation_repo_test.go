package repositories

import (
	"context"
	"testing"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocationRepo_CountIssuedVouchers_SingleQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	ids := []uuid.UUID{a, b, c}

	mock.ExpectQuery(`FROM vouchers WHERE allocation_id = ANY\(\$1\) AND status = \$2 GROUP BY allocation_id`).
		WithArgs(ids, models.VoucherIssued).
		WillReturnRows(pgxmock.NewRows([]string{"allocation_id", "count"}).
			AddRow(a, 4).
			AddRow(b, 1))

	counts, err := NewAllocationRepo(mock).CountIssuedVouchers(context.Background(), ids)
	assert.NoError(t, err)
	assert.Equal(t, 4, counts[a])
	assert.Equal(t, 1, counts[b])
	assert.Equal(t, 0, counts[c])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepo_CountStoredOwned(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := uuid.New()
	ids := []uuid.UUID{a}

	mock.ExpectQuery(`FROM serialized_bottles WHERE allocation_id = ANY\(\$1\) AND state = \$2 AND ownership_type = \$3`).
		WithArgs(ids, models.BottleStored, models.OwnershipCruratedOwned).
		WillReturnRows(pgxmock.NewRows([]string{"allocation_id", "count"}).AddRow(a, 7))

	counts, err := NewAllocationRepo(mock).CountStoredOwned(context.Background(), ids)
	assert.NoError(t, err)
	assert.Equal(t, 7, counts[a])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepo_EmptyInputSkipsQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	counts, err := NewAllocationRepo(mock).CountIssuedVouchers(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepo_LockForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	found, missing := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT id FROM allocations WHERE id = \$1 FOR UPDATE`).
		WithArgs(found).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(found))
	mock.ExpectQuery(`SELECT id FROM allocations WHERE id = \$1 FOR UPDATE`).
		WithArgs(missing).
		WillReturnError(pgx.ErrNoRows)

	repo := NewAllocationRepo(mock)
	assert.NoError(t, repo.LockForUpdate(context.Background(), found))
	assert.ErrorIs(t, repo.LockForUpdate(context.Background(), missing), common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRepo_DistinctAtLocation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	locationID := uuid.New()
	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT DISTINCT allocation_id FROM serialized_bottles`).
		WithArgs(locationID, models.BottleStored).
		WillReturnRows(pgxmock.NewRows([]string{"allocation_id"}).AddRow(a).AddRow(b))

	ids, err := NewAllocationRepo(mock).DistinctAtLocation(context.Background(), locationID)
	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
