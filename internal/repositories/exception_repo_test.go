package repositories

import (
	"context"
	"testing"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := &models.InventoryException{
		ID:                uuid.New(),
		ExceptionType:     models.ExceptionCommittedOverride,
		MovementID:        uuid.New(),
		BottleID:          uuid.New(),
		Justification:     "Emergency tasting event, no free stock available, approved by ops",
		ConsumptionReason: models.ConsumptionEvent,
		CreatedBy:         uuid.New(),
		ResolutionStatus:  models.ExceptionUnresolved,
		CreatedAt:         time.Now(),
	}

	mock.ExpectExec(`INSERT INTO inventory_exceptions`).
		WithArgs(e.ID, e.ExceptionType, e.MovementID, e.BottleID, e.Justification, e.ConsumptionReason, e.Notes,
			e.CreatedBy, e.ResolutionStatus, e.ResolvedBy, e.ResolvedAt, e.ResolutionNotes, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, NewExceptionRepo(mock).Create(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExceptionRepo_ResolveOnlyOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	resolver := uuid.New()
	notes := "reviewed with finance"
	at := time.Now()

	mock.ExpectExec(`UPDATE inventory_exceptions SET resolution_status = \$1`).
		WithArgs(models.ExceptionResolved, resolver, at, &notes, id, models.ExceptionUnresolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE inventory_exceptions SET resolution_status = \$1`).
		WithArgs(models.ExceptionResolved, resolver, at, &notes, id, models.ExceptionUnresolved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewExceptionRepo(mock)
	assert.NoError(t, repo.Resolve(context.Background(), id, resolver, &notes, at))
	assert.ErrorIs(t, repo.Resolve(context.Background(), id, resolver, &notes, at), common.ErrStaleState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExceptionRepo_ListUnresolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	status := models.ExceptionUnresolved
	now := time.Now()
	columns := []string{"id", "exception_type", "movement_id", "bottle_id", "justification", "consumption_reason", "notes", "created_by", "resolution_status", "resolved_by", "resolved_at", "resolution_notes", "created_at"}

	mock.ExpectQuery(`FROM inventory_exceptions WHERE 1=1 AND resolution_status = \$1 ORDER BY created_at DESC, id LIMIT \$2`).
		WithArgs(status, 50).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow(uuid.New(), "committed_inventory_override", uuid.New(), uuid.New(), "justification text long enough", "sampling", nil, uuid.New(), "unresolved", nil, nil, nil, now))

	exceptions, err := NewExceptionRepo(mock).List(context.Background(), &models.ExceptionFilter{ResolutionStatus: &status, Limit: 50})
	assert.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, models.ExceptionCommittedOverride, exceptions[0].ExceptionType)
	assert.Equal(t, models.ConsumptionSampling, exceptions[0].ConsumptionReason)
	assert.Nil(t, exceptions[0].ResolvedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
