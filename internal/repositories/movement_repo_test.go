package repositories

import (
	"context"
	"testing"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

var movementRowColumns = []string{"id", "type", "entity_type", "entity_id", "source_location_id", "destination_location_id", "actor_id", "reason", "consumption_reason", "notes", "parent_movement_id", "is_override", "created_at"}

type MovementRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    MovementRepository
	actorID uuid.UUID
	context context.Context
}

func (suite *MovementRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewMovementRepo(mock)
	suite.actorID = uuid.New()
	suite.context = context.Background()
}

func (suite *MovementRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestMovementRepoTestSuite(t *testing.T) {
	suite.Run(t, new(MovementRepoTestSuite))
}

func (suite *MovementRepoTestSuite) TestAppend_Consumption() {
	source := uuid.New()
	reason := models.ConsumptionSampling
	m := &models.InventoryMovement{
		ID:                uuid.New(),
		Type:              models.MovementConsumption,
		EntityType:        models.EntityBottle,
		EntityID:          uuid.New(),
		SourceLocationID:  &source,
		ActorID:           suite.actorID,
		ConsumptionReason: &reason,
		CreatedAt:         time.Now(),
	}

	suite.mock.ExpectExec(`INSERT INTO inventory_movements`).
		WithArgs(m.ID, m.Type, m.EntityType, m.EntityID, m.SourceLocationID, m.DestinationLocationID, m.ActorID,
			m.Reason, m.ConsumptionReason, m.Notes, m.ParentMovementID, m.IsOverride, m.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.repo.Append(suite.context, m))
}

func (suite *MovementRepoTestSuite) TestGetByID_NotFound() {
	id := uuid.New()
	suite.mock.ExpectQuery(`FROM inventory_movements WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	m, err := suite.repo.GetByID(suite.context, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
	assert.Nil(suite.T(), m)
}

func (suite *MovementRepoTestSuite) TestList_LocationMatchesEitherSide() {
	locationID := uuid.New()
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()
	entityType := models.EntityCase
	movementID := uuid.New()
	parent := uuid.New()

	suite.mock.ExpectQuery(`AND entity_type = \$1 AND actor_id = \$2 AND \(source_location_id = \$3 OR destination_location_id = \$3\) AND created_at >= \$4 AND created_at <= \$5 ORDER BY created_at DESC, id LIMIT \$6`).
		WithArgs(entityType, suite.actorID, locationID, start, end, 50).
		WillReturnRows(pgxmock.NewRows(movementRowColumns).
			AddRow(movementID, "transfer", "case", uuid.New(), &locationID, nil, suite.actorID, nil, nil, nil, &parent, false, end))

	movements, err := suite.repo.List(suite.context, &models.MovementFilter{
		EntityType: &entityType,
		ActorID:    &suite.actorID,
		LocationID: &locationID,
		StartDate:  &start,
		EndDate:    &end,
		Limit:      50,
	})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), movements, 1)
	assert.Equal(suite.T(), models.MovementTransfer, movements[0].Type)
	assert.Equal(suite.T(), locationID, *movements[0].SourceLocationID)
	assert.Nil(suite.T(), movements[0].DestinationLocationID)
	assert.Equal(suite.T(), parent, *movements[0].ParentMovementID)
}

func (suite *MovementRepoTestSuite) TestListBetween_HalfOpenRange() {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	suite.mock.ExpectQuery(`WHERE created_at >= \$1 AND created_at < \$2 ORDER BY created_at, id`).
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows(movementRowColumns))

	movements, err := suite.repo.ListBetween(suite.context, from, to)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), movements)
}
