package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *MockCacheService) SetLocation(ctx context.Context, location *models.Location, ttl time.Duration) error {
	args := m.Called(ctx, location, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type LocationServiceTestSuite struct {
	suite.Suite
	h     *harness
	ctx   context.Context
	admin models.Actor
}

func (suite *LocationServiceTestSuite) SetupTest() {
	suite.h = newHarness(suite.T())
	suite.ctx = context.Background()
	suite.admin = suite.h.admin()
}

func TestLocationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LocationServiceTestSuite))
}

func (suite *LocationServiceTestSuite) TestCreateLocation() {
	loc, err := suite.h.locations.CreateLocation(suite.ctx, suite.admin, &models.NewLocation{
		Name:                    "  Bordeaux Bonded  ",
		Type:                    models.LocationWarehouseMain,
		SerializationAuthorized: true,
	})
	suite.Require().NoError(err)

	assert.Equal(suite.T(), "Bordeaux Bonded", loc.Name)
	assert.Equal(suite.T(), models.LocationActive, loc.Status)
	assert.True(suite.T(), loc.SerializationAuthorized)

	found, err := suite.h.locations.GetLocation(suite.ctx, loc.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), loc.ID, found.ID)
}

func (suite *LocationServiceTestSuite) TestCreateLocationValidation() {
	tests := []struct {
		name  string
		input *models.NewLocation
	}{
		{"nil", nil},
		{"blank name", &models.NewLocation{Name: "  ", Type: models.LocationEvent}},
		{"long name", &models.NewLocation{Name: strings.Repeat("n", 256), Type: models.LocationEvent}},
		{"missing type", &models.NewLocation{Name: "Somewhere"}},
		{"unknown type", &models.NewLocation{Name: "Somewhere", Type: "garage"}},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.h.locations.CreateLocation(suite.ctx, suite.admin, tt.input)
			assert.ErrorIs(suite.T(), err, common.ErrInvalidArgument)
		})
	}
}

func (suite *LocationServiceTestSuite) TestCreateLocationRequiresPermission() {
	_, err := suite.h.locations.CreateLocation(suite.ctx, suite.h.operator(), &models.NewLocation{
		Name: "Pop-up",
		Type: models.LocationEvent,
	})
	assert.ErrorIs(suite.T(), err, common.ErrAuthorizationDenied)
}

func (suite *LocationServiceTestSuite) TestStatusChangeInvalidatesCache() {
	loc := suite.h.fx.Location("Warehouse-1", models.LocationWarehouseMain)

	cached, err := suite.h.locations.GetLocation(suite.ctx, loc.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.LocationActive, cached.Status)

	updated, err := suite.h.locations.SetLocationStatus(suite.ctx, suite.admin, loc.ID, models.LocationInactive)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.LocationInactive, updated.Status)

	reread, err := suite.h.locations.GetLocation(suite.ctx, loc.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), models.LocationInactive, reread.Status)

	_, err = suite.h.locations.SetLocationStatus(suite.ctx, suite.admin, loc.ID, "closed")
	assert.ErrorIs(suite.T(), err, common.ErrInvalidArgument)
	_, err = suite.h.locations.SetLocationStatus(suite.ctx, suite.admin, uuid.New(), models.LocationActive)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *LocationServiceTestSuite) TestListLocations() {
	suite.h.fx.Location("Warehouse-1", models.LocationWarehouseMain)
	suite.h.fx.Location("Consignee", models.LocationConsignee)
	suite.h.fx.InactiveLocation("Old Cellar", models.LocationWarehouseSatellite)

	all, err := suite.h.locations.ListLocations(suite.ctx, nil)
	suite.Require().NoError(err)
	assert.Len(suite.T(), all, 3)

	active := models.LocationActive
	consignee := models.LocationConsignee
	filtered, err := suite.h.locations.ListLocations(suite.ctx, &models.LocationFilter{Status: &active, Type: &consignee})
	suite.Require().NoError(err)
	suite.Require().Len(filtered, 1)
	assert.Equal(suite.T(), "Consignee", filtered[0].Name)

	bogus := models.LocationType("garage")
	_, err = suite.h.locations.ListLocations(suite.ctx, &models.LocationFilter{Type: &bogus})
	assert.ErrorIs(suite.T(), err, common.ErrInvalidArgument)
}

func TestGetLocation_CacheFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	fx := testhelpers.NewFixture(t)
	loc := fx.Location("Warehouse-1", models.LocationWarehouseMain)

	cache := &MockCacheService{}
	cache.On("GetLocation", ctx, loc.ID).Return(nil, errors.New("redis: connection refused"))
	cache.On("SetLocation", ctx, mock.MatchedBy(func(l *models.Location) bool { return l.ID == loc.ID }), time.Minute).
		Return(errors.New("redis: connection refused"))

	svc := NewLocationService(fx.Store.Locations(), cache, NewRBACService(fx.Permissions, zap.NewNop()), time.Minute, zap.NewNop())
	found, err := svc.GetLocation(ctx, loc.ID)

	assert.NoError(t, err)
	assert.Equal(t, loc.ID, found.ID)
	cache.AssertExpectations(t)
}

func TestGetLocation_CacheHit(t *testing.T) {
	ctx := context.Background()
	fx := testhelpers.NewFixture(t)
	cachedLoc := &models.Location{ID: uuid.New(), Name: "Cached", Status: models.LocationActive}

	cache := &MockCacheService{}
	cache.On("GetLocation", ctx, cachedLoc.ID).Return(cachedLoc, nil)

	svc := NewLocationService(fx.Store.Locations(), cache, NewRBACService(fx.Permissions, zap.NewNop()), time.Minute, zap.NewNop())
	found, err := svc.GetLocation(ctx, cachedLoc.ID)

	assert.NoError(t, err)
	assert.Equal(t, "Cached", found.Name)
	cache.AssertNotCalled(t, "SetLocation", mock.Anything, mock.Anything, mock.Anything)
}
