package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cellarledger/internal/caching"
	"cellarledger/internal/common"
	"cellarledger/internal/config"
	"cellarledger/internal/locking"
	"cellarledger/internal/middleware"
	"cellarledger/internal/models"
	"cellarledger/internal/services"
	"cellarledger/testhelpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testSecret        = "handler-test-secret"
	testJustification = "Emergency tasting event, no free stock available, approved by ops"
)

type HandlersTestSuite struct {
	suite.Suite
	e         *echo.Echo
	fx        *testhelpers.Fixture
	admin     models.Actor
	operator  models.Actor
	warehouse *models.Location
	satellite *models.Location
	jobs      *MockJobRunner
	archive   *MockArchiveBackfiller
}

func (suite *HandlersTestSuite) SetupTest() {
	logger := zap.NewNop()
	cfg := config.Default()
	suite.fx = testhelpers.NewFixture(suite.T())

	rbac := services.NewRBACService(suite.fx.Permissions, logger)
	cache := caching.NewMemoryCacheService()
	locker := locking.NewLocalLocker()
	commitment := services.NewCommitmentService(suite.fx.Store, cfg.Commitment.AtRiskThreshold)
	svc := Services{
		Ledger:     services.NewLedgerService(suite.fx.Store, rbac, logger),
		Commitment: commitment,
		Movements:  services.NewMovementService(suite.fx.Store, commitment, rbac, locker, logger),
		Overrides:  services.NewOverrideService(suite.fx.Store, rbac, locker, cache, cfg.Override, logger),
		Audit:      services.NewAuditService(suite.fx.Store, rbac, logger),
		Locations:  services.NewLocationService(suite.fx.Store.Locations(), cache, rbac, time.Minute, logger),
	}
	suite.jobs = &MockJobRunner{}
	suite.archive = &MockArchiveBackfiller{}
	svc.Jobs = suite.jobs
	svc.Archive = suite.archive

	suite.e = echo.New()
	suite.e.Validator = NewCustomValidator()
	suite.e.HTTPErrorHandler = HTTPErrorHandler(logger)
	health := NewHealthHandlers("test", DependencyCheck{
		Name:     "store",
		Critical: true,
		Check:    func(context.Context) error { return nil },
	})
	RegisterRoutes(suite.e, svc,
		middleware.JWTMiddleware(middleware.JWTConfig(testSecret, nil)),
		middleware.NewRBACMiddleware(rbac),
		health,
	)

	suite.admin = suite.fx.Actor("admin", services.AllPermissions()...)
	suite.operator = suite.fx.Actor("operator",
		models.PermInventoryRead,
		models.PermTransfer,
		models.PermConsume,
	)
	suite.warehouse = suite.fx.Location("Warehouse-1", models.LocationWarehouseMain)
	suite.satellite = suite.fx.Location("Satellite", models.LocationWarehouseSatellite)
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) token(actor models.Actor) string {
	claims := middleware.Claims{
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	suite.Require().NoError(err)
	return signed
}

func (suite *HandlersTestSuite) do(actor *models.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if actor != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+suite.token(*actor))
	}
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)
	return rec
}

func (suite *HandlersTestSuite) errorBody(rec *httptest.ResponseRecorder) common.ErrorResponse {
	var body common.ErrorResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (suite *HandlersTestSuite) TestRequiresToken() {
	rec := suite.do(nil, http.MethodGet, "/v1/meta/bottle-states", nil)

	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
	assert.Equal(suite.T(), "UNAUTHENTICATED", suite.errorBody(rec).Error.Code)
}

func (suite *HandlersTestSuite) TestRejectsTokenSignedWithOtherSecret() {
	claims := jwt.RegisteredClaims{Subject: suite.admin.ID.String()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong"))
	suite.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/v1/meta/bottle-states", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signed)
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)

	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)
}

func (suite *HandlersTestSuite) TestBottleStates() {
	rec := suite.do(&suite.operator, http.MethodGet, "/v1/meta/bottle-states", nil)

	suite.Require().Equal(http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "v1", rec.Header().Get("X-API-Version"))
	var body struct {
		States []models.BottleStateDisplay `json:"states"`
	}
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Require().Len(body.States, len(models.AllBottleStates()))
	assert.Equal(suite.T(), models.BottleStored, body.States[0].State)
}

func (suite *HandlersTestSuite) TestTransferBottle() {
	bottle := suite.fx.Bottle(suite.warehouse)

	rec := suite.do(&suite.operator, http.MethodPost, fmt.Sprintf("/v1/bottles/%s/transfer", bottle.ID), map[string]interface{}{
		"destination_location_id": suite.satellite.ID,
		"reason":                  "rebalancing",
	})

	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var movement models.InventoryMovement
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &movement))
	assert.Equal(suite.T(), models.MovementTransfer, movement.Type)
	assert.Equal(suite.T(), suite.operator.ID, movement.ActorID)
	assert.Equal(suite.T(), suite.satellite.ID, suite.fx.ReloadBottle(bottle.ID).CurrentLocationID)
}

func (suite *HandlersTestSuite) TestTransferValidation() {
	bottle := suite.fx.Bottle(suite.warehouse)

	rec := suite.do(&suite.operator, http.MethodPost, fmt.Sprintf("/v1/bottles/%s/transfer", bottle.ID), map[string]interface{}{})

	suite.Require().Equal(http.StatusBadRequest, rec.Code)
	body := suite.errorBody(rec)
	assert.Equal(suite.T(), common.CodeInvalidArgument, body.Error.Code)
	assert.Equal(suite.T(), "required", body.Error.Details["DestinationLocationID"])
}

func (suite *HandlersTestSuite) TestMalformedPathID() {
	rec := suite.do(&suite.operator, http.MethodGet, "/v1/bottles/not-a-uuid", nil)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(suite.T(), common.CodeInvalidArgument, suite.errorBody(rec).Error.Code)
}

func (suite *HandlersTestSuite) TestUnknownBottle() {
	rec := suite.do(&suite.operator, http.MethodGet, "/v1/bottles/"+uuid.NewString(), nil)

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	assert.Equal(suite.T(), common.CodeNotFound, suite.errorBody(rec).Error.Code)
}

func (suite *HandlersTestSuite) TestConsumeCommittedBottleIsBlocked() {
	allocation := suite.fx.Allocation(1)
	bottle := suite.fx.Bottle(suite.warehouse, testhelpers.WithAllocation(allocation))

	rec := suite.do(&suite.operator, http.MethodPost, fmt.Sprintf("/v1/bottles/%s/consume", bottle.ID), map[string]interface{}{
		"reason": models.ConsumptionEvent,
	})

	suite.Require().Equal(http.StatusConflict, rec.Code)
	body := suite.errorBody(rec)
	assert.Equal(suite.T(), common.CodeCommittedBlocked, body.Error.Code)
	assert.Equal(suite.T(), models.BottleStored, suite.fx.ReloadBottle(bottle.ID).State)

	check := suite.do(&suite.operator, http.MethodGet, fmt.Sprintf("/v1/bottles/%s/consumability", bottle.ID), nil)
	suite.Require().Equal(http.StatusOK, check.Code)
	var result models.Consumability
	suite.Require().NoError(json.Unmarshal(check.Body.Bytes(), &result))
	assert.False(suite.T(), result.CanConsume)
	assert.NotEmpty(suite.T(), result.Reason)
}

func (suite *HandlersTestSuite) TestOverrideRequiresPermission() {
	bottle := suite.fx.Bottle(suite.warehouse)

	rec := suite.do(&suite.operator, http.MethodPost, "/v1/overrides/committed-consumption", map[string]interface{}{
		"justification": testJustification,
		"bottle_ids":    []uuid.UUID{bottle.ID},
		"reason":        models.ConsumptionEvent,
		"confirmed":     true,
	})

	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
	assert.Empty(suite.T(), suite.fx.Exceptions())
}

func (suite *HandlersTestSuite) TestOverrideConsumesCommittedBottle() {
	allocation := suite.fx.Allocation(1)
	bottle := suite.fx.Bottle(suite.warehouse, testhelpers.WithAllocation(allocation))

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/overrides/committed-consumption", map[string]interface{}{
		"justification": testJustification,
		"bottle_ids":    []uuid.UUID{bottle.ID},
		"reason":        models.ConsumptionEvent,
		"confirmed":     true,
	})

	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var result models.OverrideResult
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(suite.T(), result.Success)
	assert.Equal(suite.T(), 1, result.ConsumedCount)
	suite.Require().Len(result.Exceptions, 1)
	assert.Equal(suite.T(), bottle.ID, result.Exceptions[0].BottleID)
	assert.Equal(suite.T(), models.BottleConsumed, suite.fx.ReloadBottle(bottle.ID).State)
}

func (suite *HandlersTestSuite) TestOverrideUnconfirmed() {
	bottle := suite.fx.Bottle(suite.warehouse)

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/overrides/committed-consumption", map[string]interface{}{
		"justification": testJustification,
		"bottle_ids":    []uuid.UUID{bottle.ID},
		"reason":        models.ConsumptionEvent,
	})

	assert.Equal(suite.T(), http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(suite.T(), common.CodeValidationFailed, suite.errorBody(rec).Error.Code)
}

func (suite *HandlersTestSuite) TestBatchTransferPartialSuccess() {
	bottle := suite.fx.Bottle(suite.warehouse)
	missing := uuid.New()

	rec := suite.do(&suite.operator, http.MethodPost, "/v1/bottles/batch/transfer", map[string]interface{}{
		"ids":                     []uuid.UUID{bottle.ID, missing},
		"destination_location_id": suite.satellite.ID,
	})

	suite.Require().Equal(http.StatusMultiStatus, rec.Code, rec.Body.String())
	var result models.BatchResult
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(suite.T(), 1, result.Succeeded)
	assert.Equal(suite.T(), 1, result.Failed)
	suite.Require().Len(result.Items, 2)
	assert.Equal(suite.T(), missing, result.Items[1].UnitID)
	assert.Equal(suite.T(), common.CodeNotFound, result.Items[1].Code)
}

func (suite *HandlersTestSuite) TestBreakCaseAndListBottles() {
	c, bottles := suite.fx.Case(suite.warehouse, 3)

	rec := suite.do(&suite.admin, http.MethodPost, fmt.Sprintf("/v1/cases/%s/break", c.ID), map[string]interface{}{})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(suite.T(), models.CaseBroken, suite.fx.ReloadCase(c.ID).IntegrityStatus)

	list := suite.do(&suite.operator, http.MethodGet, fmt.Sprintf("/v1/locations/%s/bottles?limit=10", suite.warehouse.ID), nil)
	suite.Require().Equal(http.StatusOK, list.Code)
	var body struct {
		Bottles []models.SerializedBottle `json:"bottles"`
		Limit   int                       `json:"limit"`
	}
	suite.Require().NoError(json.Unmarshal(list.Body.Bytes(), &body))
	assert.Len(suite.T(), body.Bottles, len(bottles))
	assert.Equal(suite.T(), 10, body.Limit)
}

func (suite *HandlersTestSuite) TestListMovementsRejectsBadDate() {
	rec := suite.do(&suite.admin, http.MethodGet, "/v1/movements?start_date=yesterday", nil)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HandlersTestSuite) TestResolveExceptionTwice() {
	bottle := suite.fx.Bottle(suite.warehouse)
	rec := suite.do(&suite.admin, http.MethodPost, "/v1/overrides/committed-consumption", map[string]interface{}{
		"justification": testJustification,
		"bottle_ids":    []uuid.UUID{bottle.ID},
		"reason":        models.ConsumptionSampling,
		"confirmed":     true,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code)
	exceptions := suite.fx.Exceptions()
	suite.Require().Len(exceptions, 1)
	path := fmt.Sprintf("/v1/exceptions/%s/resolve", exceptions[0].ID)

	first := suite.do(&suite.admin, http.MethodPost, path, map[string]interface{}{"notes": "booked"})
	suite.Require().Equal(http.StatusOK, first.Code)

	second := suite.do(&suite.admin, http.MethodPost, path, map[string]interface{}{})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, second.Code)
	assert.Equal(suite.T(), common.CodeInvalidTransition, suite.errorBody(second).Error.Code)
}

func (suite *HandlersTestSuite) TestCreateLocation() {
	rec := suite.do(&suite.admin, http.MethodPost, "/v1/locations", map[string]interface{}{
		"name": "Gala Dinner",
		"type": models.LocationEvent,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	denied := suite.do(&suite.operator, http.MethodPost, "/v1/locations", map[string]interface{}{
		"name": "Pop-up",
		"type": models.LocationEvent,
	})
	assert.Equal(suite.T(), http.StatusForbidden, denied.Code)
}

func (suite *HandlersTestSuite) TestHealth() {
	rec := suite.do(nil, http.MethodGet, "/health", nil)
	suite.Require().Equal(http.StatusOK, rec.Code)

	ready := suite.do(nil, http.MethodGet, "/health/ready", nil)
	assert.Equal(suite.T(), http.StatusOK, ready.Code)
}

func TestHealthReportsFailingDependencies(t *testing.T) {
	e := echo.New()
	h := NewHealthHandlers("test",
		DependencyCheck{Name: "postgres", Critical: true, Check: func(context.Context) error { return nil }},
		DependencyCheck{Name: "storage", Check: func(context.Context) error { return errors.New("bucket missing") }},
	)

	rec := httptest.NewRecorder()
	assert.NoError(t, h.HealthCheck(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)))
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	var health HealthStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Services["storage"])
	assert.Equal(t, "healthy", health.Services["postgres"])

	// non-critical failures do not block readiness
	rec = httptest.NewRecorder()
	assert.NoError(t, h.ReadinessCheck(e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHealthHandlers("test",
		DependencyCheck{Name: "postgres", Critical: true, Check: func(context.Context) error { return errors.New("refused") }},
	)
	rec = httptest.NewRecorder()
	assert.NoError(t, down.ReadinessCheck(e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrNotFound, http.StatusNotFound},
		{common.Invalidf("bad"), http.StatusBadRequest},
		{common.InvalidTransitionf("terminal"), http.StatusUnprocessableEntity},
		{common.ValidationFailedf("short"), http.StatusUnprocessableEntity},
		{common.ErrCommittedInventoryBlocked, http.StatusConflict},
		{common.ErrStaleState, http.StatusConflict},
		{common.ErrUnitLocked, http.StatusConflict},
		{common.ErrAuthorizationDenied, http.StatusForbidden},
		{common.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForCode(common.ErrorCode(tt.err)))
		})
	}
}

func TestRenderErrorNamesUnit(t *testing.T) {
	id := uuid.New()
	status, body := renderError(common.NewUnitError("bottle", id, common.ErrStaleState))

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, common.CodeStaleState, body.Error.Code)
	assert.Equal(t, id.String(), body.Error.Details["unit_id"])

	status, body = renderError(errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error.Message)
}
