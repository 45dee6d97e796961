package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/jobs"
	"cellarledger/internal/jobs/background"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) RunNow(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockJobRunner) GetJobStatus() map[string]any {
	args := m.Called()
	return args.Get(0).(map[string]any)
}

type MockArchiveBackfiller struct {
	mock.Mock
}

func (m *MockArchiveBackfiller) Backfill(ctx context.Context, day time.Time, linkExpiry time.Duration) (*jobs.BackfillResult, error) {
	args := m.Called(ctx, day, linkExpiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.BackfillResult), args.Error(1)
}

func (suite *HandlersTestSuite) TestJobStatus() {
	suite.jobs.On("GetJobStatus").Return(map[string]any{
		"total_jobs": 1,
		"jobs":       map[string]any{"commitment-at-risk": map[string]any{"id": "job-1"}},
	})

	rec := suite.do(&suite.admin, http.MethodGet, "/v1/jobs", nil)

	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		TotalJobs int                       `json:"total_jobs"`
		Jobs      map[string]map[string]any `json:"jobs"`
	}
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(suite.T(), 1, body.TotalJobs)
	assert.Contains(suite.T(), body.Jobs, "commitment-at-risk")
}

func (suite *HandlersTestSuite) TestJobsRequireManagePermission() {
	rec := suite.do(&suite.operator, http.MethodGet, "/v1/jobs", nil)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)

	rec = suite.do(&suite.operator, http.MethodPost, "/v1/jobs/commitment-at-risk/run", nil)
	assert.Equal(suite.T(), http.StatusForbidden, rec.Code)
	suite.jobs.AssertNotCalled(suite.T(), "RunNow", mock.Anything)
}

func (suite *HandlersTestSuite) TestRunJob() {
	suite.jobs.On("RunNow", "commitment-at-risk").Return(nil).Once()

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/jobs/commitment-at-risk/run", nil)

	suite.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	suite.jobs.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) TestRunUnknownJob() {
	suite.jobs.On("RunNow", "tally-export").Return(background.ErrUnknownJob)

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/jobs/tally-export/run", nil)

	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
	assert.Equal(suite.T(), common.CodeNotFound, suite.errorBody(rec).Error.Code)
}

func (suite *HandlersTestSuite) TestBackfillArchive() {
	day := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	suite.archive.On("Backfill", mock.Anything, day, archiveLinkExpiry).Return(&jobs.BackfillResult{
		Day:      "2024-06-01",
		Archived: 3,
		Object:   "movements/2024/06/01.jsonl",
		URL:      "https://archive.local/movements/2024/06/01.jsonl?sig=abc",
	}, nil)

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/jobs/movement-archive/backfill?day=2024-06-01", nil)

	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var result jobs.BackfillResult
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(suite.T(), 3, result.Archived)
	assert.Equal(suite.T(), "movements/2024/06/01.jsonl", result.Object)
	assert.NotEmpty(suite.T(), result.URL)
	suite.archive.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) TestBackfillArchiveRequiresDay() {
	rec := suite.do(&suite.admin, http.MethodPost, "/v1/jobs/movement-archive/backfill", nil)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(suite.T(), common.CodeInvalidArgument, suite.errorBody(rec).Error.Code)
	suite.archive.AssertNotCalled(suite.T(), "Backfill", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlersTestSuite) TestBackfillUnfinishedDay() {
	suite.archive.On("Backfill", mock.Anything, mock.Anything, archiveLinkExpiry).
		Return(nil, common.Invalidf("day has not ended yet"))

	rec := suite.do(&suite.admin, http.MethodPost, "/v1/jobs/movement-archive/backfill?day=2099-01-01", nil)

	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}
