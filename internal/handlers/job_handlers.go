package handlers

import (
	"context"
	"net/http"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/jobs"

	"github.com/labstack/echo/v4"
)

const archiveLinkExpiry = 15 * time.Minute

// JobRunner is the scheduler surface exposed to operators.
type JobRunner interface {
	RunNow(name string) error
	GetJobStatus() map[string]any
}

type ArchiveBackfiller interface {
	Backfill(ctx context.Context, day time.Time, linkExpiry time.Duration) (*jobs.BackfillResult, error)
}

type JobHandlers struct {
	runner   JobRunner
	archiver ArchiveBackfiller
}

// NewJobHandlers takes a nil archiver when object storage is disabled.
func NewJobHandlers(runner JobRunner, archiver ArchiveBackfiller) *JobHandlers {
	return &JobHandlers{
		runner:   runner,
		archiver: archiver,
	}
}

func (h *JobHandlers) GetJobStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.runner.GetJobStatus())
}

// RunJob triggers a registered job outside its schedule. The job runs in
// the background, so the response only confirms the trigger.
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.runner.RunNow(name); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}

// BackfillArchive archives one past UTC day (?day=YYYY-MM-DD) and returns a
// short-lived download link for the object.
func (h *JobHandlers) BackfillArchive(c echo.Context) error {
	day, err := queryTime(c, "day")
	if err != nil {
		return err
	}
	if day == nil {
		return common.Invalidf("day is required")
	}

	result, err := h.archiver.Backfill(c.Request().Context(), *day, archiveLinkExpiry)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
