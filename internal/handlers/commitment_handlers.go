package handlers

import (
	"net/http"

	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
)

// CommitmentHandlers exposes committed/free quantities and the
// consumability check
type CommitmentHandlers struct {
	commitmentService services.CommitmentService
}

func NewCommitmentHandlers(commitmentService services.CommitmentService) *CommitmentHandlers {
	return &CommitmentHandlers{
		commitmentService: commitmentService,
	}
}

func (h *CommitmentHandlers) GetAllocationCommitment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	summary, err := h.commitmentService.Summary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *CommitmentHandlers) ListAtRiskAllocations(c echo.Context) error {
	summaries, err := h.commitmentService.AtRiskAllocations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"allocations": summaries,
		"count":       len(summaries),
	})
}

// ListLocationCommitments summarizes every allocation with stock at the
// location. Counts cover the allocation across all locations.
func (h *CommitmentHandlers) ListLocationCommitments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	summaries, err := h.commitmentService.SummariesAtLocation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"location_id": id,
		"allocations": summaries,
	})
}

// GetBottleConsumability tells the UI whether the normal consumption path
// is open for a bottle and why not.
func (h *CommitmentHandlers) GetBottleConsumability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.commitmentService.Consumability(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
