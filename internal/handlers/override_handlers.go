package handlers

import (
	"net/http"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
)

type OverrideHandlers struct {
	overrideService services.OverrideService
}

func NewOverrideHandlers(overrideService services.OverrideService) *OverrideHandlers {
	return &OverrideHandlers{
		overrideService: overrideService,
	}
}

// ConsumeCommitted runs the committed-inventory override. The request is
// validated by the service so the client gets the workflow's own messages.
func (h *OverrideHandlers) ConsumeCommitted(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req models.OverrideRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	result, err := h.overrideService.ExecuteOverride(c.Request().Context(), actor, &req)
	if err != nil {
		return err
	}
	if !result.Success {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusCreated, result)
}
