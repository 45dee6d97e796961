package handlers

import (
	"net/http"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditHandlers serves the movement log and the exception review queue
type AuditHandlers struct {
	auditService services.AuditService
}

func NewAuditHandlers(auditService services.AuditService) *AuditHandlers {
	return &AuditHandlers{
		auditService: auditService,
	}
}

// ResolveExceptionRequest closes an override exception
type ResolveExceptionRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListMovements handles GET /movements. Supported filters: entity_type,
// entity_id, type, actor_id, location_id, start_date, end_date.
func (h *AuditHandlers) ListMovements(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filter := &models.MovementFilter{Limit: limit, Offset: offset}

	if filter.EntityID, err = queryUUID(c, "entity_id"); err != nil {
		return err
	}
	if filter.ActorID, err = queryUUID(c, "actor_id"); err != nil {
		return err
	}
	if filter.LocationID, err = queryUUID(c, "location_id"); err != nil {
		return err
	}
	if filter.StartDate, err = queryTime(c, "start_date"); err != nil {
		return err
	}
	if filter.EndDate, err = queryTime(c, "end_date"); err != nil {
		return err
	}
	if v := queryString(c, "entity_type"); v != nil {
		entityType := models.EntityType(*v)
		filter.EntityType = &entityType
	}
	if v := queryString(c, "type"); v != nil {
		movementType := models.MovementType(*v)
		filter.Type = &movementType
	}

	movements, err := h.auditService.ListMovements(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"movements": movements,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *AuditHandlers) GetMovement(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	movement, err := h.auditService.GetMovement(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, movement)
}

// ListExceptions handles GET /exceptions. Supported filters:
// resolution_status, bottle_id, created_by, start_date, end_date.
func (h *AuditHandlers) ListExceptions(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filter := &models.ExceptionFilter{Limit: limit, Offset: offset}

	if filter.BottleID, err = queryUUID(c, "bottle_id"); err != nil {
		return err
	}
	if filter.CreatedBy, err = queryUUID(c, "created_by"); err != nil {
		return err
	}
	if filter.StartDate, err = queryTime(c, "start_date"); err != nil {
		return err
	}
	if filter.EndDate, err = queryTime(c, "end_date"); err != nil {
		return err
	}
	if v := queryString(c, "resolution_status"); v != nil {
		status := models.ResolutionStatus(*v)
		filter.ResolutionStatus = &status
	}

	exceptions, err := h.auditService.ListExceptions(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"exceptions": exceptions,
		"limit":      limit,
		"offset":     offset,
	})
}

func (h *AuditHandlers) GetException(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	exception, err := h.auditService.GetException(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exception)
}

func (h *AuditHandlers) ResolveException(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ResolveExceptionRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	exception, err := h.auditService.ResolveException(c.Request().Context(), actor, id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exception)
}
