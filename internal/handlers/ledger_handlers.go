package handlers

import (
	"net/http"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// LedgerHandlers serves bottle and case lookups plus intake.
type LedgerHandlers struct {
	ledgerService services.LedgerService
	auditService  services.AuditService
}

func NewLedgerHandlers(ledgerService services.LedgerService, auditService services.AuditService) *LedgerHandlers {
	return &LedgerHandlers{
		ledgerService: ledgerService,
		auditService:  auditService,
	}
}

// IntakeRequest serializes bottles at a location
type IntakeRequest struct {
	LocationID uuid.UUID          `json:"location_id" validate:"required"`
	Bottles    []models.NewBottle `json:"bottles" validate:"required,min=1,max=500,dive"`
}

// PackCaseRequest registers an empty intact case
type PackCaseRequest struct {
	LocationID        uuid.UUID `json:"location_id" validate:"required"`
	CaseConfiguration int       `json:"case_configuration" validate:"required,min=1,max=24"`
}

func (h *LedgerHandlers) GetBottle(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	bottle, err := h.ledgerService.FindBottle(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bottle)
}

// FindBottleBySerial looks a bottle up by its physical serial number.
func (h *LedgerHandlers) FindBottleBySerial(c echo.Context) error {
	bottle, err := h.ledgerService.FindBottleBySerial(c.Request().Context(), c.Param("serial"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bottle)
}

func (h *LedgerHandlers) GetCase(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	inventoryCase, err := h.ledgerService.FindCase(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inventoryCase)
}

func (h *LedgerHandlers) GetCaseBottles(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	bottles, err := h.ledgerService.CaseBottles(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"case_id": id,
		"bottles": bottles,
		"count":   len(bottles),
	})
}

// ListBottlesAtLocation accepts state, ownership_type, allocation_id,
// limit and offset query parameters.
func (h *LedgerHandlers) ListBottlesAtLocation(c echo.Context) error {
	locationID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	allocationID, err := queryUUID(c, "allocation_id")
	if err != nil {
		return err
	}

	filter := &models.BottleFilter{
		AllocationID: allocationID,
		Limit:        limit,
		Offset:       offset,
	}
	if state := queryString(c, "state"); state != nil {
		s := models.BottleState(*state)
		filter.State = &s
	}
	if ownership := queryString(c, "ownership_type"); ownership != nil {
		o := models.OwnershipType(*ownership)
		filter.OwnershipType = &o
	}

	bottles, err := h.ledgerService.BottlesAtLocation(c.Request().Context(), locationID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"location_id": locationID,
		"bottles":     bottles,
		"limit":       limit,
		"offset":      offset,
	})
}

// GetBottleHistory returns the bottle's movement rows, newest first.
func (h *LedgerHandlers) GetBottleHistory(c echo.Context) error {
	return h.history(c, models.EntityBottle)
}

func (h *LedgerHandlers) GetCaseHistory(c echo.Context) error {
	return h.history(c, models.EntityCase)
}

func (h *LedgerHandlers) history(c echo.Context, entityType models.EntityType) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	movements, err := h.auditService.EntityHistory(c.Request().Context(), entityType, id, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   id,
		"movements":   movements,
	})
}

func (h *LedgerHandlers) IntakeBottles(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req IntakeRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bottles, err := h.ledgerService.RegisterBottles(c.Request().Context(), actor, req.LocationID, req.Bottles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"bottles": bottles,
		"count":   len(bottles),
	})
}

func (h *LedgerHandlers) PackCase(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req PackCaseRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	inventoryCase, err := h.ledgerService.RegisterCase(c.Request().Context(), actor, req.LocationID, req.CaseConfiguration)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inventoryCase)
}
