package handlers

import (
	"context"
	"net/http"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MovementHandlers exposes the movement engine commands
type MovementHandlers struct {
	movementService services.MovementService
}

func NewMovementHandlers(movementService services.MovementService) *MovementHandlers {
	return &MovementHandlers{
		movementService: movementService,
	}
}

// MoveRequest is the body of transfer and consignment commands
type MoveRequest struct {
	DestinationLocationID uuid.UUID `json:"destination_location_id" validate:"required"`
	Reason                *string   `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ConsumeRequest is the body of consumption commands
type ConsumeRequest struct {
	Reason models.ConsumptionReason `json:"reason" validate:"required"`
	Notes  *string                  `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// BreakCaseRequest is the body of the case break command
type BreakCaseRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// BatchMoveRequest moves several bottles or cases to one destination
type BatchMoveRequest struct {
	IDs                   []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
	DestinationLocationID uuid.UUID   `json:"destination_location_id" validate:"required"`
	Reason                *string     `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// BatchConsumeRequest consumes several bottles or cases for one reason
type BatchConsumeRequest struct {
	IDs    []uuid.UUID              `json:"ids" validate:"required,min=1,max=500"`
	Reason models.ConsumptionReason `json:"reason" validate:"required"`
	Notes  *string                  `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type moveFunc func(ctx context.Context, actor models.Actor, id, destinationID uuid.UUID, reason *string) (*models.InventoryMovement, error)

type batchMoveFunc func(ctx context.Context, actor models.Actor, ids []uuid.UUID, destinationID uuid.UUID, reason *string) (*models.BatchResult, error)

type batchConsumeFunc func(ctx context.Context, actor models.Actor, ids []uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.BatchResult, error)

func (h *MovementHandlers) TransferBottle(c echo.Context) error {
	return h.move(c, h.movementService.TransferBottle)
}

func (h *MovementHandlers) TransferCase(c echo.Context) error {
	return h.move(c, h.movementService.TransferCase)
}

func (h *MovementHandlers) ConsignBottle(c echo.Context) error {
	return h.move(c, h.movementService.PlaceBottleInConsignment)
}

func (h *MovementHandlers) ConsignCase(c echo.Context) error {
	return h.move(c, h.movementService.PlaceCaseInConsignment)
}

func (h *MovementHandlers) move(c echo.Context, fn moveFunc) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	movement, err := fn(c.Request().Context(), actor, id, req.DestinationLocationID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, movement)
}

func (h *MovementHandlers) ConsumeBottle(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ConsumeRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	movement, err := h.movementService.RecordConsumption(c.Request().Context(), actor, id, req.Reason, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, movement)
}

func (h *MovementHandlers) BreakCase(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req BreakCaseRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	movement, err := h.movementService.BreakCase(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, movement)
}

func (h *MovementHandlers) BatchTransferBottles(c echo.Context) error {
	return h.batchMove(c, h.movementService.TransferBottles)
}

func (h *MovementHandlers) BatchTransferCases(c echo.Context) error {
	return h.batchMove(c, h.movementService.TransferCases)
}

func (h *MovementHandlers) BatchConsignBottles(c echo.Context) error {
	return h.batchMove(c, h.movementService.PlaceBottlesInConsignment)
}

func (h *MovementHandlers) BatchConsignCases(c echo.Context) error {
	return h.batchMove(c, h.movementService.PlaceCasesInConsignment)
}

func (h *MovementHandlers) BatchConsumeBottles(c echo.Context) error {
	return h.batchConsume(c, h.movementService.ConsumeBottles)
}

func (h *MovementHandlers) BatchConsumeCases(c echo.Context) error {
	return h.batchConsume(c, h.movementService.ConsumeCases)
}

func (h *MovementHandlers) batchMove(c echo.Context, fn batchMoveFunc) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req BatchMoveRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := fn(c.Request().Context(), actor, req.IDs, req.DestinationLocationID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(batchStatus(result), result)
}

func (h *MovementHandlers) batchConsume(c echo.Context, fn batchConsumeFunc) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req BatchConsumeRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := fn(c.Request().Context(), actor, req.IDs, req.Reason, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(batchStatus(result), result)
}

// batchStatus is 200 when every unit succeeded, 207 on partial success and
// 422 when nothing was committed.
func batchStatus(result *models.BatchResult) int {
	switch {
	case result.Failed == 0:
		return http.StatusOK
	case result.Succeeded > 0:
		return http.StatusMultiStatus
	default:
		return http.StatusUnprocessableEntity
	}
}
