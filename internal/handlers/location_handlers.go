package handlers

import (
	"net/http"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
)

// LocationHandlers handles location administration
type LocationHandlers struct {
	locationService services.LocationService
}

func NewLocationHandlers(locationService services.LocationService) *LocationHandlers {
	return &LocationHandlers{
		locationService: locationService,
	}
}

// UpdateLocationStatusRequest activates or deactivates a location
type UpdateLocationStatusRequest struct {
	Status models.LocationStatus `json:"status" validate:"required,oneof=active inactive"`
}

// CreateLocation handles POST /locations. Fields are validated by the
// service after trimming.
func (h *LocationHandlers) CreateLocation(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req models.NewLocation
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	location, err := h.locationService.CreateLocation(c.Request().Context(), actor, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, location)
}

func (h *LocationHandlers) GetLocation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	location, err := h.locationService.GetLocation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, location)
}

func (h *LocationHandlers) ListLocations(c echo.Context) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filter := &models.LocationFilter{Limit: limit, Offset: offset}
	if v := queryString(c, "type"); v != nil {
		locationType := models.LocationType(*v)
		filter.Type = &locationType
	}
	if v := queryString(c, "status"); v != nil {
		status := models.LocationStatus(*v)
		filter.Status = &status
	}

	locations, err := h.locationService.ListLocations(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"locations": locations,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *LocationHandlers) UpdateLocationStatus(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateLocationStatusRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	location, err := h.locationService.SetLocationStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, location)
}

// ListBottleStates returns the display table for bottle states.
func ListBottleStates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"states": models.BottleStateDisplays(),
	})
}
