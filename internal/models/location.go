package models

import (
	"time"

	"github.com/google/uuid"
)

type LocationType string

const (
	LocationWarehouseMain      LocationType = "warehouse_main"
	LocationWarehouseSatellite LocationType = "warehouse_satellite"
	LocationEvent              LocationType = "event_location"
	LocationConsignee          LocationType = "consignee"
)

func (t LocationType) Valid() bool {
	switch t {
	case LocationWarehouseMain, LocationWarehouseSatellite, LocationEvent, LocationConsignee:
		return true
	}
	return false
}

type LocationStatus string

const (
	LocationActive   LocationStatus = "active"
	LocationInactive LocationStatus = "inactive"
)

func (s LocationStatus) Valid() bool {
	return s == LocationActive || s == LocationInactive
}

// Location is a place holding inventory. Only Status may change once
// movements reference the location.
type Location struct {
	ID                      uuid.UUID      `json:"id" db:"id"`
	Name                    string         `json:"name" db:"name"`
	Type                    LocationType   `json:"type" db:"type"`
	Status                  LocationStatus `json:"status" db:"status"`
	SerializationAuthorized bool           `json:"serialization_authorized" db:"serialization_authorized"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at" db:"updated_at"`
}

func (l *Location) IsActive() bool {
	return l.Status == LocationActive
}

// LocationFilter holds list criteria for locations
type LocationFilter struct {
	Type   *LocationType   `json:"type,omitempty" query:"type"`
	Status *LocationStatus `json:"status,omitempty" query:"status"`
	Limit  int             `json:"limit,omitempty" query:"limit"`
	Offset int             `json:"offset,omitempty" query:"offset"`
}

// NewLocation is the input for creating a location.
type NewLocation struct {
	Name                    string       `json:"name" validate:"required,max=255"`
	Type                    LocationType `json:"type" validate:"required"`
	SerializationAuthorized bool         `json:"serialization_authorized"`
}
