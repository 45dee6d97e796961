package models

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementTransfer             MovementType = "transfer"
	MovementConsignmentPlacement MovementType = "consignment_placement"
	MovementConsumption          MovementType = "consumption"
	MovementCaseBreak            MovementType = "case_break"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementTransfer, MovementConsignmentPlacement, MovementConsumption, MovementCaseBreak:
		return true
	}
	return false
}

type EntityType string

const (
	EntityBottle EntityType = "bottle"
	EntityCase   EntityType = "case"
)

func (e EntityType) Valid() bool {
	return e == EntityBottle || e == EntityCase
}

// InventoryMovement is an append-only record of one physical state change.
// Rows are never updated or deleted.
//
// A case operation writes one case-level row and one bottle-level row per
// member; the bottle rows carry ParentMovementID.
type InventoryMovement struct {
	ID                    uuid.UUID          `json:"id" db:"id"`
	Type                  MovementType       `json:"type" db:"type"`
	EntityType            EntityType         `json:"entity_type" db:"entity_type"`
	EntityID              uuid.UUID          `json:"entity_id" db:"entity_id"`
	SourceLocationID      *uuid.UUID         `json:"source_location_id,omitempty" db:"source_location_id"`
	DestinationLocationID *uuid.UUID         `json:"destination_location_id,omitempty" db:"destination_location_id"`
	ActorID               uuid.UUID          `json:"actor_id" db:"actor_id"`
	Reason                *string            `json:"reason,omitempty" db:"reason"`
	ConsumptionReason     *ConsumptionReason `json:"consumption_reason,omitempty" db:"consumption_reason"`
	Notes                 *string            `json:"notes,omitempty" db:"notes"`
	ParentMovementID      *uuid.UUID         `json:"parent_movement_id,omitempty" db:"parent_movement_id"`
	IsOverride            bool               `json:"is_override" db:"is_override"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
}

// MovementFilter holds audit query criteria for movements.
// LocationID matches either side of the movement.
type MovementFilter struct {
	EntityType *EntityType   `json:"entity_type,omitempty" query:"entity_type"`
	EntityID   *uuid.UUID    `json:"entity_id,omitempty" query:"entity_id"`
	Type       *MovementType `json:"type,omitempty" query:"type"`
	ActorID    *uuid.UUID    `json:"actor_id,omitempty" query:"actor_id"`
	LocationID *uuid.UUID    `json:"location_id,omitempty" query:"location_id"`
	StartDate  *time.Time    `json:"start_date,omitempty" query:"start_date"`
	EndDate    *time.Time    `json:"end_date,omitempty" query:"end_date"`
	Limit      int           `json:"limit,omitempty" query:"limit"`
	Offset     int           `json:"offset,omitempty" query:"offset"`
}
