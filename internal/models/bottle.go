package models

import (
	"time"

	"github.com/google/uuid"
)

type BottleState string

const (
	BottleStored             BottleState = "stored"
	BottleReservedForPicking BottleState = "reserved_for_picking"
	BottleShipped            BottleState = "shipped"
	BottleConsumed           BottleState = "consumed"
	BottleDestroyed          BottleState = "destroyed"
	BottleMissing            BottleState = "missing"
)

// bottleTransitions lists the allowed target states for each state.
// Stored -> Stored is a location-only change.
var bottleTransitions = map[BottleState][]BottleState{
	BottleStored:             {BottleStored, BottleReservedForPicking, BottleShipped, BottleConsumed, BottleDestroyed, BottleMissing},
	BottleReservedForPicking: {BottleStored, BottleShipped, BottleMissing},
	BottleMissing:            {BottleStored},
	BottleShipped:            {},
	BottleConsumed:           {},
	BottleDestroyed:          {},
}

func (s BottleState) Valid() bool {
	_, ok := bottleTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves this state.
func (s BottleState) IsTerminal() bool {
	return s == BottleConsumed || s == BottleDestroyed
}

func (s BottleState) CanTransitionTo(next BottleState) bool {
	for _, allowed := range bottleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllBottleStates returns states in lifecycle order.
func AllBottleStates() []BottleState {
	return []BottleState{BottleStored, BottleReservedForPicking, BottleShipped, BottleConsumed, BottleDestroyed, BottleMissing}
}

type OwnershipType string

const (
	OwnershipCruratedOwned   OwnershipType = "crurated_owned"
	OwnershipInCustody       OwnershipType = "in_custody"
	OwnershipThirdPartyOwned OwnershipType = "third_party_owned"
)

func (o OwnershipType) Valid() bool {
	switch o {
	case OwnershipCruratedOwned, OwnershipInCustody, OwnershipThirdPartyOwned:
		return true
	}
	return false
}

// SerializedBottle is a single physical bottle. CurrentLocationID only
// changes through a recorded movement.
type SerializedBottle struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	SerialNumber      string        `json:"serial_number" db:"serial_number"`
	State             BottleState   `json:"state" db:"state"`
	CurrentLocationID uuid.UUID     `json:"current_location_id" db:"current_location_id"`
	OwnershipType     OwnershipType `json:"ownership_type" db:"ownership_type"`
	AllocationID      *uuid.UUID    `json:"allocation_id,omitempty" db:"allocation_id"`
	CaseID            *uuid.UUID    `json:"case_id,omitempty" db:"case_id"`
	Version           int           `json:"version" db:"version"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

func (b *SerializedBottle) IsCruratedOwned() bool {
	return b.OwnershipType == OwnershipCruratedOwned
}

// BottleFilter holds selection criteria for bottle listings
type BottleFilter struct {
	LocationID    *uuid.UUID     `json:"location_id,omitempty"`
	State         *BottleState   `json:"state,omitempty" query:"state"`
	OwnershipType *OwnershipType `json:"ownership_type,omitempty" query:"ownership_type"`
	AllocationID  *uuid.UUID     `json:"allocation_id,omitempty" query:"allocation_id"`
	CaseID        *uuid.UUID     `json:"case_id,omitempty"`
	Limit         int            `json:"limit,omitempty" query:"limit"`
	Offset        int            `json:"offset,omitempty" query:"offset"`
}

// NewBottle describes a bottle to be serialized at intake.
type NewBottle struct {
	SerialNumber  string        `json:"serial_number" validate:"required,max=64"`
	OwnershipType OwnershipType `json:"ownership_type" validate:"required"`
	AllocationID  *uuid.UUID    `json:"allocation_id,omitempty"`
	CaseID        *uuid.UUID    `json:"case_id,omitempty"`
}
