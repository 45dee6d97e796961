package models

import (
	"time"

	"github.com/google/uuid"
)

type ExceptionType string

const (
	ExceptionCommittedOverride ExceptionType = "committed_inventory_override"
)

type ResolutionStatus string

const (
	ExceptionUnresolved ResolutionStatus = "unresolved"
	ExceptionResolved   ResolutionStatus = "resolved"
)

// InventoryException is written alongside every override consumption and
// reviewed later by finance/ops. Only the resolution fields ever change.
type InventoryException struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	ExceptionType     ExceptionType     `json:"exception_type" db:"exception_type"`
	MovementID        uuid.UUID         `json:"movement_id" db:"movement_id"`
	BottleID          uuid.UUID         `json:"bottle_id" db:"bottle_id"`
	Justification     string            `json:"justification" db:"justification"`
	ConsumptionReason ConsumptionReason `json:"consumption_reason" db:"consumption_reason"`
	Notes             *string           `json:"notes,omitempty" db:"notes"`
	CreatedBy         uuid.UUID         `json:"created_by" db:"created_by"`
	ResolutionStatus  ResolutionStatus  `json:"resolution_status" db:"resolution_status"`
	ResolvedBy        *uuid.UUID        `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes   *string           `json:"resolution_notes,omitempty" db:"resolution_notes"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// ExceptionFilter holds audit query criteria for exceptions
type ExceptionFilter struct {
	ResolutionStatus *ResolutionStatus `json:"resolution_status,omitempty" query:"resolution_status"`
	BottleID         *uuid.UUID        `json:"bottle_id,omitempty" query:"bottle_id"`
	CreatedBy        *uuid.UUID        `json:"created_by,omitempty" query:"created_by"`
	StartDate        *time.Time        `json:"start_date,omitempty" query:"start_date"`
	EndDate          *time.Time        `json:"end_date,omitempty" query:"end_date"`
	Limit            int               `json:"limit,omitempty" query:"limit"`
	Offset           int               `json:"offset,omitempty" query:"offset"`
}

// OverrideRequest is the input of the committed-inventory override.
type OverrideRequest struct {
	Justification string            `json:"justification"`
	BottleIDs     []uuid.UUID       `json:"bottle_ids"`
	Reason        ConsumptionReason `json:"reason"`
	Notes         *string           `json:"notes,omitempty"`
	Confirmed     bool              `json:"confirmed"`
}

// OverrideResult reports an override run. Exceptions holds exactly one
// entry per consumed bottle.
type OverrideResult struct {
	Success       bool                 `json:"success"`
	ConsumedCount int                  `json:"consumed_count"`
	Exceptions    []InventoryException `json:"exceptions"`
	Errors        []string             `json:"errors"`
}
