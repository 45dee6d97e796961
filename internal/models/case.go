package models

import (
	"time"

	"github.com/google/uuid"
)

type IntegrityStatus string

const (
	CaseIntact IntegrityStatus = "intact"
	CaseBroken IntegrityStatus = "broken"
)

// InventoryCase is a physical case. While intact, every member bottle
// shares the case location. Breaking is one-way.
type InventoryCase struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	IntegrityStatus   IntegrityStatus `json:"integrity_status" db:"integrity_status"`
	CurrentLocationID uuid.UUID       `json:"current_location_id" db:"current_location_id"`
	CaseConfiguration int             `json:"case_configuration" db:"case_configuration"`
	Version           int             `json:"version" db:"version"`
	BrokenAt          *time.Time      `json:"broken_at,omitempty" db:"broken_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func (c *InventoryCase) IsIntact() bool {
	return c.IntegrityStatus == CaseIntact
}
