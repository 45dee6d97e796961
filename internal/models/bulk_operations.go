package models

import (
	"github.com/google/uuid"
)

const (
	BatchItemSucceeded = "succeeded"
	BatchItemFailed    = "failed"
)

// BatchResult reports a multi-unit command. Every unit is committed on
// its own, so one failure never rolls back the others.
type BatchResult struct {
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Movements []InventoryMovement `json:"movements"`
	Items     []BatchItemResult   `json:"items"`
}

// BatchItemResult represents the result for a specific unit
type BatchItemResult struct {
	UnitType EntityType `json:"unit_type"`
	UnitID   uuid.UUID  `json:"unit_id"`
	Status   string     `json:"status"`
	Code     string     `json:"code,omitempty"`
	Error    string     `json:"error,omitempty"`
}

func NewBatchResult() *BatchResult {
	return &BatchResult{
		Movements: []InventoryMovement{},
		Items:     []BatchItemResult{},
	}
}

func (r *BatchResult) AddSuccess(unitType EntityType, unitID uuid.UUID, movements ...InventoryMovement) {
	r.Total++
	r.Succeeded++
	r.Movements = append(r.Movements, movements...)
	r.Items = append(r.Items, BatchItemResult{UnitType: unitType, UnitID: unitID, Status: BatchItemSucceeded})
}

func (r *BatchResult) AddFailure(unitType EntityType, unitID uuid.UUID, code string, err error) {
	r.Total++
	r.Failed++
	r.Items = append(r.Items, BatchItemResult{
		UnitType: unitType,
		UnitID:   unitID,
		Status:   BatchItemFailed,
		Code:     code,
		Error:    err.Error(),
	})
}

// Merge appends another result's counts and items.
func (r *BatchResult) Merge(other *BatchResult) {
	r.Total += other.Total
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Movements = append(r.Movements, other.Movements...)
	r.Items = append(r.Items, other.Items...)
}

// Errors returns the messages of failed items in submission order.
func (r *BatchResult) Errors() []string {
	var msgs []string
	for _, item := range r.Items {
		if item.Status == BatchItemFailed {
			msgs = append(msgs, item.Error)
		}
	}
	return msgs
}
