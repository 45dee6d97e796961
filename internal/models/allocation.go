package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VoucherStatus string

const (
	VoucherIssued    VoucherStatus = "issued"
	VoucherRedeemed  VoucherStatus = "redeemed"
	VoucherCancelled VoucherStatus = "cancelled"
)

// AllocationCommitment is the committed/free split of one allocation.
// Free may be negative when over-committed; DisplayFree is clamped at zero.
type AllocationCommitment struct {
	AllocationID  uuid.UUID       `json:"allocation_id"`
	Committed     int             `json:"committed"`
	StoredOwned   int             `json:"stored_owned"`
	Free          int             `json:"free"`
	DisplayFree   int             `json:"display_free"`
	CoverageRatio decimal.Decimal `json:"coverage_ratio"`
	AtRisk        bool            `json:"at_risk"`
}

// NewAllocationCommitment derives the free and at-risk figures. The
// allocation is at risk when free < threshold * committed.
func NewAllocationCommitment(allocationID uuid.UUID, committed, storedOwned int, threshold decimal.Decimal) AllocationCommitment {
	free := storedOwned - committed
	c := AllocationCommitment{
		AllocationID: allocationID,
		Committed:    committed,
		StoredOwned:  storedOwned,
		Free:         free,
		DisplayFree:  max(free, 0),
	}
	if committed > 0 {
		c.CoverageRatio = decimal.NewFromInt(int64(free)).Div(decimal.NewFromInt(int64(committed))).Round(4)
		c.AtRisk = decimal.NewFromInt(int64(free)).LessThan(threshold.Mul(decimal.NewFromInt(int64(committed))))
	} else {
		c.CoverageRatio = decimal.NewFromInt(1)
	}
	return c
}

// Consumability is the normal-path consumption check for one bottle.
type Consumability struct {
	BottleID   uuid.UUID             `json:"bottle_id"`
	CanConsume bool                  `json:"can_consume"`
	Reason     string                `json:"reason,omitempty"`
	Commitment *AllocationCommitment `json:"commitment,omitempty"`

	// Err is the error a consumption attempt would fail with.
	Err error `json:"-"`
}
