package services

import (
	"context"
	"fmt"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommitmentService derives committed and free quantities per allocation.
// Figures are computed on every call and never cached.
type CommitmentService interface {
	CommittedQuantity(ctx context.Context, allocationID uuid.UUID) (int, error)
	FreeQuantity(ctx context.Context, allocationID uuid.UUID) (int, error)
	Summary(ctx context.Context, allocationID uuid.UUID) (*models.AllocationCommitment, error)

	// Summaries issues one query per count kind regardless of len(allocationIDs).
	Summaries(ctx context.Context, allocationIDs []uuid.UUID) ([]models.AllocationCommitment, error)
	SummariesAtLocation(ctx context.Context, locationID uuid.UUID) ([]models.AllocationCommitment, error)
	AtRiskAllocations(ctx context.Context) ([]models.AllocationCommitment, error)

	CanConsume(ctx context.Context, bottle *models.SerializedBottle) (bool, error)
	ReasonCannotConsume(ctx context.Context, bottle *models.SerializedBottle) (string, error)
	Consumability(ctx context.Context, bottleID uuid.UUID) (*models.Consumability, error)

	// Evaluate runs the consumption check against tx. With lockAllocation
	// set the allocation row stays locked until tx ends, so two
	// consumptions cannot both take the last free unit.
	Evaluate(ctx context.Context, tx repositories.Store, bottle *models.SerializedBottle, lockAllocation bool) (*models.Consumability, error)
}

type commitmentService struct {
	store     repositories.Store
	threshold decimal.Decimal
}

func NewCommitmentService(store repositories.Store, atRiskThreshold decimal.Decimal) CommitmentService {
	return &commitmentService{
		store:     store,
		threshold: atRiskThreshold,
	}
}

func (s *commitmentService) CommittedQuantity(ctx context.Context, allocationID uuid.UUID) (int, error) {
	counts, err := s.store.Allocations().CountIssuedVouchers(ctx, []uuid.UUID{allocationID})
	if err != nil {
		return 0, err
	}
	return counts[allocationID], nil
}

func (s *commitmentService) FreeQuantity(ctx context.Context, allocationID uuid.UUID) (int, error) {
	summary, err := s.Summary(ctx, allocationID)
	if err != nil {
		return 0, err
	}
	return summary.Free, nil
}

func (s *commitmentService) Summary(ctx context.Context, allocationID uuid.UUID) (*models.AllocationCommitment, error) {
	summaries, err := s.summaries(ctx, s.store, []uuid.UUID{allocationID})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func (s *commitmentService) Summaries(ctx context.Context, allocationIDs []uuid.UUID) ([]models.AllocationCommitment, error) {
	return s.summaries(ctx, s.store, allocationIDs)
}

func (s *commitmentService) SummariesAtLocation(ctx context.Context, locationID uuid.UUID) ([]models.AllocationCommitment, error) {
	if _, err := s.store.Locations().GetByID(ctx, locationID); err != nil {
		return nil, err
	}
	ids, err := s.store.Allocations().DistinctAtLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, s.store, ids)
}

func (s *commitmentService) AtRiskAllocations(ctx context.Context) ([]models.AllocationCommitment, error) {
	ids, err := s.store.Allocations().ListWithIssuedVouchers(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := s.summaries(ctx, s.store, ids)
	if err != nil {
		return nil, err
	}
	atRisk := make([]models.AllocationCommitment, 0)
	for _, c := range summaries {
		if c.AtRisk {
			atRisk = append(atRisk, c)
		}
	}
	return atRisk, nil
}

// summaries keeps the input order and drops duplicate ids.
func (s *commitmentService) summaries(ctx context.Context, store repositories.Store, allocationIDs []uuid.UUID) ([]models.AllocationCommitment, error) {
	ids := make([]uuid.UUID, 0, len(allocationIDs))
	seen := make(map[uuid.UUID]struct{}, len(allocationIDs))
	for _, id := range allocationIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []models.AllocationCommitment{}, nil
	}

	committed, err := store.Allocations().CountIssuedVouchers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count issued vouchers: %w", err)
	}
	storedOwned, err := store.Allocations().CountStoredOwned(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored bottles: %w", err)
	}

	out := make([]models.AllocationCommitment, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewAllocationCommitment(id, committed[id], storedOwned[id], s.threshold))
	}
	return out, nil
}

func (s *commitmentService) CanConsume(ctx context.Context, bottle *models.SerializedBottle) (bool, error) {
	result, err := s.Evaluate(ctx, s.store, bottle, false)
	if err != nil {
		return false, err
	}
	return result.CanConsume, nil
}

func (s *commitmentService) ReasonCannotConsume(ctx context.Context, bottle *models.SerializedBottle) (string, error) {
	result, err := s.Evaluate(ctx, s.store, bottle, false)
	if err != nil {
		return "", err
	}
	return result.Reason, nil
}

func (s *commitmentService) Consumability(ctx context.Context, bottleID uuid.UUID) (*models.Consumability, error) {
	bottle, err := s.store.Bottles().GetByID(ctx, bottleID)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, s.store, bottle, false)
}

func (s *commitmentService) Evaluate(ctx context.Context, tx repositories.Store, bottle *models.SerializedBottle, lockAllocation bool) (*models.Consumability, error) {
	result := &models.Consumability{BottleID: bottle.ID}

	if bottle.State != models.BottleStored {
		return blocked(result, common.ErrInvalidTransition,
			fmt.Sprintf("bottle %s is %s; only stored bottles can be consumed", bottle.SerialNumber, bottle.State)), nil
	}
	if !bottle.IsCruratedOwned() {
		return blocked(result, common.ErrInvalidArgument,
			fmt.Sprintf("bottle %s is %s, not crurated owned", bottle.SerialNumber, bottle.OwnershipType)), nil
	}
	if bottle.CaseID != nil {
		c, err := tx.Cases().GetByID(ctx, *bottle.CaseID)
		if err != nil {
			return nil, err
		}
		if c.IsIntact() {
			return blocked(result, common.ErrInvalidArgument,
				fmt.Sprintf("bottle %s is sealed in intact case %s; break the case first", bottle.SerialNumber, c.ID)), nil
		}
	}

	if bottle.AllocationID == nil {
		result.CanConsume = true
		return result, nil
	}

	if lockAllocation {
		if err := tx.Allocations().LockForUpdate(ctx, *bottle.AllocationID); err != nil {
			return nil, err
		}
	}
	summaries, err := s.summaries(ctx, tx, []uuid.UUID{*bottle.AllocationID})
	if err != nil {
		return nil, err
	}
	commitment := summaries[0]
	result.Commitment = &commitment

	if commitment.Free <= 0 {
		return blocked(result, common.ErrCommittedInventoryBlocked,
			fmt.Sprintf("allocation %s is fully committed (%d vouchers issued, %d bottles stored); use the override workflow",
				commitment.AllocationID, commitment.Committed, commitment.StoredOwned)), nil
	}
	result.CanConsume = true
	return result, nil
}

func blocked(result *models.Consumability, kind error, reason string) *models.Consumability {
	result.CanConsume = false
	result.Reason = reason
	result.Err = fmt.Errorf("%w: %s", kind, reason)
	return result
}
