package repositories

import (
	"context"
	"fmt"

	"cellarledger/internal/models"

	"github.com/google/uuid"
)

// AllocationRepository reads the externally owned allocation and voucher
// tables. Counts are computed in one query per kind for any number of
// allocations.
type AllocationRepository interface {
	// LockForUpdate holds the allocation row lock so concurrent consumptions
	// against the same allocation are serialized.
	LockForUpdate(ctx context.Context, allocationID uuid.UUID) error

	CountIssuedVouchers(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error)
	CountStoredOwned(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// DistinctAtLocation returns allocation ids of stored bottles at the location.
	DistinctAtLocation(ctx context.Context, locationID uuid.UUID) ([]uuid.UUID, error)
	ListWithIssuedVouchers(ctx context.Context) ([]uuid.UUID, error)
}

type allocationRepo struct {
	db DBTX
}

func NewAllocationRepo(db DBTX) AllocationRepository {
	return &allocationRepo{db: db}
}

func (r *allocationRepo) LockForUpdate(ctx context.Context, allocationID uuid.UUID) error {
	var id uuid.UUID
	query := `SELECT id FROM allocations WHERE id = $1 FOR UPDATE`
	if err := r.db.QueryRow(ctx, query, allocationID).Scan(&id); err != nil {
		return mapError(err, "allocation")
	}
	return nil
}

func (r *allocationRepo) CountIssuedVouchers(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT allocation_id, COUNT(*)
		FROM vouchers
		WHERE allocation_id = ANY($1) AND status = $2
		GROUP BY allocation_id
	`
	return r.countBy(ctx, query, allocationIDs, models.VoucherIssued)
}

func (r *allocationRepo) CountStoredOwned(ctx context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT allocation_id, COUNT(*)
		FROM serialized_bottles
		WHERE allocation_id = ANY($1) AND state = $2 AND ownership_type = $3
		GROUP BY allocation_id
	`
	return r.countBy(ctx, query, allocationIDs, models.BottleStored, models.OwnershipCruratedOwned)
}

func (r *allocationRepo) countBy(ctx context.Context, query string, allocationIDs []uuid.UUID, args ...any) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(allocationIDs))
	if len(allocationIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.Query(ctx, query, append([]any{allocationIDs}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by allocation: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *allocationRepo) DistinctAtLocation(ctx context.Context, locationID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT allocation_id
		FROM serialized_bottles
		WHERE current_location_id = $1 AND state = $2 AND allocation_id IS NOT NULL
		ORDER BY allocation_id
	`
	return r.queryIDs(ctx, query, locationID, models.BottleStored)
}

func (r *allocationRepo) ListWithIssuedVouchers(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT allocation_id
		FROM vouchers
		WHERE status = $1
		ORDER BY allocation_id
	`
	return r.queryIDs(ctx, query, models.VoucherIssued)
}

func (r *allocationRepo) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
