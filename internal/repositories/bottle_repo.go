package repositories

import (
	"context"
	"fmt"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BottleRepository interface {
	Create(ctx context.Context, bottle *models.SerializedBottle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error)
	GetBySerial(ctx context.Context, serial string) (*models.SerializedBottle, error)

	// GetForUpdate reads the bottle and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error)

	List(ctx context.Context, filter *models.BottleFilter) ([]*models.SerializedBottle, error)
	ListByCase(ctx context.Context, caseID uuid.UUID, forUpdate bool) ([]*models.SerializedBottle, error)

	// UpdateState writes state and location when the stored version still
	// equals expectedVersion, and bumps the version. A mismatch yields
	// common.ErrStaleState.
	UpdateState(ctx context.Context, id uuid.UUID, state models.BottleState, locationID uuid.UUID, expectedVersion int) error
}

type bottleRepo struct {
	db DBTX
}

func NewBottleRepo(db DBTX) BottleRepository {
	return &bottleRepo{db: db}
}

const bottleColumns = `id, serial_number, state, current_location_id, ownership_type, allocation_id, case_id, version, created_at, updated_at`

func scanBottle(row pgx.Row) (*models.SerializedBottle, error) {
	b := &models.SerializedBottle{}
	err := row.Scan(
		&b.ID,
		&b.SerialNumber,
		&b.State,
		&b.CurrentLocationID,
		&b.OwnershipType,
		&b.AllocationID,
		&b.CaseID,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *bottleRepo) Create(ctx context.Context, bottle *models.SerializedBottle) error {
	query := `
		INSERT INTO serialized_bottles (` + bottleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		bottle.ID,
		bottle.SerialNumber,
		bottle.State,
		bottle.CurrentLocationID,
		bottle.OwnershipType,
		bottle.AllocationID,
		bottle.CaseID,
		bottle.Version,
		bottle.CreatedAt,
		bottle.UpdatedAt,
	)
	return mapError(err, "bottle "+bottle.SerialNumber)
}

func (r *bottleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error) {
	query := `SELECT ` + bottleColumns + ` FROM serialized_bottles WHERE id = $1`
	b, err := scanBottle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "bottle")
	}
	return b, nil
}

func (r *bottleRepo) GetBySerial(ctx context.Context, serial string) (*models.SerializedBottle, error) {
	query := `SELECT ` + bottleColumns + ` FROM serialized_bottles WHERE serial_number = $1`
	b, err := scanBottle(r.db.QueryRow(ctx, query, serial))
	if err != nil {
		return nil, mapError(err, "bottle")
	}
	return b, nil
}

func (r *bottleRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error) {
	query := `SELECT ` + bottleColumns + ` FROM serialized_bottles WHERE id = $1 FOR UPDATE`
	b, err := scanBottle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "bottle")
	}
	return b, nil
}

func (r *bottleRepo) List(ctx context.Context, filter *models.BottleFilter) ([]*models.SerializedBottle, error) {
	if filter == nil {
		filter = &models.BottleFilter{}
	}

	query := `SELECT ` + bottleColumns + ` FROM serialized_bottles WHERE 1=1`
	args := []any{}
	argIdx := 0

	if filter.LocationID != nil {
		argIdx++
		query += fmt.Sprintf(" AND current_location_id = $%d", argIdx)
		args = append(args, *filter.LocationID)
	}
	if filter.State != nil {
		argIdx++
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, *filter.State)
	}
	if filter.OwnershipType != nil {
		argIdx++
		query += fmt.Sprintf(" AND ownership_type = $%d", argIdx)
		args = append(args, *filter.OwnershipType)
	}
	if filter.AllocationID != nil {
		argIdx++
		query += fmt.Sprintf(" AND allocation_id = $%d", argIdx)
		args = append(args, *filter.AllocationID)
	}
	if filter.CaseID != nil {
		argIdx++
		query += fmt.Sprintf(" AND case_id = $%d", argIdx)
		args = append(args, *filter.CaseID)
	}

	query += " ORDER BY serial_number"
	if filter.Limit > 0 {
		argIdx++
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		argIdx++
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	return r.queryBottles(ctx, query, args...)
}

func (r *bottleRepo) ListByCase(ctx context.Context, caseID uuid.UUID, forUpdate bool) ([]*models.SerializedBottle, error) {
	query := `SELECT ` + bottleColumns + ` FROM serialized_bottles WHERE case_id = $1 ORDER BY id`
	if forUpdate {
		query += " FOR UPDATE"
	}
	return r.queryBottles(ctx, query, caseID)
}

func (r *bottleRepo) queryBottles(ctx context.Context, query string, args ...any) ([]*models.SerializedBottle, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bottles: %w", err)
	}
	defer rows.Close()

	var bottles []*models.SerializedBottle
	for rows.Next() {
		b, err := scanBottle(rows)
		if err != nil {
			return nil, err
		}
		bottles = append(bottles, b)
	}
	return bottles, rows.Err()
}

func (r *bottleRepo) UpdateState(ctx context.Context, id uuid.UUID, state models.BottleState, locationID uuid.UUID, expectedVersion int) error {
	query := `
		UPDATE serialized_bottles
		SET state = $1, current_location_id = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	tag, err := r.db.Exec(ctx, query, state, locationID, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update bottle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bottle %s changed concurrently: %w", id, common.ErrStaleState)
	}
	return nil
}
