package repositories

import (
	"context"
	"fmt"
	"time"

	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MovementRepository is append-only; rows are never updated or deleted.
type MovementRepository interface {
	Append(ctx context.Context, m *models.InventoryMovement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error)
	List(ctx context.Context, filter *models.MovementFilter) ([]*models.InventoryMovement, error)

	// ListBetween returns movements with from <= created_at < to, oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.InventoryMovement, error)
}

type movementRepo struct {
	db DBTX
}

func NewMovementRepo(db DBTX) MovementRepository {
	return &movementRepo{db: db}
}

const movementColumns = `id, type, entity_type, entity_id, source_location_id, destination_location_id, actor_id, reason, consumption_reason, notes, parent_movement_id, is_override, created_at`

func scanMovement(row pgx.Row) (*models.InventoryMovement, error) {
	m := &models.InventoryMovement{}
	err := row.Scan(
		&m.ID,
		&m.Type,
		&m.EntityType,
		&m.EntityID,
		&m.SourceLocationID,
		&m.DestinationLocationID,
		&m.ActorID,
		&m.Reason,
		&m.ConsumptionReason,
		&m.Notes,
		&m.ParentMovementID,
		&m.IsOverride,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *movementRepo) Append(ctx context.Context, m *models.InventoryMovement) error {
	query := `
		INSERT INTO inventory_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.Type,
		m.EntityType,
		m.EntityID,
		m.SourceLocationID,
		m.DestinationLocationID,
		m.ActorID,
		m.Reason,
		m.ConsumptionReason,
		m.Notes,
		m.ParentMovementID,
		m.IsOverride,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (r *movementRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE id = $1`
	m, err := scanMovement(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "movement")
	}
	return m, nil
}

func (r *movementRepo) List(ctx context.Context, filter *models.MovementFilter) ([]*models.InventoryMovement, error) {
	if filter == nil {
		filter = &models.MovementFilter{}
	}

	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE 1=1`
	args := []any{}
	argIdx := 0

	if filter.EntityType != nil {
		argIdx++
		query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
		args = append(args, *filter.EntityType)
	}
	if filter.EntityID != nil {
		argIdx++
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, *filter.EntityID)
	}
	if filter.Type != nil {
		argIdx++
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, *filter.Type)
	}
	if filter.ActorID != nil {
		argIdx++
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, *filter.ActorID)
	}
	if filter.LocationID != nil {
		argIdx++
		query += fmt.Sprintf(" AND (source_location_id = $%d OR destination_location_id = $%d)", argIdx, argIdx)
		args = append(args, *filter.LocationID)
	}
	if filter.StartDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY created_at DESC, id"
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

	return r.queryMovements(ctx, query, args...)
}

func (r *movementRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*models.InventoryMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM inventory_movements
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`
	return r.queryMovements(ctx, query, from, to)
}

func (r *movementRepo) queryMovements(ctx context.Context, query string, args ...any) ([]*models.InventoryMovement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*models.InventoryMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
