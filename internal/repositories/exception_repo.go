package repositories

import (
	"context"
	"fmt"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ExceptionRepository interface {
	Create(ctx context.Context, e *models.InventoryException) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryException, error)
	List(ctx context.Context, filter *models.ExceptionFilter) ([]*models.InventoryException, error)

	// Resolve sets the resolution fields of an unresolved exception.
	// An already resolved exception yields common.ErrStaleState.
	Resolve(ctx context.Context, id, resolvedBy uuid.UUID, notes *string, resolvedAt time.Time) error
}

type exceptionRepo struct {
	db DBTX
}

func NewExceptionRepo(db DBTX) ExceptionRepository {
	return &exceptionRepo{db: db}
}

const exceptionColumns = `id, exception_type, movement_id, bottle_id, justification, consumption_reason, notes, created_by, resolution_status, resolved_by, resolved_at, resolution_notes, created_at`

func scanException(row pgx.Row) (*models.InventoryException, error) {
	e := &models.InventoryException{}
	err := row.Scan(
		&e.ID,
		&e.ExceptionType,
		&e.MovementID,
		&e.BottleID,
		&e.Justification,
		&e.ConsumptionReason,
		&e.Notes,
		&e.CreatedBy,
		&e.ResolutionStatus,
		&e.ResolvedBy,
		&e.ResolvedAt,
		&e.ResolutionNotes,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *exceptionRepo) Create(ctx context.Context, e *models.InventoryException) error {
	query := `
		INSERT INTO inventory_exceptions (` + exceptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.ExceptionType,
		e.MovementID,
		e.BottleID,
		e.Justification,
		e.ConsumptionReason,
		e.Notes,
		e.CreatedBy,
		e.ResolutionStatus,
		e.ResolvedBy,
		e.ResolvedAt,
		e.ResolutionNotes,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create exception: %w", err)
	}
	return nil
}

func (r *exceptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryException, error) {
	query := `SELECT ` + exceptionColumns + ` FROM inventory_exceptions WHERE id = $1`
	e, err := scanException(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "exception")
	}
	return e, nil
}

func (r *exceptionRepo) List(ctx context.Context, filter *models.ExceptionFilter) ([]*models.InventoryException, error) {
	if filter == nil {
		filter = &models.ExceptionFilter{}
	}

	query := `SELECT ` + exceptionColumns + ` FROM inventory_exceptions WHERE 1=1`
	args := []any{}
	argIdx := 0

	if filter.ResolutionStatus != nil {
		argIdx++
		query += fmt.Sprintf(" AND resolution_status = $%d", argIdx)
		args = append(args, *filter.ResolutionStatus)
	}
	if filter.BottleID != nil {
		argIdx++
		query += fmt.Sprintf(" AND bottle_id = $%d", argIdx)
		args = append(args, *filter.BottleID)
	}
	if filter.CreatedBy != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_by = $%d", argIdx)
		args = append(args, *filter.CreatedBy)
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

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []*models.InventoryException
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

func (r *exceptionRepo) Resolve(ctx context.Context, id, resolvedBy uuid.UUID, notes *string, resolvedAt time.Time) error {
	query := `
		UPDATE inventory_exceptions
		SET resolution_status = $1, resolved_by = $2, resolved_at = $3, resolution_notes = $4
		WHERE id = $5 AND resolution_status = $6
	`
	tag, err := r.db.Exec(ctx, query, models.ExceptionResolved, resolvedBy, resolvedAt, notes, id, models.ExceptionUnresolved)
	if err != nil {
		return fmt.Errorf("failed to resolve exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exception %s is no longer unresolved: %w", id, common.ErrStaleState)
	}
	return nil
}
