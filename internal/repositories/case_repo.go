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

type CaseRepository interface {
	Create(ctx context.Context, c *models.InventoryCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error)
	UpdateLocation(ctx context.Context, id, locationID uuid.UUID, expectedVersion int) error

	// MarkBroken flips an intact case to broken. Breaking twice yields
	// common.ErrStaleState since the version no longer matches.
	MarkBroken(ctx context.Context, id uuid.UUID, brokenAt time.Time, expectedVersion int) error
}

type caseRepo struct {
	db DBTX
}

func NewCaseRepo(db DBTX) CaseRepository {
	return &caseRepo{db: db}
}

const caseColumns = `id, integrity_status, current_location_id, case_configuration, version, broken_at, created_at, updated_at`

func scanCase(row pgx.Row) (*models.InventoryCase, error) {
	c := &models.InventoryCase{}
	err := row.Scan(
		&c.ID,
		&c.IntegrityStatus,
		&c.CurrentLocationID,
		&c.CaseConfiguration,
		&c.Version,
		&c.BrokenAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *caseRepo) Create(ctx context.Context, c *models.InventoryCase) error {
	query := `
		INSERT INTO inventory_cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.IntegrityStatus,
		c.CurrentLocationID,
		c.CaseConfiguration,
		c.Version,
		c.BrokenAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return mapError(err, "case")
}

func (r *caseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error) {
	query := `SELECT ` + caseColumns + ` FROM inventory_cases WHERE id = $1`
	c, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "case")
	}
	return c, nil
}

func (r *caseRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error) {
	query := `SELECT ` + caseColumns + ` FROM inventory_cases WHERE id = $1 FOR UPDATE`
	c, err := scanCase(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "case")
	}
	return c, nil
}

func (r *caseRepo) UpdateLocation(ctx context.Context, id, locationID uuid.UUID, expectedVersion int) error {
	query := `
		UPDATE inventory_cases
		SET current_location_id = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`
	tag, err := r.db.Exec(ctx, query, locationID, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update case location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s changed concurrently: %w", id, common.ErrStaleState)
	}
	return nil
}

func (r *caseRepo) MarkBroken(ctx context.Context, id uuid.UUID, brokenAt time.Time, expectedVersion int) error {
	query := `
		UPDATE inventory_cases
		SET integrity_status = $1, broken_at = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4 AND integrity_status = $5
	`
	tag, err := r.db.Exec(ctx, query, models.CaseBroken, brokenAt, id, expectedVersion, models.CaseIntact)
	if err != nil {
		return fmt.Errorf("failed to break case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s changed concurrently: %w", id, common.ErrStaleState)
	}
	return nil
}
