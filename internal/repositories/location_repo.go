package repositories

import (
	"context"
	"fmt"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
)

type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	List(ctx context.Context, filter *models.LocationFilter) ([]*models.Location, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.LocationStatus) error
}

type locationRepo struct {
	db DBTX
}

func NewLocationRepo(db DBTX) LocationRepository {
	return &locationRepo{db: db}
}

const locationColumns = `id, name, type, status, serialization_authorized, created_at, updated_at`

func (r *locationRepo) Create(ctx context.Context, location *models.Location) error {
	query := `
		INSERT INTO locations (id, name, type, status, serialization_authorized, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		location.ID,
		location.Name,
		location.Type,
		location.Status,
		location.SerializationAuthorized,
		location.CreatedAt,
		location.UpdatedAt,
	)
	return mapError(err, "location")
}

func (r *locationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	location := &models.Location{}
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&location.ID,
		&location.Name,
		&location.Type,
		&location.Status,
		&location.SerializationAuthorized,
		&location.CreatedAt,
		&location.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "location")
	}
	return location, nil
}

func (r *locationRepo) List(ctx context.Context, filter *models.LocationFilter) ([]*models.Location, error) {
	if filter == nil {
		filter = &models.LocationFilter{}
	}

	query := `SELECT ` + locationColumns + ` FROM locations WHERE 1=1`
	args := []any{}
	argIdx := 0

	if filter.Type != nil {
		argIdx++
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		argIdx++
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
	}

	query += " ORDER BY name"
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
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		location := &models.Location{}
		if err := rows.Scan(
			&location.ID,
			&location.Name,
			&location.Type,
			&location.Status,
			&location.SerializationAuthorized,
			&location.CreatedAt,
			&location.UpdatedAt,
		); err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

func (r *locationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.LocationStatus) error {
	query := `UPDATE locations SET status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update location status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("location %s: %w", id, common.ErrNotFound)
	}
	return nil
}
