package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PermissionRepository reads and seeds the RBAC tables
// (roles, permissions, role_permissions, user_roles).
type PermissionRepository interface {
	UserHasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]string, error)

	// EnsureRole creates the role and its permissions if missing and grants
	// every listed permission to it. It returns the role id.
	EnsureRole(ctx context.Context, roleName string, permissions []string) (uuid.UUID, error)
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error
}

type permissionRepo struct {
	db DBTX
}

func NewPermissionRepo(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) UserHasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE ur.user_id = $1 AND p.name = $2
		)
	`
	var ok bool
	if err := r.db.QueryRow(ctx, query, userID, permission).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return ok, nil
}

func (r *permissionRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT p.name
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY p.name
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *permissionRepo) EnsureRole(ctx context.Context, roleName string, permissions []string) (uuid.UUID, error) {
	var roleID uuid.UUID
	query := `
		INSERT INTO roles (id, name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query, uuid.New(), roleName).Scan(&roleID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to ensure role %s: %w", roleName, err)
	}

	for _, name := range permissions {
		permQuery := `
			INSERT INTO permissions (id, name, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO NOTHING
		`
		if _, err := r.db.Exec(ctx, permQuery, uuid.New(), name); err != nil {
			return uuid.Nil, fmt.Errorf("failed to ensure permission %s: %w", name, err)
		}

		grantQuery := `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = $2
			ON CONFLICT DO NOTHING
		`
		if _, err := r.db.Exec(ctx, grantQuery, roleID, name); err != nil {
			return uuid.Nil, fmt.Errorf("failed to grant %s: %w", name, err)
		}
	}
	return roleID, nil
}

func (r *permissionRepo) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}
