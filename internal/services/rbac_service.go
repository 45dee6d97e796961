package services

import (
	"context"
	"fmt"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authorizer answers whether an actor holds a permission.
type Authorizer interface {
	Can(ctx context.Context, actor models.Actor, permission string) (bool, error)
}

type RBACService interface {
	Authorizer
	UserHasPermission(ctx context.Context, userID uuid.UUID, permissionName string) (bool, error)
	GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)

	// BootstrapAdmin grants every permission to userID through the admin role.
	BootstrapAdmin(ctx context.Context, userID uuid.UUID) error
}

const AdminRole = "admin"

// AllPermissions lists every permission the services check.
func AllPermissions() []string {
	return []string{
		models.PermInventoryRead,
		models.PermInventorySerialize,
		models.PermTransfer,
		models.PermConsign,
		models.PermConsume,
		models.PermBreakCase,
		models.PermConsumeCommitted,
		models.PermAuditRead,
		models.PermExceptionsResolve,
		models.PermLocationsManage,
		models.PermJobsManage,
	}
}

type rbacService struct {
	permissionRepo repositories.PermissionRepository
	logger         *zap.Logger
}

func NewRBACService(permissionRepo repositories.PermissionRepository, logger *zap.Logger) RBACService {
	return &rbacService{
		permissionRepo: permissionRepo,
		logger:         logger,
	}
}

func (s *rbacService) Can(ctx context.Context, actor models.Actor, permission string) (bool, error) {
	return s.UserHasPermission(ctx, actor.ID, permission)
}

func (s *rbacService) UserHasPermission(ctx context.Context, userID uuid.UUID, permissionName string) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	return s.permissionRepo.UserHasPermission(ctx, userID, permissionName)
}

func (s *rbacService) GetUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.permissionRepo.ListForUser(ctx, userID)
}

func (s *rbacService) BootstrapAdmin(ctx context.Context, userID uuid.UUID) error {
	roleID, err := s.permissionRepo.EnsureRole(ctx, AdminRole, AllPermissions())
	if err != nil {
		return fmt.Errorf("failed to ensure admin role: %w", err)
	}
	if err := s.permissionRepo.AssignRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("failed to assign admin role: %w", err)
	}
	s.logger.Info("bootstrap admin granted", zap.String("user_id", userID.String()))
	return nil
}

// authorize turns a negative answer into common.ErrAuthorizationDenied.
func authorize(ctx context.Context, authz Authorizer, actor models.Actor, permission string) error {
	ok, err := authz.Can(ctx, actor, permission)
	if err != nil {
		return fmt.Errorf("failed to check permission %s: %w", permission, err)
	}
	if !ok {
		return fmt.Errorf("%w: actor %s lacks %s", common.ErrAuthorizationDenied, actor.ID, permission)
	}
	return nil
}
