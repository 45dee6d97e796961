package services

import (
	"context"
	"errors"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxAuditRange = 365 * 24 * time.Hour

// AuditService queries the movement log and reviews override exceptions.
type AuditService interface {
	ListMovements(ctx context.Context, filter *models.MovementFilter) ([]*models.InventoryMovement, error)
	GetMovement(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error)

	// EntityHistory returns every movement row of one bottle or case,
	// newest first. Case operations appear on both levels.
	EntityHistory(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, limit, offset int) ([]*models.InventoryMovement, error)

	ListExceptions(ctx context.Context, filter *models.ExceptionFilter) ([]*models.InventoryException, error)
	GetException(ctx context.Context, id uuid.UUID) (*models.InventoryException, error)
	ResolveException(ctx context.Context, actor models.Actor, id uuid.UUID, notes *string) (*models.InventoryException, error)
}

type auditService struct {
	store  repositories.Store
	authz  Authorizer
	logger *zap.Logger
}

func NewAuditService(store repositories.Store, authz Authorizer, logger *zap.Logger) AuditService {
	return &auditService{
		store:  store,
		authz:  authz,
		logger: logger,
	}
}

func (s *auditService) ListMovements(ctx context.Context, filter *models.MovementFilter) ([]*models.InventoryMovement, error) {
	f := models.MovementFilter{}
	if filter != nil {
		f = *filter
	}
	if f.EntityType != nil && !f.EntityType.Valid() {
		return nil, common.Invalidf("unknown entity type %q", *f.EntityType)
	}
	if f.Type != nil && !f.Type.Valid() {
		return nil, common.Invalidf("unknown movement type %q", *f.Type)
	}
	if err := common.ValidateDateRange(f.StartDate, f.EndDate, maxAuditRange); err != nil {
		return nil, err
	}
	limit, offset, err := common.ValidatePaginationParams(f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	f.Limit, f.Offset = limit, offset

	return s.store.Movements().List(ctx, &f)
}

func (s *auditService) GetMovement(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error) {
	return s.store.Movements().GetByID(ctx, id)
}

func (s *auditService) EntityHistory(ctx context.Context, entityType models.EntityType, entityID uuid.UUID, limit, offset int) ([]*models.InventoryMovement, error) {
	if !entityType.Valid() {
		return nil, common.Invalidf("unknown entity type %q", entityType)
	}
	return s.ListMovements(ctx, &models.MovementFilter{
		EntityType: &entityType,
		EntityID:   &entityID,
		Limit:      limit,
		Offset:     offset,
	})
}

func (s *auditService) ListExceptions(ctx context.Context, filter *models.ExceptionFilter) ([]*models.InventoryException, error) {
	f := models.ExceptionFilter{}
	if filter != nil {
		f = *filter
	}
	if f.ResolutionStatus != nil && *f.ResolutionStatus != models.ExceptionResolved && *f.ResolutionStatus != models.ExceptionUnresolved {
		return nil, common.Invalidf("unknown resolution status %q", *f.ResolutionStatus)
	}
	if err := common.ValidateDateRange(f.StartDate, f.EndDate, maxAuditRange); err != nil {
		return nil, err
	}
	limit, offset, err := common.ValidatePaginationParams(f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	f.Limit, f.Offset = limit, offset

	return s.store.Exceptions().List(ctx, &f)
}

func (s *auditService) GetException(ctx context.Context, id uuid.UUID) (*models.InventoryException, error) {
	return s.store.Exceptions().GetByID(ctx, id)
}

// ResolveException closes an unresolved exception. Resolution happens once.
func (s *auditService) ResolveException(ctx context.Context, actor models.Actor, id uuid.UUID, notes *string) (*models.InventoryException, error) {
	if err := authorize(ctx, s.authz, actor, models.PermExceptionsResolve); err != nil {
		return nil, err
	}

	var resolved *models.InventoryException
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		exception, err := tx.Exceptions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if exception.ResolutionStatus == models.ExceptionResolved {
			return common.InvalidTransitionf("exception %s is already resolved", id)
		}
		if err := tx.Exceptions().Resolve(ctx, id, actor.ID, common.TrimmedOrNil(notes), time.Now().UTC()); err != nil {
			if errors.Is(err, common.ErrStaleState) {
				return common.InvalidTransitionf("exception %s is already resolved", id)
			}
			return err
		}
		resolved, err = tx.Exceptions().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("exception resolved",
		zap.String("exception_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return resolved, nil
}
