package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cellarledger/internal/caching"
	"cellarledger/internal/common"
	"cellarledger/internal/config"
	"cellarledger/internal/locking"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const overrideMovementReason = "committed inventory override"

// OverrideService consumes committed bottles under an explicit, audited
// override. It is the only path that skips the commitment check.
type OverrideService interface {
	ExecuteOverride(ctx context.Context, actor models.Actor, req *models.OverrideRequest) (*models.OverrideResult, error)
}

type overrideService struct {
	store  repositories.Store
	authz  Authorizer
	locker locking.UnitLocker
	cache  caching.CacheService
	cfg    config.OverrideConfig
	logger *zap.Logger
}

func NewOverrideService(store repositories.Store, authz Authorizer, locker locking.UnitLocker, cache caching.CacheService, cfg config.OverrideConfig, logger *zap.Logger) OverrideService {
	return &overrideService{
		store:  store,
		authz:  authz,
		locker: locker,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *overrideService) ExecuteOverride(ctx context.Context, actor models.Actor, req *models.OverrideRequest) (*models.OverrideResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsumeCommitted); err != nil {
		return nil, err
	}
	justification, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	limited, err := s.cache.IsRateLimited(ctx, "override:"+actor.ID.String(), s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to check override rate limit: %w", err)
	}
	if limited {
		return nil, fmt.Errorf("%w: at most %d overrides per %s", common.ErrRateLimited, s.cfg.RateLimit, s.cfg.RateWindow)
	}

	notes := common.TrimmedOrNil(req.Notes)
	result := &models.OverrideResult{
		Exceptions: []models.InventoryException{},
		Errors:     []string{},
	}
	for _, bottleID := range req.BottleIDs {
		exception, err := s.overrideBottle(ctx, actor, bottleID, justification, req.Reason, notes)
		if err != nil {
			s.logger.Warn("override failed for bottle",
				zap.String("bottle_id", bottleID.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.ConsumedCount++
		result.Exceptions = append(result.Exceptions, *exception)
	}
	result.Success = result.ConsumedCount > 0

	s.logger.Warn("committed inventory override executed",
		zap.String("actor_id", actor.ID.String()),
		zap.Int("requested", len(req.BottleIDs)),
		zap.Int("consumed", result.ConsumedCount),
		zap.String("reason", string(req.Reason)),
	)
	return result, nil
}

// validate returns the trimmed justification.
func (s *overrideService) validate(req *models.OverrideRequest) (string, error) {
	if req == nil {
		return "", common.ValidationFailedf("override request is required")
	}
	if !req.Confirmed {
		return "", common.ValidationFailedf("override must be explicitly confirmed")
	}
	justification := strings.TrimSpace(req.Justification)
	if utf8.RuneCountInString(justification) < s.cfg.MinJustificationLength {
		return "", common.ValidationFailedf("justification must be at least %d characters", s.cfg.MinJustificationLength)
	}
	if len(req.BottleIDs) == 0 {
		return "", common.ValidationFailedf("at least one bottle is required")
	}
	if len(req.BottleIDs) > maxBatchSize {
		return "", common.ValidationFailedf("overrides are limited to %d bottles", maxBatchSize)
	}
	seen := make(map[uuid.UUID]struct{}, len(req.BottleIDs))
	for _, id := range req.BottleIDs {
		if _, ok := seen[id]; ok {
			return "", common.ValidationFailedf("bottle %s appears twice", id)
		}
		seen[id] = struct{}{}
	}
	if !req.Reason.Valid() {
		return "", common.ValidationFailedf("unknown consumption reason %q", req.Reason)
	}
	return justification, nil
}

// overrideBottle consumes one bottle and writes its exception in the same
// transaction.
func (s *overrideService) overrideBottle(ctx context.Context, actor models.Actor, bottleID uuid.UUID, justification string, reason models.ConsumptionReason, notes *string) (*models.InventoryException, error) {
	var exception *models.InventoryException
	err := runUnit(ctx, s.locker, s.store, locking.BottleKey(bottleID), func(tx repositories.Store) error {
		bottle, err := tx.Bottles().GetForUpdate(ctx, bottleID)
		if err != nil {
			return err
		}
		if bottle.State != models.BottleStored {
			return common.InvalidTransitionf("bottle %s is %s; only stored bottles can be consumed", bottle.SerialNumber, bottle.State)
		}
		if !bottle.IsCruratedOwned() {
			return common.Invalidf("bottle %s is %s, not crurated owned", bottle.SerialNumber, bottle.OwnershipType)
		}
		if err := checkNotInIntactCase(ctx, tx, bottle); err != nil {
			return err
		}
		if bottle.AllocationID != nil {
			if err := tx.Allocations().LockForUpdate(ctx, *bottle.AllocationID); err != nil {
				return err
			}
		}

		source := bottle.CurrentLocationID
		if err := applyStateChange(ctx, tx, bottle, models.BottleConsumed, source); err != nil {
			return err
		}
		movementReason := overrideMovementReason
		movement := newMovement(models.MovementConsumption, models.EntityBottle, bottle.ID, &source, nil, actor, &movementReason)
		movement.ConsumptionReason = &reason
		movement.Notes = notes
		movement.IsOverride = true
		if err := tx.Movements().Append(ctx, movement); err != nil {
			return err
		}

		exception = &models.InventoryException{
			ID:                uuid.New(),
			ExceptionType:     models.ExceptionCommittedOverride,
			MovementID:        movement.ID,
			BottleID:          bottle.ID,
			Justification:     justification,
			ConsumptionReason: reason,
			Notes:             notes,
			CreatedBy:         actor.ID,
			ResolutionStatus:  models.ExceptionUnresolved,
			CreatedAt:         time.Now().UTC(),
		}
		return tx.Exceptions().Create(ctx, exception)
	})
	if err != nil {
		return nil, common.NewUnitError(string(models.EntityBottle), bottleID, err)
	}
	return exception, nil
}
