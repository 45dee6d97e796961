package services

import (
	"context"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/locking"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBatchSize = 500

const caseOpenedForConsumption = "case opened for consumption"

// MovementService executes every physical state change on bottles and
// cases. Each unit is locked, checked and written in its own transaction
// together with its movement rows.
type MovementService interface {
	TransferBottle(ctx context.Context, actor models.Actor, bottleID, destinationID uuid.UUID, reason *string) (*models.InventoryMovement, error)
	TransferCase(ctx context.Context, actor models.Actor, caseID, destinationID uuid.UUID, reason *string) (*models.InventoryMovement, error)
	PlaceBottleInConsignment(ctx context.Context, actor models.Actor, bottleID, consigneeID uuid.UUID, reason *string) (*models.InventoryMovement, error)
	PlaceCaseInConsignment(ctx context.Context, actor models.Actor, caseID, consigneeID uuid.UUID, reason *string) (*models.InventoryMovement, error)
	RecordConsumption(ctx context.Context, actor models.Actor, bottleID uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.InventoryMovement, error)
	BreakCase(ctx context.Context, actor models.Actor, caseID uuid.UUID, reason *string) (*models.InventoryMovement, error)

	// Batch variants commit each unit on its own and report per-unit
	// outcomes. The returned error covers only authorization and request
	// validation.
	TransferBottles(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, destinationID uuid.UUID, reason *string) (*models.BatchResult, error)
	TransferCases(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, destinationID uuid.UUID, reason *string) (*models.BatchResult, error)
	PlaceBottlesInConsignment(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, consigneeID uuid.UUID, reason *string) (*models.BatchResult, error)
	PlaceCasesInConsignment(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, consigneeID uuid.UUID, reason *string) (*models.BatchResult, error)
	ConsumeBottles(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.BatchResult, error)

	// ConsumeCases breaks each intact case and then consumes every stored
	// member. A broken case stays broken even when members fail.
	ConsumeCases(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.BatchResult, error)
}

type movementService struct {
	store      repositories.Store
	commitment CommitmentService
	authz      Authorizer
	locker     locking.UnitLocker
	logger     *zap.Logger
}

func NewMovementService(store repositories.Store, commitment CommitmentService, authz Authorizer, locker locking.UnitLocker, logger *zap.Logger) MovementService {
	return &movementService{
		store:      store,
		commitment: commitment,
		authz:      authz,
		locker:     locker,
		logger:     logger,
	}
}

func (s *movementService) TransferBottle(ctx context.Context, actor models.Actor, bottleID, destinationID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermTransfer); err != nil {
		return nil, err
	}
	return s.moveBottle(ctx, actor, bottleID, destinationID, models.MovementTransfer, common.TrimmedOrNil(reason))
}

func (s *movementService) PlaceBottleInConsignment(ctx context.Context, actor models.Actor, bottleID, consigneeID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsign); err != nil {
		return nil, err
	}
	return s.moveBottle(ctx, actor, bottleID, consigneeID, models.MovementConsignmentPlacement, common.TrimmedOrNil(reason))
}

func (s *movementService) TransferCase(ctx context.Context, actor models.Actor, caseID, destinationID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermTransfer); err != nil {
		return nil, err
	}
	movements, err := s.moveCase(ctx, actor, caseID, destinationID, models.MovementTransfer, common.TrimmedOrNil(reason))
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

func (s *movementService) PlaceCaseInConsignment(ctx context.Context, actor models.Actor, caseID, consigneeID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsign); err != nil {
		return nil, err
	}
	movements, err := s.moveCase(ctx, actor, caseID, consigneeID, models.MovementConsignmentPlacement, common.TrimmedOrNil(reason))
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

func (s *movementService) RecordConsumption(ctx context.Context, actor models.Actor, bottleID uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsume); err != nil {
		return nil, err
	}
	if !reason.Valid() {
		return nil, common.Invalidf("unknown consumption reason %q", reason)
	}
	return s.consumeBottle(ctx, actor, bottleID, reason, common.TrimmedOrNil(notes))
}

func (s *movementService) BreakCase(ctx context.Context, actor models.Actor, caseID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	if err := authorize(ctx, s.authz, actor, models.PermBreakCase); err != nil {
		return nil, err
	}
	return s.breakCase(ctx, actor, caseID, common.TrimmedOrNil(reason))
}

func (s *movementService) TransferBottles(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, destinationID uuid.UUID, reason *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermTransfer); err != nil {
		return nil, err
	}
	if err := validateBatch(bottleIDs); err != nil {
		return nil, err
	}
	reason = common.TrimmedOrNil(reason)
	return s.runBatch(ctx, models.EntityBottle, bottleIDs, func(id uuid.UUID) ([]models.InventoryMovement, error) {
		return single(s.moveBottle(ctx, actor, id, destinationID, models.MovementTransfer, reason))
	}), nil
}

func (s *movementService) PlaceBottlesInConsignment(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, consigneeID uuid.UUID, reason *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsign); err != nil {
		return nil, err
	}
	if err := validateBatch(bottleIDs); err != nil {
		return nil, err
	}
	reason = common.TrimmedOrNil(reason)
	return s.runBatch(ctx, models.EntityBottle, bottleIDs, func(id uuid.UUID) ([]models.InventoryMovement, error) {
		return single(s.moveBottle(ctx, actor, id, consigneeID, models.MovementConsignmentPlacement, reason))
	}), nil
}

func (s *movementService) TransferCases(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, destinationID uuid.UUID, reason *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermTransfer); err != nil {
		return nil, err
	}
	if err := validateBatch(caseIDs); err != nil {
		return nil, err
	}
	reason = common.TrimmedOrNil(reason)
	return s.runBatch(ctx, models.EntityCase, caseIDs, func(id uuid.UUID) ([]models.InventoryMovement, error) {
		return s.moveCase(ctx, actor, id, destinationID, models.MovementTransfer, reason)
	}), nil
}

func (s *movementService) PlaceCasesInConsignment(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, consigneeID uuid.UUID, reason *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsign); err != nil {
		return nil, err
	}
	if err := validateBatch(caseIDs); err != nil {
		return nil, err
	}
	reason = common.TrimmedOrNil(reason)
	return s.runBatch(ctx, models.EntityCase, caseIDs, func(id uuid.UUID) ([]models.InventoryMovement, error) {
		return s.moveCase(ctx, actor, id, consigneeID, models.MovementConsignmentPlacement, reason)
	}), nil
}

func (s *movementService) ConsumeBottles(ctx context.Context, actor models.Actor, bottleIDs []uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsume); err != nil {
		return nil, err
	}
	if !reason.Valid() {
		return nil, common.Invalidf("unknown consumption reason %q", reason)
	}
	if err := validateBatch(bottleIDs); err != nil {
		return nil, err
	}
	notes = common.TrimmedOrNil(notes)
	return s.runBatch(ctx, models.EntityBottle, bottleIDs, func(id uuid.UUID) ([]models.InventoryMovement, error) {
		return single(s.consumeBottle(ctx, actor, id, reason, notes))
	}), nil
}

func (s *movementService) ConsumeCases(ctx context.Context, actor models.Actor, caseIDs []uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.BatchResult, error) {
	if err := authorize(ctx, s.authz, actor, models.PermConsume); err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.authz, actor, models.PermBreakCase); err != nil {
		return nil, err
	}
	if !reason.Valid() {
		return nil, common.Invalidf("unknown consumption reason %q", reason)
	}
	if err := validateBatch(caseIDs); err != nil {
		return nil, err
	}
	notes = common.TrimmedOrNil(notes)
	breakReason := caseOpenedForConsumption

	result := models.NewBatchResult()
	for _, caseID := range caseIDs {
		c, err := s.store.Cases().GetByID(ctx, caseID)
		if err != nil {
			s.recordFailure(result, models.EntityCase, caseID, common.NewUnitError(string(models.EntityCase), caseID, err))
			continue
		}
		if c.IsIntact() {
			movement, err := s.breakCase(ctx, actor, caseID, &breakReason)
			if err != nil {
				s.recordFailure(result, models.EntityCase, caseID, err)
				continue
			}
			result.AddSuccess(models.EntityCase, caseID, *movement)
		}

		members, err := s.store.Bottles().ListByCase(ctx, caseID, false)
		if err != nil {
			s.recordFailure(result, models.EntityCase, caseID, common.NewUnitError(string(models.EntityCase), caseID, err))
			continue
		}
		for _, bottle := range members {
			if bottle.State != models.BottleStored {
				continue
			}
			movement, err := s.consumeBottle(ctx, actor, bottle.ID, reason, notes)
			if err != nil {
				s.recordFailure(result, models.EntityBottle, bottle.ID, err)
				continue
			}
			result.AddSuccess(models.EntityBottle, bottle.ID, *movement)
		}
	}
	return result, nil
}

func (s *movementService) runBatch(ctx context.Context, unitType models.EntityType, ids []uuid.UUID, fn func(uuid.UUID) ([]models.InventoryMovement, error)) *models.BatchResult {
	result := models.NewBatchResult()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.recordFailure(result, unitType, id, common.NewUnitError(string(unitType), id, err))
			continue
		}
		movements, err := fn(id)
		if err != nil {
			s.recordFailure(result, unitType, id, err)
			continue
		}
		result.AddSuccess(unitType, id, movements...)
	}
	s.logger.Info("batch finished",
		zap.String("unit_type", string(unitType)),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result
}

func (s *movementService) recordFailure(result *models.BatchResult, unitType models.EntityType, id uuid.UUID, err error) {
	s.logger.Warn("batch unit failed",
		zap.String("unit_type", string(unitType)),
		zap.String("unit_id", id.String()),
		zap.Error(err),
	)
	result.AddFailure(unitType, id, common.ErrorCode(err), err)
}

func (s *movementService) moveBottle(ctx context.Context, actor models.Actor, bottleID, destinationID uuid.UUID, movementType models.MovementType, reason *string) (*models.InventoryMovement, error) {
	var movement *models.InventoryMovement
	err := runUnit(ctx, s.locker, s.store, locking.BottleKey(bottleID), func(tx repositories.Store) error {
		bottle, err := tx.Bottles().GetForUpdate(ctx, bottleID)
		if err != nil {
			return err
		}
		if bottle.State != models.BottleStored {
			return common.InvalidTransitionf("bottle %s is %s; only stored bottles can be moved", bottle.SerialNumber, bottle.State)
		}
		if err := checkNotInIntactCase(ctx, tx, bottle); err != nil {
			return err
		}
		destination, err := tx.Locations().GetByID(ctx, destinationID)
		if err != nil {
			return err
		}
		if err := checkDestination(destination, bottle.CurrentLocationID, movementType); err != nil {
			return err
		}
		if movementType == models.MovementConsignmentPlacement && !bottle.IsCruratedOwned() {
			return common.Invalidf("bottle %s is %s; only crurated owned stock can be consigned", bottle.SerialNumber, bottle.OwnershipType)
		}

		source := bottle.CurrentLocationID
		if err := applyStateChange(ctx, tx, bottle, models.BottleStored, destination.ID); err != nil {
			return err
		}
		movement = newMovement(movementType, models.EntityBottle, bottle.ID, &source, &destination.ID, actor, reason)
		return tx.Movements().Append(ctx, movement)
	})
	if err != nil {
		return nil, common.NewUnitError(string(models.EntityBottle), bottleID, err)
	}

	s.logger.Info("bottle moved",
		zap.String("movement_type", string(movementType)),
		zap.String("bottle_id", bottleID.String()),
		zap.String("destination_id", destinationID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return movement, nil
}

// moveCase returns the case-level movement first, followed by one row per
// member bottle.
func (s *movementService) moveCase(ctx context.Context, actor models.Actor, caseID, destinationID uuid.UUID, movementType models.MovementType, reason *string) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := runUnit(ctx, s.locker, s.store, locking.CaseKey(caseID), func(tx repositories.Store) error {
		c, err := tx.Cases().GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsIntact() {
			return common.InvalidTransitionf("case %s is broken; move its bottles individually", c.ID)
		}
		destination, err := tx.Locations().GetByID(ctx, destinationID)
		if err != nil {
			return err
		}
		if err := checkDestination(destination, c.CurrentLocationID, movementType); err != nil {
			return err
		}

		members, err := tx.Bottles().ListByCase(ctx, c.ID, true)
		if err != nil {
			return err
		}
		for _, bottle := range members {
			if bottle.State != models.BottleStored {
				return common.InvalidTransitionf("bottle %s in case %s is %s; every bottle must be stored", bottle.SerialNumber, c.ID, bottle.State)
			}
			if bottle.CurrentLocationID != c.CurrentLocationID {
				return common.Invalidf("bottle %s is not at the location of case %s", bottle.SerialNumber, c.ID)
			}
			if movementType == models.MovementConsignmentPlacement && !bottle.IsCruratedOwned() {
				return common.Invalidf("bottle %s in case %s is %s; only crurated owned stock can be consigned", bottle.SerialNumber, c.ID, bottle.OwnershipType)
			}
		}

		source := c.CurrentLocationID
		if err := tx.Cases().UpdateLocation(ctx, c.ID, destination.ID, c.Version); err != nil {
			return err
		}
		parent := newMovement(movementType, models.EntityCase, c.ID, &source, &destination.ID, actor, reason)
		if err := tx.Movements().Append(ctx, parent); err != nil {
			return err
		}
		movements = append(movements[:0], *parent)

		for _, bottle := range members {
			if err := applyStateChange(ctx, tx, bottle, models.BottleStored, destination.ID); err != nil {
				return err
			}
			child := newMovement(movementType, models.EntityBottle, bottle.ID, &source, &destination.ID, actor, reason)
			child.ParentMovementID = uuidPtr(parent.ID)
			if err := tx.Movements().Append(ctx, child); err != nil {
				return err
			}
			movements = append(movements, *child)
		}
		return nil
	})
	if err != nil {
		return nil, common.NewUnitError(string(models.EntityCase), caseID, err)
	}

	s.logger.Info("case moved",
		zap.String("movement_type", string(movementType)),
		zap.String("case_id", caseID.String()),
		zap.String("destination_id", destinationID.String()),
		zap.Int("bottles", len(movements)-1),
		zap.String("actor_id", actor.ID.String()),
	)
	return movements, nil
}

func (s *movementService) consumeBottle(ctx context.Context, actor models.Actor, bottleID uuid.UUID, reason models.ConsumptionReason, notes *string) (*models.InventoryMovement, error) {
	var movement *models.InventoryMovement
	err := runUnit(ctx, s.locker, s.store, locking.BottleKey(bottleID), func(tx repositories.Store) error {
		bottle, err := tx.Bottles().GetForUpdate(ctx, bottleID)
		if err != nil {
			return err
		}
		check, err := s.commitment.Evaluate(ctx, tx, bottle, true)
		if err != nil {
			return err
		}
		if !check.CanConsume {
			return check.Err
		}

		source := bottle.CurrentLocationID
		if err := applyStateChange(ctx, tx, bottle, models.BottleConsumed, source); err != nil {
			return err
		}
		movement = newMovement(models.MovementConsumption, models.EntityBottle, bottle.ID, &source, nil, actor, nil)
		movement.ConsumptionReason = &reason
		movement.Notes = notes
		return tx.Movements().Append(ctx, movement)
	})
	if err != nil {
		return nil, common.NewUnitError(string(models.EntityBottle), bottleID, err)
	}

	s.logger.Info("bottle consumed",
		zap.String("bottle_id", bottleID.String()),
		zap.String("reason", string(reason)),
		zap.String("actor_id", actor.ID.String()),
	)
	return movement, nil
}

func (s *movementService) breakCase(ctx context.Context, actor models.Actor, caseID uuid.UUID, reason *string) (*models.InventoryMovement, error) {
	var movement *models.InventoryMovement
	err := runUnit(ctx, s.locker, s.store, locking.CaseKey(caseID), func(tx repositories.Store) error {
		c, err := tx.Cases().GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsIntact() {
			return common.InvalidTransitionf("case %s is already broken", c.ID)
		}
		if err := tx.Cases().MarkBroken(ctx, c.ID, time.Now().UTC(), c.Version); err != nil {
			return err
		}
		location := c.CurrentLocationID
		movement = newMovement(models.MovementCaseBreak, models.EntityCase, c.ID, &location, nil, actor, reason)
		return tx.Movements().Append(ctx, movement)
	})
	if err != nil {
		return nil, common.NewUnitError(string(models.EntityCase), caseID, err)
	}

	s.logger.Info("case broken",
		zap.String("case_id", caseID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return movement, nil
}

// runUnit holds the unit lock for the whole transaction.
func runUnit(ctx context.Context, locker locking.UnitLocker, store repositories.Store, key string, fn func(repositories.Store) error) error {
	release, err := locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return store.WithTx(ctx, fn)
}

func checkNotInIntactCase(ctx context.Context, tx repositories.Store, bottle *models.SerializedBottle) error {
	if bottle.CaseID == nil {
		return nil
	}
	c, err := tx.Cases().GetByID(ctx, *bottle.CaseID)
	if err != nil {
		return err
	}
	if c.IsIntact() {
		return common.Invalidf("bottle %s is sealed in intact case %s; move the case or break it first", bottle.SerialNumber, c.ID)
	}
	return nil
}

func checkDestination(destination *models.Location, currentLocationID uuid.UUID, movementType models.MovementType) error {
	if !destination.IsActive() {
		return common.Invalidf("destination %s is inactive", destination.Name)
	}
	if destination.ID == currentLocationID {
		return common.Invalidf("unit is already at %s", destination.Name)
	}
	switch movementType {
	case models.MovementTransfer:
		if destination.Type == models.LocationConsignee {
			return common.Invalidf("%s is a consignee; use consignment placement", destination.Name)
		}
	case models.MovementConsignmentPlacement:
		if destination.Type != models.LocationConsignee {
			return common.Invalidf("%s is not a consignee location", destination.Name)
		}
	}
	return nil
}

func validateBatch(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return common.Invalidf("at least one unit is required")
	}
	if len(ids) > maxBatchSize {
		return common.Invalidf("batches are limited to %d units", maxBatchSize)
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return common.Invalidf("unit %s appears twice in the batch", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func newMovement(movementType models.MovementType, entityType models.EntityType, entityID uuid.UUID, source, destination *uuid.UUID, actor models.Actor, reason *string) *models.InventoryMovement {
	m := &models.InventoryMovement{
		ID:         uuid.New(),
		Type:       movementType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor.ID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if source != nil {
		m.SourceLocationID = uuidPtr(*source)
	}
	if destination != nil {
		m.DestinationLocationID = uuidPtr(*destination)
	}
	return m
}

func single(m *models.InventoryMovement, err error) ([]models.InventoryMovement, error) {
	if err != nil {
		return nil, err
	}
	return []models.InventoryMovement{*m}, nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
