package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIntakeBatch = 500

// LedgerService is the read side of bottles, cases and locations plus
// intake. State changes on existing bottles go through MovementService or
// OverrideService.
type LedgerService interface {
	FindBottle(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error)
	FindBottleBySerial(ctx context.Context, serial string) (*models.SerializedBottle, error)
	FindCase(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error)
	FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	BottlesAtLocation(ctx context.Context, locationID uuid.UUID, filter *models.BottleFilter) ([]*models.SerializedBottle, error)
	CaseBottles(ctx context.Context, caseID uuid.UUID) ([]*models.SerializedBottle, error)

	RegisterBottles(ctx context.Context, actor models.Actor, locationID uuid.UUID, bottles []models.NewBottle) ([]*models.SerializedBottle, error)
	RegisterCase(ctx context.Context, actor models.Actor, locationID uuid.UUID, configuration int) (*models.InventoryCase, error)
}

type ledgerService struct {
	store  repositories.Store
	authz  Authorizer
	logger *zap.Logger
}

func NewLedgerService(store repositories.Store, authz Authorizer, logger *zap.Logger) LedgerService {
	return &ledgerService{
		store:  store,
		authz:  authz,
		logger: logger,
	}
}

func (s *ledgerService) FindBottle(ctx context.Context, id uuid.UUID) (*models.SerializedBottle, error) {
	return s.store.Bottles().GetByID(ctx, id)
}

func (s *ledgerService) FindBottleBySerial(ctx context.Context, serial string) (*models.SerializedBottle, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, common.Invalidf("serial number is required")
	}
	return s.store.Bottles().GetBySerial(ctx, serial)
}

func (s *ledgerService) FindCase(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error) {
	return s.store.Cases().GetByID(ctx, id)
}

func (s *ledgerService) FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	return s.store.Locations().GetByID(ctx, id)
}

func (s *ledgerService) BottlesAtLocation(ctx context.Context, locationID uuid.UUID, filter *models.BottleFilter) ([]*models.SerializedBottle, error) {
	if _, err := s.store.Locations().GetByID(ctx, locationID); err != nil {
		return nil, err
	}

	f := models.BottleFilter{}
	if filter != nil {
		f = *filter
	}
	if f.State != nil && !f.State.Valid() {
		return nil, common.Invalidf("unknown bottle state %q", *f.State)
	}
	if f.OwnershipType != nil && !f.OwnershipType.Valid() {
		return nil, common.Invalidf("unknown ownership type %q", *f.OwnershipType)
	}
	limit, offset, err := common.ValidatePaginationParams(f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	f.Limit, f.Offset = limit, offset
	f.LocationID = &locationID

	return s.store.Bottles().List(ctx, &f)
}

func (s *ledgerService) CaseBottles(ctx context.Context, caseID uuid.UUID) ([]*models.SerializedBottle, error) {
	if _, err := s.store.Cases().GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	return s.store.Bottles().ListByCase(ctx, caseID, false)
}

// RegisterBottles serializes a batch of bottles at intake. The whole batch
// is one transaction: a duplicate serial rejects every bottle.
func (s *ledgerService) RegisterBottles(ctx context.Context, actor models.Actor, locationID uuid.UUID, bottles []models.NewBottle) ([]*models.SerializedBottle, error) {
	if err := authorize(ctx, s.authz, actor, models.PermInventorySerialize); err != nil {
		return nil, err
	}
	if len(bottles) == 0 {
		return nil, common.Invalidf("at least one bottle is required")
	}
	if len(bottles) > maxIntakeBatch {
		return nil, common.Invalidf("intake is limited to %d bottles per request", maxIntakeBatch)
	}

	seen := make(map[string]struct{}, len(bottles))
	for i := range bottles {
		nb := &bottles[i]
		nb.SerialNumber = strings.TrimSpace(nb.SerialNumber)
		if err := common.ValidateStruct(nb); err != nil {
			return nil, fmt.Errorf("bottle %d: %w", i, err)
		}
		if !nb.OwnershipType.Valid() {
			return nil, common.Invalidf("bottle %d: unknown ownership type %q", i, nb.OwnershipType)
		}
		if _, dup := seen[nb.SerialNumber]; dup {
			return nil, common.Invalidf("serial %s appears twice in the request", nb.SerialNumber)
		}
		seen[nb.SerialNumber] = struct{}{}
	}

	created := make([]*models.SerializedBottle, 0, len(bottles))
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		location, err := tx.Locations().GetByID(ctx, locationID)
		if err != nil {
			return err
		}
		if !location.IsActive() {
			return common.Invalidf("location %s is inactive", location.Name)
		}
		if !location.SerializationAuthorized {
			return common.Invalidf("location %s is not authorized for serialization", location.Name)
		}

		cases := make(map[uuid.UUID]int)
		for _, nb := range bottles {
			if nb.AllocationID != nil {
				if err := tx.Allocations().LockForUpdate(ctx, *nb.AllocationID); err != nil {
					return err
				}
			}
			if nb.CaseID != nil {
				if err := s.checkCaseCapacity(ctx, tx, *nb.CaseID, locationID, cases); err != nil {
					return err
				}
			}

			now := time.Now().UTC()
			bottle := &models.SerializedBottle{
				ID:                uuid.New(),
				SerialNumber:      nb.SerialNumber,
				State:             models.BottleStored,
				CurrentLocationID: locationID,
				OwnershipType:     nb.OwnershipType,
				AllocationID:      nb.AllocationID,
				CaseID:            nb.CaseID,
				Version:           1,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := tx.Bottles().Create(ctx, bottle); err != nil {
				return err
			}
			created = append(created, bottle)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bottles registered",
		zap.String("location_id", locationID.String()),
		zap.Int("count", len(created)),
		zap.String("actor_id", actor.ID.String()),
	)
	return created, nil
}

// checkCaseCapacity requires an intact case at the intake location with
// room left. filled tracks bottles added earlier in the same request.
func (s *ledgerService) checkCaseCapacity(ctx context.Context, tx repositories.Store, caseID, locationID uuid.UUID, filled map[uuid.UUID]int) error {
	if _, ok := filled[caseID]; !ok {
		c, err := tx.Cases().GetForUpdate(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsIntact() {
			return common.Invalidf("case %s is broken", caseID)
		}
		if c.CurrentLocationID != locationID {
			return common.Invalidf("case %s is not at the intake location", caseID)
		}
		members, err := tx.Bottles().ListByCase(ctx, caseID, true)
		if err != nil {
			return err
		}
		filled[caseID] = c.CaseConfiguration - len(members)
	}
	if filled[caseID] <= 0 {
		return common.Invalidf("case %s is full", caseID)
	}
	filled[caseID]--
	return nil
}

func (s *ledgerService) RegisterCase(ctx context.Context, actor models.Actor, locationID uuid.UUID, configuration int) (*models.InventoryCase, error) {
	if err := authorize(ctx, s.authz, actor, models.PermInventorySerialize); err != nil {
		return nil, err
	}
	if configuration < 1 {
		return nil, common.Invalidf("case configuration must be positive")
	}

	location, err := s.store.Locations().GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !location.IsActive() {
		return nil, common.Invalidf("location %s is inactive", location.Name)
	}

	now := time.Now().UTC()
	c := &models.InventoryCase{
		ID:                uuid.New(),
		IntegrityStatus:   models.CaseIntact,
		CurrentLocationID: locationID,
		CaseConfiguration: configuration,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Cases().Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("case registered",
		zap.String("case_id", c.ID.String()),
		zap.String("location_id", locationID.String()),
		zap.Int("configuration", configuration),
	)
	return c, nil
}

// applyStateChange is the only write path for bottle state. It must run
// inside the caller's transaction on a bottle read with GetForUpdate.
func applyStateChange(ctx context.Context, tx repositories.Store, bottle *models.SerializedBottle, next models.BottleState, locationID uuid.UUID) error {
	if !bottle.State.CanTransitionTo(next) {
		return common.InvalidTransitionf("bottle %s cannot go from %s to %s", bottle.SerialNumber, bottle.State, next)
	}
	if err := tx.Bottles().UpdateState(ctx, bottle.ID, next, locationID, bottle.Version); err != nil {
		return err
	}
	bottle.State = next
	bottle.CurrentLocationID = locationID
	bottle.Version++
	bottle.UpdatedAt = time.Now().UTC()
	return nil
}
