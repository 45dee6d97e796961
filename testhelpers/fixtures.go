package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cellarledger/internal/models"
	"cellarledger/internal/repositories/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var serialSeq atomic.Int64

// Fixture seeds an in-memory store for service and handler tests.
type Fixture struct {
	t           *testing.T
	Store       *memory.Store
	Permissions *memory.Permissions
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{
		t:           t,
		Store:       memory.NewStore(),
		Permissions: memory.NewPermissions(),
	}
}

// Actor returns a new actor holding the given permissions.
func (f *Fixture) Actor(name string, permissions ...string) models.Actor {
	f.t.Helper()
	actor := models.Actor{ID: uuid.New(), Name: name}
	if len(permissions) == 0 {
		return actor
	}
	roleID, err := f.Permissions.EnsureRole(context.Background(), "role-"+actor.ID.String(), permissions)
	require.NoError(f.t, err)
	require.NoError(f.t, f.Permissions.AssignRole(context.Background(), actor.ID, roleID))
	return actor
}

func (f *Fixture) Location(name string, locationType models.LocationType) *models.Location {
	f.t.Helper()
	now := time.Now().UTC()
	location := &models.Location{
		ID:                      uuid.New(),
		Name:                    name,
		Type:                    locationType,
		Status:                  models.LocationActive,
		SerializationAuthorized: true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	require.NoError(f.t, f.Store.Locations().Create(context.Background(), location))
	return location
}

func (f *Fixture) InactiveLocation(name string, locationType models.LocationType) *models.Location {
	f.t.Helper()
	location := f.Location(name, locationType)
	require.NoError(f.t, f.Store.Locations().UpdateStatus(context.Background(), location.ID, models.LocationInactive))
	location.Status = models.LocationInactive
	return location
}

// Allocation registers an allocation with issued vouchers.
func (f *Fixture) Allocation(issuedVouchers int) uuid.UUID {
	id := uuid.New()
	f.Store.AddAllocation(id, issuedVouchers)
	return id
}

type BottleOption func(*models.SerializedBottle)

func WithAllocation(id uuid.UUID) BottleOption {
	return func(b *models.SerializedBottle) { b.AllocationID = &id }
}

func WithOwnership(o models.OwnershipType) BottleOption {
	return func(b *models.SerializedBottle) { b.OwnershipType = o }
}

func WithState(s models.BottleState) BottleOption {
	return func(b *models.SerializedBottle) { b.State = s }
}

func InCase(id uuid.UUID) BottleOption {
	return func(b *models.SerializedBottle) { b.CaseID = &id }
}

// Bottle seeds a stored, crurated owned bottle at location.
func (f *Fixture) Bottle(location *models.Location, opts ...BottleOption) *models.SerializedBottle {
	f.t.Helper()
	now := time.Now().UTC()
	bottle := &models.SerializedBottle{
		ID:                uuid.New(),
		SerialNumber:      fmt.Sprintf("CRU-%06d", serialSeq.Add(1)),
		State:             models.BottleStored,
		CurrentLocationID: location.ID,
		OwnershipType:     models.OwnershipCruratedOwned,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, opt := range opts {
		opt(bottle)
	}
	require.NoError(f.t, f.Store.Bottles().Create(context.Background(), bottle))
	return bottle
}

// Case seeds an intact case holding n bottles built with opts.
func (f *Fixture) Case(location *models.Location, n int, opts ...BottleOption) (*models.InventoryCase, []*models.SerializedBottle) {
	f.t.Helper()
	now := time.Now().UTC()
	c := &models.InventoryCase{
		ID:                uuid.New(),
		IntegrityStatus:   models.CaseIntact,
		CurrentLocationID: location.ID,
		CaseConfiguration: max(n, 1),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(f.t, f.Store.Cases().Create(context.Background(), c))

	bottles := make([]*models.SerializedBottle, 0, n)
	for i := 0; i < n; i++ {
		bottles = append(bottles, f.Bottle(location, append([]BottleOption{InCase(c.ID)}, opts...)...))
	}
	return c, bottles
}

// ReloadBottle reads the current row of a bottle.
func (f *Fixture) ReloadBottle(id uuid.UUID) *models.SerializedBottle {
	f.t.Helper()
	bottle, err := f.Store.Bottles().GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return bottle
}

func (f *Fixture) ReloadCase(id uuid.UUID) *models.InventoryCase {
	f.t.Helper()
	c, err := f.Store.Cases().GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return c
}

// Movements returns every movement of one entity, newest first.
func (f *Fixture) Movements(entityType models.EntityType, id uuid.UUID) []*models.InventoryMovement {
	f.t.Helper()
	movements, err := f.Store.Movements().List(context.Background(), &models.MovementFilter{
		EntityType: &entityType,
		EntityID:   &id,
		Limit:      1000,
	})
	require.NoError(f.t, err)
	return movements
}

// AllMovements returns the whole movement log.
func (f *Fixture) AllMovements() []*models.InventoryMovement {
	f.t.Helper()
	movements, err := f.Store.Movements().List(context.Background(), &models.MovementFilter{Limit: 1000})
	require.NoError(f.t, err)
	return movements
}

func (f *Fixture) Exceptions() []*models.InventoryException {
	f.t.Helper()
	exceptions, err := f.Store.Exceptions().List(context.Background(), &models.ExceptionFilter{Limit: 1000})
	require.NoError(f.t, err)
	return exceptions
}
