// Package memory provides an in-process repositories.Store for development
// and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"cellarledger/internal/models"
	"cellarledger/internal/repositories"

	"github.com/google/uuid"
)

type voucher struct {
	allocationID uuid.UUID
	status       models.VoucherStatus
}

type state struct {
	locations   map[uuid.UUID]models.Location
	bottles     map[uuid.UUID]models.SerializedBottle
	serials     map[string]uuid.UUID
	cases       map[uuid.UUID]models.InventoryCase
	movements   []models.InventoryMovement
	exceptions  []models.InventoryException
	allocations map[uuid.UUID]struct{}
	vouchers    map[uuid.UUID]voucher
}

func newState() state {
	return state{
		locations:   make(map[uuid.UUID]models.Location),
		bottles:     make(map[uuid.UUID]models.SerializedBottle),
		serials:     make(map[string]uuid.UUID),
		cases:       make(map[uuid.UUID]models.InventoryCase),
		allocations: make(map[uuid.UUID]struct{}),
		vouchers:    make(map[uuid.UUID]voucher),
	}
}

// clone copies every table. Rows are stored by value so a shallow map copy
// is enough.
func (s state) clone() state {
	return state{
		locations:   maps.Clone(s.locations),
		bottles:     maps.Clone(s.bottles),
		serials:     maps.Clone(s.serials),
		cases:       maps.Clone(s.cases),
		movements:   append([]models.InventoryMovement(nil), s.movements...),
		exceptions:  append([]models.InventoryException(nil), s.exceptions...),
		allocations: maps.Clone(s.allocations),
		vouchers:    maps.Clone(s.vouchers),
	}
}

// Store keeps all tables behind one mutex. WithTx holds the mutex for the
// whole unit of work, which serializes transactions the way row locks do.
type Store struct {
	mu   sync.Mutex
	data state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) Locations() repositories.LocationRepository {
	return &locationRepo{&view{store: s}}
}

func (s *Store) Bottles() repositories.BottleRepository {
	return &bottleRepo{&view{store: s}}
}

func (s *Store) Cases() repositories.CaseRepository {
	return &caseRepo{&view{store: s}}
}

func (s *Store) Movements() repositories.MovementRepository {
	return &movementRepo{&view{store: s}}
}

func (s *Store) Exceptions() repositories.ExceptionRepository {
	return &exceptionRepo{&view{store: s}}
}

func (s *Store) Allocations() repositories.AllocationRepository {
	return &allocationRepo{&view{store: s}}
}

// WithTx runs fn with exclusive access and restores the snapshot taken
// before fn when it fails.
func (s *Store) WithTx(ctx context.Context, fn func(repositories.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&txStore{view: &view{store: s, inTx: true}}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// AddAllocation registers an allocation with n issued vouchers.
func (s *Store) AddAllocation(id uuid.UUID, issued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.allocations[id] = struct{}{}
	for i := 0; i < issued; i++ {
		s.data.vouchers[uuid.New()] = voucher{allocationID: id, status: models.VoucherIssued}
	}
}

// SetIssuedVouchers redeems or issues vouchers until exactly n are issued.
func (s *Store) SetIssuedVouchers(id uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.allocations[id] = struct{}{}
	issued := 0
	for vid, v := range s.data.vouchers {
		if v.allocationID != id || v.status != models.VoucherIssued {
			continue
		}
		if issued < n {
			issued++
			continue
		}
		v.status = models.VoucherRedeemed
		s.data.vouchers[vid] = v
	}
	for ; issued < n; issued++ {
		s.data.vouchers[uuid.New()] = voucher{allocationID: id, status: models.VoucherIssued}
	}
}

type txStore struct {
	view *view
}

func (t *txStore) Locations() repositories.LocationRepository {
	return &locationRepo{t.view}
}

func (t *txStore) Bottles() repositories.BottleRepository {
	return &bottleRepo{t.view}
}

func (t *txStore) Cases() repositories.CaseRepository {
	return &caseRepo{t.view}
}

func (t *txStore) Movements() repositories.MovementRepository {
	return &movementRepo{t.view}
}

func (t *txStore) Exceptions() repositories.ExceptionRepository {
	return &exceptionRepo{t.view}
}

func (t *txStore) Allocations() repositories.AllocationRepository {
	return &allocationRepo{t.view}
}

func (t *txStore) WithTx(ctx context.Context, fn func(repositories.Store) error) error {
	return fn(t)
}

// view gives the repositories access to the shared state. Inside a
// transaction the store mutex is already held.
type view struct {
	store *Store
	inTx  bool
}

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.store.mu.Lock()
	return v.store.mu.Unlock
}

func (v *view) data() *state {
	return &v.store.data
}
