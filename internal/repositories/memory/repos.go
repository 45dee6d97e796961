package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/google/uuid"
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

type locationRepo struct{ *view }

func (r *locationRepo) Create(_ context.Context, location *models.Location) error {
	defer r.lock()()
	if _, ok := r.data().locations[location.ID]; ok {
		return common.Invalidf("location %s already exists", location.ID)
	}
	r.data().locations[location.ID] = *location
	return nil
}

func (r *locationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Location, error) {
	defer r.lock()()
	l, ok := r.data().locations[id]
	if !ok {
		return nil, fmt.Errorf("location: %w", common.ErrNotFound)
	}
	return &l, nil
}

func (r *locationRepo) List(_ context.Context, filter *models.LocationFilter) ([]*models.Location, error) {
	defer r.lock()()
	if filter == nil {
		filter = &models.LocationFilter{}
	}
	var out []*models.Location
	for _, l := range r.data().locations {
		if filter.Type != nil && l.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *locationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.LocationStatus) error {
	defer r.lock()()
	l, ok := r.data().locations[id]
	if !ok {
		return fmt.Errorf("location %s: %w", id, common.ErrNotFound)
	}
	l.Status = status
	l.UpdatedAt = time.Now()
	r.data().locations[id] = l
	return nil
}

type bottleRepo struct{ *view }

func (r *bottleRepo) Create(_ context.Context, bottle *models.SerializedBottle) error {
	defer r.lock()()
	if _, ok := r.data().serials[bottle.SerialNumber]; ok {
		return common.Invalidf("bottle %s already exists", bottle.SerialNumber)
	}
	r.data().bottles[bottle.ID] = *bottle
	r.data().serials[bottle.SerialNumber] = bottle.ID
	return nil
}

func (r *bottleRepo) get(id uuid.UUID) (*models.SerializedBottle, error) {
	b, ok := r.data().bottles[id]
	if !ok {
		return nil, fmt.Errorf("bottle: %w", common.ErrNotFound)
	}
	return &b, nil
}

func (r *bottleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.SerializedBottle, error) {
	defer r.lock()()
	return r.get(id)
}

func (r *bottleRepo) GetBySerial(_ context.Context, serial string) (*models.SerializedBottle, error) {
	defer r.lock()()
	id, ok := r.data().serials[serial]
	if !ok {
		return nil, fmt.Errorf("bottle: %w", common.ErrNotFound)
	}
	return r.get(id)
}

func (r *bottleRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*models.SerializedBottle, error) {
	defer r.lock()()
	return r.get(id)
}

func (r *bottleRepo) List(_ context.Context, filter *models.BottleFilter) ([]*models.SerializedBottle, error) {
	defer r.lock()()
	if filter == nil {
		filter = &models.BottleFilter{}
	}
	var out []*models.SerializedBottle
	for _, b := range r.data().bottles {
		switch {
		case filter.LocationID != nil && b.CurrentLocationID != *filter.LocationID,
			filter.State != nil && b.State != *filter.State,
			filter.OwnershipType != nil && b.OwnershipType != *filter.OwnershipType,
			filter.AllocationID != nil && (b.AllocationID == nil || *b.AllocationID != *filter.AllocationID),
			filter.CaseID != nil && (b.CaseID == nil || *b.CaseID != *filter.CaseID):
			continue
		}
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *bottleRepo) ListByCase(_ context.Context, caseID uuid.UUID, _ bool) ([]*models.SerializedBottle, error) {
	defer r.lock()()
	var out []*models.SerializedBottle
	for _, b := range r.data().bottles {
		if b.CaseID != nil && *b.CaseID == caseID {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *bottleRepo) UpdateState(_ context.Context, id uuid.UUID, state models.BottleState, locationID uuid.UUID, expectedVersion int) error {
	defer r.lock()()
	b, ok := r.data().bottles[id]
	if !ok || b.Version != expectedVersion {
		return fmt.Errorf("bottle %s changed concurrently: %w", id, common.ErrStaleState)
	}
	b.State = state
	b.CurrentLocationID = locationID
	b.Version++
	b.UpdatedAt = time.Now()
	r.data().bottles[id] = b
	return nil
}

type caseRepo struct{ *view }

func (r *caseRepo) Create(_ context.Context, c *models.InventoryCase) error {
	defer r.lock()()
	if _, ok := r.data().cases[c.ID]; ok {
		return common.Invalidf("case %s already exists", c.ID)
	}
	r.data().cases[c.ID] = *c
	return nil
}

func (r *caseRepo) GetByID(_ context.Context, id uuid.UUID) (*models.InventoryCase, error) {
	defer r.lock()()
	c, ok := r.data().cases[id]
	if !ok {
		return nil, fmt.Errorf("case: %w", common.ErrNotFound)
	}
	return &c, nil
}

func (r *caseRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InventoryCase, error) {
	return r.GetByID(ctx, id)
}

func (r *caseRepo) UpdateLocation(_ context.Context, id, locationID uuid.UUID, expectedVersion int) error {
	defer r.lock()()
	c, ok := r.data().cases[id]
	if !ok || c.Version != expectedVersion {
		return fmt.Errorf("case %s changed concurrently: %w", id, common.ErrStaleState)
	}
	c.CurrentLocationID = locationID
	c.Version++
	c.UpdatedAt = time.Now()
	r.data().cases[id] = c
	return nil
}

func (r *caseRepo) MarkBroken(_ context.Context, id uuid.UUID, brokenAt time.Time, expectedVersion int) error {
	defer r.lock()()
	c, ok := r.data().cases[id]
	if !ok || c.Version != expectedVersion || !c.IsIntact() {
		return fmt.Errorf("case %s changed concurrently: %w", id, common.ErrStaleState)
	}
	c.IntegrityStatus = models.CaseBroken
	c.BrokenAt = &brokenAt
	c.Version++
	c.UpdatedAt = time.Now()
	r.data().cases[id] = c
	return nil
}

type movementRepo struct{ *view }

func (r *movementRepo) Append(_ context.Context, m *models.InventoryMovement) error {
	defer r.lock()()
	r.data().movements = append(r.data().movements, *m)
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id uuid.UUID) (*models.InventoryMovement, error) {
	defer r.lock()()
	for _, m := range r.data().movements {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("movement: %w", common.ErrNotFound)
}

func matchesLocation(m models.InventoryMovement, id uuid.UUID) bool {
	return (m.SourceLocationID != nil && *m.SourceLocationID == id) ||
		(m.DestinationLocationID != nil && *m.DestinationLocationID == id)
}

func (r *movementRepo) List(_ context.Context, filter *models.MovementFilter) ([]*models.InventoryMovement, error) {
	defer r.lock()()
	if filter == nil {
		filter = &models.MovementFilter{}
	}
	var out []*models.InventoryMovement
	all := r.data().movements
	// newest first; append order breaks ties
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		switch {
		case filter.EntityType != nil && m.EntityType != *filter.EntityType,
			filter.EntityID != nil && m.EntityID != *filter.EntityID,
			filter.Type != nil && m.Type != *filter.Type,
			filter.ActorID != nil && m.ActorID != *filter.ActorID,
			filter.LocationID != nil && !matchesLocation(m, *filter.LocationID),
			!inRange(m.CreatedAt, filter.StartDate, filter.EndDate):
			continue
		}
		out = append(out, &m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *movementRepo) ListBetween(_ context.Context, from, to time.Time) ([]*models.InventoryMovement, error) {
	defer r.lock()()
	var out []*models.InventoryMovement
	for _, m := range r.data().movements {
		if !m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type exceptionRepo struct{ *view }

func (r *exceptionRepo) Create(_ context.Context, e *models.InventoryException) error {
	defer r.lock()()
	r.data().exceptions = append(r.data().exceptions, *e)
	return nil
}

func (r *exceptionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.InventoryException, error) {
	defer r.lock()()
	for _, e := range r.data().exceptions {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("exception: %w", common.ErrNotFound)
}

func (r *exceptionRepo) List(_ context.Context, filter *models.ExceptionFilter) ([]*models.InventoryException, error) {
	defer r.lock()()
	if filter == nil {
		filter = &models.ExceptionFilter{}
	}
	var out []*models.InventoryException
	all := r.data().exceptions
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		switch {
		case filter.ResolutionStatus != nil && e.ResolutionStatus != *filter.ResolutionStatus,
			filter.BottleID != nil && e.BottleID != *filter.BottleID,
			filter.CreatedBy != nil && e.CreatedBy != *filter.CreatedBy,
			!inRange(e.CreatedAt, filter.StartDate, filter.EndDate):
			continue
		}
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *exceptionRepo) Resolve(_ context.Context, id, resolvedBy uuid.UUID, notes *string, resolvedAt time.Time) error {
	defer r.lock()()
	for i, e := range r.data().exceptions {
		if e.ID != id {
			continue
		}
		if e.ResolutionStatus != models.ExceptionUnresolved {
			return fmt.Errorf("exception %s is no longer unresolved: %w", id, common.ErrStaleState)
		}
		e.ResolutionStatus = models.ExceptionResolved
		e.ResolvedBy = &resolvedBy
		e.ResolvedAt = &resolvedAt
		e.ResolutionNotes = notes
		r.data().exceptions[i] = e
		return nil
	}
	return fmt.Errorf("exception %s: %w", id, common.ErrNotFound)
}

type allocationRepo struct{ *view }

func (r *allocationRepo) LockForUpdate(_ context.Context, allocationID uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.data().allocations[allocationID]; !ok {
		return fmt.Errorf("allocation: %w", common.ErrNotFound)
	}
	return nil
}

func (r *allocationRepo) CountIssuedVouchers(_ context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	defer r.lock()()
	counts := make(map[uuid.UUID]int, len(allocationIDs))
	for _, v := range r.data().vouchers {
		if v.status == models.VoucherIssued && slices.Contains(allocationIDs, v.allocationID) {
			counts[v.allocationID]++
		}
	}
	return counts, nil
}

func (r *allocationRepo) CountStoredOwned(_ context.Context, allocationIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	defer r.lock()()
	counts := make(map[uuid.UUID]int, len(allocationIDs))
	for _, b := range r.data().bottles {
		if b.AllocationID == nil || b.State != models.BottleStored || !b.IsCruratedOwned() {
			continue
		}
		if slices.Contains(allocationIDs, *b.AllocationID) {
			counts[*b.AllocationID]++
		}
	}
	return counts, nil
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (r *allocationRepo) DistinctAtLocation(_ context.Context, locationID uuid.UUID) ([]uuid.UUID, error) {
	defer r.lock()()
	set := make(map[uuid.UUID]struct{})
	for _, b := range r.data().bottles {
		if b.CurrentLocationID == locationID && b.State == models.BottleStored && b.AllocationID != nil {
			set[*b.AllocationID] = struct{}{}
		}
	}
	return sortedIDs(set), nil
}

func (r *allocationRepo) ListWithIssuedVouchers(_ context.Context) ([]uuid.UUID, error) {
	defer r.lock()()
	set := make(map[uuid.UUID]struct{})
	for _, v := range r.data().vouchers {
		if v.status == models.VoucherIssued {
			set[v.allocationID] = struct{}{}
		}
	}
	return sortedIDs(set), nil
}
