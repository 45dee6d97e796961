package services

import (
	"testing"
	"time"

	"cellarledger/internal/caching"
	"cellarledger/internal/config"
	"cellarledger/internal/locking"
	"cellarledger/internal/models"
	"cellarledger/testhelpers"

	"go.uber.org/zap"
)

const testJustification = "Emergency tasting event, no free stock available, approved by ops"

// harness wires every service over one in-memory store.
type harness struct {
	fx         *testhelpers.Fixture
	rbac       RBACService
	cache      caching.CacheService
	locker     locking.UnitLocker
	ledger     LedgerService
	commitment CommitmentService
	movements  MovementService
	overrides  OverrideService
	audit      AuditService
	locations  LocationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, config.Default())
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	logger := zap.NewNop()
	fx := testhelpers.NewFixture(t)

	h := &harness{
		fx:     fx,
		rbac:   NewRBACService(fx.Permissions, logger),
		cache:  caching.NewMemoryCacheService(),
		locker: locking.NewLocalLocker(),
	}
	h.ledger = NewLedgerService(fx.Store, h.rbac, logger)
	h.commitment = NewCommitmentService(fx.Store, cfg.Commitment.AtRiskThreshold)
	h.movements = NewMovementService(fx.Store, h.commitment, h.rbac, h.locker, logger)
	h.overrides = NewOverrideService(fx.Store, h.rbac, h.locker, h.cache, cfg.Override, logger)
	h.audit = NewAuditService(fx.Store, h.rbac, logger)
	h.locations = NewLocationService(fx.Store.Locations(), h.cache, h.rbac, 10*time.Minute, logger)
	return h
}

// operator may run every normal-path command but not the override.
func (h *harness) operator() models.Actor {
	return h.fx.Actor("operator",
		models.PermInventoryRead,
		models.PermInventorySerialize,
		models.PermTransfer,
		models.PermConsign,
		models.PermConsume,
		models.PermBreakCase,
	)
}

func (h *harness) admin() models.Actor {
	return h.fx.Actor("admin", AllPermissions()...)
}

func strPtr(s string) *string {
	return &s
}
