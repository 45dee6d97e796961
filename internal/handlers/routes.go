package handlers

import (
	"cellarledger/internal/middleware"
	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Ledger     services.LedgerService
	Commitment services.CommitmentService
	Movements  services.MovementService
	Overrides  services.OverrideService
	Audit      services.AuditService
	Locations  services.LocationService

	// Jobs is nil when the scheduler is disabled, Archive when object
	// storage is.
	Jobs    JobRunner
	Archive ArchiveBackfiller
}

// RegisterRoutes mounts the public probes, the swagger UI and the
// authenticated /v1 API.
func RegisterRoutes(e *echo.Echo, svc Services, auth echo.MiddlewareFunc, rbac *middleware.RBACMiddleware, health *HealthHandlers) {
	e.GET("/health", health.HealthCheck)
	e.GET("/health/ready", health.ReadinessCheck)
	e.GET("/health/live", health.LivenessCheck)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	ledger := NewLedgerHandlers(svc.Ledger, svc.Audit)
	movements := NewMovementHandlers(svc.Movements)
	overrides := NewOverrideHandlers(svc.Overrides)
	audit := NewAuditHandlers(svc.Audit)
	locations := NewLocationHandlers(svc.Locations)
	commitment := NewCommitmentHandlers(svc.Commitment)

	v1 := e.Group("/v1", auth, middleware.VersionHeader("v1"))
	read := rbac.RequirePermission(models.PermInventoryRead)

	v1.GET("/meta/bottle-states", ListBottleStates)

	// Bottles
	v1.GET("/bottles/:id", ledger.GetBottle, read)
	v1.GET("/bottles/serial/:serial", ledger.FindBottleBySerial, read)
	v1.GET("/bottles/:id/consumability", commitment.GetBottleConsumability, read)
	v1.GET("/bottles/:id/history", ledger.GetBottleHistory, rbac.RequirePermission(models.PermAuditRead))
	v1.POST("/bottles/intake", ledger.IntakeBottles, rbac.RequirePermission(models.PermInventorySerialize))
	v1.POST("/bottles/:id/transfer", movements.TransferBottle, rbac.RequirePermission(models.PermTransfer))
	v1.POST("/bottles/:id/consign", movements.ConsignBottle, rbac.RequirePermission(models.PermConsign))
	v1.POST("/bottles/:id/consume", movements.ConsumeBottle, rbac.RequirePermission(models.PermConsume))
	v1.POST("/bottles/batch/transfer", movements.BatchTransferBottles, rbac.RequirePermission(models.PermTransfer))
	v1.POST("/bottles/batch/consign", movements.BatchConsignBottles, rbac.RequirePermission(models.PermConsign))
	v1.POST("/bottles/batch/consume", movements.BatchConsumeBottles, rbac.RequirePermission(models.PermConsume))

	// Cases
	v1.POST("/cases", ledger.PackCase, rbac.RequirePermission(models.PermInventorySerialize))
	v1.GET("/cases/:id", ledger.GetCase, read)
	v1.GET("/cases/:id/bottles", ledger.GetCaseBottles, read)
	v1.GET("/cases/:id/history", ledger.GetCaseHistory, rbac.RequirePermission(models.PermAuditRead))
	v1.POST("/cases/:id/transfer", movements.TransferCase, rbac.RequirePermission(models.PermTransfer))
	v1.POST("/cases/:id/consign", movements.ConsignCase, rbac.RequirePermission(models.PermConsign))
	v1.POST("/cases/:id/break", movements.BreakCase, rbac.RequirePermission(models.PermBreakCase))
	v1.POST("/cases/batch/transfer", movements.BatchTransferCases, rbac.RequirePermission(models.PermTransfer))
	v1.POST("/cases/batch/consign", movements.BatchConsignCases, rbac.RequirePermission(models.PermConsign))
	v1.POST("/cases/batch/consume", movements.BatchConsumeCases,
		rbac.RequirePermission(models.PermConsume), rbac.RequirePermission(models.PermBreakCase))

	v1.POST("/overrides/committed-consumption", overrides.ConsumeCommitted, rbac.RequirePermission(models.PermConsumeCommitted))

	// Commitment
	v1.GET("/allocations/at-risk", commitment.ListAtRiskAllocations, read)
	v1.GET("/allocations/:id/commitment", commitment.GetAllocationCommitment, read)

	// Locations
	v1.GET("/locations", locations.ListLocations, read)
	v1.POST("/locations", locations.CreateLocation, rbac.RequirePermission(models.PermLocationsManage))
	v1.GET("/locations/:id", locations.GetLocation, read)
	v1.PATCH("/locations/:id/status", locations.UpdateLocationStatus, rbac.RequirePermission(models.PermLocationsManage))
	v1.GET("/locations/:id/bottles", ledger.ListBottlesAtLocation, read)
	v1.GET("/locations/:id/commitments", commitment.ListLocationCommitments, read)

	// Audit
	auditRead := rbac.RequirePermission(models.PermAuditRead)
	v1.GET("/movements", audit.ListMovements, auditRead)
	v1.GET("/movements/:id", audit.GetMovement, auditRead)
	v1.GET("/exceptions", audit.ListExceptions, auditRead)
	v1.GET("/exceptions/:id", audit.GetException, auditRead)
	v1.POST("/exceptions/:id/resolve", audit.ResolveException, rbac.RequirePermission(models.PermExceptionsResolve))

	// Jobs
	if svc.Jobs != nil {
		jobHandlers := NewJobHandlers(svc.Jobs, svc.Archive)
		manage := rbac.RequirePermission(models.PermJobsManage)
		v1.GET("/jobs", jobHandlers.GetJobStatus, manage)
		v1.POST("/jobs/:name/run", jobHandlers.RunJob, manage)
		if svc.Archive != nil {
			v1.POST("/jobs/movement-archive/backfill", jobHandlers.BackfillArchive, manage)
		}
	}
}
