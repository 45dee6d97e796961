package jobs

import (
	"context"

	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"go.uber.org/zap"
)

// CommitmentAlertService reports allocations whose free stock has fallen
// below the at-risk threshold.
type CommitmentAlertService struct {
	commitment services.CommitmentService
	logger     *zap.Logger
}

func NewCommitmentAlertService(commitment services.CommitmentService, logger *zap.Logger) *CommitmentAlertService {
	return &CommitmentAlertService{
		commitment: commitment,
		logger:     logger,
	}
}

func (a *CommitmentAlertService) CheckAtRisk(ctx context.Context) ([]models.AllocationCommitment, error) {
	atRisk, err := a.commitment.AtRiskAllocations(ctx)
	if err != nil {
		a.logger.Error("failed to compute at-risk allocations", zap.Error(err))
		return nil, err
	}
	return atRisk, nil
}

func (a *CommitmentAlertService) LogAtRiskAlerts(alerts []models.AllocationCommitment) {
	if len(alerts) == 0 {
		a.logger.Debug("no at-risk allocations")
		return
	}
	for _, alert := range alerts {
		a.logger.Warn("allocation at risk",
			zap.String("allocation_id", alert.AllocationID.String()),
			zap.Int("committed", alert.Committed),
			zap.Int("stored_owned", alert.StoredOwned),
			zap.Int("free", alert.Free),
			zap.String("coverage_ratio", alert.CoverageRatio.String()),
		)
	}
}

// ScheduledAtRiskCheck is the scheduler entry point.
func (a *CommitmentAlertService) ScheduledAtRiskCheck(ctx context.Context) error {
	alerts, err := a.CheckAtRisk(ctx)
	if err != nil {
		return err
	}
	a.LogAtRiskAlerts(alerts)
	a.logger.Info("at-risk check completed", zap.Int("at_risk", len(alerts)))
	return nil
}
