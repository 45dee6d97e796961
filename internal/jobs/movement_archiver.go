package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cellarledger/internal/common"
	"cellarledger/internal/repositories"
	"cellarledger/internal/services"

	"go.uber.org/zap"
)

const archiveContentType = "application/x-ndjson"

// MovementArchiver copies one UTC day of movements into object storage as
// JSON lines. Postgres stays the system of record.
type MovementArchiver struct {
	movementRepo repositories.MovementRepository
	objects      services.MinioService
	logger       *zap.Logger
	now          func() time.Time
}

func NewMovementArchiver(movementRepo repositories.MovementRepository, objects services.MinioService, logger *zap.Logger) *MovementArchiver {
	return &MovementArchiver{
		movementRepo: movementRepo,
		objects:      objects,
		logger:       logger,
		now:          time.Now,
	}
}

// ArchiveObjectName returns movements/YYYY/MM/DD.jsonl for the UTC day.
func ArchiveObjectName(day time.Time) string {
	return day.UTC().Format("movements/2006/01/02.jsonl")
}

// ArchiveDay writes the movements of day and returns the number archived.
// Days without movements write nothing.
func (m *MovementArchiver) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	movements, err := m.movementRepo.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list movements: %w", err)
	}
	if len(movements) == 0 {
		m.logger.Info("no movements to archive", zap.String("day", from.Format(time.DateOnly)))
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, mv := range movements {
		if err := enc.Encode(mv); err != nil {
			return 0, fmt.Errorf("failed to encode movement %s: %w", mv.ID, err)
		}
	}

	objectName := ArchiveObjectName(from)
	if err := m.objects.UploadObject(ctx, objectName, buf.Bytes(), archiveContentType); err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	m.logger.Info("movements archived",
		zap.String("object", objectName),
		zap.Int("count", len(movements)),
	)
	return len(movements), nil
}

// BackfillResult reports a manual archive run.
type BackfillResult struct {
	Day      string `json:"day"`
	Archived int    `json:"archived"`
	Object   string `json:"object,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Backfill archives a past day on demand and links the written object.
// Only completed UTC days can be archived.
func (m *MovementArchiver) Backfill(ctx context.Context, day time.Time, linkExpiry time.Duration) (*BackfillResult, error) {
	day = day.UTC()
	today := m.now().UTC().Truncate(24 * time.Hour)
	if !day.Before(today) {
		return nil, common.Invalidf("day %s has not ended yet", day.Format(time.DateOnly))
	}

	count, err := m.ArchiveDay(ctx, day)
	if err != nil {
		return nil, err
	}
	result := &BackfillResult{Day: day.Format(time.DateOnly), Archived: count}
	if count == 0 {
		return result, nil
	}

	result.Object = ArchiveObjectName(day)
	result.URL, err = m.objects.GetPresignedURL(ctx, result.Object, linkExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", result.Object, err)
	}
	return result, nil
}

// ScheduledArchive archives the previous UTC day.
func (m *MovementArchiver) ScheduledArchive(ctx context.Context) error {
	_, err := m.ArchiveDay(ctx, m.now().UTC().AddDate(0, 0, -1))
	if err != nil {
		m.logger.Error("movement archive failed", zap.Error(err))
	}
	return err
}
