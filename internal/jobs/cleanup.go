package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/config"
	"linkpage/internal/tracking"
)

const cleanupBatchSize = 1000

// CleanupJob deletes visits, and their events, older than the retention period
type CleanupJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	now       func() time.Time
}

func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run removes visits older than the retention period. A retention of 0 keeps
// everything so that all-time reports stay complete.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.VisitRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Visit retention disabled, skipping cleanup")
		return nil
	}

	db := j.dbManager.GetConnection()
	cutoffDate := j.now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old visits",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	totalDeleted := int64(0)
	for {
		var ids []uint
		if err := db.Model(&tracking.PageVisit{}).
			Where("timestamp < ?", cutoffDate).
			Order("id").
			Limit(cleanupBatchSize).
			Pluck("id", &ids).Error; err != nil {
			j.logger.Error("Failed to select old visits", slog.Any("error", err))
			return err
		}
		if len(ids) == 0 {
			break
		}

		err := sqlite.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			if err := tx.Where("visit_id IN ?", ids).Delete(&tracking.Event{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", ids).Delete(&tracking.PageVisit{}).Error
		})
		if err != nil {
			j.logger.Error("Failed to delete old visits",
				slog.Any("error", err),
				slog.Int64("deleted_so_far", totalDeleted))
			return err
		}

		totalDeleted += int64(len(ids))
		if len(ids) < cleanupBatchSize {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	if totalDeleted == 0 {
		j.logger.Debug("No old visits to clean up")
		return nil
	}

	j.logger.Info("Cleaned up old visits",
		slog.Int64("deleted_count", totalDeleted),
		slog.Int("retention_days", retentionDays))
	return nil
}
