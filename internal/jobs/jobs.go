// Package jobs runs the periodic maintenance work of the server: visit
// retention cleanup and GeoLite database updates.
package jobs

import (
	"log/slog"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
)

// Jobs is an alias for Scheduler
type Jobs = Scheduler

// NewJobs creates the job scheduler used by the application
func NewJobs(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) (*Jobs, error) {
	return NewScheduler(dbManager, logger, cfg), nil
}
