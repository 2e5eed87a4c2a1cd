// Package internal wires the linkpage server together
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
	"linkpage/internal/database"
	"linkpage/internal/jobs"
	"linkpage/internal/metrics"
	"linkpage/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the linkpage database manager
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Jobs      *jobs.Jobs
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return NewAppWithRoutes(cfg, MountRoutesWithConfig(cfg))
}

// NewAppWithRoutes creates a new application with a custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	geoip.Configure(cfg.GeoDBPath, logger)
	metrics.Register()

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	jobsManager, err := jobs.NewJobs(dbManager, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{jobsManager},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Jobs:        jobsManager,
	}, nil
}
