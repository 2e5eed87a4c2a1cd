package database

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"linkpage/internal/config"
	"linkpage/internal/pages"
	"linkpage/internal/tracking"
	"linkpage/internal/users"
)

// DBManager wraps cartridge's sqlite.Manager with the application migrations.
type DBManager struct {
	*sqlite.Manager
	logger *slog.Logger
}

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         cfg.DatabaseName,
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		logger:  logger,
	}
}

// Models returns every persisted model in migration order.
func Models() []any {
	return []any{
		&users.User{},
		&pages.Page{},
		&pages.Component{},
		&tracking.PageVisit{},
		&tracking.Event{},
	}
}

// Init initializes the database connection.
func (dm *DBManager) Init() error {
	_, err := dm.Manager.Connect()
	return err
}

// MigrateDatabase creates or updates the schema.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Models()...)
	})
	if err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// TableCounts returns the number of rows of each application table.
func (dm *DBManager) TableCounts() (map[string]int64, error) {
	db := dm.GetConnection()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}

	counts := make(map[string]int64)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}

		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Schema.Table, err)
		}
		counts[stmt.Schema.Table] = count
	}
	return counts, nil
}
