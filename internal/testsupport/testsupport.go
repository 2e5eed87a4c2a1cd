package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkpage/internal/config"
	"linkpage/internal/database"
	"linkpage/internal/pages"
	"linkpage/internal/tracking"
	"linkpage/internal/users"
)

// testDBCache caches test databases by root test name so multiple calls
// within the same test share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// AllModels returns every persisted model in migration order
func AllModels() []any {
	return database.Models()
}

// SetupTestDB creates a test database with all models migrated.
// Uses a named in-memory database with cache=shared so multiple connections
// see the same data within a test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// TestConfig returns a configuration suitable for tests.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:                 "linkpage",
		AppPort:                 "0",
		Environment:             config.Test,
		LogLevel:                config.LogLevelError,
		PrivateKey:              "test-private-key-0123456789abcdef",
		TokenTTLSeconds:         3600,
		CORSOrigins:             "*",
		TrackRateLimitPerMinute: 70,
	}
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CleanTables clears specific tables
func CleanTables(db *gorm.DB, tables ...string) {
	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	for _, table := range tables {
		db.Exec("DELETE FROM " + table)
	}
}

// CreateTestUser creates a test user with a hashed password, or returns the
// existing one for email.
func CreateTestUser(db *gorm.DB, email, password string) users.User {
	var user users.User
	if db.Where("email = ?", email).First(&user).Error == nil {
		return user
	}

	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user = users.User{
		Email:             email,
		EncryptedPassword: string(hashed),
	}
	db.Create(&user)
	return user
}

// CreateTestPage creates a published page owned by userID.
func CreateTestPage(t *testing.T, db *gorm.DB, userID uint, slug string) pages.Page {
	t.Helper()
	page := pages.Page{
		UserID:    userID,
		Title:     "Page " + slug,
		Slug:      slug,
		Published: true,
		Style:     datatypes.JSON("{}"),
	}
	require.NoError(t, db.Create(&page).Error)
	return page
}

// CreateTestComponent creates a component with raw JSON content.
func CreateTestComponent(t *testing.T, db *gorm.DB, pageID uint, componentType pages.ComponentType, content string) pages.Component {
	t.Helper()
	component := pages.Component{
		PageID:  pageID,
		Type:    componentType,
		Content: datatypes.JSON(content),
	}
	require.NoError(t, db.Create(&component).Error)
	return component
}

// VisitFixture describes a visit row for CreateTestVisit. Empty strings and
// zero coordinates are stored as NULL.
type VisitFixture struct {
	PageID    uint
	VisitorID string
	Timestamp time.Time
	Device    string
	Browser   string
	OS        string
	Referer   string
	Country   string
	City      string
	Latitude  float64
	Longitude float64
}

// CreateTestVisit inserts a visit row directly.
func CreateTestVisit(t *testing.T, db *gorm.DB, f VisitFixture) tracking.PageVisit {
	t.Helper()
	ts := f.Timestamp.UTC()
	if f.VisitorID == "" {
		f.VisitorID = fmt.Sprintf("visitor-%d", ts.UnixNano())
	}

	visit := tracking.PageVisit{
		PageID:    f.PageID,
		VisitorID: f.VisitorID,
		Day:       ts.Format(tracking.DayFormat),
		Timestamp: ts,
		Device:    nullable(f.Device),
		Browser:   nullable(f.Browser),
		OS:        nullable(f.OS),
		Referer:   nullable(f.Referer),
		Country:   nullable(f.Country),
		City:      nullable(f.City),
	}
	if f.Latitude != 0 || f.Longitude != 0 {
		lat, lon := f.Latitude, f.Longitude
		visit.Latitude = &lat
		visit.Longitude = &lon
	}
	require.NoError(t, db.Create(&visit).Error)
	return visit
}

// CreateTestEvent appends an event with raw JSON data to a visit.
func CreateTestEvent(t *testing.T, db *gorm.DB, visitID uint, eventType tracking.EventType, componentID *uint, data string) tracking.Event {
	t.Helper()
	if data == "" {
		data = "{}"
	}
	event := tracking.Event{
		VisitID:     visitID,
		EventType:   eventType,
		ComponentID: componentID,
		Data:        datatypes.JSON(data),
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
