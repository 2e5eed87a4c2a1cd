package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// Location is the coarse position resolved for an address.
type Location struct {
	CountryCode    string
	Country        string
	City           string
	Region         string
	Latitude       float64
	Longitude      float64
	HasCoordinates bool
}

var (
	geoDB  *geoip2.Reader
	dbPath string
	once   sync.Once
	mu     sync.RWMutex
	logger = slog.Default()
)

// Configure sets the database path and logger. Must be called before the
// first lookup for the path to take effect.
func Configure(path string, l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	dbPath = path
	if l != nil {
		logger = l
	}
}

// openGeoDB opens the GeoLite2 City database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func openGeoDB(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", path),
		slog.Int64("size_bytes", fileInfo.Size()),
		slog.String("db_type", "GeoLite2-City"))
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = openGeoDB(dbPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
// Call this after downloading a new database file.
func ReloadGeoDB() {
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = openGeoDB(dbPath)

	if geoDB != nil {
		logger.Info("GeoLite2 database reloaded successfully")
	}
}

// Locator resolves addresses through the shared GeoLite2 reader.
type Locator struct{}

// Lookup returns the location for ip. The boolean is false when no database
// is loaded or the address is unknown to it.
func (Locator) Lookup(ip net.IP) (Location, bool) {
	if ip == nil || GetGeoDB() == nil {
		return Location{}, false
	}

	mu.RLock()
	if geoDB == nil {
		mu.RUnlock()
		return Location{}, false
	}
	record, err := geoDB.City(ip)
	mu.RUnlock()
	if err != nil {
		logger.Debug("GeoIP lookup failed", slog.String("ip", ip.String()), slog.Any("error", err))
		return Location{}, false
	}

	loc := Location{
		CountryCode: record.Country.IsoCode,
		Country:     record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		loc.Latitude = record.Location.Latitude
		loc.Longitude = record.Location.Longitude
		loc.HasCoordinates = true
	}

	if loc.CountryCode == "" && loc.City == "" && !loc.HasCoordinates {
		return Location{}, false
	}
	return loc, true
}
