package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"linkpage/internal/config"
	"linkpage/internal/pkg/geoip"
)

const (
	// GeoLite database is updated weekly by MaxMind
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// MaxMindDownloadURL serves the latest GeoLite2 City archive to authenticated accounts
	MaxMindDownloadURL = "https://download.maxmind.com/geoip/databases/GeoLite2-City/download?suffix=tar.gz"

	geoLiteDownloadTimeout = 5 * time.Minute
)

// GeoLiteUpdaterJob keeps the GeoLite2 City database current
type GeoLiteUpdaterJob struct {
	logger      *slog.Logger
	cfg         *config.Config
	client      *http.Client
	downloadURL string
	now         func() time.Time
}

// NewGeoLiteUpdaterJob creates a new GeoLite updater job
func NewGeoLiteUpdaterJob(logger *slog.Logger, cfg *config.Config) *GeoLiteUpdaterJob {
	return &GeoLiteUpdaterJob{
		logger:      logger,
		cfg:         cfg,
		client:      &http.Client{Timeout: geoLiteDownloadTimeout},
		downloadURL: MaxMindDownloadURL,
		now:         time.Now,
	}
}

// Run downloads a new database when credentials are configured and the
// file on disk is older than GeoLiteUpdateInterval.
func (j *GeoLiteUpdaterJob) Run() error {
	if !j.cfg.GeoLiteConfigured() {
		j.logger.Debug("GeoLite credentials not configured, skipping update")
		return nil
	}

	lastUpdate := j.lastUpdateTime()
	if age := j.now().Sub(lastUpdate); age < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", lastUpdate),
			slog.Duration("age", age))
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.Time("last_update", lastUpdate))

	if err := j.downloadAndUpdate(context.Background()); err != nil {
		j.logger.Error("Failed to update GeoLite database", slog.Any("error", err))
		return err
	}

	geoip.ReloadGeoDB()

	j.logger.Info("GeoLite database updated successfully", slog.String("path", j.dbPath()))
	return nil
}

func (j *GeoLiteUpdaterJob) dbPath() string {
	if j.cfg.GeoDBPath == "" {
		return filepath.Join("storage", "GeoLite2-City.mmdb")
	}
	return j.cfg.GeoDBPath
}

// lastUpdateTime is the modification time of the database file, zero when
// it does not exist.
func (j *GeoLiteUpdaterJob) lastUpdateTime() time.Time {
	info, err := os.Stat(j.dbPath())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// downloadAndUpdate downloads the archive and atomically replaces the database file
func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	destPath := j.dbPath()

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	req.SetBasicAuth(j.cfg.GeoLiteAccountID, j.cfg.GeoLiteLicenseKey)

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp(dir, "geolite-*.mmdb.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if err := extractMMDB(resp.Body, tempFile); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to extract database: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}

	if err := os.Rename(tempFile.Name(), destPath); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

var errNoMMDB = errors.New("no .mmdb file found in archive")

// extractMMDB copies the first .mmdb entry of a tar.gz stream into dst
func extractMMDB(archive io.Reader, dst io.Writer) error {
	gzr, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return errNoMMDB
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ".mmdb") {
			if _, err := io.Copy(dst, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}
			return nil
		}
	}
}

// GeoLiteStatus describes the GeoLite setup for the status command
type GeoLiteStatus struct {
	Configured bool
	DBExists   bool
	LastUpdate time.Time
	Path       string
}

// GetGeoLiteStatus returns the status of GeoLite configuration
func GetGeoLiteStatus(cfg *config.Config) GeoLiteStatus {
	job := &GeoLiteUpdaterJob{cfg: cfg}
	status := GeoLiteStatus{
		Configured: cfg.GeoLiteConfigured(),
		Path:       job.dbPath(),
	}
	if info, err := os.Stat(status.Path); err == nil {
		status.DBExists = true
		status.LastUpdate = info.ModTime()
	}
	return status
}
