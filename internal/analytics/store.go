package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linkpage/internal/pages"
	"linkpage/internal/timeframe"
	"linkpage/internal/tracking"
)

// DeviceCount is a raw device group. Device is nil for visits without one.
type DeviceCount struct {
	Device *string
	Count  int64
}

// ClickRow is a click event joined to its component. ComponentType and
// Content are nil when the event has no component or it no longer exists.
type ClickRow struct {
	ComponentID   *uint
	ComponentType *string
	Content       *string
	Data          *string
}

// RefererCount is a raw referer group. Referer is nil for visits without one.
type RefererCount struct {
	Referer *string
	Count   int64
}

// Store is the read model behind the report. Every query is scoped to one
// page and to visits whose timestamp falls inside the time frame.
type Store interface {
	FindPage(ctx context.Context, pageID uint) (*pages.Page, error)

	CountVisits(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error)
	CountClicks(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error)

	CountVisitsByDay(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (map[string]int64, error)
	CountClicksByDay(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (map[string]int64, error)

	DeviceCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]DeviceCount, error)
	CountryCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]LocationStat, error)
	CityCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame, limit int) ([]CityStat, error)
	GeoPoints(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]GeoPoint, error)

	ClickRows(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]ClickRow, error)
	ExitEventData(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]string, error)
	CountBouncedVisits(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error)
	RefererCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]RefererCount, error)
}

// GormStore implements Store with SQL against the SQLite schema.
type GormStore struct {
	dbManager cartridge.DBManager
}

func NewGormStore(dbManager cartridge.DBManager) *GormStore {
	return &GormStore{dbManager: dbManager}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.dbManager.GetConnection().WithContext(ctx)
}

func (s *GormStore) FindPage(ctx context.Context, pageID uint) (*pages.Page, error) {
	page, err := pages.FindByID(s.conn(ctx), pageID)
	if err != nil {
		var notFound *pages.PageNotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return page, nil
}

func (s *GormStore) CountVisits(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error) {
	var count int64
	query := `
    SELECT COUNT(*)
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("error counting visits: %w", err)
	}
	return count, nil
}

func (s *GormStore) CountClicks(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error) {
	var count int64
	query := `
    SELECT COUNT(*)
    FROM events e
    JOIN page_visits v ON v.id = e.visit_id
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND e.event_type = ?`

	err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(), tracking.EventTypeClick).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting clicks: %w", err)
	}
	return count, nil
}

type dayCount struct {
	Day   string
	Count int64
}

func toDayMap(rows []dayCount) map[string]int64 {
	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.Day] += r.Count
	}
	return result
}

func (s *GormStore) CountVisitsByDay(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (map[string]int64, error) {
	var rows []dayCount
	query := `
    SELECT strftime('%Y-%m-%d', v.timestamp) AS day, COUNT(*) AS count
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    GROUP BY day`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching visits by day: %w", err)
	}
	return toDayMap(rows), nil
}

func (s *GormStore) CountClicksByDay(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (map[string]int64, error) {
	var rows []dayCount
	query := `
    SELECT strftime('%Y-%m-%d', v.timestamp) AS day, COUNT(*) AS count
    FROM events e
    JOIN page_visits v ON v.id = e.visit_id
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND e.event_type = ?
    GROUP BY day`

	err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(), tracking.EventTypeClick).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching clicks by day: %w", err)
	}
	return toDayMap(rows), nil
}

func (s *GormStore) DeviceCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]DeviceCount, error) {
	var rows []DeviceCount
	query := `
    SELECT v.device AS device, COUNT(*) AS count
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    GROUP BY v.device`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching device stats: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CountryCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]LocationStat, error) {
	var rows []LocationStat
	query := `
    SELECT v.country AS country, COUNT(*) AS count
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND v.country IS NOT NULL AND v.country <> ''
    GROUP BY v.country
    ORDER BY count DESC, country ASC`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching location stats: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CityCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame, limit int) ([]CityStat, error) {
	var rows []CityStat
	query := `
    SELECT v.city AS city, COALESCE(v.country, '') AS country, COUNT(*) AS count
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND v.city IS NOT NULL AND v.city <> ''
    GROUP BY v.city, v.country
    ORDER BY count DESC, city ASC
    LIMIT ?`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(), limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching city stats: %w", err)
	}
	return rows, nil
}

func (s *GormStore) GeoPoints(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]GeoPoint, error) {
	var rows []GeoPoint
	query := `
    SELECT v.latitude AS latitude, v.longitude AS longitude,
        MAX(v.city) AS city, MAX(v.country) AS country
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND v.latitude IS NOT NULL AND v.longitude IS NOT NULL
    GROUP BY v.latitude, v.longitude`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching geo data: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ClickRows(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]ClickRow, error) {
	var rows []ClickRow
	query := `
    SELECT e.component_id AS component_id, c.type AS component_type,
        c.content AS content, e.data AS data
    FROM events e
    JOIN page_visits v ON v.id = e.visit_id
    LEFT JOIN components c ON c.id = e.component_id AND c.page_id = v.page_id
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND e.event_type = ?`

	err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(), tracking.EventTypeClick).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching component clicks: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ExitEventData(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]string, error) {
	var rows []string
	query := `
    SELECT e.data
    FROM events e
    JOIN page_visits v ON v.id = e.visit_id
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND e.event_type = ?`

	err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(), tracking.EventTypeExit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching exit events: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CountBouncedVisits(ctx context.Context, pageID uint, tf timeframe.TimeFrame) (int64, error) {
	var count int64
	query := `
    SELECT COUNT(*)
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    AND NOT EXISTS (
        SELECT 1 FROM events e
        WHERE e.visit_id = v.id
        AND e.event_type IN (?, ?)
    )`

	err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC(),
		tracking.EventTypeClick, tracking.EventTypeScroll).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting bounced visits: %w", err)
	}
	return count, nil
}

func (s *GormStore) RefererCounts(ctx context.Context, pageID uint, tf timeframe.TimeFrame) ([]RefererCount, error) {
	var rows []RefererCount
	query := `
    SELECT v.referer AS referer, COUNT(*) AS count
    FROM page_visits v
    WHERE v.page_id = ?
    AND v.timestamp BETWEEN ? AND ?
    GROUP BY v.referer`

	if err := s.conn(ctx).Raw(query, pageID, tf.From.UTC(), tf.To.UTC()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching referers: %w", err)
	}
	return rows, nil
}
