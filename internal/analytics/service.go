package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"linkpage/internal/metrics"
	"linkpage/internal/pkg/async"
	"linkpage/internal/timeframe"
)

const defaultWorkers = 4

// Report sections, also used as task names and metric labels.
const (
	sectionDaily      = "dailyStats"
	sectionDevices    = "deviceStats"
	sectionLocations  = "locationStats"
	sectionCities     = "cityStats"
	sectionGeo        = "geoData"
	sectionComponents = "componentClicks"
	sectionTimeSpent  = "avgTimeSpent"
	sectionBounce     = "bounceRate"
	sectionTraffic    = "trafficSources"
)

// Service assembles page analytics reports.
type Service struct {
	store  Store
	logger *slog.Logger
	pool   *async.Pool
	clock  timeframe.TimeProvider
}

type Option func(*Service)

// WithTimeProvider overrides the clock that anchors report windows.
func WithTimeProvider(clock timeframe.TimeProvider) Option {
	return func(s *Service) { s.clock = clock }
}

// WithWorkers sets how many optional sections are computed concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) { s.pool = async.NewPool(n) }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		pool:   async.NewPool(defaultWorkers),
		clock:  timeframe.DefaultTimeProvider{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type totals struct {
	visits int64
	clicks int64
}

// PageAnalytics returns the report of pageID for period as seen by userID.
// It fails with ErrPageNotFound, ErrForbidden, or a wrapped store error when
// one of the primary counts cannot be computed. Every other section degrades
// to its empty value on failure.
func (s *Service) PageAnalytics(ctx context.Context, pageID, userID uint, period timeframe.Period) (*Report, error) {
	start := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(start).Seconds())
	}()

	tf := timeframe.New(period, s.clock.Now())

	t, err := s.requiredQueries(ctx, pageID, userID, tf)
	if err != nil {
		return nil, err
	}

	if t.visits == 0 && t.clicks == 0 {
		return EmptyReport(), nil
	}

	report := s.optionalQueries(ctx, pageID, tf, t)
	report.Summary.TotalVisits = t.visits
	report.Summary.TotalClicks = t.clicks
	return report, nil
}

// requiredQueries covers authorization and the primary counts. Any failure
// here aborts the report.
func (s *Service) requiredQueries(ctx context.Context, pageID, userID uint, tf timeframe.TimeFrame) (totals, error) {
	page, err := s.store.FindPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return totals{}, ErrPageNotFound
		}
		return totals{}, fmt.Errorf("failed to load page %d: %w", pageID, err)
	}
	if !page.OwnedBy(userID) {
		return totals{}, ErrForbidden
	}

	visits, err := s.store.CountVisits(ctx, pageID, tf)
	if err != nil {
		return totals{}, fmt.Errorf("failed to count visits: %w", err)
	}
	clicks, err := s.store.CountClicks(ctx, pageID, tf)
	if err != nil {
		return totals{}, fmt.Errorf("failed to count clicks: %w", err)
	}
	return totals{visits: visits, clicks: clicks}, nil
}

// optionalQueries computes the breakdown sections on the worker pool.
func (s *Service) optionalQueries(ctx context.Context, pageID uint, tf timeframe.TimeFrame, t totals) *Report {
	tasks := []async.Task{
		{
			Name: sectionDaily,
			Execute: func(ctx context.Context) (any, error) {
				visits, err := s.store.CountVisitsByDay(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				clicks, err := s.store.CountClicksByDay(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return MergeDailyStats(visits, clicks), nil
			},
		},
		{
			Name: sectionDevices,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.DeviceCounts(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return GroupDevices(rows), nil
			},
		},
		{
			Name: sectionLocations,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.CountryCounts(ctx, pageID, tf)
				return orEmpty(rows), err
			},
		},
		{
			Name: sectionCities,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.CityCounts(ctx, pageID, tf, CityStatsLimit)
				return orEmpty(rows), err
			},
		},
		{
			Name: sectionGeo,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.GeoPoints(ctx, pageID, tf)
				return orEmpty(rows), err
			},
		},
		{
			Name: sectionComponents,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.ClickRows(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return AttributeClicks(s.logger, rows), nil
			},
		},
		{
			Name: sectionTimeSpent,
			Execute: func(ctx context.Context) (any, error) {
				payloads, err := s.store.ExitEventData(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return AverageTimeSpent(s.logger, payloads), nil
			},
		},
		{
			Name: sectionBounce,
			Execute: func(ctx context.Context) (any, error) {
				bounced, err := s.store.CountBouncedVisits(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return BounceRate(bounced, t.visits), nil
			},
		},
		{
			Name: sectionTraffic,
			Execute: func(ctx context.Context) (any, error) {
				rows, err := s.store.RefererCounts(ctx, pageID, tf)
				if err != nil {
					return nil, err
				}
				return ClassifyTraffic(s.logger, rows), nil
			},
		},
	}

	results := s.pool.Execute(ctx, tasks)

	return &Report{
		DailyStats:      section(s, results, pageID, sectionDaily, []DailyStat{}),
		DeviceStats:     section(s, results, pageID, sectionDevices, []DeviceStat{}),
		LocationStats:   section(s, results, pageID, sectionLocations, []LocationStat{}),
		CityStats:       section(s, results, pageID, sectionCities, []CityStat{}),
		GeoData:         section(s, results, pageID, sectionGeo, []GeoPoint{}),
		ComponentClicks: section(s, results, pageID, sectionComponents, []ComponentClick{}),
		TrafficSources:  section(s, results, pageID, sectionTraffic, []TrafficSource{}),
		Summary: Summary{
			AvgTimeSpent: section(s, results, pageID, sectionTimeSpent, 0.0),
			BounceRate:   section(s, results, pageID, sectionBounce, 0.0),
		},
	}
}

// section extracts a task result, falling back to empty unless the task
// completed successfully.
func section[T any](s *Service, results map[string]async.Result, pageID uint, name string, empty T) T {
	result, ok := results[name]
	if !ok {
		s.degrade(pageID, name, errors.New("section did not complete"))
		return empty
	}
	if result.Err != nil {
		s.degrade(pageID, name, result.Err)
		return empty
	}
	value, ok := result.Data.(T)
	if !ok {
		s.degrade(pageID, name, fmt.Errorf("unexpected result type %T", result.Data))
		return empty
	}
	return value
}

func (s *Service) degrade(pageID uint, name string, err error) {
	metrics.DegradedSections.WithLabelValues(name).Inc()
	s.logger.Warn("Report section degraded",
		slog.String("section", name),
		slog.Uint64("page_id", uint64(pageID)),
		slog.Any("error", err))
}

func orEmpty[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

// GroupDevices buckets visits without a device under UnknownDevice and
// orders devices by count, then name.
func GroupDevices(rows []DeviceCount) []DeviceStat {
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		device := UnknownDevice
		if row.Device != nil && *row.Device != "" {
			device = *row.Device
		}
		counts[device] += row.Count
	}

	stats := make([]DeviceStat, 0, len(counts))
	for device, count := range counts {
		stats = append(stats, DeviceStat{Device: device, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Device < stats[j].Device
	})
	return stats
}
