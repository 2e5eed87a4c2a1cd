package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkpage/internal/metrics"
	"linkpage/internal/pages"
	"linkpage/internal/pkg/geoip"
	"linkpage/internal/pkg/user_agent"
	"linkpage/internal/visitors"
)

var (
	ErrInvalidPageID    = errors.New("invalid pageId")
	ErrInvalidEventType = errors.New("invalid eventType")
	ErrInvalidData      = errors.New("data must be a JSON object")
	ErrPageNotFound     = errors.New("page not found")
)

const maxVisitorIDLength = 128

// GeoLocator resolves a public address to a coarse location.
type GeoLocator interface {
	Lookup(ip net.IP) (geoip.Location, bool)
}

// Input is a tracking request after transport decoding. Identifiers are kept
// as text so validation happens in one place.
type Input struct {
	PageID      string
	VisitorID   string
	EventType   string
	ComponentID string
	Data        json.RawMessage
	Device      string
	Browser     string
	OS          string
	Referer     string
	ClientIP    string
	UserAgent   string
}

// Result describes what Track stored.
type Result struct {
	VisitID  uint
	EventID  uint
	NewVisit bool
	Ignored  bool
}

// Tracker is the ingestion write path: it resolves the day's visit and
// appends the event to it.
type Tracker struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	geo       GeoLocator
	salt      string
	countries *gountries.Query
	now       func() time.Time
}

type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithGeoLocator sets the locator used for geo enrichment. A nil locator
// disables enrichment.
func WithGeoLocator(geo GeoLocator) Option {
	return func(t *Tracker) { t.geo = geo }
}

// NewTracker builds a Tracker. salt keys the derived visitor ids.
func NewTracker(dbManager cartridge.DBManager, logger *slog.Logger, salt string, opts ...Option) *Tracker {
	t := &Tracker{
		dbManager: dbManager,
		logger:    logger,
		geo:       geoip.Locator{},
		salt:      salt,
		countries: gountries.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track validates in and records it.
func (t *Tracker) Track(ctx context.Context, in Input) (Result, error) {
	pageID, ok := ParseID(in.PageID)
	if !ok {
		return Result{}, ErrInvalidPageID
	}

	eventType, ok := ParseEventType(strings.ToLower(strings.TrimSpace(in.EventType)))
	if !ok {
		return Result{}, ErrInvalidEventType
	}

	data, err := augmentData(in.Data, in.ComponentID)
	if err != nil {
		return Result{}, err
	}

	ua := user_agent.ParseUserAgent(in.UserAgent)
	if ua.Bot {
		metrics.IgnoredEvents.WithLabelValues("bot").Inc()
		t.logger.Debug("Ignoring bot traffic", slog.String("browser", ua.Browser), slog.Uint64("page_id", uint64(pageID)))
		return Result{Ignored: true}, nil
	}

	db := t.dbManager.GetConnection().WithContext(ctx)

	if _, err := pages.FindByID(db, pageID); err != nil {
		var notFound *pages.PageNotFoundError
		if errors.As(err, &notFound) {
			return Result{}, fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
		}
		return Result{}, err
	}

	var componentID *uint
	if id, ok := ParseID(in.ComponentID); ok {
		_, found, err := pages.FindPageComponent(db, pageID, id)
		if err != nil {
			return Result{}, err
		}
		if found {
			componentID = &id
		}
	}

	now := t.now().UTC()
	candidate := t.buildVisit(pageID, in, ua, now)
	event := Event{
		EventType:   eventType,
		ComponentID: componentID,
		Data:        data,
		Timestamp:   now,
	}

	var result Result
	err = sqlite.PerformWrite(t.logger, db, func(tx *gorm.DB) error {
		row := candidate
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page_id"}, {Name: "visitor_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			return err
		}

		var visit PageVisit
		if err := tx.Where("page_id = ? AND visitor_id = ? AND day = ?", row.PageID, row.VisitorID, row.Day).
			First(&visit).Error; err != nil {
			return err
		}

		stored := event
		stored.VisitID = visit.ID
		if err := tx.Create(&stored).Error; err != nil {
			return err
		}

		result = Result{VisitID: visit.ID, EventID: stored.ID, NewVisit: row.ID != 0}
		return nil
	})
	if err != nil {
		t.logger.Error("Failed to store tracking event",
			slog.Uint64("page_id", uint64(pageID)),
			slog.String("event_type", string(eventType)),
			slog.Any("error", err))
		return Result{}, err
	}

	metrics.TrackedEvents.WithLabelValues(string(eventType)).Inc()
	t.logger.Debug("Tracked event",
		slog.Uint64("page_id", uint64(pageID)),
		slog.Uint64("visit_id", uint64(result.VisitID)),
		slog.String("event_type", string(eventType)),
		slog.Bool("new_visit", result.NewVisit))

	return result, nil
}

func (t *Tracker) buildVisit(pageID uint, in Input, ua user_agent.UserAgent, now time.Time) PageVisit {
	addr := ParseClientIP(in.ClientIP)

	visitorID := strings.TrimSpace(in.VisitorID)
	if visitorID == "" {
		visitorID = visitors.DerivedVisitorID(pageID, addr.String(), in.UserAgent, t.salt, now)
	}
	if len(visitorID) > maxVisitorIDLength {
		visitorID = visitorID[:maxVisitorIDLength]
	}

	visit := PageVisit{
		PageID:    pageID,
		VisitorID: visitorID,
		Day:       now.Format(DayFormat),
		Timestamp: now,
		Device:    optional(labelOr(in.Device, ua.Device)),
		Browser:   optional(labelOr(in.Browser, ua.Browser)),
		OS:        optional(labelOr(in.OS, ua.OS)),
		Referer:   optional(strings.TrimSpace(in.Referer)),
		IPAddress: optional(MaskIP(addr)),
	}

	if t.geo != nil && Locatable(addr) {
		if loc, ok := t.geo.Lookup(net.IP(addr.AsSlice())); ok {
			visit.Country = optional(t.countryName(loc))
			visit.City = optional(loc.City)
			visit.Region = optional(loc.Region)
			if loc.HasCoordinates {
				lat, lon := loc.Latitude, loc.Longitude
				visit.Latitude = &lat
				visit.Longitude = &lon
			}
		}
	}

	return visit
}

// countryName prefers the common English name for the ISO code.
func (t *Tracker) countryName(loc geoip.Location) string {
	if loc.CountryCode != "" {
		if country, err := t.countries.FindCountryByAlpha(loc.CountryCode); err == nil {
			return country.Name.Common
		}
	}
	return loc.Country
}

// labelOr normalises a client supplied label, falling back to the parsed one.
// All lowercase labels are title cased so "mobile" and "Mobile" group together.
func labelOr(supplied, parsed string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		if parsed == user_agent.Unknown {
			return ""
		}
		return parsed
	}
	if supplied == strings.ToLower(supplied) {
		return cases.Title(language.AmericanEnglish).String(supplied)
	}
	return supplied
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// augmentData returns the event payload with rawComponentId filled in from
// the request's componentId when the client did not set one.
func augmentData(raw json.RawMessage, componentID string) (datatypes.JSON, error) {
	payload := map[string]any{}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, ErrInvalidData
		}
	}

	if componentID = strings.TrimSpace(componentID); componentID != "" {
		if _, exists := payload["rawComponentId"]; !exists {
			payload["rawComponentId"] = componentID
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}
	return datatypes.JSON(encoded), nil
}
