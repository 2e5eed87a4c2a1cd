// Package seeder fills a database with a demo page and realistic traffic so
// the analytics report has something to show.
package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/pages"
	"linkpage/internal/pkg/geoip"
	"linkpage/internal/tracking"
	"linkpage/internal/users"
)

const (
	DefaultEmail    = "demo@linkpage.local"
	DefaultPassword = "demo-password"
	DefaultSlug     = "demo"
)

// Seeder generates a demo account, page and visits.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	VisitCount int
	Days       int
	Salt       string
	Now        func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, visitCount, days int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if days <= 0 {
		days = 30
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		VisitCount: visitCount,
		Days:       days,
		Salt:       "linkpage-seed",
		Now:        time.Now,
	}
}

// Run seeds the demo user and page, then generates traffic for it.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seed...", slog.Int("visits", s.VisitCount), slog.Int("days", s.Days))

	user, err := s.seedUser()
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	page, err := s.seedPage(user.ID)
	if err != nil {
		return fmt.Errorf("failed to seed page: %w", err)
	}

	if err := s.SeedPage(ctx, page.Slug); err != nil {
		return err
	}

	s.Logger.Info("Seeding completed successfully",
		slog.String("email", user.Email),
		slog.String("slug", page.Slug),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedPage generates traffic for an existing page.
func (s *Seeder) SeedPage(ctx context.Context, slug string) error {
	db := s.DBManager.GetConnection()

	page, err := pages.FindPublishedBySlug(db, slug)
	if err != nil {
		return fmt.Errorf("failed to find page %s: %w", slug, err)
	}

	s.Logger.Info("Generating traffic", slog.Uint64("page_id", uint64(page.ID)), slog.String("slug", page.Slug))
	created, err := s.generateTraffic(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to generate traffic for %s: %w", slug, err)
	}

	s.Logger.Info("Traffic generated", slog.String("slug", page.Slug), slog.Int("events", created))
	return nil
}

func (s *Seeder) seedUser() (*users.User, error) {
	db := s.DBManager.GetConnection()

	user, err := users.CreateUser(s.Logger, db, DefaultEmail, DefaultPassword)
	if errors.Is(err, users.ErrUserExists) {
		s.Logger.Info("Demo user already exists", slog.String("email", DefaultEmail))
		return users.FindByEmail(db, DefaultEmail)
	}
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Created demo user", slog.String("email", user.Email))
	return user, nil
}

func (s *Seeder) seedPage(userID uint) (*pages.Page, error) {
	db := s.DBManager.GetConnection()

	if page, err := pages.FindPublishedBySlug(db, DefaultSlug); err == nil {
		s.Logger.Info("Demo page already exists", slog.String("slug", page.Slug))
		return page, nil
	}

	page := &pages.Page{
		UserID:    userID,
		Title:     "Demo Creator",
		Slug:      DefaultSlug,
		Published: true,
		Style:     []byte(`{"theme":"light","accent":"#ff6b35"}`),
	}
	if err := pages.CreatePage(s.Logger, db, page); err != nil {
		return nil, err
	}

	for _, c := range demoComponents() {
		component := &pages.Component{
			PageID:  page.ID,
			Type:    c.kind,
			Content: []byte(c.content),
		}
		if err := pages.AddComponent(s.Logger, db, component); err != nil {
			return nil, fmt.Errorf("failed to add %s component: %w", c.kind, err)
		}
	}

	s.Logger.Info("Created demo page", slog.String("slug", page.Slug))
	return page, nil
}

type demoComponent struct {
	kind    pages.ComponentType
	content string
}

func demoComponents() []demoComponent {
	return []demoComponent{
		{pages.ComponentText, `{"title":"Hi there","text":"Everything I make, in one place."}`},
		{pages.ComponentLink, `{"title":"Latest video","url":"https://youtube.com/watch?v=demo"}`},
		{pages.ComponentLink, `{"title":"Newsletter","url":"https://newsletter.example.com"}`},
		{pages.ComponentBanner, `{"title":"Spring drop","imageUrl":"https://cdn.example.com/banner.jpg","linkUrl":"https://shop.example.com"}`},
		{pages.ComponentSocial, `{"title":"Follow me","links":[{"platform":"instagram","url":"https://instagram.com/demo"},{"platform":"tiktok","url":"https://tiktok.com/@demo"},{"platform":"twitter","url":"https://twitter.com/demo"}]}`},
		{pages.ComponentVideo, `{"title":"Studio tour","url":"https://vimeo.com/demo"}`},
	}
}

// generateTraffic replays synthetic visits through the tracker so every row
// goes through the same validation and enrichment as real traffic.
func (s *Seeder) generateTraffic(ctx context.Context, page *pages.Page) (int, error) {
	components, err := pages.ListComponents(s.DBManager.GetConnection(), page.ID)
	if err != nil {
		return 0, err
	}

	var eventTime time.Time
	tracker := tracking.NewTracker(s.DBManager, s.Logger, s.Salt,
		tracking.WithClock(func() time.Time { return eventTime }),
		tracking.WithGeoLocator(demoLocator{}),
	)

	ipPool := generateIPPool(200)
	userAgents := getUserAgents()
	referrers := getReferrers()
	now := s.Now().UTC()
	pageID := strconv.FormatUint(uint64(page.ID), 10)
	created := 0

	track := func(in tracking.Input) error {
		in.PageID = pageID
		res, err := tracker.Track(ctx, in)
		if err != nil {
			return err
		}
		if !res.Ignored {
			created++
		}
		return nil
	}

	for i := 0; i < s.VisitCount; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		dayOffset := rand.IntN(s.Days)
		eventTime = now.AddDate(0, 0, -dayOffset).Add(-time.Duration(rand.IntN(86400)) * time.Second)
		if eventTime.After(now) {
			eventTime = now
		}

		base := tracking.Input{
			VisitorID: uuid.NewString(),
			ClientIP:  ipPool[rand.IntN(len(ipPool))],
			UserAgent: userAgents[rand.IntN(len(userAgents))],
			Referer:   referrers[rand.IntN(len(referrers))],
		}

		pageview := base
		pageview.EventType = string(tracking.EventTypePageview)
		if err := track(pageview); err != nil {
			return created, err
		}

		// About a third of visitors bounce.
		if rand.IntN(3) == 0 {
			continue
		}

		clicks := rand.IntN(3)
		for c := 0; c < clicks && len(components) > 0; c++ {
			eventTime = eventTime.Add(time.Duration(rand.IntN(20)+1) * time.Second)
			click := base
			click.EventType = string(tracking.EventTypeClick)
			component := components[rand.IntN(len(components))]
			click.ComponentID = strconv.FormatUint(uint64(component.ID), 10)
			click.Data = clickData(component)
			if err := track(click); err != nil {
				return created, err
			}
		}

		for depth := 25; depth <= 100 && rand.IntN(4) > 0; depth += 25 {
			scroll := base
			scroll.EventType = string(tracking.EventTypeScroll)
			scroll.Data = mustJSON(map[string]any{"percentage": depth})
			if err := track(scroll); err != nil {
				return created, err
			}
		}

		eventTime = eventTime.Add(time.Duration(rand.IntN(120)+5) * time.Second)
		exit := base
		exit.EventType = string(tracking.EventTypeExit)
		exit.Data = mustJSON(map[string]any{"timeSpent": rand.IntN(180) + 3})
		if err := track(exit); err != nil {
			return created, err
		}
	}

	return created, nil
}

func clickData(component pages.Component) json.RawMessage {
	data := map[string]any{
		"componentType": string(component.Type),
		"x":             rand.IntN(400),
		"y":             rand.IntN(800),
	}
	if content, err := component.Decoded(); err == nil && content.Title() != "" {
		data["componentTitle"] = content.Title()
	}
	if component.Type == pages.ComponentSocial {
		platforms := []string{"instagram", "tiktok", "twitter"}
		data["targetInfo"] = map[string]any{
			"elementData": map[string]any{tracking.SocialTypeKey: platforms[rand.IntN(len(platforms))]},
		}
	}
	return mustJSON(data)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// demoLocator resolves addresses to a fixed set of cities so seeded data
// has a geography without a GeoLite database.
type demoLocator struct{}

var demoLocations = []geoip.Location{
	{CountryCode: "US", City: "New York", Region: "NY", Latitude: 40.7128, Longitude: -74.006, HasCoordinates: true},
	{CountryCode: "US", City: "San Francisco", Region: "CA", Latitude: 37.7749, Longitude: -122.4194, HasCoordinates: true},
	{CountryCode: "GB", City: "London", Region: "ENG", Latitude: 51.5074, Longitude: -0.1278, HasCoordinates: true},
	{CountryCode: "DE", City: "Berlin", Region: "BE", Latitude: 52.52, Longitude: 13.405, HasCoordinates: true},
	{CountryCode: "ES", City: "Madrid", Region: "MD", Latitude: 40.4168, Longitude: -3.7038, HasCoordinates: true},
	{CountryCode: "BR", City: "Sao Paulo", Region: "SP", Latitude: -23.5505, Longitude: -46.6333, HasCoordinates: true},
	{CountryCode: "JP", City: "Tokyo", Region: "13", Latitude: 35.6762, Longitude: 139.6503, HasCoordinates: true},
}

func (demoLocator) Lookup(ip net.IP) (geoip.Location, bool) {
	h := fnv.New32a()
	h.Write(ip)
	return demoLocations[int(h.Sum32())%len(demoLocations)], true
}

// generateIPPool creates a pool of unique public IPv4 addresses
func generateIPPool(count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.IntN(200)+11, rand.IntN(256), rand.IntN(256), rand.IntN(254)+1)
		if tracking.Locatable(tracking.ParseClientIP(ip)) && !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	}
}

// getReferrers returns a list of common referrers
func getReferrers() []string {
	return []string{
		"", // Direct visit
		"https://www.instagram.com/",
		"https://www.tiktok.com/",
		"https://t.co/abc123",
		"https://www.youtube.com/",
		"https://www.google.com/",
		"https://www.linkedin.com/",
	}
}
