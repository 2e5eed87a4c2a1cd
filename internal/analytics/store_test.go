package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/analytics"
	"linkpage/internal/pages"
	"linkpage/internal/testsupport"
	"linkpage/internal/timeframe"
	"linkpage/internal/tracking"
)

func TestGormStoreReport(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	service := analytics.NewService(analytics.NewGormStore(dbManager), logger,
		analytics.WithTimeProvider(fixedClock(now)))

	owner := testsupport.CreateTestUser(db, "owner@example.com", "password")
	other := testsupport.CreateTestUser(db, "other@example.com", "password")
	page := testsupport.CreateTestPage(t, db, owner.ID, "report")
	otherPage := testsupport.CreateTestPage(t, db, other.ID, "elsewhere")
	link := testsupport.CreateTestComponent(t, db, page.ID, pages.ComponentLink, `{"title":"Buy now","url":"https://shop.example.com"}`)

	day := func(daysAgo int, hour int) time.Time {
		return now.AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
	}

	// Inside the 7 day window.
	v1 := testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
		PageID: page.ID, VisitorID: "a", Timestamp: day(0, 9), Device: "Mobile",
		Referer: "https://www.instagram.com/me", Country: "Portugal", City: "Lisbon", Latitude: 38.72, Longitude: -9.13,
	})
	v2 := testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
		PageID: page.ID, VisitorID: "b", Timestamp: day(0, 10), Device: "Desktop",
		Country: "Portugal", City: "Lisbon", Latitude: 38.72, Longitude: -9.13,
	})
	v3 := testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
		PageID: page.ID, VisitorID: "c", Timestamp: day(6, 0),
		Referer: "https://news.example.org/?utm_source=news&utm_medium=email&utm_campaign=launch", Country: "Spain", City: "Madrid",
	})
	// Outside the 7 day window, inside all time.
	old := testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
		PageID: page.ID, VisitorID: "d", Timestamp: time.Date(2020, 5, 1, 8, 0, 0, 0, time.UTC), Device: "Tablet",
	})
	bounced := testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
		PageID: page.ID, VisitorID: "e", Timestamp: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	// Another page.
	testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{PageID: otherPage.ID, VisitorID: "a", Timestamp: day(0, 9)})

	testsupport.CreateTestEvent(t, db, v1.ID, tracking.EventTypePageview, nil, "")
	testsupport.CreateTestEvent(t, db, v1.ID, tracking.EventTypeClick, &link.ID, fmt.Sprintf(`{"rawComponentId":"%d"}`, link.ID))
	testsupport.CreateTestEvent(t, db, v1.ID, tracking.EventTypeClick, &link.ID, "")
	testsupport.CreateTestEvent(t, db, v1.ID, tracking.EventTypeExit, nil, `{"timeSpent":40}`)
	testsupport.CreateTestEvent(t, db, v2.ID, tracking.EventTypeScroll, nil, `{"percentage":80}`)
	testsupport.CreateTestEvent(t, db, v2.ID, tracking.EventTypeExit, nil, `{"timeSpent":20}`)
	testsupport.CreateTestEvent(t, db, v3.ID, tracking.EventTypeClick, nil,
		`{"componentType":"social","rawComponentId":"auto","targetInfo":{"elementData":{"data-social-type":"instagram"}}}`)
	testsupport.CreateTestEvent(t, db, old.ID, tracking.EventTypeClick, &link.ID, "")
	testsupport.CreateTestEvent(t, db, bounced.ID, tracking.EventTypePageview, nil, "")

	t.Run("last 7 days", func(t *testing.T) {
		report, err := service.PageAnalytics(ctx, page.ID, owner.ID, timeframe.PeriodLast7Days)
		require.NoError(t, err)

		assert.Equal(t, int64(3), report.Summary.TotalVisits)
		assert.Equal(t, int64(3), report.Summary.TotalClicks)
		assert.InDelta(t, 30.0, report.Summary.AvgTimeSpent, 0.0001)
		assert.InDelta(t, 0.0, report.Summary.BounceRate, 0.0001)

		assert.Equal(t, []analytics.DailyStat{
			{Date: "2024-03-04", Visits: 1, Clicks: 1},
			{Date: "2024-03-10", Visits: 2, Clicks: 2},
		}, report.DailyStats)

		var visits, clicks int64
		for _, d := range report.DailyStats {
			visits += d.Visits
			clicks += d.Clicks
		}
		assert.Equal(t, report.Summary.TotalVisits, visits)
		assert.Equal(t, report.Summary.TotalClicks, clicks)

		assert.ElementsMatch(t, []analytics.DeviceStat{
			{Device: "Mobile", Count: 1},
			{Device: "Desktop", Count: 1},
			{Device: analytics.UnknownDevice, Count: 1},
		}, report.DeviceStats)

		assert.Equal(t, []analytics.LocationStat{{Country: "Portugal", Count: 2}, {Country: "Spain", Count: 1}}, report.LocationStats)
		assert.Equal(t, []analytics.CityStat{
			{City: "Lisbon", Country: "Portugal", Count: 2},
			{City: "Madrid", Country: "Spain", Count: 1},
		}, report.CityStats)

		require.Len(t, report.GeoData, 1)
		assert.InDelta(t, 38.72, report.GeoData[0].Latitude, 0.0001)
		require.NotNil(t, report.GeoData[0].City)
		assert.Equal(t, "Lisbon", *report.GeoData[0].City)

		require.Len(t, report.ComponentClicks, 2)
		assert.Equal(t, analytics.ComponentClick{ID: link.ID, Type: "link", Title: "Buy now", Clicks: 2}, report.ComponentClicks[0])
		assert.Equal(t, analytics.ComponentClick{
			ID: "auto", Type: "social", Clicks: 1, IsAuto: true, SocialType: "instagram",
		}, report.ComponentClicks[1])

		assert.Equal(t, []analytics.TrafficSource{
			{Type: analytics.SourceCategory, Source: "direct", Count: 1},
			{Type: analytics.SourceCategory, Source: "social", Count: 1},
			{Type: analytics.SourceCategory, Source: "referral", Count: 1},
			{Type: analytics.SourceReferrer, Source: "news.example.org", Count: 1},
			{Type: analytics.SourceReferrer, Source: "www.instagram.com", Count: 1},
			{Type: analytics.SourceCampaign, Source: "news", Count: 1, Medium: strPtr("email"), Campaign: strPtr("launch")},
		}, report.TrafficSources)
	})

	t.Run("all time includes old data", func(t *testing.T) {
		report, err := service.PageAnalytics(ctx, page.ID, owner.ID, timeframe.PeriodAllTime)
		require.NoError(t, err)

		assert.Equal(t, int64(5), report.Summary.TotalVisits)
		assert.Equal(t, int64(4), report.Summary.TotalClicks)
		require.Len(t, report.DailyStats, 4)
		assert.Equal(t, "2019-01-01", report.DailyStats[0].Date)
		assert.Equal(t, analytics.DailyStat{Date: "2020-05-01", Visits: 1, Clicks: 1}, report.DailyStats[1])
		assert.InDelta(t, 20.0, report.Summary.BounceRate, 0.0001)
	})

	t.Run("ownership is enforced", func(t *testing.T) {
		_, err := service.PageAnalytics(ctx, page.ID, other.ID, timeframe.PeriodLast7Days)
		assert.ErrorIs(t, err, analytics.ErrForbidden)

		_, err = service.PageAnalytics(ctx, 999999, owner.ID, timeframe.PeriodLast7Days)
		assert.ErrorIs(t, err, analytics.ErrPageNotFound)
	})

	t.Run("page without data in the window", func(t *testing.T) {
		empty := testsupport.CreateTestPage(t, db, owner.ID, "empty")
		report, err := service.PageAnalytics(ctx, empty.ID, owner.ID, timeframe.PeriodLast90Days)
		require.NoError(t, err)
		assert.Equal(t, analytics.EmptyReport(), report)
	})
}

func TestGormStoreCityLimit(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	store := analytics.NewGormStore(dbManager)

	owner := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, owner.ID, "cities")
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			testsupport.CreateTestVisit(t, db, testsupport.VisitFixture{
				PageID:    page.ID,
				VisitorID: fmt.Sprintf("v-%d-%d", i, j),
				Timestamp: now,
				City:      fmt.Sprintf("City %02d", i),
				Country:   "Nowhere",
			})
		}
	}

	cities, err := store.CityCounts(context.Background(), page.ID, timeframe.New(timeframe.PeriodLast7Days, now), analytics.CityStatsLimit)
	require.NoError(t, err)
	require.Len(t, cities, 10)
	assert.Equal(t, "City 11", cities[0].City)
	assert.Equal(t, int64(12), cities[0].Count)
	for i := 1; i < len(cities); i++ {
		assert.GreaterOrEqual(t, cities[i-1].Count, cities[i].Count)
	}
}
