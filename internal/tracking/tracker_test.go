package tracking_test

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/pages"
	"linkpage/internal/pkg/geoip"
	"linkpage/internal/testsupport"
	"linkpage/internal/tracking"
)

type fakeLocator struct {
	location geoip.Location
	lookups  int
}

func (f *fakeLocator) Lookup(ip net.IP) (geoip.Location, bool) {
	f.lookups++
	return f.location, f.location.CountryCode != "" || f.location.City != ""
}

const chromeDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestTrack(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	user := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, user.ID, "tracked")
	link := testsupport.CreateTestComponent(t, db, page.ID, pages.ComponentLink, `{"title":"Shop","url":"https://shop.example.com"}`)

	now := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	locator := &fakeLocator{location: geoip.Location{
		CountryCode:    "PT",
		Country:        "Portugal",
		City:           "Lisbon",
		Latitude:       38.72,
		Longitude:      -9.13,
		HasCoordinates: true,
	}}
	tracker := tracking.NewTracker(dbManager, logger, "salt",
		tracking.WithClock(fixedClock(now)),
		tracking.WithGeoLocator(locator))

	t.Run("creates visit and event", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		result, err := tracker.Track(context.Background(), tracking.Input{
			PageID:    uintString(page.ID),
			VisitorID: "visitor-1",
			EventType: "pageview",
			Device:    "mobile",
			Referer:   "https://www.instagram.com/someone",
			ClientIP:  "203.0.113.7",
			UserAgent: chromeDesktop,
		})
		require.NoError(t, err)
		assert.True(t, result.NewVisit)
		assert.False(t, result.Ignored)

		var visit tracking.PageVisit
		require.NoError(t, db.First(&visit, result.VisitID).Error)
		assert.Equal(t, page.ID, visit.PageID)
		assert.Equal(t, "visitor-1", visit.VisitorID)
		assert.Equal(t, "2024-03-10", visit.Day)
		require.NotNil(t, visit.Device)
		assert.Equal(t, "Mobile", *visit.Device)
		require.NotNil(t, visit.Browser)
		assert.Equal(t, "Chrome", *visit.Browser)
		require.NotNil(t, visit.IPAddress)
		assert.Equal(t, "203.0.113.xxx", *visit.IPAddress)
		require.NotNil(t, visit.Country)
		assert.Equal(t, "Portugal", *visit.Country)
		require.NotNil(t, visit.City)
		assert.Equal(t, "Lisbon", *visit.City)
		require.NotNil(t, visit.Latitude)
		assert.InDelta(t, 38.72, *visit.Latitude, 0.0001)

		var event tracking.Event
		require.NoError(t, db.First(&event, result.EventID).Error)
		assert.Equal(t, tracking.EventTypePageview, event.EventType)
		assert.Nil(t, event.ComponentID)
		assert.JSONEq(t, `{}`, string(event.Data))
	})

	t.Run("reuses the visit for the same visitor and day", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		first, err := tracker.Track(context.Background(), tracking.Input{
			PageID: uintString(page.ID), VisitorID: "visitor-2", EventType: "pageview",
		})
		require.NoError(t, err)

		second, err := tracker.Track(context.Background(), tracking.Input{
			PageID:      uintString(page.ID),
			VisitorID:   "visitor-2",
			EventType:   "click",
			ComponentID: uintString(link.ID),
			Data:        json.RawMessage(`{"componentType":"link"}`),
		})
		require.NoError(t, err)

		assert.Equal(t, first.VisitID, second.VisitID)
		assert.True(t, first.NewVisit)
		assert.False(t, second.NewVisit)

		var visits int64
		db.Model(&tracking.PageVisit{}).Where("visitor_id = ?", "visitor-2").Count(&visits)
		assert.Equal(t, int64(1), visits)

		var event tracking.Event
		require.NoError(t, db.First(&event, second.EventID).Error)
		require.NotNil(t, event.ComponentID)
		assert.Equal(t, link.ID, *event.ComponentID)
		assert.JSONEq(t, `{"componentType":"link","rawComponentId":"`+uintString(link.ID)+`"}`, string(event.Data))
	})

	t.Run("opens a new visit on the next day", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		_, err := tracker.Track(context.Background(), tracking.Input{
			PageID: uintString(page.ID), VisitorID: "visitor-3", EventType: "pageview",
		})
		require.NoError(t, err)

		nextDay := tracking.NewTracker(dbManager, logger, "salt",
			tracking.WithClock(fixedClock(now.Add(24*time.Hour))),
			tracking.WithGeoLocator(nil))
		result, err := nextDay.Track(context.Background(), tracking.Input{
			PageID: uintString(page.ID), VisitorID: "visitor-3", EventType: "pageview",
		})
		require.NoError(t, err)
		assert.True(t, result.NewVisit)

		var visits int64
		db.Model(&tracking.PageVisit{}).Where("visitor_id = ?", "visitor-3").Count(&visits)
		assert.Equal(t, int64(2), visits)
	})

	t.Run("keeps unknown component ids only in data", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		result, err := tracker.Track(context.Background(), tracking.Input{
			PageID:      uintString(page.ID),
			VisitorID:   "visitor-4",
			EventType:   "click",
			ComponentID: "social-icon-2",
			Data:        json.RawMessage(`{"componentType":"social","targetInfo":{"elementData":{"data-social-type":"instagram"}}}`),
		})
		require.NoError(t, err)

		var event tracking.Event
		require.NoError(t, db.First(&event, result.EventID).Error)
		assert.Nil(t, event.ComponentID)

		data, err := tracking.DecodeEventData(event.Data)
		require.NoError(t, err)
		assert.Equal(t, "social-icon-2", data.RawComponentID)
		assert.Equal(t, "instagram", data.SocialType())
	})

	t.Run("derives a visitor id when none is sent", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		input := tracking.Input{
			PageID:    uintString(page.ID),
			EventType: "pageview",
			ClientIP:  "198.51.100.20",
			UserAgent: chromeDesktop,
		}
		first, err := tracker.Track(context.Background(), input)
		require.NoError(t, err)
		second, err := tracker.Track(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, first.VisitID, second.VisitID)

		var visit tracking.PageVisit
		require.NoError(t, db.First(&visit, first.VisitID).Error)
		assert.Contains(t, visit.VisitorID, "srv_")
		assert.NotContains(t, visit.VisitorID, "198.51.100.20")
	})

	t.Run("skips geo lookup for private addresses", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")
		before := locator.lookups

		result, err := tracker.Track(context.Background(), tracking.Input{
			PageID: uintString(page.ID), VisitorID: "visitor-5", EventType: "pageview", ClientIP: "192.168.1.10",
		})
		require.NoError(t, err)
		assert.Equal(t, before, locator.lookups)

		var visit tracking.PageVisit
		require.NoError(t, db.First(&visit, result.VisitID).Error)
		assert.Nil(t, visit.Country)
	})

	t.Run("ignores bots", func(t *testing.T) {
		testsupport.CleanTables(db, "events", "page_visits")

		result, err := tracker.Track(context.Background(), tracking.Input{
			PageID:    uintString(page.ID),
			EventType: "pageview",
			UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		})
		require.NoError(t, err)
		assert.True(t, result.Ignored)

		var events int64
		db.Model(&tracking.Event{}).Count(&events)
		assert.Equal(t, int64(0), events)
	})
}

func TestTrackValidation(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	user := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, user.ID, "validation")
	tracker := tracking.NewTracker(dbManager, logger, "salt", tracking.WithGeoLocator(nil))

	testCases := []struct {
		name     string
		input    tracking.Input
		expected error
	}{
		{
			name:     "missing page id",
			input:    tracking.Input{EventType: "pageview"},
			expected: tracking.ErrInvalidPageID,
		},
		{
			name:     "non numeric page id",
			input:    tracking.Input{PageID: "abc", EventType: "pageview"},
			expected: tracking.ErrInvalidPageID,
		},
		{
			name:     "unknown event type",
			input:    tracking.Input{PageID: uintString(page.ID), EventType: "hover"},
			expected: tracking.ErrInvalidEventType,
		},
		{
			name:     "data is not an object",
			input:    tracking.Input{PageID: uintString(page.ID), EventType: "click", Data: json.RawMessage(`[1,2]`)},
			expected: tracking.ErrInvalidData,
		},
		{
			name:     "page does not exist",
			input:    tracking.Input{PageID: "999999", EventType: "pageview"},
			expected: tracking.ErrPageNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tracker.Track(context.Background(), tc.input)
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	var visits int64
	db.Model(&tracking.PageVisit{}).Count(&visits)
	assert.Equal(t, int64(0), visits)
}

func TestTrackConcurrentFirstEvents(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	user := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, user.ID, "burst")
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := tracking.NewTracker(dbManager, logger, "salt",
		tracking.WithClock(fixedClock(now)),
		tracking.WithGeoLocator(nil))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.Track(context.Background(), tracking.Input{
				PageID:    uintString(page.ID),
				VisitorID: "same-visitor",
				EventType: "pageview",
				ClientIP:  "203.0.113.7",
				UserAgent: chromeDesktop,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var visits, events int64
	db.Model(&tracking.PageVisit{}).Where("page_id = ?", page.ID).Count(&visits)
	db.Model(&tracking.Event{}).Count(&events)
	assert.Equal(t, int64(1), visits)
	assert.Equal(t, int64(workers), events)
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
