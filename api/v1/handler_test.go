// Package v1_test contains tests for the public API handlers
package v1_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "linkpage/api/v1"
	"linkpage/internal/pages"
	"linkpage/internal/testsupport"
	"linkpage/internal/tracking"
)

func TestTrackAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	user := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, user.ID, "tracked")
	link := testsupport.CreateTestComponent(t, db, page.ID, pages.ComponentLink, `{"title":"Shop","url":"https://shop.example.com"}`)
	app := testsupport.CreateTestApp(t, db)

	track := func(t *testing.T, body string, headers map[string]string) (*http.Response, []byte) {
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Sec-Fetch-Site"] = "cross-site"
		return testsupport.Do(t, app, testsupport.Request{
			Method:  http.MethodPost,
			Path:    "/api/track",
			Body:    body,
			Headers: headers,
		})
	}

	t.Run("records a pageview and reuses the visit for later events", func(t *testing.T) {
		resp, body := track(t, fmt.Sprintf(`{"pageId":%d,"visitorId":"visitor-1","eventType":"pageview","referer":"https://instagram.com/"}`, page.ID),
			map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.True(t, testsupport.DecodeJSON[v1.TrackResponse](t, body).Success)

		resp, body = track(t, fmt.Sprintf(`{"pageId":"%d","visitorId":"visitor-1","eventType":"click","componentId":%d,"data":{"componentType":"link"}}`, page.ID, link.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var visits []tracking.PageVisit
		require.NoError(t, db.Where("page_id = ?", page.ID).Find(&visits).Error)
		require.Len(t, visits, 1)
		require.NotNil(t, visits[0].IPAddress)
		assert.Equal(t, "203.0.113.xxx", *visits[0].IPAddress)
		require.NotNil(t, visits[0].Browser)
		assert.Equal(t, "Chrome", *visits[0].Browser)

		var events []tracking.Event
		require.NoError(t, db.Where("visit_id = ?", visits[0].ID).Order("id").Find(&events).Error)
		require.Len(t, events, 2)
		assert.Equal(t, tracking.EventTypePageview, events[0].EventType)
		assert.Equal(t, tracking.EventTypeClick, events[1].EventType)
		require.NotNil(t, events[1].ComponentID)
		assert.Equal(t, link.ID, *events[1].ComponentID)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"missing page id", `{"eventType":"pageview"}`},
			{"non numeric page id", `{"pageId":"abc","eventType":"pageview"}`},
			{"unknown event type", fmt.Sprintf(`{"pageId":%d,"eventType":"hover"}`, page.ID)},
			{"data is not an object", fmt.Sprintf(`{"pageId":%d,"eventType":"click","data":[1]}`, page.ID)},
			{"malformed json", `{"pageId":`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp, body := track(t, tc.body, nil)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
				assert.Equal(t, "Invalid request", testsupport.DecodeJSON[v1.ErrorResponse](t, body).Message)
			})
		}
	})

	t.Run("returns 404 for an unknown page", func(t *testing.T) {
		resp, body := track(t, `{"pageId":987654,"eventType":"pageview"}`, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
	})

	t.Run("ignores bot traffic", func(t *testing.T) {
		var before int64
		db.Model(&tracking.Event{}).Count(&before)

		resp, body := track(t, fmt.Sprintf(`{"pageId":%d,"visitorId":"crawler","eventType":"pageview"}`, page.ID),
			map[string]string{"User-Agent": "Googlebot/2.1 (+http://www.google.com/bot.html)"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var after int64
		db.Model(&tracking.Event{}).Count(&after)
		assert.Equal(t, before, after)
	})

	t.Run("accepts text/plain exit events", func(t *testing.T) {
		exits := func() int64 {
			var n int64
			db.Model(&tracking.Event{}).Where("event_type = ?", tracking.EventTypeExit).Count(&n)
			return n
		}
		before := exits()

		resp, body := track(t, fmt.Sprintf(`{"pageId":%d,"visitorId":"visitor-1","eventType":"exit","data":{"timeSpent":42}}`, page.ID),
			map[string]string{"Content-Type": "text/plain;charset=UTF-8"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, before+1, exits())
	})

	t.Run("records beacon exits and always answers 202", func(t *testing.T) {
		beacon := func(body string) *http.Response {
			resp, _ := testsupport.Do(t, app, testsupport.Request{
				Method: http.MethodPost,
				Path:   "/api/track/beacon",
				Body:   body,
				Headers: map[string]string{
					"Content-Type":   "text/plain;charset=UTF-8",
					"Sec-Fetch-Site": "cross-site",
				},
			})
			return resp
		}

		resp := beacon(fmt.Sprintf(`{"pageId":%d,"visitorId":"beacon-visitor","eventType":"exit","data":{"timeSpent":17}}`, page.ID))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var exit tracking.Event
		require.NoError(t, db.Joins("JOIN page_visits ON page_visits.id = events.visit_id").
			Where("page_visits.visitor_id = ? AND events.event_type = ?", "beacon-visitor", tracking.EventTypeExit).
			First(&exit).Error)
		data, err := tracking.DecodeEventData(exit.Data)
		require.NoError(t, err)
		require.NotNil(t, data.TimeSpent)
		assert.Equal(t, 17.0, *data.TimeSpent)

		assert.Equal(t, http.StatusAccepted, beacon(`{"pageId":`).StatusCode)
		assert.Equal(t, http.StatusAccepted, beacon(`{"pageId":987654,"eventType":"exit"}`).StatusCode)
	})

	t.Run("answers preflight requests", func(t *testing.T) {
		resp, _ := testsupport.Do(t, app, testsupport.Request{
			Method: http.MethodOptions,
			Path:   "/api/track",
			Headers: map[string]string{
				"Origin":                        "https://someone.example",
				"Access-Control-Request-Method": "POST",
			},
		})
		assert.Less(t, resp.StatusCode, 300)
	})
}

func TestGetPublicPageAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	user := testsupport.CreateTestUser(db, "owner@example.com", "password")
	page := testsupport.CreateTestPage(t, db, user.ID, "creator")
	testsupport.CreateTestComponent(t, db, page.ID, pages.ComponentText, `{"text":"Hello"}`)
	require.NoError(t, db.Create(&pages.Page{UserID: user.ID, Title: "Draft", Slug: "draft", Style: []byte("{}")}).Error)
	app := testsupport.CreateTestApp(t, db)

	t.Run("returns the published page with components", func(t *testing.T) {
		resp, body := testsupport.Do(t, app, testsupport.Request{Path: "/api/public/pages/creator"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		got := testsupport.DecodeJSON[pages.Page](t, body)
		assert.Equal(t, page.ID, got.ID)
		require.Len(t, got.Components, 1)
		assert.Equal(t, pages.ComponentText, got.Components[0].Type)
		assert.NotEmpty(t, resp.Header.Get("ETag"))
	})

	t.Run("answers 304 for a matching etag", func(t *testing.T) {
		resp, _ := testsupport.Do(t, app, testsupport.Request{Path: "/api/public/pages/creator"})
		etag := resp.Header.Get("ETag")
		require.NotEmpty(t, etag)

		resp, _ = testsupport.Do(t, app, testsupport.Request{
			Path:    "/api/public/pages/creator",
			Headers: map[string]string{"If-None-Match": etag},
		})
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})

	t.Run("hides unpublished and missing pages", func(t *testing.T) {
		for _, slug := range []string{"draft", "missing"} {
			resp, _ := testsupport.Do(t, app, testsupport.Request{Path: "/api/public/pages/" + slug})
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, slug)
		}
	})
}

func TestGetTrackerScriptAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateTestApp(t, db)

	t.Run("serves the tracker script", func(t *testing.T) {
		resp, body := testsupport.Do(t, app, testsupport.Request{Path: "/api/track.js"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/javascript"))
		assert.Contains(t, string(body), "/api/track")
		assert.NotContains(t, string(body), "{{")

		resp, _ = testsupport.Do(t, app, testsupport.Request{
			Path:    "/api/track.js",
			Headers: map[string]string{"If-None-Match": resp.Header.Get("ETag")},
		})
		assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	})
}
