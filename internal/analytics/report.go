// Package analytics builds the per-page analytics report from raw visits and
// events.
//
// The package is organized into focused modules:
//   - report.go: report types and the Service entry point
//   - store.go: the Store interface and its gorm implementation
//   - daily.go: day series reconciliation
//   - components.go: click attribution to components
//   - engagement.go: time spent and bounce rate
//   - traffic.go: traffic source classification
package analytics

import (
	"errors"
)

var (
	ErrPageNotFound = errors.New("page not found")
	ErrForbidden    = errors.New("not authorized for this page's analytics")
)

// UnknownDevice labels visits without a recorded device.
const UnknownDevice = "desconhecido"

// CityStatsLimit caps the number of cities in a report.
const CityStatsLimit = 10

type DailyStat struct {
	Date         string  `json:"date"`
	Visits       int64   `json:"visits"`
	Clicks       int64   `json:"clicks"`
	UniqueUsers  int64   `json:"uniqueUsers"`
	AvgTimeSpent float64 `json:"avgTimeSpent"`
	BounceRate   float64 `json:"bounceRate"`
}

type DeviceStat struct {
	Device string `json:"device"`
	Count  int64  `json:"count"`
}

type LocationStat struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type CityStat struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      *string `json:"city"`
	Country   *string `json:"country"`
}

// ComponentClick counts clicks on one component. ID is the persisted
// component id (uint) or the raw client id (string) for auto detected
// components.
type ComponentClick struct {
	ID         any    `json:"id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Clicks     int64  `json:"clicks"`
	IsAuto     bool   `json:"isAuto,omitempty"`
	SocialType string `json:"socialType,omitempty"`
}

// SourceType distinguishes the views mixed in TrafficSources.
type SourceType string

const (
	SourceCategory SourceType = "category"
	SourceReferrer SourceType = "referrer"
	SourceCampaign SourceType = "campaign"
)

type TrafficSource struct {
	Type     SourceType `json:"type"`
	Source   string     `json:"source"`
	Count    int64      `json:"count"`
	Medium   *string    `json:"medium,omitempty"`
	Campaign *string    `json:"campaign,omitempty"`
}

type Summary struct {
	TotalVisits  int64   `json:"totalVisits"`
	TotalClicks  int64   `json:"totalClicks"`
	AvgTimeSpent float64 `json:"avgTimeSpent"`
	BounceRate   float64 `json:"bounceRate"`
}

type Report struct {
	DailyStats      []DailyStat      `json:"dailyStats"`
	DeviceStats     []DeviceStat     `json:"deviceStats"`
	LocationStats   []LocationStat   `json:"locationStats"`
	CityStats       []CityStat       `json:"cityStats"`
	GeoData         []GeoPoint       `json:"geoData"`
	ComponentClicks []ComponentClick `json:"componentClicks"`
	TrafficSources  []TrafficSource  `json:"trafficSources"`
	Summary         Summary          `json:"summary"`
}

// EmptyReport returns a report with every section empty. Slices are non-nil
// so they encode as [] rather than null.
func EmptyReport() *Report {
	return &Report{
		DailyStats:      []DailyStat{},
		DeviceStats:     []DeviceStat{},
		LocationStats:   []LocationStat{},
		CityStats:       []CityStat{},
		GeoData:         []GeoPoint{},
		ComponentClicks: []ComponentClick{},
		TrafficSources:  []TrafficSource{},
	}
}
