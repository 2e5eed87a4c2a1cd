package tracking

import (
	"time"

	"gorm.io/datatypes"

	"linkpage/internal/pages"
	"linkpage/internal/timeframe"
)

// EventType represents the type of a tracked interaction.
type EventType string

const (
	EventTypePageview EventType = "pageview"
	EventTypeClick    EventType = "click"
	EventTypeScroll   EventType = "scroll"
	EventTypeExit     EventType = "exit"
)

// ParseEventType returns the event type named by s.
func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(s); t {
	case EventTypePageview, EventTypeClick, EventTypeScroll, EventTypeExit:
		return t, true
	}
	return "", false
}

// DayFormat is the calendar day key of a visit, always in UTC.
const DayFormat = timeframe.DayFormat

// PageVisit is one visitor's presence on a page during one UTC calendar day.
// The (page_id, visitor_id, day) index makes the find-or-create in Track race safe.
type PageVisit struct {
	ID        uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	PageID    uint        `gorm:"not null;uniqueIndex:idx_page_visits_visitor_day,priority:1;index:idx_page_visits_page_time,priority:1" json:"pageId"`
	Page      *pages.Page `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	VisitorID string      `gorm:"size:128;not null;uniqueIndex:idx_page_visits_visitor_day,priority:2" json:"visitorId"`
	Day       string      `gorm:"size:10;not null;uniqueIndex:idx_page_visits_visitor_day,priority:3" json:"day"`
	Timestamp time.Time   `gorm:"not null;index:idx_page_visits_page_time,priority:2" json:"timestamp"`
	Device    *string     `json:"device"`
	Browser   *string     `json:"browser"`
	OS        *string     `gorm:"column:os" json:"os"`
	Referer   *string     `json:"referer"`
	IPAddress *string     `json:"ipAddress"`
	Country   *string     `json:"country"`
	City      *string     `json:"city"`
	Region    *string     `json:"region"`
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
}

// Event is a single append-only interaction tied to a visit.
type Event struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	VisitID     uint           `gorm:"not null;index:idx_events_visit_type,priority:1" json:"visitId"`
	Visit       *PageVisit     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	EventType   EventType      `gorm:"size:16;not null;index:idx_events_visit_type,priority:2" json:"eventType"`
	ComponentID *uint          `gorm:"index" json:"componentId"`
	Data        datatypes.JSON `gorm:"not null" json:"data"`
	Timestamp   time.Time      `gorm:"not null" json:"timestamp"`
}
