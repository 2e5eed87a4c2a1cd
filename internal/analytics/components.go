package analytics

import (
	"fmt"
	"log/slog"
	"sort"

	"linkpage/internal/pages"
	"linkpage/internal/tracking"
)

const autoComponentID = "auto"

type clickAttribution struct {
	logger  *slog.Logger
	entries map[string]*ComponentClick
}

// AttributeClicks groups click rows by component. Clicks on persisted
// components are keyed "<id>-<type>" and titled from the component content.
// Clicks the client could not map to a persisted component are attributed
// from the event data and flagged IsAuto, social links being split by
// network. Rows that cannot be attributed are skipped.
func AttributeClicks(logger *slog.Logger, rows []ClickRow) []ComponentClick {
	a := &clickAttribution{
		logger:  logger,
		entries: make(map[string]*ComponentClick),
	}

	for _, row := range rows {
		if row.ComponentID != nil && row.ComponentType != nil {
			a.addPersisted(*row.ComponentID, *row.ComponentType, row.Content)
			continue
		}
		a.addAuto(row.Data)
	}

	keys := make([]string, 0, len(a.entries))
	for key := range a.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := a.entries[keys[i]].Clicks, a.entries[keys[j]].Clicks
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})

	clicks := make([]ComponentClick, 0, len(keys))
	for _, key := range keys {
		clicks = append(clicks, *a.entries[key])
	}
	return clicks
}

func (a *clickAttribution) addPersisted(id uint, componentType string, content *string) {
	key := fmt.Sprintf("%d-%s", id, componentType)
	if entry, ok := a.entries[key]; ok {
		entry.Clicks++
		return
	}

	a.entries[key] = &ComponentClick{
		ID:     id,
		Type:   componentType,
		Title:  a.componentTitle(id, componentType, content),
		Clicks: 1,
	}
}

func (a *clickAttribution) componentTitle(id uint, componentType string, content *string) string {
	if content == nil {
		return ""
	}
	decoded, err := pages.DecodeContent(pages.ComponentType(componentType), []byte(*content))
	if err != nil {
		a.logger.Warn("Failed to decode component content",
			slog.Uint64("component_id", uint64(id)),
			slog.String("component_type", componentType),
			slog.Any("error", err))
		return ""
	}
	return decoded.Title()
}

func (a *clickAttribution) addAuto(raw *string) {
	if raw == nil {
		return
	}
	data, err := tracking.DecodeEventData([]byte(*raw))
	if err != nil {
		a.logger.Warn("Skipping click with unreadable data", slog.Any("error", err))
		return
	}
	if data.ComponentType == "" {
		return
	}

	rawID := data.RawComponentID
	if rawID == "" {
		rawID = autoComponentID
	}

	var socialType string
	if data.ComponentType == string(pages.ComponentSocial) {
		socialType = data.SocialType()
	}

	key := fmt.Sprintf("%s-%s", rawID, data.ComponentType)
	if socialType != "" {
		key = fmt.Sprintf("%s-social-%s", rawID, socialType)
	}

	if entry, ok := a.entries[key]; ok {
		entry.Clicks++
		return
	}
	a.entries[key] = &ComponentClick{
		ID:         rawID,
		Type:       data.ComponentType,
		Title:      data.ComponentTitle,
		Clicks:     1,
		IsAuto:     true,
		SocialType: socialType,
	}
}
