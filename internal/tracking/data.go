package tracking

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LooseString accepts a JSON string or number and keeps its textual form.
// null and other JSON values decode to the empty string.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	*s = LooseString(looseString(b))
	return nil
}

func looseString(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ""
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return ""
		}
		return n.String()
	}
	return ""
}

func looseNumber(b []byte) *float64 {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	return &v
}

// SocialTypeKey is the element data attribute naming the social network of
// an auto detected social link.
const SocialTypeKey = "data-social-type"

// TargetInfo describes the element a click landed on.
type TargetInfo struct {
	ElementData map[string]any `json:"elementData,omitempty"`
}

// EventData is the typed view of Event.Data. Fields of the wrong JSON type
// are ignored rather than failing the whole document.
type EventData struct {
	ComponentType  string
	ComponentTitle string
	RawComponentID string
	TimeSpent      *float64
	Percentage     *float64
	X              *float64
	Y              *float64
	TargetInfo     *TargetInfo
	ElementData    map[string]any
}

func (d *EventData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*d = EventData{
		ComponentType:  looseString(raw["componentType"]),
		ComponentTitle: looseString(raw["componentTitle"]),
		RawComponentID: looseString(raw["rawComponentId"]),
		TimeSpent:      looseNumber(raw["timeSpent"]),
		Percentage:     looseNumber(raw["percentage"]),
		X:              looseNumber(raw["x"]),
		Y:              looseNumber(raw["y"]),
		ElementData:    objectField(raw["elementData"]),
	}

	if target := objectField(raw["targetInfo"]); target != nil {
		info := &TargetInfo{}
		if elementData, ok := target["elementData"].(map[string]any); ok {
			info.ElementData = elementData
		}
		d.TargetInfo = info
	}
	return nil
}

func objectField(b json.RawMessage) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// SocialType returns the social network recorded for the clicked element,
// preferring targetInfo.elementData over the top level elementData.
func (d EventData) SocialType() string {
	if d.TargetInfo != nil {
		if v := stringAttr(d.TargetInfo.ElementData, SocialTypeKey); v != "" {
			return v
		}
	}
	return stringAttr(d.ElementData, SocialTypeKey)
}

func stringAttr(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// DecodeEventData decodes a stored data column. Empty and null documents
// yield a zero EventData.
func DecodeEventData(raw []byte) (EventData, error) {
	var data EventData
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return data, nil
	}
	err := json.Unmarshal(trimmed, &data)
	return data, err
}

// ParseID parses a positive numeric identifier.
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
