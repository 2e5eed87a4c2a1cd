package tracking_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/tracking"
)

func TestLooseString(t *testing.T) {
	var body struct {
		PageID      tracking.LooseString `json:"pageId"`
		ComponentID tracking.LooseString `json:"componentId"`
		Missing     tracking.LooseString `json:"missing"`
	}

	t.Run("accepts numbers and strings", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"pageId":42,"componentId":" social-1 "}`), &body))
		assert.Equal(t, tracking.LooseString("42"), body.PageID)
		assert.Equal(t, tracking.LooseString("social-1"), body.ComponentID)
		assert.Equal(t, tracking.LooseString(""), body.Missing)
	})

	t.Run("null and objects decode to empty", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"pageId":null,"componentId":{"a":1}}`), &body))
		assert.Equal(t, tracking.LooseString(""), body.PageID)
		assert.Equal(t, tracking.LooseString(""), body.ComponentID)
	})
}

func TestDecodeEventData(t *testing.T) {
	t.Run("reads typed fields", func(t *testing.T) {
		data, err := tracking.DecodeEventData([]byte(`{
			"componentType": "social",
			"componentTitle": "Follow me",
			"rawComponentId": 7,
			"timeSpent": 12.5,
			"percentage": 75,
			"targetInfo": {"elementData": {"data-social-type": "tiktok"}},
			"elementData": {"data-social-type": "instagram"}
		}`))
		require.NoError(t, err)

		assert.Equal(t, "social", data.ComponentType)
		assert.Equal(t, "Follow me", data.ComponentTitle)
		assert.Equal(t, "7", data.RawComponentID)
		require.NotNil(t, data.TimeSpent)
		assert.Equal(t, 12.5, *data.TimeSpent)
		require.NotNil(t, data.Percentage)
		assert.Equal(t, 75.0, *data.Percentage)
		assert.Equal(t, "tiktok", data.SocialType())
	})

	t.Run("falls back to top level element data", func(t *testing.T) {
		data, err := tracking.DecodeEventData([]byte(`{"targetInfo":{},"elementData":{"data-social-type":"instagram"}}`))
		require.NoError(t, err)
		assert.Equal(t, "instagram", data.SocialType())
	})

	t.Run("ignores fields of the wrong type", func(t *testing.T) {
		data, err := tracking.DecodeEventData([]byte(`{"timeSpent":"soon","componentType":["x"]}`))
		require.NoError(t, err)
		assert.Nil(t, data.TimeSpent)
		assert.Equal(t, "", data.ComponentType)
	})

	t.Run("empty documents", func(t *testing.T) {
		for _, raw := range []string{"", "null", "  "} {
			data, err := tracking.DecodeEventData([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, tracking.EventData{}, data)
		}
	})

	t.Run("rejects non objects", func(t *testing.T) {
		_, err := tracking.DecodeEventData([]byte(`[1]`))
		assert.Error(t, err)
	})
}

func TestParseID(t *testing.T) {
	id, ok := tracking.ParseID(" 15 ")
	assert.True(t, ok)
	assert.Equal(t, uint(15), id)

	for _, raw := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := tracking.ParseID(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseEventType(t *testing.T) {
	for _, name := range []string{"pageview", "click", "scroll", "exit"} {
		eventType, ok := tracking.ParseEventType(name)
		assert.True(t, ok)
		assert.Equal(t, tracking.EventType(name), eventType)
	}

	_, ok := tracking.ParseEventType("Click")
	assert.False(t, ok)
}
