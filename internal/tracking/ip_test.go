package tracking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"linkpage/internal/tracking"
)

func TestParseClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.9", tracking.ParseClientIP("::ffff:203.0.113.9").String())
	assert.Equal(t, "2001:db8::1", tracking.ParseClientIP("[2001:db8::1]").String())
	assert.Equal(t, "fe80::1", tracking.ParseClientIP("fe80::1%eth0").String())
	assert.False(t, tracking.ParseClientIP("not-an-ip").IsValid())
	assert.False(t, tracking.ParseClientIP("").IsValid())
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "203.0.113.xxx", tracking.MaskIP(tracking.ParseClientIP("203.0.113.9")))
	assert.Equal(t, "2001:0db8:0000::xxxx", tracking.MaskIP(tracking.ParseClientIP("2001:db8::1")))
	assert.Equal(t, "", tracking.MaskIP(tracking.ParseClientIP("")))
}

func TestLocatable(t *testing.T) {
	assert.True(t, tracking.Locatable(tracking.ParseClientIP("8.8.8.8")))
	assert.False(t, tracking.Locatable(tracking.ParseClientIP("127.0.0.1")))
	assert.False(t, tracking.Locatable(tracking.ParseClientIP("10.0.0.4")))
	assert.False(t, tracking.Locatable(tracking.ParseClientIP("::1")))
	assert.False(t, tracking.Locatable(tracking.ParseClientIP("")))
}
