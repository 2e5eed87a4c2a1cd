package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(TrackedEvents.WithLabelValues("click"))
	TrackedEvents.WithLabelValues("click").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TrackedEvents.WithLabelValues("click")))

	var _ prometheus.Collector = DegradedSections
}
