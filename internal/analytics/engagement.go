package analytics

import (
	"log/slog"
	"math"

	"linkpage/internal/tracking"
)

// AverageTimeSpent is the mean timeSpent over exit event payloads that carry
// a numeric value. Unreadable payloads are skipped.
func AverageTimeSpent(logger *slog.Logger, payloads []string) float64 {
	var total float64
	var n int
	for _, raw := range payloads {
		data, err := tracking.DecodeEventData([]byte(raw))
		if err != nil {
			logger.Debug("Skipping exit event with unreadable data", slog.Any("error", err))
			continue
		}
		if data.TimeSpent == nil || math.IsNaN(*data.TimeSpent) || math.IsInf(*data.TimeSpent, 0) {
			continue
		}
		total += *data.TimeSpent
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// BounceRate is the share of visits without a click or scroll, as a
// percentage in [0, 100].
func BounceRate(bounced, totalVisits int64) float64 {
	if totalVisits <= 0 || bounced <= 0 {
		return 0
	}
	if bounced >= totalVisits {
		return 100
	}
	return float64(bounced) / float64(totalVisits) * 100
}
