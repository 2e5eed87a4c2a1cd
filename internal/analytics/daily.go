package analytics

import "sort"

// MergeDailyStats reconciles the per-day visit and click counts into one
// ascending series. A day present in only one map gets 0 for the other
// field. The per-day engagement fields are always 0.
func MergeDailyStats(visits, clicks map[string]int64) []DailyStat {
	byDay := make(map[string]*DailyStat, len(visits))

	entry := func(day string) *DailyStat {
		stat, ok := byDay[day]
		if !ok {
			stat = &DailyStat{Date: day}
			byDay[day] = stat
		}
		return stat
	}

	for day, count := range visits {
		entry(day).Visits += count
	}
	for day, count := range clicks {
		entry(day).Clicks += count
	}

	stats := make([]DailyStat, 0, len(byDay))
	for _, stat := range byDay {
		stats = append(stats, *stat)
	}
	// ISO dates sort lexically.
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
	return stats
}
