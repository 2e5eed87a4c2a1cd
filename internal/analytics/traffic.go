package analytics

import (
	"log/slog"
	"sort"

	"linkpage/internal/pkg/referrers"
)

type campaignKey struct {
	campaign string
	source   string
	medium   string
}

// ClassifyTraffic turns referer groups into traffic sources: one entry per
// non-empty category in referrers.Categories order, then one per referring
// hostname, then one per UTM campaign. Referers that cannot be parsed are
// skipped.
func ClassifyTraffic(logger *slog.Logger, rows []RefererCount) []TrafficSource {
	categories := make(map[referrers.Category]int64)
	hostnames := make(map[string]int64)
	campaigns := make(map[campaignKey]int64)

	for _, row := range rows {
		if row.Count <= 0 {
			continue
		}
		raw := ""
		if row.Referer != nil {
			raw = *row.Referer
		}
		if referrers.IsDirect(raw) {
			categories[referrers.Direct] += row.Count
			continue
		}

		ref, err := referrers.Parse(raw)
		if err != nil {
			logger.Warn("Skipping unparseable referer", slog.String("referer", raw), slog.Any("error", err))
			continue
		}

		categories[ref.Category] += row.Count
		if ref.Hostname != "" {
			hostnames[ref.Hostname] += row.Count
		}
		if ref.Campaign != nil {
			key := campaignKey{
				campaign: ref.Campaign.Campaign,
				source:   ref.Campaign.Source,
				medium:   ref.Campaign.Medium,
			}
			campaigns[key] += row.Count
		}
	}

	sources := make([]TrafficSource, 0, len(categories)+len(hostnames)+len(campaigns))

	for _, category := range referrers.Categories {
		if count := categories[category]; count > 0 {
			sources = append(sources, TrafficSource{Type: SourceCategory, Source: string(category), Count: count})
		}
	}

	hosts := make([]string, 0, len(hostnames))
	for host := range hostnames {
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hostnames[hosts[i]] != hostnames[hosts[j]] {
			return hostnames[hosts[i]] > hostnames[hosts[j]]
		}
		return hosts[i] < hosts[j]
	})
	for _, host := range hosts {
		sources = append(sources, TrafficSource{Type: SourceReferrer, Source: host, Count: hostnames[host]})
	}

	keys := make([]campaignKey, 0, len(campaigns))
	for key := range campaigns {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if campaigns[a] != campaigns[b] {
			return campaigns[a] > campaigns[b]
		}
		if a.campaign != b.campaign {
			return a.campaign < b.campaign
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.medium < b.medium
	})
	for _, key := range keys {
		medium, campaign := key.medium, key.campaign
		sources = append(sources, TrafficSource{
			Type:     SourceCampaign,
			Source:   key.source,
			Count:    campaigns[key],
			Medium:   &medium,
			Campaign: &campaign,
		})
	}

	return sources
}
