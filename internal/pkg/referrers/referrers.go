// Package referrers classifies the referer recorded on a visit.
package referrers

import (
	"errors"
	"net/url"
	"strings"
)

// Category is the traffic source bucket of a referer.
type Category string

const (
	Direct   Category = "direct"
	Social   Category = "social"
	Search   Category = "search"
	Email    Category = "email"
	Referral Category = "referral"
	Unknown  Category = "unknown"
)

// Categories lists every category in reporting order.
var Categories = []Category{Direct, Social, Search, Email, Referral, Unknown}

// Hostname fragments per category, matched as substrings in this order.
var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{Social, []string{"facebook.com", "instagram.com", "twitter.com", "linkedin.com", "youtube.com", "tiktok.com"}},
	{Search, []string{"google.", "bing.com", "yahoo.com", "search."}},
	{Email, []string{"mail.", "outlook.", "gmail.", "newsletter"}},
}

var ErrUnparseable = errors.New("referer is not an absolute url")

// Campaign holds the UTM parameters carried by a referer url.
type Campaign struct {
	Source   string
	Medium   string
	Campaign string
}

// Referer is a parsed, non-direct referer.
type Referer struct {
	Hostname string
	Category Category
	Campaign *Campaign
}

// IsDirect reports whether raw denotes direct traffic.
func IsDirect(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || strings.EqualFold(trimmed, "about:blank")
}

// Categorize assigns a category to an already lowercased hostname.
func Categorize(hostname string) Category {
	for _, group := range categoryPatterns {
		for _, pattern := range group.patterns {
			if strings.Contains(hostname, pattern) {
				return group.category
			}
		}
	}
	if hostname != "" {
		return Referral
	}
	return Unknown
}

// Parse classifies a non-direct referer. Values without a scheme are
// rejected with ErrUnparseable.
func Parse(raw string) (Referer, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Referer{}, err
	}
	if u.Scheme == "" {
		return Referer{}, ErrUnparseable
	}

	hostname := strings.ToLower(u.Hostname())
	ref := Referer{
		Hostname: hostname,
		Category: Categorize(hostname),
	}

	query := u.Query()
	if query.Has("utm_source") || query.Has("utm_medium") || query.Has("utm_campaign") {
		ref.Campaign = &Campaign{
			Source:   query.Get("utm_source"),
			Medium:   query.Get("utm_medium"),
			Campaign: query.Get("utm_campaign"),
		}
	}
	return ref, nil
}
