package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

type PeriodKind string

const (
	PeriodDaily  PeriodKind = "daily"
	PeriodWeekly PeriodKind = "weekly"
)

func (p PeriodKind) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// TrackedSite is one entry in a user's tracked list. Identity is the
// normalized domain, unique per user.
type TrackedSite struct {
	Domain      string     `json:"url"`
	LimitMillis int64      `json:"limit"` // 0 = unlimited
	Period      PeriodKind `json:"type"`
	LastChanged time.Time  `json:"lastChanged"`
}

var domainPattern = regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

// NormalizeDomain reduces a raw user-entered URL or hostname to the bare
// domain used as site identity: no scheme, no path, no leading "www.",
// lowercase. Returns ErrInvalidDomain if nothing usable remains.
func NormalizeDomain(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidDomain
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		parsed, err := url.Parse(s)
		if err != nil || parsed.Hostname() == "" {
			return "", ErrInvalidDomain
		}
		s = parsed.Hostname()
	} else {
		// Strip any path the user pasted along
		if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
			s = s[:idx]
		}
	}

	s = strings.TrimPrefix(s, "www.")

	if !domainPattern.MatchString(s) {
		return "", ErrInvalidDomain
	}
	return s, nil
}

// FindSite returns the site with the given domain, or nil.
func FindSite(sites []TrackedSite, domain string) *TrackedSite {
	for i := range sites {
		if sites[i].Domain == domain {
			return &sites[i]
		}
	}
	return nil
}
