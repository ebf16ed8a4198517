package domain

import "time"

// TimeRecord is the accumulated time for one domain within the current
// period. AccumulatedMillis only grows within a period; crossing a period
// boundary zeroes it exactly once before the next delta lands.
type TimeRecord struct {
	AccumulatedMillis int64     `json:"time"`
	PeriodAnchor      time.Time `json:"lastReset"`
}

// ActiveSession marks the tracked domain currently holding focus. It lives
// only in process memory (never the durable cache) so a crash cannot
// resurrect a stale StartedAt and log a bogus multi-hour duration.
type ActiveSession struct {
	TabID     int       `json:"tabId"`
	Domain    string    `json:"domain"`
	StartedAt time.Time `json:"startTime"`
}

// EditLogEntry records that the tracked list was changed while
// authenticated. The reconciliation job consumes and clears these daily.
type EditLogEntry struct {
	Edited bool      `json:"edited"`
	At     time.Time `json:"date"`
}
