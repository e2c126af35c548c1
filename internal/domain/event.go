package domain

import "time"

// AnalyticsEvent is one recorded visit. It lives only on the analytics
// queue; the aggregator folds batches of events into daily rollups and
// the event itself is never persisted as a row.
type AnalyticsEvent struct {
	LinkID           int64  `json:"link_id"`
	ReferrerHost     string `json:"referrer_host"`
	CountryCode      string `json:"country_code"`
	OccurredAtMillis int64  `json:"occurred_at_millis"`
}

// Day returns the UTC calendar day the event belongs to, truncated to
// midnight. Rollup rows are keyed by this value.
func (e AnalyticsEvent) Day() time.Time {
	t := time.UnixMilli(e.OccurredAtMillis).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
