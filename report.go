package hemat

// ResourceUsage aggregates the billed calls of one resource type or endpoint.
type ResourceUsage struct {
	Requests int     `json:"requests"`
	Items    int     `json:"items"`
	Credits  float64 `json:"credits"`
}

// UsageReport summarizes spending over a trailing window of days.
type UsageReport struct {
	PeriodDays    int                      `json:"period_days"`
	TotalRequests int                      `json:"total_requests"`
	TotalCredits  float64                  `json:"total_credits"`
	TotalUSD      float64                  `json:"total_usd"`
	ByType        map[string]ResourceUsage `json:"by_type"`
	ByEndpoint    map[string]ResourceUsage `json:"by_endpoint"`
	ByDay         map[string]float64       `json:"by_day"`
}

// Report aggregates the usage history of the last days days, grouping spend
// by resource type, by endpoint, and by calendar day. days below 1 means the
// default seven day window.
func (b *BudgetTracker) Report(days int) UsageReport {
	if days < 1 {
		days = 7
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock.Now().AddDate(0, 0, -days)
	report := UsageReport{
		PeriodDays: days,
		ByType:     make(map[string]ResourceUsage),
		ByEndpoint: make(map[string]ResourceUsage),
		ByDay:      make(map[string]float64),
	}

	for _, entry := range b.history {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		report.TotalRequests++
		report.TotalCredits += entry.Credits
		report.TotalUSD += entry.USD

		byType := report.ByType[entry.ResourceType]
		byType.Requests++
		byType.Items += entry.Count
		byType.Credits += entry.Credits
		report.ByType[entry.ResourceType] = byType

		byEndpoint := report.ByEndpoint[entry.Endpoint]
		byEndpoint.Requests++
		byEndpoint.Items += entry.Count
		byEndpoint.Credits += entry.Credits
		report.ByEndpoint[entry.Endpoint] = byEndpoint

		day := entry.Timestamp.Format("2006-01-02")
		report.ByDay[day] += entry.Credits
	}

	return report
}
