package googleads

import "github.com/frans-sjostrom/ads-insights/internal/models"

// Summarize totals daily rows into the KPI figures for the whole range.
func Summarize(daily []models.DailyMetrics) models.Summary {
	var total models.Metrics
	for _, d := range daily {
		total = addMetrics(total, d.Metrics)
	}
	derive(&total)
	return models.Summary{Metrics: total, Days: len(daily)}
}
