package googleads

import (
	"testing"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{"valid", "2026-03-01", "2026-03-31", false},
		{"single day", "2026-03-01", "2026-03-01", false},
		{"reversed", "2026-03-31", "2026-03-01", true},
		{"bad start", "03/01/2026", "2026-03-31", true},
		{"bad end", "2026-03-01", "2026-02-30", true},
		{"injection", "2026-03-01' OR '1'='1", "2026-03-31", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dr, err := ParseDateRange(tt.start, tt.end)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDateRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.DateRange{Start: tt.start, End: tt.end}, dr)
		})
	}
}

func TestDefaultDateRange(t *testing.T) {
	dr := DefaultDateRange(time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-02", dr.Start)
	assert.Equal(t, "2026-03-31", dr.End)
}

func TestReportQueriesUseClosedInterval(t *testing.T) {
	dr := models.DateRange{Start: "2026-01-01", End: "2026-01-31"}
	queries := map[string]string{
		"customer":        dailyQuery(dr),
		"campaign":        campaignQuery(dr),
		"ad_group":        adGroupQuery(dr),
		"keyword_view":    keywordQuery(dr),
		"geographic_view": geoQuery(dr),
		"age_range_view":  ageRangeQuery(dr),
	}
	for resource, q := range queries {
		assert.Equal(t, resource, fromResource(q))
		assert.Contains(t, q, "segments.date BETWEEN '2026-01-01' AND '2026-01-31'")
		assert.Contains(t, q, "metrics.cost_micros")
	}
}

func TestRecommendationLookup(t *testing.T) {
	assert.True(t, ValidRecommendationID("123~456"))
	assert.False(t, ValidRecommendationID("x' OR '1'='1"))
	assert.False(t, ValidRecommendationID(""))

	q := recommendationLookupQuery("123", "abc")
	assert.Contains(t, q, "recommendation.resource_name = 'customers/123/recommendations/abc'")
}
