package googleads

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/models"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDateRange = errors.New("invalid date range")

	recommendationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_~\-]+$`)
)

// ParseDateRange validates YYYY-MM-DD bounds and that start is not after end.
func ParseDateRange(start, end string) (models.DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("%w: start date %q must be YYYY-MM-DD", ErrInvalidDateRange, start)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("%w: end date %q must be YYYY-MM-DD", ErrInvalidDateRange, end)
	}
	if s.After(e) {
		return models.DateRange{}, fmt.Errorf("%w: start date is after end date", ErrInvalidDateRange)
	}
	return models.DateRange{Start: start, End: end}, nil
}

// DefaultDateRange is the last 30 days up to and including today.
func DefaultDateRange(now time.Time) models.DateRange {
	return models.DateRange{
		Start: now.AddDate(0, 0, -29).Format(dateLayout),
		End:   now.Format(dateLayout),
	}
}

func dateFilter(dr models.DateRange) string {
	return fmt.Sprintf("segments.date BETWEEN '%s' AND '%s'", dr.Start, dr.End)
}

func gaql(lines ...string) string {
	return strings.Join(lines, "\n")
}

const metricFields = `metrics.impressions,
  metrics.clicks,
  metrics.cost_micros,
  metrics.conversions,
  metrics.conversions_value,
  metrics.ctr,
  metrics.average_cpc`

func customerQuery() string {
	return gaql(
		"SELECT customer.id, customer.descriptive_name, customer.currency_code,",
		"  customer.time_zone, customer.manager",
		"FROM customer",
		"LIMIT 1",
	)
}

func dailyQuery(dr models.DateRange) string {
	return gaql(
		"SELECT segments.date,",
		"  "+metricFields,
		"FROM customer",
		"WHERE "+dateFilter(dr),
		"ORDER BY segments.date",
	)
}

func campaignQuery(dr models.DateRange) string {
	return gaql(
		"SELECT campaign.id, campaign.name, campaign.status,",
		"  campaign.advertising_channel_type, campaign.bidding_strategy_type,",
		"  campaign.start_date, campaign.end_date, campaign_budget.amount_micros,",
		"  metrics.search_impression_share,",
		"  "+metricFields,
		"FROM campaign",
		"WHERE "+dateFilter(dr),
		"  AND campaign.status != 'REMOVED'",
		"ORDER BY metrics.cost_micros DESC",
	)
}

func adGroupQuery(dr models.DateRange) string {
	return gaql(
		"SELECT ad_group.id, ad_group.name, ad_group.status, ad_group.type,",
		"  ad_group.cpc_bid_micros, campaign.id, campaign.name,",
		"  "+metricFields,
		"FROM ad_group",
		"WHERE "+dateFilter(dr),
		"  AND ad_group.status != 'REMOVED'",
		"ORDER BY metrics.cost_micros DESC",
	)
}

func keywordQuery(dr models.DateRange) string {
	return gaql(
		"SELECT ad_group_criterion.criterion_id, ad_group_criterion.status,",
		"  ad_group_criterion.keyword.text, ad_group_criterion.keyword.match_type,",
		"  ad_group_criterion.quality_info.quality_score,",
		"  ad_group_criterion.quality_info.creative_quality_score,",
		"  ad_group_criterion.quality_info.post_click_quality_score,",
		"  ad_group_criterion.quality_info.search_predicted_ctr,",
		"  ad_group.id, ad_group.name, campaign.name,",
		"  "+metricFields,
		"FROM keyword_view",
		"WHERE "+dateFilter(dr),
		"  AND ad_group_criterion.status != 'REMOVED'",
		"ORDER BY metrics.cost_micros DESC",
		"LIMIT 500",
	)
}

func geoQuery(dr models.DateRange) string {
	return gaql(
		"SELECT geographic_view.country_criterion_id, geographic_view.location_type,",
		"  "+metricFields,
		"FROM geographic_view",
		"WHERE "+dateFilter(dr),
	)
}

func ageRangeQuery(dr models.DateRange) string {
	return gaql(
		"SELECT ad_group_criterion.age_range.type,",
		"  "+metricFields,
		"FROM age_range_view",
		"WHERE "+dateFilter(dr),
	)
}

func recommendationsQuery() string {
	return gaql(
		"SELECT recommendation.resource_name, recommendation.type,",
		"  recommendation.campaign, recommendation.dismissed,",
		"  recommendation.impact.base_metrics.clicks,",
		"  recommendation.impact.base_metrics.conversions,",
		"  recommendation.impact.base_metrics.cost_micros,",
		"  recommendation.impact.potential_metrics.clicks,",
		"  recommendation.impact.potential_metrics.conversions,",
		"  recommendation.impact.potential_metrics.cost_micros",
		"FROM recommendation",
		"WHERE recommendation.dismissed = FALSE",
	)
}

// ValidRecommendationID reports whether id is a plain token that can be
// embedded in a recommendation resource name literal.
func ValidRecommendationID(id string) bool {
	return recommendationIDPattern.MatchString(id)
}

func recommendationLookupQuery(customerID, recommendationID string) string {
	resource := fmt.Sprintf("customers/%s/recommendations/%s", customerID, recommendationID)
	return gaql(
		"SELECT recommendation.resource_name, recommendation.type,",
		"  recommendation.campaign, recommendation.dismissed",
		"FROM recommendation",
		fmt.Sprintf("WHERE recommendation.resource_name = '%s'", resource),
	)
}
