package googleads

import (
	"sort"
	"strings"

	"github.com/frans-sjostrom/ads-insights/internal/models"
)

const microsPerUnit = 1_000_000

var campaignStatuses = map[string]models.CampaignStatus{
	"ENABLED": models.CampaignStatusEnabled,
	"PAUSED":  models.CampaignStatusPaused,
	"REMOVED": models.CampaignStatusRemoved,
}

var campaignTypes = map[string]models.CampaignType{
	"SEARCH":          models.CampaignTypeSearch,
	"DISPLAY":         models.CampaignTypeDisplay,
	"SHOPPING":        models.CampaignTypeShopping,
	"VIDEO":           models.CampaignTypeVideo,
	"PERFORMANCE_MAX": models.CampaignTypePerformanceMax,
	"DEMAND_GEN":      models.CampaignTypeDemandGen,
	"MULTI_CHANNEL":   models.CampaignTypeMultiChannel,
	"APP":             models.CampaignTypeApp,
	"SMART":           models.CampaignTypeSmart,
	"LOCAL":           models.CampaignTypeLocal,
	"HOTEL":           models.CampaignTypeHotel,
	"DISCOVERY":       models.CampaignTypeDiscovery,
	"LOCAL_SERVICES":  models.CampaignTypeLocalServices,
	"TRAVEL":          models.CampaignTypeTravel,
}

var matchTypes = map[string]models.MatchType{
	"EXACT":  models.MatchTypeExact,
	"PHRASE": models.MatchTypePhrase,
	"BROAD":  models.MatchTypeBroad,
}

var qualityComponents = map[string]models.QualityComponent{
	"ABOVE_AVERAGE": models.QualityAboveAverage,
	"AVERAGE":       models.QualityAverage,
	"BELOW_AVERAGE": models.QualityBelowAverage,
}

// ageRanges also fixes the display order of the demographic report.
var ageRanges = []struct {
	enum  string
	label string
}{
	{"AGE_RANGE_18_24", "18-24"},
	{"AGE_RANGE_25_34", "25-34"},
	{"AGE_RANGE_35_44", "35-44"},
	{"AGE_RANGE_45_54", "45-54"},
	{"AGE_RANGE_55_64", "55-64"},
	{"AGE_RANGE_65_UP", "65+"},
	{"AGE_RANGE_UNDETERMINED", "Unknown"},
}

func MicrosToValue(micros int64) float64 {
	return float64(micros) / microsPerUnit
}

// CPA is spend per conversion, 0 when there were no conversions.
func CPA(spend, conversions float64) float64 {
	return ratio(spend, conversions)
}

// ROAS is conversion value per unit of spend, 0 when nothing was spent.
func ROAS(conversionValue, spend float64) float64 {
	return ratio(conversionValue, spend)
}

// MapStatus falls back to PAUSED for values it does not know.
func MapStatus(s string) models.CampaignStatus {
	if v, ok := campaignStatuses[s]; ok {
		return v
	}
	return models.CampaignStatusPaused
}

// MapCampaignType falls back to SEARCH.
func MapCampaignType(s string) models.CampaignType {
	if v, ok := campaignTypes[s]; ok {
		return v
	}
	return models.CampaignTypeSearch
}

// MapMatchType falls back to BROAD.
func MapMatchType(s string) models.MatchType {
	if v, ok := matchTypes[s]; ok {
		return v
	}
	return models.MatchTypeBroad
}

// MapQualityComponent falls back to AVERAGE.
func MapQualityComponent(s string) models.QualityComponent {
	if v, ok := qualityComponents[s]; ok {
		return v
	}
	return models.QualityAverage
}

// MapAgeRange turns AGE_RANGE_25_34 into "25-34". Unknown values become "Unknown".
func MapAgeRange(s string) string {
	for _, r := range ageRanges {
		if r.enum == s {
			return r.label
		}
	}
	return "Unknown"
}

func TransformCampaigns(rows []CampaignRow) []models.Campaign {
	out := make([]models.Campaign, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Campaign{
			ID:                    r.Campaign.ID.String(),
			Name:                  r.Campaign.Name,
			Status:                MapStatus(r.Campaign.Status),
			Type:                  MapCampaignType(r.Campaign.AdvertisingChannelType),
			BiddingStrategy:       r.Campaign.BiddingStrategyType,
			Budget:                MicrosToValue(nonNegative(int64(r.CampaignBudget.AmountMicros))),
			StartDate:             r.Campaign.StartDate,
			EndDate:               r.Campaign.EndDate,
			SearchImpressionShare: clampRatio(r.Metrics.SearchImpressionShare),
			Metrics:               toMetrics(r.Metrics),
		})
	}
	return out
}

func TransformAdGroups(rows []AdGroupRow) []models.AdGroup {
	out := make([]models.AdGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.AdGroup{
			ID:           r.AdGroup.ID.String(),
			CampaignID:   r.Campaign.ID.String(),
			CampaignName: r.Campaign.Name,
			Name:         r.AdGroup.Name,
			Status:       MapStatus(r.AdGroup.Status),
			Type:         r.AdGroup.Type,
			CPCBid:       MicrosToValue(nonNegative(int64(r.AdGroup.CpcBidMicros))),
			Metrics:      toMetrics(r.Metrics),
		})
	}
	return out
}

func TransformKeywords(rows []KeywordRow) []models.Keyword {
	out := make([]models.Keyword, 0, len(rows))
	for _, r := range rows {
		c := r.AdGroupCriterion
		out = append(out, models.Keyword{
			ID:                    c.CriterionID.String(),
			AdGroupID:             r.AdGroup.ID.String(),
			AdGroupName:           r.AdGroup.Name,
			CampaignName:          r.Campaign.Name,
			Text:                  c.Keyword.Text,
			MatchType:             MapMatchType(c.Keyword.MatchType),
			Status:                MapStatus(c.Status),
			QualityScore:          c.QualityInfo.QualityScore,
			ExpectedCTR:           MapQualityComponent(c.QualityInfo.SearchPredictedCtr),
			AdRelevance:           MapQualityComponent(c.QualityInfo.CreativeQualityScore),
			LandingPageExperience: MapQualityComponent(c.QualityInfo.PostClickQualityScore),
			Metrics:               toMetrics(r.Metrics),
		})
	}
	return out
}

// TransformDaily merges rows for the same date and returns them oldest first.
func TransformDaily(rows []DailyRow) []models.DailyMetrics {
	byDate := make(map[string]*models.DailyMetrics)
	for _, r := range rows {
		d, ok := byDate[r.Segments.Date]
		if !ok {
			d = &models.DailyMetrics{Date: r.Segments.Date}
			byDate[r.Segments.Date] = d
		}
		d.Metrics = addMetrics(d.Metrics, toMetrics(r.Metrics))
	}

	out := make([]models.DailyMetrics, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// TransformGeo aggregates rows per country and orders them by spend.
func TransformGeo(rows []GeoRow) []models.GeoPerformance {
	byCountry := make(map[string]*models.GeoPerformance)
	var order []string
	for _, r := range rows {
		id := r.GeographicView.CountryCriterionID.String()
		g, ok := byCountry[id]
		if !ok {
			g = &models.GeoPerformance{
				CriterionID:  id,
				CountryCode:  GetCountryCode(id),
				CountryName:  GetCountryName(id),
				LocationType: r.GeographicView.LocationType,
			}
			byCountry[id] = g
			order = append(order, id)
		} else if g.LocationType != r.GeographicView.LocationType {
			g.LocationType = ""
		}
		g.Metrics = addMetrics(g.Metrics, toMetrics(r.Metrics))
	}

	out := make([]models.GeoPerformance, 0, len(order))
	for _, id := range order {
		out = append(out, *byCountry[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spend > out[j].Spend })
	return out
}

// TransformDemographics aggregates age range rows (one per ad group) into one
// row per age bucket.
func TransformDemographics(rows []AgeRangeRow) []models.DemographicPerformance {
	byLabel := make(map[string]models.Metrics)
	for _, r := range rows {
		label := MapAgeRange(r.AdGroupCriterion.AgeRange.Type)
		byLabel[label] = addMetrics(byLabel[label], toMetrics(r.Metrics))
	}

	out := make([]models.DemographicPerformance, 0, len(byLabel))
	for _, r := range ageRanges {
		m, ok := byLabel[r.label]
		if !ok {
			continue
		}
		out = append(out, models.DemographicPerformance{
			Dimension: "age",
			Segment:   r.label,
			Metrics:   m,
		})
	}
	return out
}

func TransformRecommendations(rows []RecommendationRow) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(rows))
	for _, r := range rows {
		rec := r.Recommendation
		base, potential := rec.Impact.BaseMetrics, rec.Impact.PotentialMetrics
		out = append(out, models.Recommendation{
			ResourceName:         rec.ResourceName,
			ID:                   lastSegment(rec.ResourceName),
			Type:                 rec.Type,
			CampaignID:           lastSegment(rec.Campaign),
			Dismissed:            rec.Dismissed,
			BaseClicks:           nonNegativeFloat(base.Clicks),
			PotentialClicks:      nonNegativeFloat(potential.Clicks),
			BaseConversions:      nonNegativeFloat(base.Conversions),
			PotentialConversions: nonNegativeFloat(potential.Conversions),
			BaseSpend:            MicrosToValue(nonNegative(int64(base.CostMicros))),
			PotentialSpend:       MicrosToValue(nonNegative(int64(potential.CostMicros))),
		})
	}
	return out
}

// toMetrics converts the raw metrics block. Conversion value is read in
// micros, like cost.
func toMetrics(raw rawMetrics) models.Metrics {
	m := models.Metrics{
		Impressions:     nonNegative(int64(raw.Impressions)),
		Clicks:          nonNegative(int64(raw.Clicks)),
		Spend:           MicrosToValue(nonNegative(int64(raw.CostMicros))),
		Conversions:     nonNegativeFloat(raw.Conversions),
		ConversionValue: nonNegativeFloat(raw.ConversionsValue) / microsPerUnit,
	}
	derive(&m)
	return m
}

func addMetrics(a, b models.Metrics) models.Metrics {
	sum := models.Metrics{
		Impressions:     a.Impressions + b.Impressions,
		Clicks:          a.Clicks + b.Clicks,
		Spend:           a.Spend + b.Spend,
		Conversions:     a.Conversions + b.Conversions,
		ConversionValue: a.ConversionValue + b.ConversionValue,
	}
	derive(&sum)
	return sum
}

func derive(m *models.Metrics) {
	m.CTR = ratio(float64(m.Clicks), float64(m.Impressions))
	m.CPC = ratio(m.Spend, float64(m.Clicks))
	m.CPA = CPA(m.Spend, m.Conversions)
	m.ROAS = ROAS(m.ConversionValue, m.Spend)
	m.ConversionRate = ratio(m.Conversions, float64(m.Clicks))
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegativeFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func lastSegment(resourceName string) string {
	if i := strings.LastIndex(resourceName, "/"); i >= 0 {
		return resourceName[i+1:]
	}
	return resourceName
}
