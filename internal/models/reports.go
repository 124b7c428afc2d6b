package models

// Ratio fields (CTR, ConversionRate, *ImpressionShare) are decimals in [0,1].
// Monetary fields are in the account currency.

type CampaignStatus string

const (
	CampaignStatusEnabled CampaignStatus = "ENABLED"
	CampaignStatusPaused  CampaignStatus = "PAUSED"
	CampaignStatusRemoved CampaignStatus = "REMOVED"
)

type CampaignType string

const (
	CampaignTypeSearch         CampaignType = "SEARCH"
	CampaignTypeDisplay        CampaignType = "DISPLAY"
	CampaignTypeShopping       CampaignType = "SHOPPING"
	CampaignTypeVideo          CampaignType = "VIDEO"
	CampaignTypePerformanceMax CampaignType = "PERFORMANCE_MAX"
	CampaignTypeDemandGen      CampaignType = "DEMAND_GEN"
	CampaignTypeApp            CampaignType = "APP"
	CampaignTypeSmart          CampaignType = "SMART"
	CampaignTypeLocal          CampaignType = "LOCAL"
	CampaignTypeHotel          CampaignType = "HOTEL"
	CampaignTypeDiscovery      CampaignType = "DISCOVERY"
	CampaignTypeMultiChannel   CampaignType = "MULTI_CHANNEL"
	CampaignTypeLocalServices  CampaignType = "LOCAL_SERVICES"
	CampaignTypeTravel         CampaignType = "TRAVEL"
)

type MatchType string

const (
	MatchTypeExact  MatchType = "EXACT"
	MatchTypePhrase MatchType = "PHRASE"
	MatchTypeBroad  MatchType = "BROAD"
)

// QualityComponent is the bucket Google reports for expected CTR, ad relevance
// and landing page experience.
type QualityComponent string

const (
	QualityAboveAverage QualityComponent = "ABOVE_AVERAGE"
	QualityAverage      QualityComponent = "AVERAGE"
	QualityBelowAverage QualityComponent = "BELOW_AVERAGE"
)

// Metrics is the shared performance block carried by every report row.
type Metrics struct {
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	Spend           float64 `json:"spend"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	CTR             float64 `json:"ctr"`
	CPC             float64 `json:"cpc"`
	CPA             float64 `json:"cpa"`
	ROAS            float64 `json:"roas"`
	ConversionRate  float64 `json:"conversion_rate"`
}

type Campaign struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Status                CampaignStatus `json:"status"`
	Type                  CampaignType   `json:"type"`
	BiddingStrategy       string         `json:"bidding_strategy,omitempty"`
	Budget                float64        `json:"budget"`
	StartDate             string         `json:"start_date,omitempty"`
	EndDate               string         `json:"end_date,omitempty"`
	SearchImpressionShare float64        `json:"search_impression_share"`
	Metrics
}

type AdGroup struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	CampaignName string         `json:"campaign_name"`
	Name         string         `json:"name"`
	Status       CampaignStatus `json:"status"`
	Type         string         `json:"type,omitempty"`
	CPCBid       float64        `json:"cpc_bid"`
	Metrics
}

type Keyword struct {
	ID                    string           `json:"id"`
	AdGroupID             string           `json:"ad_group_id"`
	AdGroupName           string           `json:"ad_group_name"`
	CampaignName          string           `json:"campaign_name"`
	Text                  string           `json:"text"`
	MatchType             MatchType        `json:"match_type"`
	Status                CampaignStatus   `json:"status"`
	QualityScore          int              `json:"quality_score"`
	ExpectedCTR           QualityComponent `json:"expected_ctr"`
	AdRelevance           QualityComponent `json:"ad_relevance"`
	LandingPageExperience QualityComponent `json:"landing_page_experience"`
	Metrics
}

type DailyMetrics struct {
	Date string `json:"date"`
	Metrics
}

type GeoPerformance struct {
	CriterionID  string `json:"criterion_id"`
	CountryCode  string `json:"country_code"`
	CountryName  string `json:"country_name"`
	LocationType string `json:"location_type,omitempty"`
	Metrics
}

type DemographicPerformance struct {
	Dimension string `json:"dimension"`
	Segment   string `json:"segment"`
	Metrics
}

type Recommendation struct {
	ResourceName         string  `json:"resource_name"`
	ID                   string  `json:"id"`
	Type                 string  `json:"type"`
	CampaignID           string  `json:"campaign_id,omitempty"`
	Dismissed            bool    `json:"dismissed"`
	BaseClicks           float64 `json:"base_clicks"`
	PotentialClicks      float64 `json:"potential_clicks"`
	BaseConversions      float64 `json:"base_conversions"`
	PotentialConversions float64 `json:"potential_conversions"`
	BaseSpend            float64 `json:"base_spend"`
	PotentialSpend       float64 `json:"potential_spend"`
}

// MetricsBundle is everything the dashboard overview needs for one account.
type MetricsBundle struct {
	Summary      Summary                  `json:"summary"`
	Daily        []DailyMetrics           `json:"daily"`
	Campaigns    []Campaign               `json:"campaigns"`
	AdGroups     []AdGroup                `json:"ad_groups"`
	Keywords     []Keyword                `json:"keywords"`
	GeoData      []GeoPerformance         `json:"geo_data"`
	Demographics []DemographicPerformance `json:"demographics"`
}

// Summary holds the KPI card totals for a date range.
type Summary struct {
	Metrics
	Days int `json:"days"`
}

type ApplyRecommendationResult struct {
	Success      bool   `json:"success"`
	Applied      bool   `json:"applied"`
	ResourceName string `json:"resource_name"`
	Message      string `json:"message"`
}
