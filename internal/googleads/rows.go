package googleads

import (
	"bytes"
	"fmt"
	"strconv"
)

// The types below mirror the JSON the Ads REST search endpoint returns for
// each GAQL resource. Only selected fields are present on a row.

// Int64 decodes the REST encoding of int64 fields (quoted decimal strings)
// and also accepts bare numbers.
type Int64 int64

func (v *Int64) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(b), 64)
		if ferr != nil {
			return fmt.Errorf("googleads: invalid int64 value %q", b)
		}
		n = int64(f)
	}
	*v = Int64(n)
	return nil
}

func (v Int64) String() string {
	return strconv.FormatInt(int64(v), 10)
}

type rawMetrics struct {
	Impressions           Int64   `json:"impressions"`
	Clicks                Int64   `json:"clicks"`
	CostMicros            Int64   `json:"costMicros"`
	Conversions           float64 `json:"conversions"`
	ConversionsValue      float64 `json:"conversionsValue"`
	Ctr                   float64 `json:"ctr"`
	AverageCpc            float64 `json:"averageCpc"`
	SearchImpressionShare float64 `json:"searchImpressionShare"`
}

type rawSegments struct {
	Date string `json:"date"`
}

type rawCampaign struct {
	ResourceName           string `json:"resourceName"`
	ID                     Int64  `json:"id"`
	Name                   string `json:"name"`
	Status                 string `json:"status"`
	AdvertisingChannelType string `json:"advertisingChannelType"`
	BiddingStrategyType    string `json:"biddingStrategyType"`
	StartDate              string `json:"startDate"`
	EndDate                string `json:"endDate"`
}

type rawAdGroup struct {
	ResourceName string `json:"resourceName"`
	ID           Int64  `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
	CpcBidMicros Int64  `json:"cpcBidMicros"`
}

type CampaignRow struct {
	Campaign       rawCampaign `json:"campaign"`
	CampaignBudget struct {
		AmountMicros Int64 `json:"amountMicros"`
	} `json:"campaignBudget"`
	Metrics rawMetrics `json:"metrics"`
}

type AdGroupRow struct {
	AdGroup  rawAdGroup  `json:"adGroup"`
	Campaign rawCampaign `json:"campaign"`
	Metrics  rawMetrics  `json:"metrics"`
}

type KeywordRow struct {
	AdGroupCriterion struct {
		CriterionID Int64  `json:"criterionId"`
		Status      string `json:"status"`
		Keyword     struct {
			Text      string `json:"text"`
			MatchType string `json:"matchType"`
		} `json:"keyword"`
		QualityInfo struct {
			QualityScore          int    `json:"qualityScore"`
			CreativeQualityScore  string `json:"creativeQualityScore"`
			PostClickQualityScore string `json:"postClickQualityScore"`
			SearchPredictedCtr    string `json:"searchPredictedCtr"`
		} `json:"qualityInfo"`
	} `json:"adGroupCriterion"`
	AdGroup  rawAdGroup  `json:"adGroup"`
	Campaign rawCampaign `json:"campaign"`
	Metrics  rawMetrics  `json:"metrics"`
}

type DailyRow struct {
	Segments rawSegments `json:"segments"`
	Metrics  rawMetrics  `json:"metrics"`
}

type GeoRow struct {
	GeographicView struct {
		CountryCriterionID Int64  `json:"countryCriterionId"`
		LocationType       string `json:"locationType"`
	} `json:"geographicView"`
	Metrics rawMetrics `json:"metrics"`
}

type AgeRangeRow struct {
	AdGroupCriterion struct {
		AgeRange struct {
			Type string `json:"type"`
		} `json:"ageRange"`
	} `json:"adGroupCriterion"`
	Metrics rawMetrics `json:"metrics"`
}

type rawImpactMetrics struct {
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	CostMicros  Int64   `json:"costMicros"`
	Conversions float64 `json:"conversions"`
}

type RecommendationRow struct {
	Recommendation struct {
		ResourceName string `json:"resourceName"`
		Type         string `json:"type"`
		Campaign     string `json:"campaign"`
		Dismissed    bool   `json:"dismissed"`
		Impact       struct {
			BaseMetrics      rawImpactMetrics `json:"baseMetrics"`
			PotentialMetrics rawImpactMetrics `json:"potentialMetrics"`
		} `json:"impact"`
	} `json:"recommendation"`
}

type CustomerRow struct {
	Customer struct {
		ID              Int64  `json:"id"`
		DescriptiveName string `json:"descriptiveName"`
		CurrencyCode    string `json:"currencyCode"`
		TimeZone        string `json:"timeZone"`
		Manager         bool   `json:"manager"`
	} `json:"customer"`
}
