package handlers

import (
	"context"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/config"
	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdsService is what the Google Ads routes need from googleads.Service.
type AdsService interface {
	Connect(ctx context.Context, userID uuid.UUID, code string) ([]models.GoogleAdsAccount, error)
	Disconnect(ctx context.Context, userID uuid.UUID, customerID string) error
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.GoogleAdsAccount, error)
	AccountForUser(ctx context.Context, userID uuid.UUID, customerID string) (*models.GoogleAdsAccount, error)

	FetchMetrics(ctx context.Context, accountID uuid.UUID, dr models.DateRange) (*models.MetricsBundle, error)
	FetchCampaigns(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.Campaign, error)
	FetchAdGroups(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.AdGroup, error)
	FetchKeywords(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.Keyword, error)
	FetchDaily(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.DailyMetrics, error)
	FetchGeo(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.GeoPerformance, error)
	FetchDemographics(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.DemographicPerformance, error)
	FetchRecommendations(ctx context.Context, accountID uuid.UUID) ([]models.Recommendation, error)
	ApplyRecommendation(ctx context.Context, accountID uuid.UUID, recommendationID string) (*models.ApplyRecommendationResult, error)
}

// ConsentURLBuilder builds the Google consent screen URL.
type ConsentURLBuilder interface {
	AuthorizationURL(state, redirectURI string) string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db     Pinger
	ads    AdsService
	oauth  ConsentURLBuilder
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func New(db Pinger, ads AdsService, oauth ConsentURLBuilder, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		db:     db,
		ads:    ads,
		oauth:  oauth,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}
