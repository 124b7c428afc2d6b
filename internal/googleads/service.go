package googleads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/frans-sjostrom/ads-insights/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AccountStore is the persisted account registry.
type AccountStore interface {
	Upsert(ctx context.Context, account *models.GoogleAdsAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GoogleAdsAccount, error)
	GetByUserAndCustomer(ctx context.Context, userID uuid.UUID, customerID string) (*models.GoogleAdsAccount, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.GoogleAdsAccount, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, refreshToken string, expectedVersion int) (int, error)
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, syncedAt *time.Time, syncError *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenProvider is the OAuth side: code exchange, refresh and revocation.
type TokenProvider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*models.OAuthTokens, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*models.RefreshedToken, error)
	RevokeToken(ctx context.Context, token string)
}

type ServiceOptions struct {
	RedirectURL string
	// RefreshSkew refreshes access tokens this long before they expire.
	RefreshSkew time.Duration
	Now         func() time.Time
}

// Service produces report data for connected accounts and keeps their
// tokens and sync status current.
type Service struct {
	store       AccountStore
	tokens      TokenProvider
	client      *Client
	redirectURL string
	skew        time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(store AccountStore, tokens TokenProvider, client *Client, opts ServiceOptions, logger *zap.Logger) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       store,
		tokens:      tokens,
		client:      client,
		redirectURL: opts.RedirectURL,
		skew:        opts.RefreshSkew,
		now:         now,
		logger:      logger,
	}
}

// FetchAccounts lists every customer the token can access with its metadata.
// A customer whose metadata cannot be read gets a placeholder name instead of
// failing the batch.
func (s *Service) FetchAccounts(ctx context.Context, accessToken string) ([]models.AccountSummary, error) {
	ids, err := s.client.ListAccessibleCustomers(ctx, accessToken)
	if err != nil {
		return nil, Classify(err)
	}

	summaries := make([]models.AccountSummary, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			summaries[i] = s.fetchAccountSummary(ctx, accessToken, id)
			return nil
		})
	}
	_ = g.Wait()
	return summaries, nil
}

func (s *Service) fetchAccountSummary(ctx context.Context, accessToken, customerID string) models.AccountSummary {
	placeholder := models.AccountSummary{CustomerID: customerID, Name: "Account " + customerID}

	rows, err := Search[CustomerRow](ctx, s.client, Call{AccessToken: accessToken, CustomerID: customerID}, customerQuery())
	if err != nil {
		s.logger.Warn("failed to fetch customer metadata",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return placeholder
	}
	if len(rows) == 0 {
		return placeholder
	}

	c := rows[0].Customer
	summary := models.AccountSummary{
		CustomerID:   customerID,
		Name:         c.DescriptiveName,
		CurrencyCode: c.CurrencyCode,
		TimeZone:     c.TimeZone,
		IsManager:    c.Manager,
	}
	if summary.Name == "" {
		summary.Name = placeholder.Name
	}
	return summary
}

// Connect finishes the consent flow: it exchanges the code and stores one
// account record per accessible customer.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID, code string) ([]models.GoogleAdsAccount, error) {
	tokens, err := s.tokens.ExchangeCode(ctx, code, s.redirectURL)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	summaries, err := s.FetchAccounts(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNoAccessibleAccounts
	}

	accounts := make([]models.GoogleAdsAccount, 0, len(summaries))
	for _, summary := range summaries {
		account := models.GoogleAdsAccount{
			UserID:         userID,
			CustomerID:     summary.CustomerID,
			AccountName:    summary.Name,
			CurrencyCode:   summary.CurrencyCode,
			TimeZone:       summary.TimeZone,
			IsManager:      summary.IsManager,
			AccessToken:    tokens.AccessToken,
			RefreshToken:   tokens.RefreshToken,
			TokenExpiresAt: tokens.ExpiresAt,
		}
		if err := s.store.Upsert(ctx, &account); err != nil {
			return nil, fmt.Errorf("failed to store account %s: %w", summary.CustomerID, err)
		}
		accounts = append(accounts, account)
	}

	s.logger.Info("google ads accounts connected",
		zap.String("user_id", userID.String()),
		zap.Int("accounts", len(accounts)),
	)
	return accounts, nil
}

// Disconnect removes the account. The grant is revoked at Google unless
// another of the user's accounts still uses it.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID, customerID string) error {
	account, err := s.store.GetByUserAndCustomer(ctx, userID, customerID)
	if err != nil {
		return err
	}

	// Without the sibling list the grant may still be in use, so keep it.
	shared := true
	others, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("skipping grant revocation, could not list accounts",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	} else {
		shared = false
		for _, other := range others {
			if other.ID != account.ID && other.RefreshToken == account.RefreshToken {
				shared = true
				break
			}
		}
	}
	if !shared {
		s.tokens.RevokeToken(ctx, account.RefreshToken)
	}

	if err := s.store.Delete(ctx, account.ID); err != nil {
		return err
	}
	s.logger.Info("google ads account disconnected",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", customerID),
		zap.Bool("revoked", !shared),
	)
	return nil
}

func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.GoogleAdsAccount, error) {
	return s.store.ListByUser(ctx, userID)
}

// AccountForUser returns the account only if userID connected it.
func (s *Service) AccountForUser(ctx context.Context, userID uuid.UUID, customerID string) (*models.GoogleAdsAccount, error) {
	return s.store.GetByUserAndCustomer(ctx, userID, customerID)
}

// FetchMetrics runs the six dashboard reports in parallel with one token.
func (s *Service) FetchMetrics(ctx context.Context, accountID uuid.UUID, dr models.DateRange) (*models.MetricsBundle, error) {
	bundle := &models.MetricsBundle{}
	err := s.withAccount(ctx, accountID, func(ctx context.Context, call Call) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(collect(ctx, s.client, call, dailyQuery(dr), TransformDaily, &bundle.Daily))
		g.Go(collect(ctx, s.client, call, campaignQuery(dr), TransformCampaigns, &bundle.Campaigns))
		g.Go(collect(ctx, s.client, call, adGroupQuery(dr), TransformAdGroups, &bundle.AdGroups))
		g.Go(collect(ctx, s.client, call, keywordQuery(dr), TransformKeywords, &bundle.Keywords))
		g.Go(collect(ctx, s.client, call, geoQuery(dr), TransformGeo, &bundle.GeoData))
		g.Go(collect(ctx, s.client, call, ageRangeQuery(dr), TransformDemographics, &bundle.Demographics))
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	bundle.Summary = Summarize(bundle.Daily)
	return bundle, nil
}

func (s *Service) FetchDaily(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.DailyMetrics, error) {
	return fetchReport(ctx, s, accountID, dailyQuery(dr), TransformDaily)
}

func (s *Service) FetchCampaigns(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.Campaign, error) {
	return fetchReport(ctx, s, accountID, campaignQuery(dr), TransformCampaigns)
}

func (s *Service) FetchAdGroups(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.AdGroup, error) {
	return fetchReport(ctx, s, accountID, adGroupQuery(dr), TransformAdGroups)
}

func (s *Service) FetchKeywords(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.Keyword, error) {
	return fetchReport(ctx, s, accountID, keywordQuery(dr), TransformKeywords)
}

func (s *Service) FetchGeo(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.GeoPerformance, error) {
	return fetchReport(ctx, s, accountID, geoQuery(dr), TransformGeo)
}

func (s *Service) FetchDemographics(ctx context.Context, accountID uuid.UUID, dr models.DateRange) ([]models.DemographicPerformance, error) {
	return fetchReport(ctx, s, accountID, ageRangeQuery(dr), TransformDemographics)
}

func (s *Service) FetchRecommendations(ctx context.Context, accountID uuid.UUID) ([]models.Recommendation, error) {
	return fetchReport(ctx, s, accountID, recommendationsQuery(), TransformRecommendations)
}

// ApplyRecommendation confirms the recommendation exists but does not apply
// it; the result always has Applied=false.
func (s *Service) ApplyRecommendation(ctx context.Context, accountID uuid.UUID, recommendationID string) (*models.ApplyRecommendationResult, error) {
	if !ValidRecommendationID(recommendationID) {
		return nil, ErrInvalidRecommendationID
	}

	var found []models.Recommendation
	err := s.withAccount(ctx, accountID, func(ctx context.Context, call Call) error {
		query := recommendationLookupQuery(call.CustomerID, recommendationID)
		return collect(ctx, s.client, call, query, TransformRecommendations, &found)()
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrRecommendationNotFound
	}

	s.logger.Info("recommendation acknowledged without applying",
		zap.String("account_id", accountID.String()),
		zap.String("resource_name", found[0].ResourceName),
	)
	return &models.ApplyRecommendationResult{
		Success:      true,
		Applied:      false,
		ResourceName: found[0].ResourceName,
		Message:      "Recommendation acknowledged. Applying recommendations is not enabled.",
	}, nil
}

func fetchReport[R, T any](ctx context.Context, s *Service, accountID uuid.UUID, query string, transform func([]R) []T) ([]T, error) {
	var out []T
	err := s.withAccount(ctx, accountID, func(ctx context.Context, call Call) error {
		return collect(ctx, s.client, call, query, transform, &out)()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func collect[R, T any](ctx context.Context, c *Client, call Call, query string, transform func([]R) []T, dst *[]T) func() error {
	return func() error {
		rows, err := Search[R](ctx, c, call, query)
		if err != nil {
			return err
		}
		*dst = transform(rows)
		return nil
	}
}

// withAccount loads the account, makes sure its access token is usable and
// runs fn. The outcome is recorded on the account; failures come back as *APIError.
func (s *Service) withAccount(ctx context.Context, accountID uuid.UUID, fn func(ctx context.Context, call Call) error) error {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	call, err := s.authorize(ctx, account)
	if err == nil {
		err = fn(ctx, call)
	}

	// Record the outcome even if the caller went away.
	bookkeeping := context.WithoutCancel(ctx)
	if err != nil {
		apiErr := Classify(err)
		msg := apiErr.Error()
		if serr := s.store.UpdateSyncStatus(bookkeeping, account.ID, nil, &msg); serr != nil {
			s.logger.Warn("failed to record sync error", zap.String("account_id", account.ID.String()), zap.Error(serr))
		}
		s.logger.Warn("google ads sync failed",
			zap.String("account_id", account.ID.String()),
			zap.String("customer_id", account.CustomerID),
			zap.Error(apiErr),
		)
		return apiErr
	}

	now := s.now()
	if serr := s.store.UpdateSyncStatus(bookkeeping, account.ID, &now, nil); serr != nil {
		s.logger.Warn("failed to record sync time", zap.String("account_id", account.ID.String()), zap.Error(serr))
	}
	return nil
}

// authorize returns call credentials for the account, refreshing the access
// token first if it is expired or about to expire.
func (s *Service) authorize(ctx context.Context, account *models.GoogleAdsAccount) (Call, error) {
	call := Call{AccessToken: account.AccessToken, CustomerID: account.CustomerID}
	if account.LoginCustomerID != nil {
		call.LoginCustomerID = *account.LoginCustomerID
	}
	if !account.TokenExpired(s.now(), s.skew) {
		return call, nil
	}

	refreshed, err := s.tokens.RefreshAccessToken(ctx, account.RefreshToken)
	if err != nil {
		return Call{}, err
	}
	call.AccessToken = refreshed.AccessToken

	version, err := s.store.UpdateTokens(ctx, account.ID, refreshed.AccessToken, refreshed.ExpiresAt, refreshed.RefreshToken, account.Version)
	if errors.Is(err, repository.ErrVersionConflict) {
		version, err = s.resolveConflict(ctx, account, refreshed, &call)
	}
	if err != nil {
		// The new token is valid either way; the next request refreshes again.
		s.logger.Warn("failed to persist refreshed token",
			zap.String("account_id", account.ID.String()),
			zap.Error(err),
		)
		return call, nil
	}

	account.Version = version
	s.logger.Debug("access token refreshed",
		zap.String("account_id", account.ID.String()),
		zap.Time("expires_at", refreshed.ExpiresAt),
		zap.Bool("refresh_token_rotated", refreshed.RefreshToken != ""),
	)
	return call, nil
}

// resolveConflict handles a refresh that raced with another writer. If the
// stored token is fresh it is used as is. Otherwise, or when Google rotated
// the refresh token, ours is written against the current version.
func (s *Service) resolveConflict(ctx context.Context, account *models.GoogleAdsAccount, refreshed *models.RefreshedToken, call *Call) (int, error) {
	latest, err := s.store.GetByID(ctx, account.ID)
	if err != nil {
		return 0, err
	}
	if refreshed.RefreshToken == "" && !latest.TokenExpired(s.now(), s.skew) {
		call.AccessToken = latest.AccessToken
		return latest.Version, nil
	}
	return s.store.UpdateTokens(ctx, account.ID, refreshed.AccessToken, refreshed.ExpiresAt, refreshed.RefreshToken, latest.Version)
}
