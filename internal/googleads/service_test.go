package googleads

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/auth"
	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/frans-sjostrom/ads-insights/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]models.GoogleAdsAccount

	// bumpOnUpdate simulates another writer landing first.
	bumpOnUpdate func(a *models.GoogleAdsAccount)
	syncCalls    int
	listErr      error
}

func newMemoryStore(accounts ...models.GoogleAdsAccount) *memoryStore {
	s := &memoryStore{accounts: make(map[uuid.UUID]models.GoogleAdsAccount)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memoryStore) Upsert(_ context.Context, account *models.GoogleAdsAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.accounts {
		if existing.UserID == account.UserID && existing.CustomerID == account.CustomerID {
			account.ID = id
			account.Version = existing.Version + 1
			s.accounts[id] = *account
			return nil
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Version = 1
	s.accounts[account.ID] = *account
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.GoogleAdsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &a, nil
}

func (s *memoryStore) GetByUserAndCustomer(_ context.Context, userID uuid.UUID, customerID string) (*models.GoogleAdsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.CustomerID == customerID {
			return &a, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (s *memoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.GoogleAdsAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.GoogleAdsAccount
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memoryStore) UpdateTokens(_ context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, refreshToken string, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	if s.bumpOnUpdate != nil {
		s.bumpOnUpdate(&a)
		s.bumpOnUpdate = nil
		s.accounts[id] = a
	}
	if a.Version != expectedVersion {
		return 0, repository.ErrVersionConflict
	}
	a.AccessToken = accessToken
	a.TokenExpiresAt = expiresAt
	if refreshToken != "" {
		a.RefreshToken = refreshToken
	}
	a.Version++
	s.accounts[id] = a
	return a.Version, nil
}

func (s *memoryStore) UpdateSyncStatus(_ context.Context, id uuid.UUID, syncedAt *time.Time, syncError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	s.syncCalls++
	if syncedAt != nil {
		a.LastSyncedAt = syncedAt
	}
	a.SyncError = syncError
	s.accounts[id] = a
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repository.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *memoryStore) get(id uuid.UUID) models.GoogleAdsAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

type fakeTokens struct {
	mu          sync.Mutex
	exchanged   *models.OAuthTokens
	exchangeErr error
	refreshed   *models.RefreshedToken
	refreshErr  error
	refreshes   []string
	revoked     []string
}

func (f *fakeTokens) ExchangeCode(_ context.Context, code, redirectURI string) (*models.OAuthTokens, error) {
	return f.exchanged, f.exchangeErr
}

func (f *fakeTokens) RefreshAccessToken(_ context.Context, refreshToken string) (*models.RefreshedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, refreshToken)
	return f.refreshed, f.refreshErr
}

func (f *fakeTokens) RevokeToken(_ context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
}

func testAccount(expiresAt time.Time) models.GoogleAdsAccount {
	return models.GoogleAdsAccount{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		CustomerID:     "1234567890",
		AccountName:    "Acme",
		AccessToken:    "AT-old",
		RefreshToken:   "RT1",
		TokenExpiresAt: expiresAt,
		Version:        1,
	}
}

func newTestService(t *testing.T, srv *adsServer, store AccountStore, tokens TokenProvider) *Service {
	t.Helper()
	return NewService(store, tokens, srv.client(t), ServiceOptions{
		RedirectURL: "https://app/callback",
		RefreshSkew: 5 * time.Minute,
		Now:         func() time.Time { return now },
	}, zap.NewNop())
}

func seedReports(t *testing.T, srv *adsServer) {
	srv.setResults("customer",
		mustJSON(t, map[string]any{
			"segments": map[string]any{"date": "2026-03-01"},
			"metrics":  map[string]any{"impressions": "100", "clicks": "10", "costMicros": "5000000", "conversions": 10, "conversionsValue": 20000000},
		}),
	)
	srv.setResults("campaign", `{"campaign":{"id":"1","name":"Brand","status":"ENABLED","advertisingChannelType":"SEARCH"},"metrics":{"costMicros":"5000000","conversions":10,"conversionsValue":20000000}}`)
	srv.setResults("ad_group", `{"adGroup":{"id":"2","name":"Shoes","status":"ENABLED"},"campaign":{"id":"1","name":"Brand"},"metrics":{}}`)
	srv.setResults("keyword_view", `{"adGroupCriterion":{"criterionId":"3","keyword":{"text":"shoes","matchType":"EXACT"}},"metrics":{}}`)
	srv.setResults("geographic_view", `{"geographicView":{"countryCriterionId":"2752"},"metrics":{"clicks":"4"}}`)
	srv.setResults("age_range_view", `{"adGroupCriterion":{"ageRange":{"type":"AGE_RANGE_25_34"}},"metrics":{"clicks":"4"}}`)
}

func TestFetchMetricsWithValidToken(t *testing.T) {
	srv := newAdsServer(t)
	seedReports(t, srv)
	account := testAccount(now.Add(time.Hour))
	store := newMemoryStore(account)
	tokens := &fakeTokens{}

	bundle, err := newTestService(t, srv, store, tokens).FetchMetrics(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	require.NoError(t, err)

	require.Len(t, bundle.Campaigns, 1)
	assert.Equal(t, 5.0, bundle.Campaigns[0].Spend)
	assert.Equal(t, 0.5, bundle.Campaigns[0].CPA)
	assert.Equal(t, 4.0, bundle.Campaigns[0].ROAS)
	assert.Len(t, bundle.Daily, 1)
	assert.Len(t, bundle.AdGroups, 1)
	assert.Len(t, bundle.Keywords, 1)
	require.Len(t, bundle.GeoData, 1)
	assert.Equal(t, "SE", bundle.GeoData[0].CountryCode)
	require.Len(t, bundle.Demographics, 1)
	assert.Equal(t, "25-34", bundle.Demographics[0].Segment)
	assert.Equal(t, 1, bundle.Summary.Days)
	assert.Equal(t, 5.0, bundle.Summary.Spend)

	assert.Empty(t, tokens.refreshes)
	reqs := srv.recorded()
	assert.Len(t, reqs, 6)
	for _, r := range reqs {
		assert.Equal(t, "Bearer AT-old", r.Authorization)
	}

	stored := store.get(account.ID)
	require.NotNil(t, stored.LastSyncedAt)
	assert.Equal(t, now, *stored.LastSyncedAt)
	assert.Nil(t, stored.SyncError)
}

func TestFetchMetricsRefreshesExpiredToken(t *testing.T) {
	srv := newAdsServer(t)
	seedReports(t, srv)
	account := testAccount(now.Add(time.Minute)) // inside the refresh skew
	store := newMemoryStore(account)
	tokens := &fakeTokens{refreshed: &models.RefreshedToken{AccessToken: "AT-new", ExpiresAt: now.Add(time.Hour)}}

	_, err := newTestService(t, srv, store, tokens).FetchMetrics(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	require.NoError(t, err)

	assert.Equal(t, []string{"RT1"}, tokens.refreshes, "one refresh shared by all six reports")
	for _, r := range srv.recorded() {
		assert.Equal(t, "Bearer AT-new", r.Authorization)
	}

	stored := store.get(account.ID)
	assert.Equal(t, "AT-new", stored.AccessToken)
	assert.Equal(t, now.Add(time.Hour), stored.TokenExpiresAt)
	assert.Equal(t, "RT1", stored.RefreshToken)
	assert.Equal(t, 2, stored.Version)
}

func TestRefreshPersistsRotatedRefreshToken(t *testing.T) {
	srv := newAdsServer(t)
	account := testAccount(now.Add(-time.Hour))
	store := newMemoryStore(account)
	tokens := &fakeTokens{refreshed: &models.RefreshedToken{AccessToken: "AT-new", RefreshToken: "RT2", ExpiresAt: now.Add(time.Hour)}}

	_, err := newTestService(t, srv, store, tokens).FetchCampaigns(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	require.NoError(t, err)
	assert.Equal(t, "RT2", store.get(account.ID).RefreshToken)
}

func TestRefreshConflictReusesFresherStoredToken(t *testing.T) {
	srv := newAdsServer(t)
	account := testAccount(now.Add(-time.Hour))
	store := newMemoryStore(account)
	store.bumpOnUpdate = func(a *models.GoogleAdsAccount) {
		a.AccessToken = "AT-other-writer"
		a.TokenExpiresAt = now.Add(50 * time.Minute)
		a.Version++
	}
	tokens := &fakeTokens{refreshed: &models.RefreshedToken{AccessToken: "AT-mine", ExpiresAt: now.Add(time.Hour)}}

	_, err := newTestService(t, srv, store, tokens).FetchCampaigns(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	require.NoError(t, err)

	reqs := srv.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer AT-other-writer", reqs[0].Authorization)
	stored := store.get(account.ID)
	assert.Equal(t, "AT-other-writer", stored.AccessToken)
	assert.Equal(t, now.Add(50*time.Minute), stored.TokenExpiresAt)
}

func TestRefreshFailureAbortsBatch(t *testing.T) {
	srv := newAdsServer(t)
	account := testAccount(now.Add(-time.Hour))
	store := newMemoryStore(account)
	tokens := &fakeTokens{refreshErr: &auth.OAuthError{
		Op:          "refresh",
		StatusCode:  http.StatusBadRequest,
		Code:        "invalid_grant",
		Description: "Token has been expired or revoked.",
	}}

	_, err := newTestService(t, srv, store, tokens).FetchMetrics(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.ReconnectRequired())

	assert.Empty(t, srv.recorded(), "no report query runs without a token")
	stored := store.get(account.ID)
	require.NotNil(t, stored.SyncError)
	assert.Contains(t, *stored.SyncError, "expired or revoked")
	assert.Nil(t, stored.LastSyncedAt)
}

func TestFetchFailureRecordsSyncError(t *testing.T) {
	srv := newAdsServer(t)
	seedReports(t, srv)
	srv.failOn("keyword_view", http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"Too many requests","status":"RESOURCE_EXHAUSTED"}}`)
	account := testAccount(now.Add(time.Hour))
	store := newMemoryStore(account)

	_, err := newTestService(t, srv, store, &fakeTokens{}).FetchMetrics(context.Background(), account.ID,
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	assert.ErrorIs(t, err, ErrRateLimited)

	stored := store.get(account.ID)
	require.NotNil(t, stored.SyncError)
	assert.Contains(t, *stored.SyncError, "RESOURCE_EXHAUSTED")
}

func TestFetchUnknownAccount(t *testing.T) {
	srv := newAdsServer(t)
	_, err := newTestService(t, srv, newMemoryStore(), &fakeTokens{}).FetchGeo(context.Background(), uuid.New(),
		models.DateRange{Start: "2026-03-01", End: "2026-03-14"})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestFetchAccountsFallsBackToPlaceholder(t *testing.T) {
	srv := newAdsServer(t)
	srv.accessible = []string{"111", "222"}
	srv.setResults("customer", `{"customer":{"id":"111","descriptiveName":"Acme","currencyCode":"SEK","timeZone":"Europe/Stockholm","manager":true}}`)
	srv.failOn("222", http.StatusForbidden, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`)

	summaries, err := newTestService(t, srv, newMemoryStore(), &fakeTokens{}).FetchAccounts(context.Background(), "AT1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, models.AccountSummary{CustomerID: "111", Name: "Acme", CurrencyCode: "SEK", TimeZone: "Europe/Stockholm", IsManager: true}, summaries[0])
	assert.Equal(t, models.AccountSummary{CustomerID: "222", Name: "Account 222"}, summaries[1])
}

func TestConnectStoresEveryAccessibleCustomer(t *testing.T) {
	srv := newAdsServer(t)
	srv.accessible = []string{"111", "222"}
	store := newMemoryStore()
	tokens := &fakeTokens{exchanged: &models.OAuthTokens{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: now.Add(time.Hour)}}
	userID := uuid.New()

	accounts, err := newTestService(t, srv, store, tokens).Connect(context.Background(), userID, "abc123")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	stored, err := store.GetByUserAndCustomer(context.Background(), userID, "222")
	require.NoError(t, err)
	assert.Equal(t, "RT1", stored.RefreshToken)
	assert.Equal(t, "Account 222", stored.AccountName)

	_, err = newTestService(t, srv, store, tokens).Connect(context.Background(), userID, "abc123")
	require.NoError(t, err)
	list, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, list, 2, "reconnecting does not duplicate accounts")
}

func TestConnectRequiresRefreshToken(t *testing.T) {
	srv := newAdsServer(t)
	tokens := &fakeTokens{exchanged: &models.OAuthTokens{AccessToken: "AT1"}}
	_, err := newTestService(t, srv, newMemoryStore(), tokens).Connect(context.Background(), uuid.New(), "abc123")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)

	tokens = &fakeTokens{exchangeErr: &auth.OAuthError{Op: "exchange", Code: "invalid_grant", Description: "Bad code"}}
	_, err = newTestService(t, srv, newMemoryStore(), tokens).Connect(context.Background(), uuid.New(), "nope")
	assert.ErrorIs(t, err, auth.ErrExchange)
}

func TestDisconnect(t *testing.T) {
	srv := newAdsServer(t)
	first := testAccount(now.Add(time.Hour))
	second := testAccount(now.Add(time.Hour))
	second.UserID = first.UserID
	second.CustomerID = "999"
	store := newMemoryStore(first, second)
	tokens := &fakeTokens{}
	svc := newTestService(t, srv, store, tokens)

	require.NoError(t, svc.Disconnect(context.Background(), first.UserID, first.CustomerID))
	assert.Empty(t, tokens.revoked, "grant still used by another account")

	require.NoError(t, svc.Disconnect(context.Background(), first.UserID, second.CustomerID))
	assert.Equal(t, []string{"RT1"}, tokens.revoked)

	list, err := store.ListByUser(context.Background(), first.UserID)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = svc.Disconnect(context.Background(), first.UserID, "999")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestDisconnectKeepsGrantWhenAccountsCannotBeListed(t *testing.T) {
	srv := newAdsServer(t)
	account := testAccount(now.Add(time.Hour))
	store := newMemoryStore(account)
	store.listErr = errors.New("connection reset")
	tokens := &fakeTokens{}
	svc := newTestService(t, srv, store, tokens)

	require.NoError(t, svc.Disconnect(context.Background(), account.UserID, account.CustomerID))
	assert.Empty(t, tokens.revoked)

	_, err := store.GetByID(context.Background(), account.ID)
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestApplyRecommendationIsAcknowledgedOnly(t *testing.T) {
	srv := newAdsServer(t)
	srv.setResults("recommendation", `{"recommendation":{"resourceName":"customers/1234567890/recommendations/abc","type":"KEYWORD"}}`)
	account := testAccount(now.Add(time.Hour))
	svc := newTestService(t, srv, newMemoryStore(account), &fakeTokens{})

	result, err := svc.ApplyRecommendation(context.Background(), account.ID, "abc")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Applied)
	assert.Equal(t, "customers/1234567890/recommendations/abc", result.ResourceName)

	reqs := srv.recorded()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Query, "customers/1234567890/recommendations/abc")

	_, err = svc.ApplyRecommendation(context.Background(), account.ID, "bad id'")
	assert.ErrorIs(t, err, ErrInvalidRecommendationID)

	srv.setResults("recommendation")
	_, err = svc.ApplyRecommendation(context.Background(), account.ID, "missing")
	assert.True(t, errors.Is(err, ErrRecommendationNotFound))
}
