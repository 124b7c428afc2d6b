package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/googleads"
	"github.com/frans-sjostrom/ads-insights/internal/middleware"
	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/frans-sjostrom/ads-insights/internal/repository"
	customJWT "github.com/frans-sjostrom/ads-insights/pkg/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	stateCookie     = "google_ads_oauth_nonce"
	stateCookiePath = "/api/google-ads"
	stateTTL        = 10 * time.Minute
)

// Health reports whether the database is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Connect starts the consent flow. The frontend navigates to the returned
// authUrl; the nonce cookie ties the callback to this browser.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	state, nonce, err := customJWT.GenerateStateToken(userID, h.cfg.OAuthStateSecret, stateTTL)
	if err != nil {
		h.logger.Error("failed to generate oauth state", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "Failed to start Google Ads connection", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    nonce,
		Expires:  h.now().Add(stateTTL),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Path:     stateCookiePath,
	})

	h.sendData(w, map[string]string{
		"authUrl": h.oauth.AuthorizationURL(state, h.cfg.GoogleRedirectURL),
	})
}

// Callback is where Google sends the browser after consent. It always
// redirects back to the frontend with the outcome in the query string.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Path:     stateCookiePath,
	})

	if reason := q.Get("error"); reason != "" {
		h.redirectResult(w, r, "error", reason, 0)
		return
	}

	claims, err := customJWT.ValidateStateToken(q.Get("state"), h.cfg.OAuthStateSecret)
	if err != nil {
		h.logger.Warn("rejected oauth callback state", zap.Error(err))
		h.redirectResult(w, r, "error", "invalid_state", 0)
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value != claims.Nonce {
		h.logger.Warn("oauth callback nonce mismatch", zap.String("user_id", claims.UserID.String()))
		h.redirectResult(w, r, "error", "invalid_state", 0)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectResult(w, r, "error", "missing_code", 0)
		return
	}

	accounts, err := h.ads.Connect(r.Context(), claims.UserID, code)
	if err != nil {
		h.logger.Error("failed to connect google ads",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err),
		)
		h.redirectResult(w, r, "error", connectFailureReason(err), 0)
		return
	}
	h.redirectResult(w, r, "connected", "", len(accounts))
}

func connectFailureReason(err error) string {
	switch {
	case errors.Is(err, googleads.ErrNoAccessibleAccounts):
		return "no_accounts"
	case errors.Is(err, googleads.ErrMissingRefreshToken):
		return "no_refresh_token"
	case errors.Is(err, googleads.ErrRateLimited):
		return "rate_limited"
	default:
		return "connection_failed"
	}
}

func (h *Handler) redirectResult(w http.ResponseWriter, r *http.Request, status, reason string, accounts int) {
	v := url.Values{"google_ads": {status}}
	if reason != "" {
		v.Set("reason", reason)
	}
	if accounts > 0 {
		v.Set("accounts", strconv.Itoa(accounts))
	}
	target := strings.TrimRight(h.cfg.FrontendURL, "/") + "/integrations?" + v.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	accounts, err := h.ads.ListAccounts(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list google ads accounts", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "Failed to fetch accounts", err.Error())
		return
	}
	h.sendData(w, accounts)
}

type customerRequest struct {
	CustomerID       string `json:"customerId"`
	RecommendationID string `json:"recommendationId,omitempty"`
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	req, ok := h.decodeCustomerRequest(w, r)
	if !ok {
		return
	}

	if err := h.ads.Disconnect(r.Context(), userID, req.CustomerID); err != nil {
		h.sendAdsError(w, err)
		return
	}
	h.sendData(w, map[string]string{"customerId": req.CustomerID})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchMetrics)
}

func (h *Handler) Campaigns(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchCampaigns)
}

func (h *Handler) AdGroups(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchAdGroups)
}

func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchKeywords)
}

func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchDaily)
}

func (h *Handler) Geo(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchGeo)
}

func (h *Handler) Demographics(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, h.ads.FetchDemographics)
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r, r.URL.Query().Get("customerId"))
	if !ok {
		return
	}

	recs, err := h.ads.FetchRecommendations(r.Context(), account.ID)
	if err != nil {
		h.sendAdsError(w, err)
		return
	}
	h.sendData(w, recs)
}

func (h *Handler) ApplyRecommendation(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCustomerRequest(w, r)
	if !ok {
		return
	}
	if req.RecommendationID == "" {
		h.sendError(w, http.StatusBadRequest, "recommendationId is required", "")
		return
	}

	account, ok := h.ownedAccount(w, r, req.CustomerID)
	if !ok {
		return
	}

	result, err := h.ads.ApplyRecommendation(r.Context(), account.ID, req.RecommendationID)
	if err != nil {
		h.sendAdsError(w, err)
		return
	}
	h.sendData(w, result)
}

func serveReport[T any](h *Handler, w http.ResponseWriter, r *http.Request, fetch func(context.Context, uuid.UUID, models.DateRange) (T, error)) {
	q := r.URL.Query()
	account, ok := h.ownedAccount(w, r, q.Get("customerId"))
	if !ok {
		return
	}

	dr, err := h.dateRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid date range", err.Error())
		return
	}

	data, err := fetch(r.Context(), account.ID, dr)
	if err != nil {
		h.sendAdsError(w, err)
		return
	}
	h.sendData(w, data)
}

// ownedAccount resolves customerID to an account of the session user.
func (h *Handler) ownedAccount(w http.ResponseWriter, r *http.Request, customerID string) (*models.GoogleAdsAccount, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "Unauthorized", "")
		return nil, false
	}

	customerID = normalizeCustomerID(customerID)
	if customerID == "" {
		h.sendError(w, http.StatusBadRequest, "customerId is required", "")
		return nil, false
	}

	account, err := h.ads.AccountForUser(r.Context(), userID, customerID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		h.sendError(w, http.StatusForbidden, "Forbidden", "account is not connected for this user")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load google ads account", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "Failed to fetch Google Ads data", err.Error())
		return nil, false
	}
	return account, true
}

func (h *Handler) decodeCustomerRequest(w http.ResponseWriter, r *http.Request) (customerRequest, bool) {
	var req customerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return req, false
		}
	}
	if req.CustomerID == "" {
		req.CustomerID = r.URL.Query().Get("customerId")
	}
	req.CustomerID = normalizeCustomerID(req.CustomerID)
	if req.CustomerID == "" {
		h.sendError(w, http.StatusBadRequest, "customerId is required", "")
		return req, false
	}
	return req, true
}

// dateRange defaults to the last 30 days when neither bound is given.
func (h *Handler) dateRange(start, end string) (models.DateRange, error) {
	if start == "" && end == "" {
		return googleads.DefaultDateRange(h.now()), nil
	}
	return googleads.ParseDateRange(start, end)
}

// sendAdsError maps service errors onto HTTP statuses.
func (h *Handler) sendAdsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		h.sendError(w, http.StatusForbidden, "Forbidden", "account is not connected for this user")
	case errors.Is(err, googleads.ErrAuthentication):
		h.sendReconnect(w, http.StatusUnauthorized, "Google Ads authentication expired. Please reconnect your account.", err.Error())
	case errors.Is(err, googleads.ErrRateLimited):
		h.sendError(w, http.StatusTooManyRequests, "Google Ads rate limit reached. Please try again later.", err.Error())
	case errors.Is(err, googleads.ErrInvalidAccount):
		h.sendReconnect(w, http.StatusBadRequest, "Google Ads account is not accessible. Please reconnect your account.", err.Error())
	case errors.Is(err, googleads.ErrInvalidRecommendationID):
		h.sendError(w, http.StatusBadRequest, "Invalid recommendationId", "")
	case errors.Is(err, googleads.ErrRecommendationNotFound):
		h.sendError(w, http.StatusNotFound, "Recommendation not found", "")
	default:
		h.logger.Error("google ads request failed", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "Failed to fetch Google Ads data", err.Error())
	}
}

// normalizeCustomerID accepts the dashed form shown in the Ads UI (123-456-7890).
func normalizeCustomerID(id string) string {
	id = strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	for _, c := range id {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return id
}
