package googleads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/frans-sjostrom/ads-insights/internal/auth"
)

var (
	// ErrAuthentication means the stored grant no longer works and the user
	// has to connect the account again.
	ErrAuthentication = errors.New("google ads authentication failed, reconnect required")
	// ErrRateLimited means Google reported quota exhaustion.
	ErrRateLimited = errors.New("google ads rate limit exceeded, try again later")
	// ErrInvalidAccount means the customer is not accessible with this grant.
	ErrInvalidAccount = errors.New("google ads account is not accessible, reconnect required")
	// ErrTransient covers everything else: network failures, timeouts, 5xx.
	ErrTransient = errors.New("google ads request failed")

	ErrRecommendationNotFound  = errors.New("recommendation not found")
	ErrInvalidRecommendationID = errors.New("invalid recommendation id")
	ErrNoAccessibleAccounts    = errors.New("no google ads accounts are accessible with this grant")
	ErrMissingRefreshToken     = errors.New("google did not issue a refresh token")
)

// APIError is what the service hands back for any failed Ads call. Kind is
// one of the sentinels above.
type APIError struct {
	Kind    error
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// ReconnectRequired reports whether the user has to redo the consent flow.
func (e *APIError) ReconnectRequired() bool {
	return e.Kind == ErrAuthentication || e.Kind == ErrInvalidAccount
}

var (
	rateLimitMarkers = []string{"RESOURCE_EXHAUSTED", "RATE_EXCEEDED", "quota", "rate limit", "too many requests"}
	authMarkers      = []string{"UNAUTHENTICATED", "invalid_grant", "unauthorized_client", "invalid authentication credentials", "OAUTH_TOKEN", "token has been expired or revoked"}
	accountMarkers   = []string{"CUSTOMER_NOT_FOUND", "CUSTOMER_NOT_ENABLED", "USER_PERMISSION_DENIED", "PERMISSION_DENIED", "NOT_ADS_USER", "invalid customer", "not enabled"}
)

// Classify narrows any error from the token endpoint or the Ads API into an
// *APIError by matching the provider's message text.
func Classify(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	status := 0
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}

	var oerr *auth.OAuthError
	if errors.As(err, &oerr) {
		kind := ErrTransient
		if oerr.InvalidGrant() {
			kind = ErrAuthentication
		}
		return &APIError{Kind: kind, Status: oerr.StatusCode, Message: oerr.Error()}
	}

	msg := err.Error()
	kind := ErrTransient
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
	case containsAny(msg, rateLimitMarkers):
		kind = ErrRateLimited
	case containsAny(msg, authMarkers):
		kind = ErrAuthentication
	case containsAny(msg, accountMarkers):
		kind = ErrInvalidAccount
	case status == http.StatusUnauthorized:
		kind = ErrAuthentication
	case status == http.StatusForbidden:
		kind = ErrInvalidAccount
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	}
	return &APIError{Kind: kind, Status: status, Message: msg}
}

func containsAny(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
