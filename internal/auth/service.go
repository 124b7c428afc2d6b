package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/config"
	"github.com/frans-sjostrom/ads-insights/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	AdwordsScope = "https://www.googleapis.com/auth/adwords"
	RevokeURL    = "https://oauth2.googleapis.com/revoke"
)

// GoogleEndpoint is Google's v2 consent screen and token endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var (
	// ErrExchange marks a rejected authorization-code exchange.
	ErrExchange = errors.New("oauth code exchange failed")
	// ErrRefresh marks a rejected refresh-token grant.
	ErrRefresh = errors.New("oauth token refresh failed")
)

// OAuthError carries what the token endpoint said about a failed grant.
type OAuthError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *OAuthError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Code
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("oauth %s failed: %s", e.Op, msg)
}

func (e *OAuthError) Unwrap() error {
	if e.Op == "exchange" {
		return ErrExchange
	}
	return ErrRefresh
}

// InvalidGrant reports whether the provider refused the credential itself,
// which means the user has to go through consent again.
func (e *OAuthError) InvalidGrant() bool {
	return e.Code == "invalid_grant" || e.Code == "unauthorized_client"
}

type Options struct {
	Endpoint   oauth2.Endpoint
	RevokeURL  string
	HTTPClient *http.Client
	Timeout    time.Duration
	Now        func() time.Time
}

// TokenManager runs the authorization-code grant against Google's token endpoint.
type TokenManager struct {
	oauthConfig *oauth2.Config
	revokeURL   string
	httpClient  *http.Client
	timeout     time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewTokenManager(creds config.Credentials, redirectURL string, opts Options, logger *zap.Logger) *TokenManager {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = GoogleEndpoint
	}
	revokeURL := opts.RevokeURL
	if revokeURL == "" {
		revokeURL = RevokeURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		oauthConfig: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{AdwordsScope},
			Endpoint:     endpoint,
		},
		revokeURL:  revokeURL,
		httpClient: httpClient,
		timeout:    opts.Timeout,
		now:        now,
		logger:     logger,
	}
}

// AuthorizationURL builds the consent URL. prompt=consent makes Google issue a
// refresh token even when the user already granted access.
func (m *TokenManager) AuthorizationURL(state, redirectURI string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	return m.oauthConfig.AuthCodeURL(state, opts...)
}

func (m *TokenManager) ExchangeCode(ctx context.Context, code, redirectURI string) (*models.OAuthTokens, error) {
	ctx, cancel := m.requestContext(ctx)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	token, err := m.oauthConfig.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, oauthError("exchange", err)
	}

	scope, _ := token.Extra("scope").(string)
	return &models.OAuthTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.expiry(token),
		Scope:        scope,
	}, nil
}

// RefreshAccessToken mints a new access token. Concurrent calls for the same
// refresh token are safe; Google honours each of them.
func (m *TokenManager) RefreshAccessToken(ctx context.Context, refreshToken string) (*models.RefreshedToken, error) {
	if refreshToken == "" {
		return nil, &OAuthError{Op: "refresh", Code: "invalid_grant", Description: "no refresh token stored"}
	}

	ctx, cancel := m.requestContext(ctx)
	defer cancel()

	token, err := m.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, oauthError("refresh", err)
	}

	refreshed := &models.RefreshedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   m.expiry(token),
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		refreshed.RefreshToken = token.RefreshToken
	}
	return refreshed, nil
}

// RevokeToken is best-effort: failures are logged and never returned, so a
// disconnect always goes through locally.
func (m *TokenManager) RevokeToken(ctx context.Context, token string) {
	if token == "" {
		return
	}

	ctx, cancel := m.requestContext(ctx)
	defer cancel()

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		m.logger.Warn("failed to build revoke request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn("failed to revoke google token", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		m.logger.Warn("google rejected token revocation", zap.Int("status", resp.StatusCode))
	}
}

func (m *TokenManager) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

// expiry recomputes the deadline from expires_in against the injected clock.
func (m *TokenManager) expiry(token *oauth2.Token) time.Time {
	if secs, ok := expiresIn(token); ok {
		return m.now().Add(time.Duration(secs) * time.Second)
	}
	return token.Expiry
}

func expiresIn(token *oauth2.Token) (int64, bool) {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		var secs int64
		if _, err := fmt.Sscan(v, &secs); err == nil {
			return secs, true
		}
	}
	return 0, false
}

func oauthError(op string, err error) error {
	oerr := &OAuthError{Op: op, Err: err}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		oerr.Code = rerr.ErrorCode
		oerr.Description = rerr.ErrorDescription
		if rerr.Response != nil {
			oerr.StatusCode = rerr.Response.StatusCode
		}
	}
	return oerr
}
