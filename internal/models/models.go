package models

import (
	"time"

	"github.com/google/uuid"
)

// GoogleAdsAccount is one connected customer account. Tokens are plaintext in
// memory; the repository seals them before they reach the database.
type GoogleAdsAccount struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	CustomerID      string     `json:"customer_id" db:"customer_id"`
	LoginCustomerID *string    `json:"login_customer_id,omitempty" db:"login_customer_id"`
	AccountName     string     `json:"account_name" db:"account_name"`
	CurrencyCode    string     `json:"currency_code" db:"currency_code"`
	TimeZone        string     `json:"time_zone" db:"time_zone"`
	IsManager       bool       `json:"is_manager" db:"is_manager"`
	AccessToken     string     `json:"-" db:"access_token"`
	RefreshToken    string     `json:"-" db:"refresh_token"`
	TokenExpiresAt  time.Time  `json:"token_expires_at" db:"token_expires_at"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	SyncError       *string    `json:"sync_error,omitempty" db:"sync_error"`
	Version         int        `json:"-" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenExpired reports whether the access token is expired, or will be within skew.
func (a *GoogleAdsAccount) TokenExpired(now time.Time, skew time.Duration) bool {
	return a.AccessToken == "" || !now.Add(skew).Before(a.TokenExpiresAt)
}

type OAuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// RefreshedToken is the result of a refresh grant. RefreshToken is only set
// when the provider rotated it.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type AccountSummary struct {
	CustomerID   string `json:"customer_id"`
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
	TimeZone     string `json:"time_zone"`
	IsManager    bool   `json:"is_manager"`
}

// DateRange is a closed interval of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}
