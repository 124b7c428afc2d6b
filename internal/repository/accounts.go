package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/models"
	"github.com/frans-sjostrom/ads-insights/pkg/tokencrypt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccountNotFound = errors.New("google ads account not found")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("google ads account was modified concurrently")
)

const accountColumns = `id, user_id, customer_id, login_customer_id, account_name, currency_code,
	time_zone, is_manager, access_token, refresh_token, token_expires_at, last_synced_at,
	sync_error, version, created_at, updated_at`

// AccountRepository persists connected Google Ads accounts. Tokens are sealed
// before they are written and opened when they are read.
type AccountRepository struct {
	db     *pgxpool.Pool
	cipher *tokencrypt.Cipher
}

func NewAccountRepository(db *pgxpool.Pool, cipher *tokencrypt.Cipher) *AccountRepository {
	return &AccountRepository{db: db, cipher: cipher}
}

// Upsert inserts the account, or replaces tokens and metadata of the existing
// row for the same (user, customer). The record is updated in place with the
// stored id, version and timestamps.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.GoogleAdsAccount) error {
	accessToken, refreshToken, err := r.seal(account.AccessToken, account.RefreshToken)
	if err != nil {
		return err
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	query := `
		INSERT INTO google_ads_accounts (
			id, user_id, customer_id, login_customer_id, account_name, currency_code,
			time_zone, is_manager, access_token, refresh_token, token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, customer_id) DO UPDATE SET
			login_customer_id = EXCLUDED.login_customer_id,
			account_name      = EXCLUDED.account_name,
			currency_code     = EXCLUDED.currency_code,
			time_zone         = EXCLUDED.time_zone,
			is_manager        = EXCLUDED.is_manager,
			access_token      = EXCLUDED.access_token,
			refresh_token     = EXCLUDED.refresh_token,
			token_expires_at  = EXCLUDED.token_expires_at,
			sync_error        = NULL,
			version           = google_ads_accounts.version + 1,
			updated_at        = NOW()
		RETURNING id, version, last_synced_at, sync_error, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		account.ID,
		account.UserID,
		account.CustomerID,
		account.LoginCustomerID,
		account.AccountName,
		account.CurrencyCode,
		account.TimeZone,
		account.IsManager,
		accessToken,
		refreshToken,
		account.TokenExpiresAt,
	).Scan(&account.ID, &account.Version, &account.LastSyncedAt, &account.SyncError, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert google ads account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GoogleAdsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM google_ads_accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUserAndCustomer is the ownership check: it only finds accounts the user connected.
func (r *AccountRepository) GetByUserAndCustomer(ctx context.Context, userID uuid.UUID, customerID string) (*models.GoogleAdsAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM google_ads_accounts WHERE user_id = $1 AND customer_id = $2`
	return r.getOne(ctx, query, userID, customerID)
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.GoogleAdsAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM google_ads_accounts
		WHERE user_id = $1
		ORDER BY account_name, customer_id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list google ads accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.GoogleAdsAccount{}
	for rows.Next() {
		account, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list google ads accounts: %w", err)
	}
	return accounts, nil
}

// UpdateTokens stores a refreshed access token if the row is still at
// expectedVersion. An empty refreshToken keeps the stored one. It returns the
// new version.
func (r *AccountRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, refreshToken string, expectedVersion int) (int, error) {
	sealedAccess, sealedRefresh, err := r.seal(accessToken, refreshToken)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE google_ads_accounts
		SET access_token     = $2,
		    token_expires_at = $3,
		    refresh_token    = COALESCE(NULLIF($4, ''), refresh_token),
		    version          = version + 1,
		    updated_at       = NOW()
		WHERE id = $1 AND version = $5
		RETURNING version
	`

	var version int
	err = r.db.QueryRow(ctx, query, id, sealedAccess, expiresAt, sealedRefresh, expectedVersion).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM google_ads_accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to update google ads tokens: %w", err)
		}
		if !exists {
			return 0, ErrAccountNotFound
		}
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update google ads tokens: %w", err)
	}
	return version, nil
}

// UpdateSyncStatus records the outcome of a fetch. A nil syncedAt leaves
// last_synced_at untouched; a nil syncError clears it.
func (r *AccountRepository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, syncedAt *time.Time, syncError *string) error {
	query := `
		UPDATE google_ads_accounts
		SET last_synced_at = COALESCE($2, last_synced_at),
		    sync_error     = $3,
		    updated_at     = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, syncedAt, syncError)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM google_ads_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete google ads account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, args ...any) (*models.GoogleAdsAccount, error) {
	account, err := r.scan(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (r *AccountRepository) scan(row pgx.Row) (*models.GoogleAdsAccount, error) {
	var a models.GoogleAdsAccount
	var accessToken, refreshToken string
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.CustomerID,
		&a.LoginCustomerID,
		&a.AccountName,
		&a.CurrencyCode,
		&a.TimeZone,
		&a.IsManager,
		&accessToken,
		&refreshToken,
		&a.TokenExpiresAt,
		&a.LastSyncedAt,
		&a.SyncError,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan google ads account: %w", err)
	}

	if a.AccessToken, err = r.cipher.Open(accessToken); err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	if a.RefreshToken, err = r.cipher.Open(refreshToken); err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	return &a, nil
}

func (r *AccountRepository) seal(accessToken, refreshToken string) (string, string, error) {
	sealedAccess, err := r.cipher.Seal(accessToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to seal access token: %w", err)
	}
	sealedRefresh, err := r.cipher.Seal(refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to seal refresh token: %w", err)
	}
	return sealedAccess, sealedRefresh, nil
}
