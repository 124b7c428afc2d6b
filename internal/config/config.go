package config

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credentials are the static secrets needed to call the Google Ads API.
type Credentials struct {
	ClientID        string
	ClientSecret    string
	DeveloperToken  string
	LoginCustomerID string
}

// Validate reports every missing secret at once.
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "GOOGLE_ADS_CLIENT_ID (or GOOGLE_CLIENT_ID)")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "GOOGLE_ADS_CLIENT_SECRET (or GOOGLE_CLIENT_SECRET)")
	}
	if c.DeveloperToken == "" {
		missing = append(missing, "GOOGLE_ADS_DEVELOPER_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing google ads credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL    string
	MigrationsPath string

	// Google Ads
	Credentials        Credentials
	GoogleRedirectURL  string
	APIVersion         string
	RateLimitDelay     time.Duration
	RequestTimeout     time.Duration
	TokenRefreshSkew   time.Duration
	TokenEncryptionKey []byte

	// Sessions issued by the auth service
	JWTPublicKey     *rsa.PublicKey
	OAuthStateSecret []byte

	// Frontend
	FrontendURL    string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MigrationsPath:    getEnv("MIGRATIONS_PATH", "file://migrations"),
		Credentials:       LoadCredentials(),
		GoogleRedirectURL: getEnv("GOOGLE_ADS_REDIRECT_URL", "http://localhost:8080/api/google-ads/callback"),
		APIVersion:        getEnv("GOOGLE_ADS_API_VERSION", "v18"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins:    parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		OAuthStateSecret:  []byte(getEnv("OAUTH_STATE_SECRET", "")),
	}

	var err error
	if cfg.RateLimitDelay, err = getEnvDuration("GOOGLE_ADS_RATE_LIMIT_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("GOOGLE_ADS_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.TokenRefreshSkew, err = getEnvDuration("TOKEN_REFRESH_SKEW", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.TokenEncryptionKey, err = decodeKey(getEnv("TOKEN_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
	}

	publicKeyPath := getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public_key.pem")
	cfg.JWTPublicKey, err = loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT public key from %s: %w", publicKeyPath, err)
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.OAuthStateSecret) < 32 {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET must be at least 32 bytes")
	}
	if len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS must list at least one origin")
	}
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadCredentials resolves the Google Ads secrets. The Ads-specific variables
// take precedence over the generic Google OAuth ones.
func LoadCredentials() Credentials {
	return Credentials{
		ClientID:        firstEnv("GOOGLE_ADS_CLIENT_ID", "GOOGLE_CLIENT_ID"),
		ClientSecret:    firstEnv("GOOGLE_ADS_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"),
		DeveloperToken:  getEnv("GOOGLE_ADS_DEVELOPER_TOKEN", ""),
		LoginCustomerID: strings.ReplaceAll(getEnv("GOOGLE_ADS_LOGIN_CUSTOMER_ID", ""), "-", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func parseCSV(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("value is required")
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(key))
	}
	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(data)
}

// ParsePublicKey accepts PKIX ("PUBLIC KEY") and PKCS1 ("RSA PUBLIC KEY") PEM blocks.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaPub, nil
}
