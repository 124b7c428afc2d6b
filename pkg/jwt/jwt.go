package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionIssuer is the iss claim on dashboard session tokens.
const SessionIssuer = "auth-service"

const (
	stateIssuer   = "ads-insights"
	stateAudience = "google-ads-oauth"
)

// Claims are the dashboard session claims issued by the auth service.
type Claims struct {
	UserID uuid.UUID `json:"sub"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// StateClaims travel through Google's consent screen inside the OAuth state parameter.
type StateClaims struct {
	UserID uuid.UUID `json:"uid"`
	Nonce  string    `json:"nonce"`
	jwt.RegisteredClaims
}

// ValidateAccessToken checks a session token minted by the auth service.
func ValidateAccessToken(tokenString string, publicKey *rsa.PublicKey) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	}, jwt.WithIssuer(SessionIssuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == uuid.Nil {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GenerateStateToken returns a signed OAuth state and the nonce that must also
// be stored in the browser's state cookie.
func GenerateStateToken(userID uuid.UUID, secret []byte, expiry time.Duration) (state, nonce string, err error) {
	nonce, err = randomString(16)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := StateClaims{
		UserID: userID,
		Nonce:  nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return state, nonce, nil
}

func ValidateStateToken(state string, secret []byte) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(stateIssuer), jwt.WithAudience(stateAudience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil || claims.Nonce == "" {
		return nil, fmt.Errorf("invalid state")
	}
	return claims, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
