// Package auth implements the credential gate: a single static admin
// credential checked at login, and HMAC-signed session tokens required on
// every protected call.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrMissingToken   = errors.New("authorization token required")
)

// Claims are the session token claims.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Gate validates the static admin credential and issues session tokens.
type Gate struct {
	username    string
	password    string
	secretKey   []byte
	tokenExpiry time.Duration
}

func NewGate(username, password, secret string, tokenExpiry time.Duration) *Gate {
	return &Gate{
		username:    username,
		password:    password,
		secretKey:   []byte(secret),
		tokenExpiry: tokenExpiry,
	}
}

// Login checks the credential pair and returns a signed token on success.
// Comparison is constant-time so a mismatch reveals nothing about which
// field was wrong.
func (g *Gate) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
	if !userOK || !passOK {
		return "", ErrBadCredentials
	}

	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "khata",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (g *Gate) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenExpiry reports how long issued tokens stay valid.
func (g *Gate) TokenExpiry() time.Duration {
	return g.tokenExpiry
}
