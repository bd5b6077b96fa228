package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestGate(expiry time.Duration) *Gate {
	return NewGate("admin", "admin123", "test-secret-key", expiry)
}

func TestLoginAndVerify(t *testing.T) {
	gate := newTestGate(time.Hour)

	token, err := gate.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	claims, err := gate.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("expected username admin, got %q", claims.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	gate := newTestGate(time.Hour)

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"wrong username", "root", "admin123"},
		{"both wrong", "root", "nope"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := gate.Login(tc.username, tc.password); !errors.Is(err, ErrBadCredentials) {
				t.Fatalf("expected ErrBadCredentials, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	gate := newTestGate(-time.Minute)

	token, err := gate.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := gate.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	gate := newTestGate(time.Hour)

	if _, err := gate.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := gate.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsTokenFromOtherSecret(t *testing.T) {
	gate := newTestGate(time.Hour)
	other := NewGate("admin", "admin123", "different-secret", time.Hour)

	token, err := other.Login("admin", "admin123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := gate.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}
}
