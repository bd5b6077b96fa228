// This file implements login, token verification and the auth middleware.
package http

import (
	"context"
	"net/http"
	"strings"

	"khata/internal/auth"
	applog "khata/internal/log"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.gate.Login(req.Username, req.Password)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Login failed",
			applog.FieldClientIP, s.ipExtractor.ExtractClientIP(r))
		respondServiceError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Login succeeded", applog.FieldUserName, req.Username)
	respondData(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int64(s.gate.TokenExpiry().Seconds()),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	respondData(w, http.StatusOK, map[string]any{
		"username": claims.Username,
		"valid":    true,
	})
}

// requireAuth rejects requests without a valid bearer token and stores
// the verified claims in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		claims, err := s.gate.Verify(token)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

func claimsFrom(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return &auth.Claims{}
}
