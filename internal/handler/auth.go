package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminSubject = "admin"
	tokenIssuer  = "lernbot"
)

// adminClaims are the claims of an admin API token.
type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *Handler) adminEnabled() bool {
	return len(h.config.AdminPasswordHash) > 0 && len(h.config.JWTSecret) > 0
}

func (h *Handler) issueToken() (string, int64, error) {
	now := h.now()
	exp := now.Add(h.config.TokenTTL)
	claims := &adminClaims{
		Role: adminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.config.JWTSecret)
	if err != nil {
		return "", 0, err
	}
	return token, exp.Unix(), nil
}

func (h *Handler) verifyToken(token string) error {
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.config.JWTSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(h.now))
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.Role != adminSubject {
		return errors.New("invalid token")
	}
	return nil
}

// requireAdmin is middleware that checks for a valid bearer token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.adminEnabled() {
			writeError(w, http.StatusNotFound, "admin API disabled")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := h.verifyToken(token); err != nil {
			slog.Warn("rejected admin token", "remote", r.RemoteAddr, "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.adminEnabled() {
		writeError(w, http.StatusNotFound, "admin API disabled")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.config.AdminPasswordHash, []byte(req.Password)); err != nil {
		slog.Warn("failed admin login", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, exp, err := h.issueToken()
	if err != nil {
		slog.Error("failed to sign admin token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("admin logged in", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}
