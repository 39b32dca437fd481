// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
)

// credentialsRequest is the body of signup and signin.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// messageResponse is the body of successful auth operations.
type messageResponse struct {
	Message string `json:"message"`
}

// userResponse is the body of GET /user/me.
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler is the thin HTTP layer over the auth service.
type Handler struct {
	svc           *auth.Service
	tokenTTL      time.Duration
	secureCookies bool
	logger        *slog.Logger
}

// HandlerConfig carries the transport-level knobs.
type HandlerConfig struct {
	// TokenTTL sizes the session cookie Max-Age; it should match the
	// issuer's TTL.
	TokenTTL time.Duration

	// SecureCookies marks the session cookie Secure. Off only for local
	// development over plain HTTP.
	SecureCookies bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHandler creates a Handler over the auth service.
func NewHandler(svc *auth.Service, cfg HandlerConfig) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("HTTP_CONFIG_INVALID").Errorf("auth service is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = auth.DefaultTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		svc:           svc,
		tokenTTL:      cfg.TokenTTL,
		secureCookies: cfg.SecureCookies,
		logger:        cfg.Logger,
	}, nil
}

// handleSignup creates an account and opens a session.
// POST /api/auth/signup
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, token, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateAccount):
			writeError(w, CodeDuplicateAccount, "")
		case isValidationError(err):
			writeError(w, CodeBadRequest, err.Error())
		default:
			h.serverError(r, w, "signup failed", err)
		}
		return
	}

	h.setSessionCookie(w, token, h.tokenTTL)
	h.logger.Info("account created", "user_id", user.ID.String())
	writeJSON(w, http.StatusOK, messageResponse{Message: "User created successfully"})
}

// handleSignin authenticates and opens a session.
// POST /api/auth/signin
func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	_, token, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, CodeInvalidCredentials, "")
		} else {
			h.serverError(r, w, "signin failed", err)
		}
		return
	}

	h.setSessionCookie(w, token, h.tokenTTL)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Signed in successfully"})
}

// handleSignout clears the session cookie. Tokens are stateless, so this
// never fails, cookie or no cookie.
// POST /api/auth/signout
func (h *Handler) handleSignout(w http.ResponseWriter, r *http.Request) {
	h.svc.Signout(r.Context())
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Signed out successfully"})
}

// handleMe returns the authenticated user's profile.
// GET /api/user/me
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)

	user, err := h.svc.ResolveCurrentUser(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			writeError(w, CodeNotAuthenticated, "")
		case errors.Is(err, auth.ErrTokenExpired):
			writeError(w, CodeTokenExpired, "")
		case errors.Is(err, auth.ErrTokenInvalid):
			writeError(w, CodeInvalidToken, "")
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, CodeUserNotFound, "")
		default:
			h.serverError(r, w, "resolve current user failed", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// handleHealth answers the root and /health probes.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "OK")
}

// handlePing answers /ping.
func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, "pong")
}

// serverError logs the cause and answers with the opaque 500 envelope.
// Internal detail never reaches the client.
func (h *Handler) serverError(r *http.Request, w http.ResponseWriter, msg string, err error) {
	logging.Error(h.logger, msg, err, "path", r.URL.Path)
	writeError(w, CodeServerError, "")
}

// decodeCredentials parses the signup/signin body, answering 400 itself on
// failure.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, CodeBadRequest, "request body is not valid JSON")
		return req, false
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, CodeBadRequest, "email and password are required")
		return req, false
	}
	return req, true
}

// isValidationError reports whether err came from input validation rather
// than infrastructure.
func isValidationError(err error) bool {
	var oopsErr oops.OopsError
	if !errors.As(err, &oopsErr) {
		return false
	}
	switch oopsErr.Code() {
	case "AUTH_INVALID_EMAIL", "AUTH_INVALID_PASSWORD":
		return true
	default:
		return false
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure leaves nothing to do
	json.NewEncoder(w).Encode(body)
}
