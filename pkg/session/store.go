// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// defaultTimeout bounds each API request when no client is supplied.
const defaultTimeout = 10 * time.Second

// User is the account as reported by GET /api/user/me.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError is the error body returned by the Gatehouse API.
type APIError struct {
	InternalCode int    `json:"internal_code"`
	Detail       string `json:"detail"`
	StatusCode   int    `json:"status_code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.InternalCode, e.Detail)
}

// Store holds client-side session state for one Gatehouse server.
type Store struct {
	baseURL string
	client  *http.Client

	mu      sync.RWMutex
	user    *User
	lastErr error
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client. The caller is responsible
// for attaching a cookie jar; without one the session cookie is lost
// between requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// NewStore creates a Store for the server at baseURL (e.g.
// "https://auth.example.com").
func NewStore(baseURL string, opts ...Option) (*Store, error) {
	if baseURL == "" {
		return nil, oops.Code("SESSION_CONFIG_INVALID").Errorf("base URL is required")
	}

	s := &Store{baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, oops.Code("SESSION_CONFIG_INVALID").Wrap(err)
		}
		s.client = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}

	return s, nil
}

// Signup creates an account, opens a session, and loads the current user.
func (s *Store) Signup(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/auth/signup", email, password)
}

// Signin opens a session for an existing account and loads the current user.
func (s *Store) Signin(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/auth/signin", email, password)
}

func (s *Store) authenticate(ctx context.Context, path, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	if err := s.do(ctx, http.MethodPost, path, body, nil); err != nil {
		s.setState(nil, err)
		return err
	}
	return s.Refresh(ctx)
}

// Signout closes the session. Local state is cleared even when the request
// fails, since the caller has abandoned the session either way.
func (s *Store) Signout(ctx context.Context) error {
	err := s.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil)
	s.setState(nil, err)
	return err
}

// Refresh reloads the current user from the server. An unauthenticated
// response is not an error: the user is cleared and Refresh returns nil.
func (s *Store) Refresh(ctx context.Context) error {
	var user User
	err := s.do(ctx, http.MethodGet, "/api/user/me", nil, &user)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			s.setState(nil, nil)
			return nil
		}
		s.setState(nil, err)
		return err
	}

	s.setState(&user, nil)
	return nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// LastError returns the error recorded by the most recent action, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ClearError discards the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

func (s *Store) setState(user *User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.lastErr = err
}

// do sends one JSON request. Non-2xx responses are returned as *APIError
// when the body parses as one.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	}
	if err != nil {
		return oops.Code("SESSION_REQUEST_FAILED").Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return oops.Code("SESSION_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			return oops.Code("SESSION_UNEXPECTED_RESPONSE").
				With("path", path).
				With("status", resp.StatusCode).
				Errorf("server returned %s", resp.Status)
		}
		return oops.With("path", path).Wrap(apiErr)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return oops.Code("SESSION_DECODE_FAILED").With("path", path).Wrap(err)
		}
	}
	return nil
}
