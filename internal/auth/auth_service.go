// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// TaskWelcomeEmail is the queue task enqueued after a successful signup.
const TaskWelcomeEmail = "user.welcome_email"

// TaskDispatcher hands a named operation and payload to a queue for
// out-of-process execution, returning without waiting for completion.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, name string, payload any) error
}

// WelcomeEmailPayload is the payload of the TaskWelcomeEmail task.
type WelcomeEmailPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// dummyPasswordDigest is verified when a signin targets an unknown email so
// the unknown-email and wrong-password paths take equivalent time.
// This is NOT a real credential - it is a fake digest that will never match
// any password.
//
//nolint:gosec // G101: intentionally fake digest for timing attack prevention, not a credential.
const dummyPasswordDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service enforces the business rules for account creation and
// authentication.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens *Issuer
	tasks  TaskDispatcher
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDispatcher attaches a task dispatcher for background work. Without
// one, signup simply skips the welcome email.
func WithDispatcher(d TaskDispatcher) Option {
	return func(s *Service) { s.tasks = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. Repository, hasher, and issuer are required.
func NewService(users UserRepository, hasher PasswordHasher, tokens *Issuer, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup registers a new account and issues a session token for it.
// Returns ErrDuplicateAccount when the email is already registered; the
// store's unique constraint is the sole arbiter, so a concurrent duplicate
// signup yields exactly one success.
//
// The welcome-email enqueue happens after the user row is committed and is
// best effort: a dead queue must never roll back a created account.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, string, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, "", err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, digest)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, "", ErrDuplicateAccount
		}
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.enqueueWelcomeEmail(ctx, user)

	return user, token, nil
}

// Signin authenticates an existing account and issues a session token.
// Unknown email and wrong password return the identical
// ErrInvalidCredentials; a dummy digest is verified on the unknown-email
// path to keep the two indistinguishable by timing.
func (s *Service) Signin(ctx context.Context, email, password string) (*User, string, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	targetDigest := dummyPasswordDigest
	userExists := false
	switch {
	case lookupErr == nil:
		targetDigest = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Fall through with the dummy digest.
	default:
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetDigest)
	if verifyErr != nil && userExists {
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, "", ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if digest, hashErr := s.hasher.Hash(password); hashErr == nil {
			// Best effort: signin succeeds even if the rehash is lost.
			if upErr := s.users.UpdatePassword(ctx, user.ID, digest); upErr != nil {
				s.logger.Warn("password rehash not persisted",
					"user_id", user.ID.String(), "error", upErr)
			}
		}
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}
	return user, token, nil
}

// Signout ends a session. Tokens are stateless, so there is nothing to
// revoke server-side; the HTTP layer clears the cookie. Never fails.
func (s *Service) Signout(_ context.Context) {}

// ResolveCurrentUser verifies a session token and loads the user it names.
// Missing, malformed, and expired tokens, and tokens whose user no longer
// exists, return their sentinel errors; callers treat all of them as "not
// authenticated" (see IsNotAuthenticated) rather than as failures.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (*User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user, nil
}

// enqueueWelcomeEmail dispatches the post-signup task, logging and
// continuing on any failure.
func (s *Service) enqueueWelcomeEmail(ctx context.Context, user *User) {
	if s.tasks == nil {
		return
	}
	payload := WelcomeEmailPayload{
		UserID: user.ID.String(),
		Email:  user.Email,
	}
	if err := s.tasks.Dispatch(ctx, TaskWelcomeEmail, payload); err != nil {
		s.logger.Warn("welcome email enqueue failed",
			"user_id", user.ID.String(), "error", err)
	}
}
