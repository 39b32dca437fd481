// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	byEmail map[string]*auth.User
	byID    map[ulid.ULID]*auth.User

	createErr error
	getErr    error
	updateErr error

	updatedHashes map[ulid.ULID]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail:       make(map[string]*auth.User),
		byID:          make(map[ulid.ULID]*auth.User),
		updatedHashes: make(map[ulid.ULID]string),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return auth.ErrDuplicateAccount
	}
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	user, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	user, ok := r.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updatedHashes[id] = passwordHash
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id ulid.ULID) error {
	user, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	return nil
}

// fakeHasher is a deterministic PasswordHasher: Hash prefixes the password,
// Verify reverses it. verifyCalls counts timing-relevant invocations.
type fakeHasher struct {
	verifyCalls int
	needsRehash bool
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, digest string) (bool, error) {
	h.verifyCalls++
	return digest == "hashed:"+password, nil
}

func (h *fakeHasher) NeedsRehash(string) bool {
	return h.needsRehash
}

// fakeDispatcher records dispatched tasks.
type fakeDispatcher struct {
	dispatched []string
	payloads   []any
	err        error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, name string, payload any) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, name)
	d.payloads = append(d.payloads, payload)
	return nil
}

func newTestService(t *testing.T, repo *fakeUserRepo, hasher *fakeHasher, opts ...auth.Option) *auth.Service {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	svc, err := auth.NewService(repo, hasher, issuer, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService_NilDependencies(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name        string
		users       auth.UserRepository
		hasher      auth.PasswordHasher
		tokens      *auth.Issuer
		expectError string
	}{
		{
			name:        "nil user repository",
			users:       nil,
			hasher:      &fakeHasher{},
			tokens:      issuer,
			expectError: "user repository is required",
		},
		{
			name:        "nil password hasher",
			users:       newFakeUserRepo(),
			hasher:      nil,
			tokens:      issuer,
			expectError: "password hasher is required",
		},
		{
			name:        "nil token issuer",
			users:       newFakeUserRepo(),
			hasher:      &fakeHasher{},
			tokens:      nil,
			expectError: "token issuer is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.hasher, tt.tokens)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and issues token", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})

		user, token, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, "hashed:password123", user.PasswordHash)
		assert.NotEmpty(t, token)

		stored, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, stored.ID)
	})

	t.Run("duplicate email returns ErrDuplicateAccount", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})

		_, _, err := svc.Signup(ctx, "dup@example.com", "password123")
		require.NoError(t, err)

		_, _, err = svc.Signup(ctx, "dup@example.com", "otherpassword")
		assert.ErrorIs(t, err, auth.ErrDuplicateAccount)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		svc := newTestService(t, newFakeUserRepo(), &fakeHasher{})

		_, _, err := svc.Signup(ctx, "not-an-email", "password123")
		assert.Error(t, err)
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc := newTestService(t, newFakeUserRepo(), &fakeHasher{})

		_, _, err := svc.Signup(ctx, "alice@example.com", "short")
		assert.Error(t, err)
	})

	t.Run("repository failure surfaces as error", func(t *testing.T) {
		repo := newFakeUserRepo()
		repo.createErr = errors.New("connection refused")
		svc := newTestService(t, repo, &fakeHasher{})

		_, _, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateAccount)
	})

	t.Run("enqueues welcome email", func(t *testing.T) {
		repo := newFakeUserRepo()
		dispatcher := &fakeDispatcher{}
		svc := newTestService(t, repo, &fakeHasher{}, auth.WithDispatcher(dispatcher))

		user, _, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		require.Len(t, dispatcher.dispatched, 1)
		assert.Equal(t, auth.TaskWelcomeEmail, dispatcher.dispatched[0])
		payload, ok := dispatcher.payloads[0].(auth.WelcomeEmailPayload)
		require.True(t, ok)
		assert.Equal(t, user.ID.String(), payload.UserID)
		assert.Equal(t, "alice@example.com", payload.Email)
	})

	t.Run("dispatcher failure does not fail signup", func(t *testing.T) {
		repo := newFakeUserRepo()
		dispatcher := &fakeDispatcher{err: errors.New("queue unreachable")}
		svc := newTestService(t, repo, &fakeHasher{}, auth.WithDispatcher(dispatcher))

		user, token, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.NotNil(t, user)
		assert.NotEmpty(t, token)
	})
}

func TestService_Signin(t *testing.T) {
	ctx := context.Background()

	signup := func(t *testing.T, svc *auth.Service, email, password string) *auth.User {
		t.Helper()
		user, _, err := svc.Signup(ctx, email, password)
		require.NoError(t, err)
		return user
	}

	t.Run("correct credentials issue token", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})
		created := signup(t, svc, "alice@example.com", "password123")

		user, token, err := svc.Signin(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password returns ErrInvalidCredentials", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})
		signup(t, svc, "alice@example.com", "password123")

		_, _, err := svc.Signin(ctx, "alice@example.com", "wrongpassword")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email returns identical error", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})
		signup(t, svc, "alice@example.com", "password123")

		_, _, wrongPassErr := svc.Signin(ctx, "alice@example.com", "wrongpassword")
		_, _, unknownErr := svc.Signin(ctx, "nobody@example.com", "password123")
		assert.Equal(t, wrongPassErr, unknownErr)
	})

	t.Run("unknown email still verifies a digest", func(t *testing.T) {
		repo := newFakeUserRepo()
		hasher := &fakeHasher{}
		svc := newTestService(t, repo, hasher)

		_, _, err := svc.Signin(ctx, "nobody@example.com", "password123")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Equal(t, 1, hasher.verifyCalls)
	})

	t.Run("repository failure surfaces as error", func(t *testing.T) {
		repo := newFakeUserRepo()
		repo.getErr = errors.New("connection refused")
		svc := newTestService(t, repo, &fakeHasher{})

		_, _, err := svc.Signin(ctx, "alice@example.com", "password123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("stale digest is rehashed", func(t *testing.T) {
		repo := newFakeUserRepo()
		hasher := &fakeHasher{needsRehash: true}
		svc := newTestService(t, repo, hasher)
		created := signup(t, svc, "alice@example.com", "password123")

		_, _, err := svc.Signin(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, "hashed:password123", repo.updatedHashes[created.ID])
	})

	t.Run("failed rehash persist does not fail signin", func(t *testing.T) {
		repo := newFakeUserRepo()
		repo.updateErr = errors.New("connection refused")
		hasher := &fakeHasher{needsRehash: true}
		svc := newTestService(t, repo, hasher)
		signup(t, svc, "alice@example.com", "password123")

		_, token, err := svc.Signin(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})
}

func TestService_ResolveCurrentUser(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token resolves user", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})

		created, token, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		user, err := svc.ResolveCurrentUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("missing token", func(t *testing.T) {
		svc := newTestService(t, newFakeUserRepo(), &fakeHasher{})

		_, err := svc.ResolveCurrentUser(ctx, "")
		assert.ErrorIs(t, err, auth.ErrTokenMissing)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("malformed token", func(t *testing.T) {
		svc := newTestService(t, newFakeUserRepo(), &fakeHasher{})

		_, err := svc.ResolveCurrentUser(ctx, "garbage")
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("token for deleted user", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})

		created, token, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, created.ID))

		_, err = svc.ResolveCurrentUser(ctx, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.True(t, auth.IsNotAuthenticated(err))
	})

	t.Run("repository failure is not a not-authenticated outcome", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := newTestService(t, repo, &fakeHasher{})

		_, token, err := svc.Signup(ctx, "alice@example.com", "password123")
		require.NoError(t, err)

		repo.getErr = errors.New("connection refused")
		_, err = svc.ResolveCurrentUser(ctx, token)
		require.Error(t, err)
		assert.False(t, auth.IsNotAuthenticated(err))
	})
}
