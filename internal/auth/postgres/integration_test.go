// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/store"
)

// startPostgres runs a disposable Postgres with the schema applied.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gatehouse_test"),
		tcpostgres.WithUsername("gatehouse"),
		tcpostgres.WithPassword("gatehouse"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(url)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	return url
}

func TestUserRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	url := startPostgres(t)

	pool, err := store.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := authpg.NewUserRepository(pool)

	t.Run("round trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		user := &auth.User{
			ID:           ulid.Make(),
			Email:        "roundtrip@example.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Create(ctx, user))

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, byID.Email)

		byEmail, err := repo.GetByEmail(ctx, user.Email)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
	})

	t.Run("duplicate email hits the unique constraint", func(t *testing.T) {
		now := time.Now().UTC()
		first := &auth.User{
			ID: ulid.Make(), Email: "dup@example.com", PasswordHash: "h",
			CreatedAt: now, UpdatedAt: now,
		}
		second := &auth.User{
			ID: ulid.Make(), Email: "dup@example.com", PasswordHash: "h",
			CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, first))
		assert.ErrorIs(t, repo.Create(ctx, second), auth.ErrDuplicateAccount)
	})

	t.Run("update password persists", func(t *testing.T) {
		now := time.Now().UTC()
		user := &auth.User{
			ID: ulid.Make(), Email: "rehash@example.com", PasswordHash: "old",
			CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new"))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		now := time.Now().UTC()
		user := &auth.User{
			ID: ulid.Make(), Email: "gone@example.com", PasswordHash: "h",
			CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, user))
		require.NoError(t, repo.Delete(ctx, user.ID))

		_, err := repo.GetByID(ctx, user.ID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
