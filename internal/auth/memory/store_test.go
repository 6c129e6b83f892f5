// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/auth/memory"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *memory.Store, email, name string) *auth.User {
	t.Helper()
	u, err := auth.NewUser(email, name, "digest", t0)
	require.NoError(t, err)
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ana := seedUser(t, s, "ana@example.com", "Ana Lima")

	t.Run("lookups", func(t *testing.T) {
		got, err := s.Users().GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, ana.ID, got.ID)

		got, err = s.Users().GetByFullName(ctx, "Ana Lima")
		require.NoError(t, err)
		assert.Equal(t, ana.ID, got.ID)

		got, err = s.Users().GetByID(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Lima", got.FullName)

		_, err = s.Users().GetByEmail(ctx, "ANA@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound, "emails compare exactly")
	})

	t.Run("unique keys", func(t *testing.T) {
		dupEmail, err := auth.NewUser("ana@example.com", "Someone Else", "d", t0)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Users().Create(ctx, dupEmail), auth.ErrDuplicateEmail)

		dupName, err := auth.NewUser("other@example.com", "Ana Lima", "d", t0)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Users().Create(ctx, dupName), auth.ErrDuplicateName)
	})

	t.Run("update password", func(t *testing.T) {
		later := t0.Add(time.Hour)
		require.NoError(t, s.Users().UpdatePassword(ctx, ana.ID, "new-digest", later))
		got, err := s.Users().GetByID(ctx, ana.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-digest", got.PasswordHash)
		assert.Equal(t, later, got.UpdatedAt)

		err = s.Users().UpdatePassword(ctx, ulid.Make(), "x", later)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		got, err := s.Users().GetByID(ctx, ana.ID)
		require.NoError(t, err)
		got.Email = "mutated@example.com"
		_, err = s.Users().GetByEmail(ctx, "mutated@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestRefreshTokenRepository(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ana := seedUser(t, s, "ana@example.com", "Ana Lima")
	repo := s.RefreshTokens()

	first := &auth.RefreshToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "h1", ExpiresAt: t0.Add(time.Hour)}
	second := &auth.RefreshToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "h2", ExpiresAt: t0.Add(2 * time.Hour)}

	require.NoError(t, repo.Replace(ctx, first))
	require.NoError(t, repo.Replace(ctx, second))
	assert.Equal(t, 1, repo.Count(ana.ID))

	_, err := repo.GetByTokenHash(ctx, "h1")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.Revoke(ctx, "h2"))
	require.NoError(t, repo.Revoke(ctx, "missing"), "revoking an unknown hash is a no-op")
	got, err := repo.GetByTokenHash(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, got.Revoked)

	err = repo.Replace(ctx, &auth.RefreshToken{ID: ulid.Make(), UserID: ulid.Make(), TokenHash: "h3"})
	assert.ErrorIs(t, err, auth.ErrNotFound, "owner must exist")

	n, err := repo.DeleteExpired(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "a token expiring exactly now is left for the next sweep")

	n, err = repo.DeleteExpired(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Replace(ctx, first))
	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.Zero(t, repo.Count(ana.ID))

	require.NoError(t, repo.Replace(ctx, second))
	require.NoError(t, repo.DeleteByUser(ctx, ana.ID))
	assert.Zero(t, repo.Count(ana.ID))
}

func TestPasswordResetRepository_MarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ana := seedUser(t, s, "ana@example.com", "Ana Lima")
	repo := s.PasswordResets()

	tok := &auth.PasswordResetToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "p1", ExpiresAt: t0.Add(15 * time.Minute)}
	require.NoError(t, repo.Replace(ctx, tok))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		notFound int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.MarkUsed(ctx, tok.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, auth.ErrNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 7, notFound)

	got, err := repo.GetByTokenHash(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Used)
}

func TestPasswordResetRepository_ReplaceAndExpire(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	ana := seedUser(t, s, "ana@example.com", "Ana Lima")
	repo := s.PasswordResets()

	require.NoError(t, repo.Replace(ctx, &auth.PasswordResetToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "p1", ExpiresAt: t0}))
	require.NoError(t, repo.Replace(ctx, &auth.PasswordResetToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "p2", ExpiresAt: t0}))
	assert.Equal(t, 1, repo.Count(ana.ID))

	n, err := repo.DeleteExpired(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Replace(ctx, &auth.PasswordResetToken{ID: ulid.Make(), UserID: ana.ID, TokenHash: "p3", ExpiresAt: t0}))
	require.NoError(t, repo.DeleteByUser(ctx, ana.ID))
	_, err = repo.GetByTokenHash(ctx, "p3")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestRevokedTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().RevokedTokens()

	entry := &auth.RevokedToken{TokenHash: "a1", RevokedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	require.NoError(t, repo.Insert(ctx, entry))
	assert.ErrorIs(t, repo.Insert(ctx, entry), auth.ErrAlreadyExists)

	ok, err := repo.Exists(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "a2")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.DeleteExpired(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, repo.Len())
}

func TestStore_InTransactionPropagatesError(t *testing.T) {
	s := memory.NewStore()
	boom := errors.New("boom")
	err := s.InTransaction(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
