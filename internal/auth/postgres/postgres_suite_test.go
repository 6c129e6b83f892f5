// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/auth/postgres"
	"github.com/trackmint/trackmint/internal/store"
)

func TestPostgresRepositories(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth PostgreSQL Integration Suite")
}

var (
	testPool      *pgxpool.Pool
	testContainer *tcpostgres.PostgresContainer
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	testContainer, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("trackmint_test"),
		tcpostgres.WithUsername("trackmint"),
		tcpostgres.WithPassword("trackmint"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := testContainer.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	testPool, err = store.Open(ctx, connStr, store.PoolOptions{MaxConns: 10})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if testPool != nil {
		testPool.Close()
	}
	if testContainer != nil {
		_ = testContainer.Terminate(context.Background())
	}
})

func createUser(ctx context.Context, email, name string) *auth.User {
	GinkgoHelper()
	u, err := auth.NewUser(email, name, "digest", time.Now().UTC().Truncate(time.Microsecond))
	Expect(err).NotTo(HaveOccurred())
	Expect(postgres.NewUserRepository(testPool).Create(ctx, u)).To(Succeed())
	DeferCleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID.String())
	})
	return u
}

var _ = Describe("UserRepository", func() {
	var (
		ctx   context.Context
		users *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserRepository(testPool)
	})

	It("round-trips a user", func() {
		u := createUser(ctx, "ana@example.com", "Ana Lima")

		got, err := users.GetByEmail(ctx, "ana@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
		Expect(got.CreatedAt.Equal(u.CreatedAt)).To(BeTrue())
	})

	It("maps unique violations to duplicate sentinels", func() {
		createUser(ctx, "ana@example.com", "Ana Lima")

		dupEmail, err := auth.NewUser("ana@example.com", "Someone", "d", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, dupEmail)).To(MatchError(auth.ErrDuplicateEmail))

		dupName, err := auth.NewUser("other@example.com", "Ana Lima", "d", time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, dupName)).To(MatchError(auth.ErrDuplicateName))
	})

	It("reports missing users as not found", func() {
		_, err := users.GetByID(ctx, ulid.Make())
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(users.UpdatePassword(ctx, ulid.Make(), "x", time.Now())).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("Token repositories", func() {
	var (
		ctx     context.Context
		user    *auth.User
		refresh *postgres.RefreshTokenRepository
		resets  *postgres.PasswordResetRepository
		revoked *postgres.RevokedTokenRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		user = createUser(ctx, "ana@example.com", "Ana Lima")
		refresh = postgres.NewRefreshTokenRepository(testPool)
		resets = postgres.NewPasswordResetRepository(testPool)
		revoked = postgres.NewRevokedTokenRepository(testPool)
	})

	It("keeps one refresh token per user", func() {
		now := time.Now().UTC()
		for _, hash := range []string{"h1", "h2"} {
			Expect(refresh.Replace(ctx, &auth.RefreshToken{
				ID: ulid.Make(), UserID: user.ID, TokenHash: hash, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
			})).To(Succeed())
		}

		_, err := refresh.GetByTokenHash(ctx, "h1")
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = refresh.GetByTokenHash(ctx, "h2")
		Expect(err).NotTo(HaveOccurred())
	})

	It("serializes concurrent replaces for the same user", func() {
		now := time.Now().UTC()
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(refresh.Replace(ctx, &auth.RefreshToken{
					ID: ulid.Make(), UserID: user.ID, TokenHash: ulid.Make().String() + string(rune('a'+i)),
					ExpiresAt: now.Add(time.Hour), CreatedAt: now,
				})).To(Succeed())
			}()
		}
		wg.Wait()

		var n int
		Expect(testPool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`,
			user.ID.String()).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(1))
	})

	It("lets exactly one caller consume a reset token", func() {
		now := time.Now().UTC()
		tok := &auth.PasswordResetToken{
			ID: ulid.Make(), UserID: user.ID, TokenHash: "p1", ExpiresAt: now.Add(15 * time.Minute), CreatedAt: now,
		}
		Expect(resets.Replace(ctx, tok)).To(Succeed())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				if resets.MarkUsed(ctx, tok.ID) == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(winners).To(Equal(1))
	})

	It("cascades token rows with their user", func() {
		other := createUser(ctx, "bob@example.com", "Bob Souza")
		now := time.Now().UTC()
		Expect(refresh.Replace(ctx, &auth.RefreshToken{
			ID: ulid.Make(), UserID: other.ID, TokenHash: "cascade", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		})).To(Succeed())

		_, err := testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, other.ID.String())
		Expect(err).NotTo(HaveOccurred())

		_, err = refresh.GetByTokenHash(ctx, "cascade")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("treats a repeated revocation as already present", func() {
		now := time.Now().UTC()
		entry := &auth.RevokedToken{TokenHash: ulid.Make().String(), RevokedAt: now, ExpiresAt: now.Add(time.Hour)}
		Expect(revoked.Insert(ctx, entry)).To(Succeed())
		Expect(revoked.Insert(ctx, entry)).To(MatchError(auth.ErrAlreadyExists))

		ok, err := revoked.Exists(ctx, entry.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		n, err := revoked.DeleteExpired(ctx, now.Add(2*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 1))
	})

	It("rolls back a failed transaction", func() {
		tx := postgres.NewTransactor(testPool)
		err := tx.InTransaction(ctx, func(ctx context.Context) error {
			if err := postgres.NewUserRepository(testPool).UpdatePassword(ctx, user.ID, "changed", time.Now()); err != nil {
				return err
			}
			return auth.NewError(auth.KindTokenAlreadyUsed)
		})
		Expect(auth.KindOf(err)).To(Equal(auth.KindTokenAlreadyUsed))

		got, err := postgres.NewUserRepository(testPool).GetByID(ctx, user.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("digest"))
	})
})
