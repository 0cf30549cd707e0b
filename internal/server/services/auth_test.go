package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"github.com/Omoju-Mayowa/blogauth/internal/dbx"
	"github.com/Omoju-Mayowa/blogauth/internal/logging"
	"github.com/Omoju-Mayowa/blogauth/internal/server/auth"
	"github.com/Omoju-Mayowa/blogauth/internal/server/config"
	"github.com/Omoju-Mayowa/blogauth/internal/server/metrics"
	"github.com/Omoju-Mayowa/blogauth/internal/server/models"
	"github.com/Omoju-Mayowa/blogauth/internal/server/password"
	"github.com/Omoju-Mayowa/blogauth/internal/server/pepper"
	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/credentials"
)

type fakeCredentialsRepo struct {
	byID map[string]*models.User
}

func newFakeCredentialsRepo() *fakeCredentialsRepo {
	return &fakeCredentialsRepo{byID: map[string]*models.User{}}
}

func (r *fakeCredentialsRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, errors.New("duplicate email")
		}
	}
	u := *user
	u.CreatedAt = time.Now()
	r.byID[u.ID] = &u
	return &u, nil
}

func (r *fakeCredentialsRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeCredentialsRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeCredentialsRepo) UpdatePassword(ctx context.Context, id, passwordHash string, pepperVersion int) error {
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	u.PepperVersion = pepperVersion
	return nil
}

func (r *fakeCredentialsRepo) ShiftPepperVersions(ctx context.Context, delta int) (int64, error) {
	for _, u := range r.byID {
		u.PepperVersion += delta
	}
	return int64(len(r.byID)), nil
}

func (r *fakeCredentialsRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.byID)), nil
}

type fakeRepoManager struct {
	repo *fakeCredentialsRepo
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Credentials(db dbx.DBTX) credentials.Repository { return m.repo }

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *fakeLimiter) CheckAndConsume(ctx context.Context, sourceAddr string) (bool, error) {
	l.calls++
	return l.allowed, l.err
}

type fixture struct {
	svc     *AuthService
	repo    *fakeCredentialsRepo
	limiter *fakeLimiter
	store   *pepper.Store
	mock    sqlmock.Sqlmock
}

func newFixture(t *testing.T, seed []string) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	path := filepath.Join(t.TempDir(), "peppers.json")
	store, err := pepper.Open(path, pepper.Seed{Current: seed[0], Old: seed[1:]})
	require.NoError(t, err)

	repo := newFakeCredentialsRepo()
	limiter := &fakeLimiter{allowed: true}
	mtr := metrics.New(prometheus.NewRegistry())
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg := &config.Config{
		SecretKey:                   "test-secret",
		AccessTokenValidityDuration: time.Hour,
	}

	hasher := password.NewHasher(store)
	verifier := password.NewVerifier(store, mtr)

	svc, err := NewAuthService(db, &fakeRepoManager{repo: repo}, store,
		hasher, verifier, limiter, mtr, logger, cfg)
	require.NoError(t, err)

	return &fixture{svc: svc, repo: repo, limiter: limiter, store: store, mock: mock}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, 0, user.PepperVersion)
	assert.NotContains(t, user.PasswordHash, "correct horse")

	token, err := f.svc.Login(ctx, "user@example.com", "correct horse", "192.0.2.1:4000")
	require.NoError(t, err)

	gotID, err := auth.GetUserIDFromToken(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)
	assert.Equal(t, 1, f.limiter.calls)
}

func TestRegister_EmptyEmail(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})

	_, err := f.svc.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRegister_EmptyPassword(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})

	_, err := f.svc.Register(context.Background(), "user@example.com", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.repo.GetByEmail(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound, "no record may be created for an empty password")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "user@example.com", "right")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "user@example.com", "wrong", "192.0.2.1:4000")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})

	_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever", "192.0.2.1:4000")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	f.limiter.allowed = false

	_, err := f.svc.Login(context.Background(), "user@example.com", "pw", "192.0.2.1:4000")
	assert.ErrorIs(t, err, common.ErrRateLimited)
}

func TestLogin_LimiterBackendDown(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	f.limiter.allowed = false
	f.limiter.err = common.ErrBackendUnavailable

	_, err := f.svc.Login(context.Background(), "user@example.com", "pw", "192.0.2.1:4000")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
}

// Login must keep working across a rotation while the stored hint is stale,
// and the hint becomes accurate again once versions are migrated.
func TestLogin_AcrossRotationAndMigration(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "user@example.com", "correct horse")
	require.NoError(t, err)

	_, err = f.svc.RotatePepper(ctx, []string{"pepper-1"})
	require.NoError(t, err)

	// Stale hint: record still says version 0, which now points at the
	// new pepper. Verification falls back to the scan and matches at 1.
	_, err = f.svc.Login(ctx, "user@example.com", "correct horse", "192.0.2.1:4000")
	require.NoError(t, err)

	n, err := f.svc.MigrateVersions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	migrated, err := f.repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, migrated.PepperVersion)

	_, err = f.svc.Login(ctx, "user@example.com", "correct horse", "192.0.2.1:4000")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "user@example.com", "wrong", "192.0.2.1:4000")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "user@example.com", "old password")
	require.NoError(t, err)
	oldHash := user.PasswordHash

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err = f.svc.ChangePassword(ctx, user.ID, "old password", "new password")
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	updated, err := f.repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, updated.PasswordHash)
	assert.Equal(t, 0, updated.PepperVersion)

	_, err = f.svc.Login(ctx, "user@example.com", "new password", "192.0.2.1:4000")
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "user@example.com", "old password")
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err = f.svc.ChangePassword(ctx, user.ID, "not the password", "new password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// Changing the password after a rotation stamps the record with the current
// version, healing a stale hint.
func TestChangePassword_HealsStaleHint(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "user@example.com", "old password")
	require.NoError(t, err)

	_, err = f.svc.RotatePepper(ctx, []string{"pepper-1"})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err = f.svc.ChangePassword(ctx, user.ID, "old password", "new password")
	require.NoError(t, err)

	updated, err := f.repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.PepperVersion)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "user@example.com", "forgotten")
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err = f.svc.ResetPassword(ctx, "user@example.com", "brand new")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "user@example.com", "brand new", "192.0.2.1:4000")
	assert.NoError(t, err)
}

func TestResetPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.ResetPassword(context.Background(), "nobody@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRotatePepper_Order(t *testing.T) {
	f := newFixture(t, []string{"pepper-0"})

	rotated, err := f.svc.RotatePepper(context.Background(), []string{"pepper-2", "pepper-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pepper-2", "pepper-1", "pepper-0"}, rotated)
}

func TestMigrateVersions_DeltaValidation(t *testing.T) {
	f := newFixture(t, []string{"pepper-1", "pepper-0"})
	ctx := context.Background()

	_, err := f.svc.MigrateVersions(ctx, 0)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = f.svc.MigrateVersions(ctx, -1)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = f.svc.MigrateVersions(ctx, 2)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	n, err := f.svc.MigrateVersions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
