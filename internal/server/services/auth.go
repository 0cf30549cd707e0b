// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, rate-limited login, password
// changes, and pepper rotation with credential-record migration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"github.com/Omoju-Mayowa/blogauth/internal/dbx"
	"github.com/Omoju-Mayowa/blogauth/internal/logging"
	"github.com/Omoju-Mayowa/blogauth/internal/server/auth"
	"github.com/Omoju-Mayowa/blogauth/internal/server/config"
	"github.com/Omoju-Mayowa/blogauth/internal/server/metrics"
	"github.com/Omoju-Mayowa/blogauth/internal/server/models"
	"github.com/Omoju-Mayowa/blogauth/internal/server/password"
	"github.com/Omoju-Mayowa/blogauth/internal/server/pepper"
	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/repomanager"
)

// LoginLimiter gates login attempts by source address. A (false, nil) result
// means the caller is over quota or blocked; an error means the limiter
// backend could not be consulted and its policy says to refuse.
type LoginLimiter interface {
	CheckAndConsume(ctx context.Context, sourceAddr string) (bool, error)
}

// AuthService verifies credentials against peppered argon2id hashes and
// issues access tokens. Every credential failure a caller can observe
// collapses into common.ErrInvalidCredentials so that account existence does
// not leak; only rate-limit rejections are reported distinctly.
type AuthService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	peppers                     *pepper.Store
	hasher                      *password.Hasher
	verifier                    *password.Verifier
	limiter                     LoginLimiter
	metrics                     *metrics.Metrics
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration

	// decoyHash is burned on logins for unknown emails so that the response
	// time matches a real verification.
	decoyHash string
}

// NewAuthService constructs an AuthService. The hasher and verifier must be
// bound to the same pepper store that is passed here.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, store *pepper.Store,
	hasher *password.Hasher, verifier *password.Verifier, limiter LoginLimiter,
	mtr *metrics.Metrics, logger logging.Logger, cfg *config.Config) (*AuthService, error) {

	decoyPassword, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating decoy password: %v", err)
	}
	decoyHash, _, err := hasher.Hash(decoyPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing decoy password: %v", err)
	}

	return &AuthService{
		db:                          db,
		repomanager:                 m,
		peppers:                     store,
		hasher:                      hasher,
		verifier:                    verifier,
		limiter:                     limiter,
		metrics:                     mtr,
		logger:                      logger,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		decoyHash:                   decoyHash,
	}, nil
}

// Register creates a credential record for email. The password is hashed
// under the current pepper, so new records always carry the newest version.
func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", common.ErrInvalidCredentials)
	}
	if plainPassword == "" {
		return nil, fmt.Errorf("password is required: %w", common.ErrInvalidCredentials)
	}

	encoded, version, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  encoded,
		PepperVersion: version,
	}

	repo := s.repomanager.Credentials(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// Login verifies email/password and returns a signed access token. The rate
// limiter is consulted first; every attempt consumes quota regardless of
// outcome. The stored pepper-version hint is tried first and a full scan is
// run only when it misses, so logins keep working across rotations even when
// the hint is stale.
func (s *AuthService) Login(ctx context.Context, email, plainPassword, sourceAddr string) (string, error) {
	allowed, err := s.limiter.CheckAndConsume(ctx, sourceAddr)
	if err != nil {
		s.metrics.LimiterOutage()
		s.metrics.LoginOutcome("error")
		return "", err
	}
	if !allowed {
		s.metrics.RateLimited()
		s.metrics.LoginOutcome("rate_limited")
		return "", common.ErrRateLimited
	}

	repo := s.repomanager.Credentials(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Burn a verification against the decoy record so that unknown
			// emails take as long as wrong passwords.
			_, _ = s.verifier.Verify(ctx, s.decoyHash, plainPassword, 0)
			s.metrics.LoginOutcome("invalid")
			return "", common.ErrInvalidCredentials
		}
		s.metrics.LoginOutcome("error")
		return "", fmt.Errorf("credential store: %w", common.ErrBackendUnavailable)
	}

	if _, err := s.verifier.Verify(ctx, user.PasswordHash, plainPassword, user.PepperVersion); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.metrics.LoginOutcome("invalid")
			return "", common.ErrInvalidCredentials
		}
		s.metrics.LoginOutcome("error")
		return "", err
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		s.metrics.LoginOutcome("error")
		return "", common.ErrorInternal
	}

	s.metrics.LoginOutcome("success")
	return token, nil
}

// ChangePassword re-hashes the credential under the current pepper after
// verifying the current password. The record's hint is stamped with the
// current version, which is how stale hints eventually heal.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		user, err := repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if _, err := s.verifier.Verify(ctx, user.PasswordHash, currentPassword, user.PepperVersion); err != nil {
			return err
		}

		encoded, version, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		return repo.UpdatePassword(ctx, user.ID, encoded, version)
	})
}

// ResetPassword replaces the credential for email without checking the old
// password. Callers are expected to have authorized the reset out of band.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Credentials(tx)

		user, err := repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}

		encoded, version, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		return repo.UpdatePassword(ctx, user.ID, encoded, version)
	})
}

// RotatePepper installs newSecrets ahead of the existing list and returns the
// resulting order. Existing records become stale by the length of newSecrets
// until MigrateVersions is run.
func (s *AuthService) RotatePepper(ctx context.Context, newSecrets []string) ([]string, error) {
	rotated, err := s.peppers.Rotate(newSecrets)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "pepper rotated", "total", len(rotated), "added", len(newSecrets))
	return rotated, nil
}

// MigrateVersions shifts every stored pepper-version hint by delta, where
// delta is the number of secrets added in the preceding rotation. Running it
// twice for the same rotation corrupts the hints, so operators must pair each
// rotation with exactly one migration.
func (s *AuthService) MigrateVersions(ctx context.Context, delta int) (int64, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("migration delta must be positive: %w", common.ErrConfiguration)
	}
	if delta >= s.peppers.Len() {
		return 0, fmt.Errorf("migration delta %d exceeds known pepper versions: %w", delta, common.ErrConfiguration)
	}

	repo := s.repomanager.Credentials(s.db)
	n, err := repo.ShiftPepperVersions(ctx, delta)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "pepper versions migrated", "delta", delta, "records", n)
	return n, nil
}
