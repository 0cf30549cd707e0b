package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/credentials"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCredentialsVendsPostgresRepository(t *testing.T) {
	m, err := NewPostgresRepositoryManager()
	require.NoError(t, err)

	repo := m.Credentials(newDB(t))
	assert.IsType(t, &credentials.PostgresRepository{}, repo)
}

func TestRunMigrations_UpCalled(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	called := false
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		assert.Equal(t, ".", dir)
		return nil
	}

	m := &PostgresRepositoryManager{}
	err := m.RunMigrations(context.Background(), newDB(t))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRunMigrations_UpError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	wantErr := errors.New("migration failed")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return wantErr
	}

	m := &PostgresRepositoryManager{}
	err := m.RunMigrations(context.Background(), newDB(t))
	assert.ErrorIs(t, err, wantErr)
}
