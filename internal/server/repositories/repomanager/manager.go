package repomanager

import (
	"context"
	"database/sql"

	"github.com/Omoju-Mayowa/blogauth/internal/dbx"
	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/credentials"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
}
