package credentials

import (
	"context"

	"github.com/Omoju-Mayowa/blogauth/internal/server/models"
)

// Repository is the credential-record subset of the user store that the
// auth core needs. The backing store is treated as opaque; only these
// operations are assumed.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword overwrites the stored hash and pepper-version hint.
	// Called on password change/reset, never on plain login.
	UpdatePassword(ctx context.Context, id, passwordHash string, pepperVersion int) error

	// ShiftPepperVersions bulk-increments every record's pepper version by
	// delta and returns the number of records updated. Run exactly once
	// after each rotation.
	ShiftPepperVersions(ctx context.Context, delta int) (int64, error)

	Count(ctx context.Context) (int64, error)
}
