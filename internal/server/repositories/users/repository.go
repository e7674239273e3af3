package users

import (
	"context"

	"github.com/dmitrijs2005/deliveroo/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrorNotFound
// when no row matches; guarded updates return it when the guard fails.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByEmailFold(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	VerificationTokenExists(ctx context.Context, token string) (bool, error)
	ResetTokenExists(ctx context.Context, token string) (bool, error)
	SetVerificationToken(ctx context.Context, id string, token models.OneTimeToken) error
	SetResetToken(ctx context.Context, id string, token models.OneTimeToken) error
	Activate(ctx context.Context, id, verificationToken string) error
	ResetPassword(ctx context.Context, id, resetToken, passwordHash string) error
	Count(ctx context.Context) (int, error)
}
