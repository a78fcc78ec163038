package authservice

import (
	"context"

	"github.com/google/uuid"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type IAuthService interface {
	// GenerateSession asks the backend for a bot deep link carrying a one-time session code
	GenerateSession(ctx context.Context, kind domain.AuthKind) (*domain.AuthSession, error)

	// SubmitCode exchanges the code the bot sent for an authenticated session cookie
	SubmitCode(ctx context.Context, kind domain.AuthKind, code string) (*domain.AuthUser, error)

	Logout(ctx context.Context) error

	// GenerateUIToken issues a token for a client of the local companion server
	GenerateUIToken(ctx context.Context, clientID uuid.UUID, username string) (string, error)
	VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error)
}
