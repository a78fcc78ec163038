package walletservice

import (
	"context"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type IWalletService interface {
	// LoadUser fetches the signed-in user and refreshes the cached balance
	LoadUser(ctx context.Context) (*domain.UserInfo, error)

	Transactions(ctx context.Context) ([]domain.Transaction, error)
	DepositAddress(ctx context.Context) (*domain.DepositAddress, error)

	// RefreshBalance asks the backend to resync the on-chain balance, then reloads the user
	RefreshBalance(ctx context.Context) (*domain.RefreshBalanceResponse, error)

	// RequestWithdrawal validates locally before anything is sent
	RequestWithdrawal(ctx context.Context, amountSol float64, address string) (*domain.WithdrawalResult, error)

	ExchangeRates(ctx context.Context) (*domain.ExchangeRates, error)

	// WelcomeText never fails; it falls back to the built-in text
	WelcomeText(ctx context.Context) string
}
