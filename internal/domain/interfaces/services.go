package interfaces

import (
	"context"

	"github.com/tuncanbit/qrpay/internal/domain"
)

// WalletAPI is the backend REST surface the client talks to.
type WalletAPI interface {
	// ScanPayment asks the backend to reserve a payment for a decoded QR payload
	ScanPayment(ctx context.Context, req *domain.ScanRequest) (*domain.ScanResponse, error)

	// ProcessPayment confirms a reservation; csrfToken goes into X-CSRF-Token
	ProcessPayment(ctx context.Context, req *domain.ProcessRequest, csrfToken string) (*domain.ProcessResponse, error)

	// PaymentStatus fetches the server status of a transaction
	PaymentStatus(ctx context.Context, id domain.TxID) (*domain.StatusResponse, error)

	UserInfo(ctx context.Context) (*domain.UserInfo, error)
	Transactions(ctx context.Context) ([]domain.Transaction, error)
	DepositAddress(ctx context.Context) (*domain.DepositAddress, error)
	RefreshBalance(ctx context.Context, csrfToken string) (*domain.RefreshBalanceResponse, error)
	RequestWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) (*domain.WithdrawalResult, error)
	ExchangeRates(ctx context.Context) (*domain.ExchangeRates, error)
	HomeText(ctx context.Context) (*domain.HomeText, error)

	GenerateSession(ctx context.Context, kind domain.AuthKind) (*domain.AuthSession, error)
	SubmitCode(ctx context.Context, kind domain.AuthKind, code string) (*domain.CodeResponse, error)
	Logout(ctx context.Context) error

	// CSRFToken returns the X-CSRF-Token cookie value, or "" when absent
	CSRFToken() string
}

// Journal records payment lifecycle steps locally.
type Journal interface {
	Record(ctx context.Context, entry *domain.JournalEntry) error
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// WebSocketManager fans events out to connected UI clients
type WebSocketManager interface {
	AddClient(client WebSocketClient) error
	RemoveClient(clientID string) error
	Broadcast(event *domain.Event) error
	SendToClient(clientID string, event *domain.Event) error
	GetClientCount() int
}

type WebSocketClient interface {
	GetID() string
	Send(event *domain.Event) error
	Close() error
	IsActive() bool
	HandleConnection()
}
