package paymentservice

import (
	"context"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type IPaymentService interface {
	// Submit hands a decoded payload to the backend and stores the reservation
	Submit(ctx context.Context, payload string) (*domain.Reservation, error)

	// Confirm processes the pending reservation and starts status polling
	Confirm(ctx context.Context) (*Confirmation, error)

	// Cancel discards the pending reservation
	Cancel(ctx context.Context) error

	// Track polls an existing transaction without confirming anything
	Track(id domain.TxID)

	StopPolling()
	OnStatus(fn func(domain.PollUpdate))
	Reservation() *domain.Reservation
}

type Confirmation struct {
	TransactionID domain.TxID            `json:"transaction_id"`
	Reservation   domain.Reservation     `json:"reservation"`
	Balance       domain.BalanceSnapshot `json:"balance"`
	Message       string                 `json:"message,omitempty"`
}
