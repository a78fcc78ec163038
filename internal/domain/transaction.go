package domain

import (
	"time"
)

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypePayment     TransactionType = "payment"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypePenalty     TransactionType = "penalty"
	TransactionTypeTestDeposit TransactionType = "test_deposit"
)

// ServerTimeLayout is the created_at layout of the history endpoint. Times are naive UTC.
const ServerTimeLayout = "02.01.2006 15:04:05"

type Transaction struct {
	ID              TxID            `json:"id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          float64         `json:"amount"`
	Currency        string          `json:"currency"`
	AmountRub       float64         `json:"amount_rub"`
	Status          PaymentStatus   `json:"status"`
	CreatedAt       string          `json:"created_at"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// CreatedTime parses CreatedAt as UTC. The server sends a placeholder
// string when it could not format the date, so ok may be false.
func (t *Transaction) CreatedTime() (time.Time, bool) {
	ts, err := time.ParseInLocation(ServerTimeLayout, t.CreatedAt, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Error        string        `json:"error,omitempty"`
}
