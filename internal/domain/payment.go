package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TxID is a server transaction id. The backend sends it either as a JSON
// number or as a string.
type TxID string

func (id *TxID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode transaction id: %w", err)
		}
		*id = TxID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode transaction id: %w", err)
	}
	*id = TxID(n.String())
	return nil
}

func (id TxID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id TxID) String() string {
	return string(id)
}

func (id TxID) IsZero() bool {
	return id == ""
}

type PaymentStatus string

const (
	PaymentStatusPending                 PaymentStatus = "pending"
	PaymentStatusInProgress              PaymentStatus = "in_progress"
	PaymentStatusWaitingUserConfirmation PaymentStatus = "waiting_user_confirmation"
	PaymentStatusCompleted               PaymentStatus = "completed"
	PaymentStatusError                   PaymentStatus = "error"
	PaymentStatusCancelled               PaymentStatus = "cancelled"
	PaymentStatusRejected                PaymentStatus = "rejected"
)

// IsTerminal reports whether the status poller should stop on s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusError, PaymentStatusCancelled:
		return true
	}
	return false
}

type ScanRequest struct {
	QRCodeData string `json:"qr_code_data"`
}

type ScanResponse struct {
	Success       bool    `json:"success"`
	AmountRub     float64 `json:"amount_rub"`
	Description   string  `json:"description"`
	QRData        string  `json:"qr_data"`
	TransactionID TxID    `json:"transaction_id,omitempty"`
	Message       string  `json:"message,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Reservation is a payment the server accepted for confirmation.
// AmountSol is for display only.
type Reservation struct {
	AmountRub     float64   `json:"amount_rub"`
	AmountSol     float64   `json:"amount_sol"`
	Description   string    `json:"description"`
	TransactionID TxID      `json:"transaction_id,omitempty"`
	QRRawData     string    `json:"qr_raw_data"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProcessRequest struct {
	AmountRub  float64 `json:"amount_rub"`
	QRCodeData string  `json:"qr_code_data"`
}

type ProcessResponse struct {
	Success       bool     `json:"success"`
	TransactionID TxID     `json:"transaction_id"`
	FrozenBalance *float64 `json:"frozen_balance,omitempty"`
	AmountRub     float64  `json:"amount_rub,omitempty"`
	AmountSol     float64  `json:"amount_sol,omitempty"`
	Status        string   `json:"status,omitempty"`
	Message       string   `json:"message,omitempty"`
	Error         string   `json:"error,omitempty"`
}

type StatusResponse struct {
	TransactionID TxID          `json:"transaction_id,omitempty"`
	Status        PaymentStatus `json:"status"`
	AmountRub     float64       `json:"amount_rub,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// PollState is the local view of a tracked payment.
type PollState string

const (
	PollStateIdle      PollState = "idle"
	PollStatePolling   PollState = "polling"
	PollStateCompleted PollState = "completed"
	PollStateFailed    PollState = "failed"
	PollStateTimedOut  PollState = "timed_out"
)

func (s PollState) IsTerminal() bool {
	return s == PollStateCompleted || s == PollStateFailed || s == PollStateTimedOut
}

// PollUpdate is emitted on every poller tick and on the terminal transition.
type PollUpdate struct {
	TransactionID TxID          `json:"transaction_id"`
	State         PollState     `json:"state"`
	Remaining     int           `json:"remaining"`
	Countdown     string        `json:"countdown"`
	ServerStatus  PaymentStatus `json:"server_status,omitempty"`
	Message       string        `json:"message,omitempty"`
}
