package domain

import (
	"time"

	"github.com/google/uuid"
)

type JournalEvent string

const (
	JournalReserved  JournalEvent = "reserved"
	JournalRejected  JournalEvent = "rejected"
	JournalCancelled JournalEvent = "cancelled"
	JournalConfirmed JournalEvent = "confirmed"
	JournalCompleted JournalEvent = "completed"
	JournalFailed    JournalEvent = "failed"
	JournalTimedOut  JournalEvent = "timed_out"
)

// JournalEntry is a local record of one step in a payment's life.
type JournalEntry struct {
	ID            uuid.UUID    `json:"id"`
	Event         JournalEvent `json:"event"`
	TransactionID TxID         `json:"transaction_id,omitempty"`
	AmountRub     float64      `json:"amount_rub"`
	AmountSol     float64      `json:"amount_sol"`
	Description   string       `json:"description,omitempty"`
	Message       string       `json:"message,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
