package domain

import (
	"time"
)

type EventType string

const (
	EventScannerState      EventType = "scanner_state"
	EventScanAck           EventType = "scan_ack"
	EventDecoded           EventType = "decoded"
	EventReservation       EventType = "reservation"
	EventReservationFailed EventType = "reservation_failed"
	EventPaymentStatus     EventType = "payment_status"
	EventBalance           EventType = "balance"
	EventToast             EventType = "toast"
)

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Event is what the presentation layer subscribes to. Exactly one payload
// field is set, matching Type.
type Event struct {
	Type        EventType        `json:"type"`
	At          time.Time        `json:"at"`
	State       string           `json:"state,omitempty"`
	Payload     string           `json:"payload,omitempty"`
	Reservation *Reservation     `json:"reservation,omitempty"`
	Payment     *PollUpdate      `json:"payment,omitempty"`
	Balance     *BalanceSnapshot `json:"balance,omitempty"`
	Level       ToastLevel       `json:"level,omitempty"`
	Kind        ErrorKind        `json:"kind,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// EventSink receives events. Implementations must not block for long.
type EventSink interface {
	Publish(Event)
}

// EventFunc adapts a function to EventSink.
type EventFunc func(Event)

func (f EventFunc) Publish(e Event) {
	f(e)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(Event) {}
