package paymentservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
	"github.com/tuncanbit/qrpay/pkg/currency"
)

type PaymentService struct {
	api       interfaces.WalletAPI
	state     *appstate.State
	journal   interfaces.Journal
	poller    *StatusPoller
	converter *currency.Converter
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	onStatus func(domain.PollUpdate)
}

func NewPaymentService(api interfaces.WalletAPI, state *appstate.State, journal interfaces.Journal, poller *StatusPoller, converter *currency.Converter, logger zerolog.Logger) *PaymentService {
	s := &PaymentService{
		api:       api,
		state:     state,
		journal:   journal,
		poller:    poller,
		converter: converter,
		logger:    logger.With().Str("component", "payment_service").Logger(),
		now:       time.Now,
	}
	poller.OnUpdate(s.handleUpdate)
	return s
}

// SetClock replaces the time source for reservation timestamps.
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PaymentService) OnStatus(fn func(domain.PollUpdate)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

func (s *PaymentService) Reservation() *domain.Reservation {
	return s.state.Reservation()
}

func (s *PaymentService) Submit(ctx context.Context, payload string) (*domain.Reservation, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, domain.NewError(domain.KindDecodeFailure, "", errors.New("empty payload"))
	}

	resp, err := s.api.ScanPayment(ctx, &domain.ScanRequest{QRCodeData: payload})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to submit scanned payload")
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, domain.NewError(domain.KindUnauthenticated, "", err)
		}
		return nil, domain.NewError(domain.KindSubmissionTransportFailure, domain.MsgConnectionFailed, err)
	}

	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = domain.MsgUnknownError
		}
		s.logger.Warn().Str("reason", message).Msg("Payment submission rejected")
		s.record(ctx, &domain.JournalEntry{Event: domain.JournalRejected, Message: message})
		return nil, domain.NewError(domain.KindSubmissionRejected, message, nil)
	}

	description := resp.Description
	if description == "" {
		description = domain.MsgDefaultPurchase
	}
	raw := resp.QRData
	if raw == "" {
		raw = payload
	}

	reservation := &domain.Reservation{
		AmountRub:     resp.AmountRub,
		AmountSol:     s.converter.SolFloat(resp.AmountRub),
		Description:   description,
		TransactionID: resp.TransactionID,
		QRRawData:     raw,
		CreatedAt:     s.now().UTC(),
	}

	if prev := s.state.SetReservation(reservation); prev != nil {
		s.logger.Warn().Float64("replaced_amount_rub", prev.AmountRub).Float64("amount_rub", reservation.AmountRub).Msg("Replacing pending reservation")
	}

	s.logger.Info().Float64("amount_rub", reservation.AmountRub).Str("description", description).Msg("Payment reserved")
	s.record(ctx, &domain.JournalEntry{
		Event:         domain.JournalReserved,
		TransactionID: reservation.TransactionID,
		AmountRub:     reservation.AmountRub,
		AmountSol:     reservation.AmountSol,
		Description:   description,
	})

	return reservation, nil
}

func (s *PaymentService) Confirm(ctx context.Context) (*Confirmation, error) {
	reservation := s.state.Reservation()
	if reservation == nil {
		return nil, domain.NewError(domain.KindNoReservation, "", nil)
	}

	token := s.api.CSRFToken()
	if token == "" {
		s.logger.Error().Msg("CSRF token cookie missing, refusing to process payment")
		return nil, domain.NewError(domain.KindMissingSecurityToken, domain.MsgSecurityError, nil)
	}

	resp, err := s.api.ProcessPayment(ctx, &domain.ProcessRequest{
		AmountRub:  reservation.AmountRub,
		QRCodeData: reservation.QRRawData,
	}, token)
	if err != nil {
		s.logger.Error().Err(err).Float64("amount_rub", reservation.AmountRub).Msg("Failed to process payment")
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, domain.NewError(domain.KindUnauthenticated, "", err)
		}
		return nil, domain.NewError(domain.KindProcessingTransportFailure, domain.MsgConnectionFailed, err)
	}

	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = domain.MsgUnknownError
		}
		s.logger.Warn().Str("reason", message).Msg("Payment processing rejected")
		return nil, domain.NewError(domain.KindProcessingRejected, message, nil)
	}

	s.state.ClearReservation()

	balance := s.state.Balance()
	if resp.FrozenBalance != nil {
		balance = s.state.SetSolBalance(*resp.FrozenBalance)
	}

	confirmation := &Confirmation{
		TransactionID: resp.TransactionID,
		Reservation:   *reservation,
		Balance:       balance,
		Message:       resp.Message,
	}

	s.record(ctx, &domain.JournalEntry{
		Event:         domain.JournalConfirmed,
		TransactionID: resp.TransactionID,
		AmountRub:     reservation.AmountRub,
		AmountSol:     resp.AmountSol,
		Description:   reservation.Description,
	})

	if resp.TransactionID.IsZero() {
		s.logger.Warn().Msg("Payment processed without a transaction id, status will not be tracked")
		return confirmation, nil
	}

	s.logger.Info().Str("transaction_id", resp.TransactionID.String()).Float64("amount_rub", reservation.AmountRub).Msg("Payment confirmed")
	s.poller.Start(resp.TransactionID)
	return confirmation, nil
}

func (s *PaymentService) Cancel(ctx context.Context) error {
	reservation := s.state.TakeReservation()
	if reservation == nil {
		return nil
	}
	s.logger.Info().Float64("amount_rub", reservation.AmountRub).Msg("Payment cancelled by user")
	s.record(ctx, &domain.JournalEntry{
		Event:         domain.JournalCancelled,
		TransactionID: reservation.TransactionID,
		AmountRub:     reservation.AmountRub,
		AmountSol:     reservation.AmountSol,
		Description:   reservation.Description,
	})
	return nil
}

func (s *PaymentService) Track(id domain.TxID) {
	s.poller.Start(id)
}

func (s *PaymentService) StopPolling() {
	s.poller.Stop()
}

func (s *PaymentService) handleUpdate(update domain.PollUpdate) {
	if update.State.IsTerminal() {
		event := domain.JournalCompleted
		switch update.State {
		case domain.PollStateFailed:
			event = domain.JournalFailed
		case domain.PollStateTimedOut:
			event = domain.JournalTimedOut
		}
		s.record(context.Background(), &domain.JournalEntry{
			Event:         event,
			TransactionID: update.TransactionID,
			Message:       update.Message,
		})
	}

	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(update)
	}
}

func (s *PaymentService) record(ctx context.Context, entry *domain.JournalEntry) {
	if s.journal == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("event", string(entry.Event)).Msg("Failed to journal payment event")
	}
}
