package paymentservice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/task"
	"github.com/tuncanbit/qrpay/pkg/currency"
)

// StatusFetcher is the slice of the wallet API the poller needs.
type StatusFetcher interface {
	PaymentStatus(ctx context.Context, id domain.TxID) (*domain.StatusResponse, error)
}

type PollerOptions struct {
	Interval      time.Duration
	Deadline      time.Duration
	StatusTimeout time.Duration
}

// StatusPoller tracks one in-flight payment until the server reports a final
// status or the local deadline passes. Starting it again abandons the
// previous payment.
type StatusPoller struct {
	fetcher StatusFetcher
	sched   task.Scheduler
	opts    PollerOptions
	logger  zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	handle    task.Handle
	txID      domain.TxID
	remaining int
	state     domain.PollState
	onUpdate  func(domain.PollUpdate)
}

func NewStatusPoller(fetcher StatusFetcher, sched task.Scheduler, opts PollerOptions, logger zerolog.Logger) *StatusPoller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = opts.Interval * 5
	}
	return &StatusPoller{
		fetcher: fetcher,
		sched:   sched,
		opts:    opts,
		logger:  logger.With().Str("component", "status_poller").Logger(),
		state:   domain.PollStateIdle,
	}
}

// OnUpdate receives every countdown tick and the final transition.
func (p *StatusPoller) OnUpdate(fn func(domain.PollUpdate)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

func (p *StatusPoller) ticks() int {
	n := int(p.opts.Deadline / p.opts.Interval)
	if n < 1 {
		n = 1
	}
	return n
}

func (p *StatusPoller) Start(id domain.TxID) {
	p.mu.Lock()
	prev := p.handle
	p.gen++
	gen := p.gen
	p.txID = id
	p.remaining = p.ticks()
	p.state = domain.PollStatePolling
	p.handle = p.sched.Every(p.opts.Interval, func() { p.tick(gen) })
	update := p.updateLocked("")
	p.mu.Unlock()

	task.StopAll(prev)
	p.logger.Info().Str("transaction_id", id.String()).Int("remaining", update.Remaining).Msg("Started payment status polling")
	p.emit(update)
}

// Stop abandons the current payment. Idempotent.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	h := p.handle
	p.handle = nil
	p.gen++
	if p.state == domain.PollStatePolling {
		p.state = domain.PollStateIdle
	}
	p.mu.Unlock()

	task.StopAll(h)
}

func (p *StatusPoller) State() domain.PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *StatusPoller) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

func (p *StatusPoller) TransactionID() domain.TxID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txID
}

func (p *StatusPoller) updateLocked(message string) domain.PollUpdate {
	return domain.PollUpdate{
		TransactionID: p.txID,
		State:         p.state,
		Remaining:     p.remaining,
		Countdown:     currency.FormatCountdown(p.remaining),
		Message:       message,
	}
}

func (p *StatusPoller) tick(gen uint64) {
	p.mu.Lock()
	if p.gen != gen || p.state != domain.PollStatePolling {
		p.mu.Unlock()
		return
	}
	p.remaining--
	if p.remaining <= 0 {
		p.remaining = 0
		p.state = domain.PollStateTimedOut
		h := p.handle
		p.handle = nil
		update := p.updateLocked(domain.MsgPaymentTimeout)
		p.mu.Unlock()

		task.StopAll(h)
		p.logger.Warn().Str("transaction_id", update.TransactionID.String()).Msg("Payment status polling timed out")
		p.emit(update)
		return
	}
	id := p.txID
	countdown := p.updateLocked("")
	p.mu.Unlock()

	p.emit(countdown)

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.StatusTimeout)
	resp, err := p.fetcher.PaymentStatus(ctx, id)
	cancel()

	p.mu.Lock()
	if p.gen != gen || p.state != domain.PollStatePolling {
		p.mu.Unlock()
		p.logger.Debug().Str("transaction_id", id.String()).Msg("Discarding stale payment status")
		return
	}
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn().Err(err).Str("transaction_id", id.String()).Msg("Payment status check failed, will retry")
		return
	}

	var message string
	switch resp.Status {
	case domain.PaymentStatusCompleted:
		p.state = domain.PollStateCompleted
		message = domain.MsgPaymentCompleted
	case domain.PaymentStatusError, domain.PaymentStatusCancelled:
		p.state = domain.PollStateFailed
		message = resp.ErrorMessage
		if message == "" {
			message = domain.MsgPaymentCancelled
		}
	default:
		p.mu.Unlock()
		return
	}

	h := p.handle
	p.handle = nil
	update := p.updateLocked(message)
	update.ServerStatus = resp.Status
	p.mu.Unlock()

	task.StopAll(h)
	p.logger.Info().Str("transaction_id", id.String()).Str("status", string(resp.Status)).Msg("Payment reached final status")
	p.emit(update)
}

func (p *StatusPoller) emit(update domain.PollUpdate) {
	p.mu.Lock()
	fn := p.onUpdate
	p.mu.Unlock()
	if fn != nil {
		fn(update)
	}
}
