package paymentservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/testutil"
)

type scriptedFetcher struct {
	mu     sync.Mutex
	calls  map[domain.TxID]int
	script func(id domain.TxID, call int) (*domain.StatusResponse, error)
}

func newFetcher(script func(id domain.TxID, call int) (*domain.StatusResponse, error)) *scriptedFetcher {
	return &scriptedFetcher{calls: make(map[domain.TxID]int), script: script}
}

func (f *scriptedFetcher) PaymentStatus(ctx context.Context, id domain.TxID) (*domain.StatusResponse, error) {
	f.mu.Lock()
	f.calls[id]++
	call := f.calls[id]
	f.mu.Unlock()
	return f.script(id, call)
}

func (f *scriptedFetcher) Calls(id domain.TxID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func pending(domain.TxID, int) (*domain.StatusResponse, error) {
	return &domain.StatusResponse{Status: domain.PaymentStatusPending}, nil
}

type recorder struct {
	mu      sync.Mutex
	updates []domain.PollUpdate
}

func (r *recorder) add(u domain.PollUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) terminal() []domain.PollUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PollUpdate
	for _, u := range r.updates {
		if u.State.IsTerminal() {
			out = append(out, u)
		}
	}
	return out
}

func (r *recorder) last() domain.PollUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

func newPoller(fetcher StatusFetcher) (*StatusPoller, *testutil.ManualScheduler, *recorder) {
	sched := testutil.NewManualScheduler()
	p := NewStatusPoller(fetcher, sched, PollerOptions{Interval: time.Second, Deadline: 180 * time.Second}, zerolog.Nop())
	rec := &recorder{}
	p.OnUpdate(rec.add)
	return p, sched, rec
}

func TestStatusPoller_TimesOutAfterDeadline(t *testing.T) {
	fetcher := newFetcher(pending)
	p, sched, rec := newPoller(fetcher)

	p.Start("42")
	first := rec.last()
	assert.Equal(t, 180, first.Remaining)
	assert.Equal(t, "3:00", first.Countdown)

	sched.Advance(179 * time.Second)
	assert.Equal(t, domain.PollStatePolling, p.State())
	assert.Equal(t, 1, p.Remaining())
	assert.Equal(t, "0:01", rec.last().Countdown)

	sched.Advance(time.Second)
	assert.Equal(t, domain.PollStateTimedOut, p.State())
	assert.Equal(t, 179, fetcher.Calls("42"))

	terminal := rec.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, domain.MsgPaymentTimeout, terminal[0].Message)
	assert.Equal(t, 0, terminal[0].Remaining)

	sched.Advance(30 * time.Second)
	assert.Equal(t, 179, fetcher.Calls("42"))
	assert.Equal(t, 0, sched.Pending())
}

func TestStatusPoller_CompletedOnFifthTick(t *testing.T) {
	fetcher := newFetcher(func(id domain.TxID, call int) (*domain.StatusResponse, error) {
		if call == 5 {
			return &domain.StatusResponse{Status: domain.PaymentStatusCompleted}, nil
		}
		return &domain.StatusResponse{Status: domain.PaymentStatusInProgress}, nil
	})
	p, sched, rec := newPoller(fetcher)

	p.Start("7")
	sched.Advance(10 * time.Second)

	assert.Equal(t, domain.PollStateCompleted, p.State())
	assert.Equal(t, 5, fetcher.Calls("7"))
	terminal := rec.terminal()
	require.Len(t, terminal, 1)
	assert.Equal(t, domain.MsgPaymentCompleted, terminal[0].Message)
	assert.Equal(t, domain.PaymentStatusCompleted, terminal[0].ServerStatus)
	assert.Equal(t, 175, terminal[0].Remaining)
}

func TestStatusPoller_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		resp    domain.StatusResponse
		message string
	}{
		{name: "error with message", resp: domain.StatusResponse{Status: domain.PaymentStatusError, ErrorMessage: "insufficient funds"}, message: "insufficient funds"},
		{name: "cancelled with message", resp: domain.StatusResponse{Status: domain.PaymentStatusCancelled, ErrorMessage: "insufficient funds"}, message: "insufficient funds"},
		{name: "cancelled without message", resp: domain.StatusResponse{Status: domain.PaymentStatusCancelled}, message: domain.MsgPaymentCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			p, sched, rec := newPoller(newFetcher(func(domain.TxID, int) (*domain.StatusResponse, error) { return &resp, nil }))

			p.Start("1")
			sched.Advance(time.Second)

			assert.Equal(t, domain.PollStateFailed, p.State())
			assert.Equal(t, tt.message, rec.last().Message)
			assert.Equal(t, 0, sched.Pending())
		})
	}
}

func TestStatusPoller_TransportErrorsKeepPolling(t *testing.T) {
	fetcher := newFetcher(func(id domain.TxID, call int) (*domain.StatusResponse, error) {
		if call < 3 {
			return nil, errors.New("connection reset")
		}
		return &domain.StatusResponse{Status: domain.PaymentStatusCompleted}, nil
	})
	p, sched, _ := newPoller(fetcher)

	p.Start("9")
	sched.Advance(5 * time.Second)

	assert.Equal(t, domain.PollStateCompleted, p.State())
	assert.Equal(t, 3, fetcher.Calls("9"))
}

func TestStatusPoller_RestartCancelsPrevious(t *testing.T) {
	fetcher := newFetcher(pending)
	p, sched, _ := newPoller(fetcher)

	p.Start("old")
	sched.Advance(3 * time.Second)
	p.Start("new")
	sched.Advance(3 * time.Second)

	assert.Equal(t, 3, fetcher.Calls("old"))
	assert.Equal(t, 3, fetcher.Calls("new"))
	assert.Equal(t, 1, sched.Pending())
	assert.Equal(t, domain.TxID("new"), p.TransactionID())
	assert.Equal(t, 177, p.Remaining())
}

func TestStatusPoller_StaleResultDiscarded(t *testing.T) {
	var p *StatusPoller
	fetcher := newFetcher(func(domain.TxID, int) (*domain.StatusResponse, error) {
		p.Stop()
		return &domain.StatusResponse{Status: domain.PaymentStatusCompleted}, nil
	})
	var sched *testutil.ManualScheduler
	var rec *recorder
	p, sched, rec = newPoller(fetcher)

	p.Start("5")
	sched.Advance(2 * time.Second)

	assert.Equal(t, domain.PollStateIdle, p.State())
	assert.Empty(t, rec.terminal())
}

func TestStatusPoller_StopIsIdempotent(t *testing.T) {
	p, sched, _ := newPoller(newFetcher(pending))
	p.Stop()
	p.Start("1")
	p.Stop()
	p.Stop()

	assert.Equal(t, domain.PollStateIdle, p.State())
	assert.Equal(t, 0, sched.Pending())
}
