// Package app wires the capture session, the payment services and the
// presentation events together. It is the only place that decides when the
// camera restarts.
package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/application/paymentservice"
	"github.com/tuncanbit/qrpay/internal/application/walletservice"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/scanner"
	"github.com/tuncanbit/qrpay/internal/task"
)

// ErrClosed is returned by operations after Shutdown.
var ErrClosed = errors.New("app is shut down")

type Options struct {
	// RestartDelay is how long the camera stays off after a failed submission.
	RestartDelay time.Duration
}

type Deps struct {
	Session  *scanner.Session
	Files    *scanner.ImageFileScanner
	Payments paymentservice.IPaymentService
	Wallet   walletservice.IWalletService
	Auth     authservice.IAuthService
	State    *appstate.State
	Sched    task.Scheduler
}

type App struct {
	session  *scanner.Session
	files    *scanner.ImageFileScanner
	payments paymentservice.IPaymentService
	wallet   walletservice.IWalletService
	auth     authservice.IAuthService
	state    *appstate.State
	sched    task.Scheduler
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	restart    task.Handle
	restartGen uint64
	hidden     bool
	closed     bool
	sinks      map[int]domain.EventSink
	nextSink   int
}

func New(deps Deps, opts Options, logger zerolog.Logger) *App {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 2 * time.Second
	}
	a := &App{
		session:  deps.Session,
		files:    deps.Files,
		payments: deps.Payments,
		wallet:   deps.Wallet,
		auth:     deps.Auth,
		state:    deps.State,
		sched:    deps.Sched,
		opts:     opts,
		logger:   logger.With().Str("component", "app").Logger(),
		now:      time.Now,
		sinks:    make(map[int]domain.EventSink),
	}

	if a.session != nil {
		a.session.OnStateChange(func(s scanner.State) {
			a.publish(domain.Event{Type: domain.EventScannerState, State: s.String()})
		})
		a.session.OnAcknowledge(func(payload string) {
			a.publish(domain.Event{Type: domain.EventScanAck, Payload: payload, Message: domain.MsgQRRecognized})
		})
		a.session.OnDecoded(func(payload string) {
			a.handlePayload(context.Background(), payload, true)
		})
	}
	a.payments.OnStatus(a.handleStatus)
	return a
}

// SetClock replaces the time source used to stamp events.
func (a *App) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// Subscribe registers sink for every future event and returns a function
// that removes it.
func (a *App) Subscribe(sink domain.EventSink) func() {
	a.mu.Lock()
	id := a.nextSink
	a.nextSink++
	a.sinks[id] = sink
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.sinks, id)
		a.mu.Unlock()
	}
}

func (a *App) Wallet() walletservice.IWalletService { return a.wallet }
func (a *App) Auth() authservice.IAuthService       { return a.auth }
func (a *App) State() *appstate.State               { return a.state }

func (a *App) ScannerState() scanner.State {
	if a.session == nil {
		return scanner.StateIdle
	}
	return a.session.State()
}

// StartCamera cancels any pending restart and starts the capture session.
func (a *App) StartCamera(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.hidden = false
	a.cancelRestartLocked()
	a.mu.Unlock()

	return a.startCamera(ctx)
}

func (a *App) startCamera(ctx context.Context) error {
	if a.session == nil {
		err := domain.NewError(domain.KindCameraUnavailable, "", errors.New("no capture session configured"))
		a.toastError(err)
		return err
	}

	err := a.session.Start(ctx)
	if err == nil || errors.Is(err, scanner.ErrStopped) {
		return err
	}
	a.logger.Error().Err(err).Msg("Failed to start camera")
	a.toastError(err)
	return err
}

// StopCamera stops scanning and cancels a pending restart.
func (a *App) StopCamera() {
	a.mu.Lock()
	a.cancelRestartLocked()
	a.mu.Unlock()

	if a.session != nil {
		a.session.Stop()
	}
}

// HandleVisibility stops the camera when the page is hidden. Becoming visible
// again does not restart it.
func (a *App) HandleVisibility(visible bool) {
	a.mu.Lock()
	a.hidden = !visible
	a.mu.Unlock()

	if !visible {
		a.logger.Debug().Msg("Page hidden, stopping camera")
		a.StopCamera()
	}
}

// ScanImage decodes an uploaded image and submits its payload. A failed
// submission does not restart anything.
func (a *App) ScanImage(ctx context.Context, r io.Reader) (*domain.Reservation, error) {
	if err := a.beginScan(); err != nil {
		return nil, err
	}

	payload, err := a.files.Scan(ctx, r)
	if err != nil {
		a.toastError(err)
		return nil, err
	}
	return a.handlePayload(ctx, payload, false)
}

func (a *App) ScanFile(ctx context.Context, path string) (*domain.Reservation, error) {
	if err := a.beginScan(); err != nil {
		return nil, err
	}

	payload, err := a.files.ScanFile(ctx, path)
	if err != nil {
		a.toastError(err)
		return nil, err
	}
	return a.handlePayload(ctx, payload, false)
}

func (a *App) beginScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.cancelRestartLocked()
	return nil
}

// SubmitPayload hands an already decoded payload to the backend, as the
// camera path does after a decode.
func (a *App) SubmitPayload(ctx context.Context, payload string) (*domain.Reservation, error) {
	if err := a.beginScan(); err != nil {
		return nil, err
	}
	return a.handlePayload(ctx, payload, false)
}

func (a *App) handlePayload(ctx context.Context, payload string, fromCamera bool) (*domain.Reservation, error) {
	a.publish(domain.Event{Type: domain.EventDecoded, Payload: payload})

	reservation, err := a.payments.Submit(ctx, payload)
	if err != nil {
		a.publish(domain.Event{
			Type:    domain.EventReservationFailed,
			Kind:    domain.KindOf(err),
			Message: domain.UserMessage(err),
		})
		a.toastError(err)
		if fromCamera {
			a.scheduleRestart()
		}
		return nil, err
	}

	a.publish(domain.Event{Type: domain.EventReservation, Reservation: reservation})
	return reservation, nil
}

func (a *App) scheduleRestart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.hidden {
		return
	}
	a.cancelRestartLocked()
	a.restartGen++
	gen := a.restartGen
	a.restart = a.sched.After(a.opts.RestartDelay, func() { a.runRestart(gen) })
	a.logger.Info().Dur("delay", a.opts.RestartDelay).Msg("Camera restart scheduled")
}

func (a *App) runRestart(gen uint64) {
	a.mu.Lock()
	if a.restartGen != gen || a.closed || a.hidden {
		a.mu.Unlock()
		return
	}
	a.restart = nil
	a.mu.Unlock()

	if err := a.startCamera(context.Background()); err != nil {
		a.logger.Warn().Err(err).Msg("Camera restart failed")
	}
}

// cancelRestartLocked must be called with a.mu held.
func (a *App) cancelRestartLocked() {
	a.restartGen++
	task.StopAll(a.restart)
	a.restart = nil
}

// RestartPending reports whether a camera restart is scheduled.
func (a *App) RestartPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.restart != nil
}

// Closed reports whether Shutdown has run.
func (a *App) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *App) Reservation() *domain.Reservation {
	return a.payments.Reservation()
}

func (a *App) ConfirmPayment(ctx context.Context) (*paymentservice.Confirmation, error) {
	confirmation, err := a.payments.Confirm(ctx)
	if err != nil {
		a.toastError(err)
		return nil, err
	}

	balance := confirmation.Balance
	a.publish(domain.Event{Type: domain.EventBalance, Balance: &balance})
	message := confirmation.Message
	if message == "" {
		message = domain.MsgPaymentProcessing
	}
	a.toast(domain.ToastInfo, message)
	return confirmation, nil
}

func (a *App) CancelPayment(ctx context.Context) error {
	if err := a.payments.Cancel(ctx); err != nil {
		a.toastError(err)
		return err
	}
	a.toast(domain.ToastInfo, domain.MsgPaymentCancelled)
	return nil
}

// TrackPayment polls an existing transaction.
func (a *App) TrackPayment(id domain.TxID) {
	a.payments.Track(id)
}

// Refresh reloads the user and publishes the balance.
func (a *App) Refresh(ctx context.Context) (*domain.UserInfo, error) {
	user, err := a.wallet.LoadUser(ctx)
	if err != nil {
		return nil, err
	}
	balance := a.state.Balance()
	a.publish(domain.Event{Type: domain.EventBalance, Balance: &balance})
	return user, nil
}

func (a *App) handleStatus(update domain.PollUpdate) {
	u := update
	a.publish(domain.Event{Type: domain.EventPaymentStatus, Payment: &u, Message: update.Message})

	switch update.State {
	case domain.PollStateCompleted:
		a.toast(domain.ToastSuccess, update.Message)
		a.refreshAfterPayment()
	case domain.PollStateFailed:
		a.toast(domain.ToastError, update.Message)
		a.refreshAfterPayment()
	case domain.PollStateTimedOut:
		a.toast(domain.ToastError, update.Message)
	}
}

func (a *App) refreshAfterPayment() {
	ctx := context.Background()
	if _, err := a.Refresh(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to refresh user after payment")
	}
	if _, err := a.wallet.Transactions(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to refresh history after payment")
	}
}

// Shutdown releases the camera and stops background work. Idempotent.
func (a *App) Shutdown() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.cancelRestartLocked()
	a.mu.Unlock()

	if a.session != nil {
		a.session.Stop()
	}
	a.payments.StopPolling()
	a.logger.Info().Msg("App shut down")
}

func (a *App) toastError(err error) {
	a.publish(domain.Event{Type: domain.EventToast, Level: domain.ToastError, Kind: domain.KindOf(err), Message: domain.UserMessage(err)})
}

func (a *App) toast(level domain.ToastLevel, message string) {
	a.publish(domain.Event{Type: domain.EventToast, Level: level, Message: message})
}

func (a *App) publish(e domain.Event) {
	a.mu.Lock()
	e.At = a.now().UTC()
	sinks := make([]domain.EventSink, 0, len(a.sinks))
	for _, s := range a.sinks {
		sinks = append(sinks, s)
	}
	a.mu.Unlock()

	for _, s := range sinks {
		s.Publish(e)
	}
}
