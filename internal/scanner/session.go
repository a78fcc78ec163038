package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/camera"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/task"
	"github.com/tuncanbit/qrpay/pkg/config"
)

// ErrStopped is returned by Start when Stop ran before the camera came up.
var ErrStopped = errors.New("capture session stopped while starting")

type State int

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

type Options struct {
	SampleInterval time.Duration
	Cooldown       time.Duration
	StartTimeout   time.Duration
	Constraints    camera.Constraints
}

func OptionsFromConfig(cfg config.ScannerConfig) Options {
	return Options{
		SampleInterval: cfg.SampleInterval,
		Cooldown:       cfg.Cooldown,
		StartTimeout:   cfg.StartTimeout,
		Constraints:    camera.ConstraintsFromConfig(cfg),
	}
}

// Session owns one camera stream and samples it for QR symbols. Every method
// is safe for concurrent use; the lock is never held while calling the
// device, the sink, the decoder or a callback.
type Session struct {
	device  camera.Device
	sink    camera.Sink
	decoder Decoder
	sched   task.Scheduler
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time

	startMu sync.Mutex

	mu          sync.Mutex
	state       State
	stream      camera.Stream
	sampler     task.Handle
	gen         uint64
	lastAttempt time.Time
	lastDecoded time.Time

	onDecoded func(payload string)
	onAck     func(payload string)
	onState   func(State)
}

func NewSession(device camera.Device, sink camera.Sink, decoder Decoder, sched task.Scheduler, opts Options, logger zerolog.Logger) *Session {
	return &Session{
		device:  device,
		sink:    sink,
		decoder: decoder,
		sched:   sched,
		opts:    opts,
		logger:  logger.With().Str("component", "capture_session").Logger(),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for the cooldown.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Session) OnDecoded(fn func(payload string)) {
	s.mu.Lock()
	s.onDecoded = fn
	s.mu.Unlock()
}

// OnAcknowledge fires right before OnDecoded; the UI uses it for the scan flash.
func (s *Session) OnAcknowledge(fn func(payload string)) {
	s.mu.Lock()
	s.onAck = fn
	s.mu.Unlock()
}

func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsScanning() bool {
	return s.State() == StateScanning
}

func (s *Session) HasStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// LastDecoded is the time of the last positive decode, zero if none.
func (s *Session) LastDecoded() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDecoded
}

// Start acquires the camera and begins sampling. It is a no-op when the
// session is already starting or scanning.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateScanning || s.state == StateStarting {
		s.mu.Unlock()
		return nil
	}
	if s.device == nil {
		s.mu.Unlock()
		return domain.NewError(domain.KindCameraUnavailable, "", errors.New("no camera device configured"))
	}
	s.mu.Unlock()

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.state = StateStarting
	s.mu.Unlock()
	s.notifyState(StateStarting)

	s.logger.Info().Str("facing_mode", string(s.opts.Constraints.FacingMode)).Msg("Starting camera")

	stream, err := s.device.Open(ctx, s.opts.Constraints)
	if err != nil {
		if !s.abortStart(gen, nil) {
			return ErrStopped
		}
		s.logger.Error().Err(err).Msg("Failed to open camera")
		return mapDeviceError(err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		camera.StopTracks(stream)
		return ErrStopped
	}
	s.stream = stream
	s.mu.Unlock()

	attachCtx, cancel := context.WithTimeout(ctx, s.opts.StartTimeout)
	err = s.sink.Attach(attachCtx, stream)
	timedOut := errors.Is(attachCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if err != nil {
		if !s.abortStart(gen, stream) {
			return ErrStopped
		}
		s.logger.Error().Err(err).Bool("timed_out", timedOut).Msg("Camera stream never became playable")
		if timedOut {
			return domain.NewError(domain.KindCameraTimeout, "", err)
		}
		return domain.NewError(domain.KindCameraUnavailable, "", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.sink.Detach()
		camera.StopTracks(stream)
		return ErrStopped
	}
	s.state = StateScanning
	s.sampler = s.sched.Every(s.opts.SampleInterval, func() { s.sample(gen) })
	s.mu.Unlock()

	w, h := s.sink.VideoSize()
	s.logger.Info().Str("stream_id", stream.ID()).Int("width", w).Int("height", h).Msg("Camera started")
	s.notifyState(StateScanning)
	return nil
}

// abortStart tears down a failed start. It reports false when the attempt
// had already been superseded by Stop.
func (s *Session) abortStart(gen uint64, stream camera.Stream) bool {
	s.sink.Detach()
	camera.StopTracks(stream)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.state = StateIdle
	s.stream = nil
	s.mu.Unlock()

	s.notifyState(StateIdle)
	return true
}

func mapDeviceError(err error) error {
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		return domain.NewError(domain.KindCameraPermissionDenied, "", err)
	case errors.Is(err, camera.ErrNotFound):
		return domain.NewError(domain.KindCameraNotFound, "", err)
	case errors.Is(err, camera.ErrNotSupported):
		return domain.NewError(domain.KindCameraUnsupported, "", err)
	case errors.Is(err, camera.ErrInsecureContext):
		return domain.NewError(domain.KindCameraUnavailable, domain.MsgInsecureContext, err)
	default:
		return domain.NewError(domain.KindCameraUnavailable, "", err)
	}
}

type teardown struct {
	gen     uint64
	sampler task.Handle
	stream  camera.Stream
}

// beginStopLocked moves the session to Stopping and detaches owned resources.
// Callers must hold s.mu.
func (s *Session) beginStopLocked() teardown {
	s.gen++
	td := teardown{gen: s.gen, sampler: s.sampler, stream: s.stream}
	s.state = StateStopping
	s.sampler = nil
	s.stream = nil
	return td
}

func (s *Session) finishStop(td teardown) {
	task.StopAll(td.sampler)
	camera.StopTracks(td.stream)
	s.sink.Detach()

	s.mu.Lock()
	if s.gen == td.gen && s.state == StateStopping {
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.notifyState(StateIdle)
}

// Stop releases the camera. Safe to call in any state, any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle && s.stream == nil && s.sampler == nil {
		s.mu.Unlock()
		return
	}
	td := s.beginStopLocked()
	s.mu.Unlock()

	s.finishStop(td)
	s.logger.Info().Msg("Camera stopped")
}

func (s *Session) sample(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	now := s.now
	s.mu.Unlock()

	if s.sink.ReadyState() != camera.HaveEnoughData {
		return
	}
	w, h := s.sink.VideoSize()
	if w == 0 || h == 0 {
		return
	}

	at := now()
	s.mu.Lock()
	if !s.lastAttempt.IsZero() && at.Sub(s.lastAttempt) < s.opts.Cooldown {
		s.mu.Unlock()
		return
	}
	s.lastAttempt = at
	s.mu.Unlock()

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	s.sink.DrawFrame(frame)

	payload, ok := s.decoder.Decode(frame.Pix, w, h, DecodeOptions{Inversion: AttemptBoth})
	if !ok {
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateScanning {
		s.mu.Unlock()
		s.logger.Debug().Msg("Discarding decode from a stopped session")
		return
	}
	s.lastDecoded = at
	td := s.beginStopLocked()
	onAck, onDecoded := s.onAck, s.onDecoded
	s.mu.Unlock()

	s.finishStop(td)
	s.logger.Info().Int("payload_len", len(payload)).Msg("QR code decoded")

	if onAck != nil {
		onAck(payload)
	}
	if onDecoded != nil {
		onDecoded(payload)
	}
}

func (s *Session) notifyState(state State) {
	s.mu.Lock()
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
