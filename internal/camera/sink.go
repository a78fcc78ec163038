package camera

import (
	"context"
	"image"
	"image/draw"
	"sync"
)

// VideoSink keeps the most recent frame of an attached stream.
type VideoSink struct {
	mu    sync.Mutex
	frame image.Image
	state ReadyState
	stop  chan struct{}
}

func NewVideoSink() *VideoSink {
	return &VideoSink{}
}

func (s *VideoSink) Attach(ctx context.Context, stream Stream) error {
	s.Detach()

	stop := make(chan struct{})
	first := make(chan struct{})
	ended := make(chan struct{})

	s.mu.Lock()
	s.stop = stop
	s.state = HaveNothing
	s.mu.Unlock()

	go s.consume(stream.Frames(), stop, first, ended)

	select {
	case <-first:
		return nil
	case <-ended:
		select {
		case <-first:
			return nil
		default:
		}
		s.Detach()
		return ErrStreamEnded
	case <-ctx.Done():
		s.Detach()
		return ctx.Err()
	}
}

func (s *VideoSink) consume(frames <-chan image.Image, stop, first, ended chan struct{}) {
	defer close(ended)
	seen := false
	for {
		select {
		case <-stop:
			return
		case frame, ok := <-frames:
			if !ok {
				s.mu.Lock()
				if s.stop == stop {
					s.state = HaveNothing
				}
				s.mu.Unlock()
				return
			}
			s.mu.Lock()
			if s.stop != stop {
				s.mu.Unlock()
				return
			}
			s.frame = frame
			s.state = HaveEnoughData
			s.mu.Unlock()
			if !seen {
				seen = true
				close(first)
			}
		}
	}
}

func (s *VideoSink) Detach() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.frame = nil
	s.state = HaveNothing
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (s *VideoSink) ReadyState() ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *VideoSink) VideoSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return 0, 0
	}
	b := s.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (s *VideoSink) DrawFrame(dst draw.Image) {
	s.mu.Lock()
	frame := s.frame
	s.mu.Unlock()
	if frame == nil {
		return
	}
	draw.Draw(dst, dst.Bounds(), frame, frame.Bounds().Min, draw.Src)
}
