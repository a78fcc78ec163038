package camera

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

type videoTrack struct {
	stopOnce sync.Once
	stopped  chan struct{}
}

func (t *videoTrack) Kind() string { return "video" }

func (t *videoTrack) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *videoTrack) Live() bool {
	select {
	case <-t.stopped:
		return false
	default:
		return true
	}
}

// frameStream produces frames from source at a fixed rate until its track stops.
type frameStream struct {
	id     string
	track  *videoTrack
	frames chan image.Image
}

func newFrameStream(fps int, source func(i int) (image.Image, bool)) *frameStream {
	if fps <= 0 {
		fps = 30
	}
	s := &frameStream{
		id:     uuid.New().String(),
		track:  &videoTrack{stopped: make(chan struct{})},
		frames: make(chan image.Image),
	}
	go s.run(time.Second/time.Duration(fps), source)
	return s
}

func (s *frameStream) ID() string { return s.id }

func (s *frameStream) Tracks() []Track { return []Track{s.track} }

func (s *frameStream) Frames() <-chan image.Image { return s.frames }

func (s *frameStream) run(interval time.Duration, source func(i int) (image.Image, bool)) {
	defer close(s.frames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		frame, ok := source(i)
		if !ok {
			return
		}
		select {
		case s.frames <- frame:
		case <-s.track.stopped:
			return
		}
		select {
		case <-ticker.C:
		case <-s.track.stopped:
			return
		}
	}
}
