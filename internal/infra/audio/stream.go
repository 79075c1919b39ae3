package audio

import (
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Stream pumps one song from a PCM reader into an Opus packet sink.
// The completion callback runs exactly once when the pump ends, whether the
// song finished, was stopped, or failed.
type Stream struct {
	src        io.ReadCloser
	enc        Encoder
	out        chan<- []byte
	onComplete func(error)

	gain atomic.Uint64

	mu     sync.Mutex
	resume chan struct{} // non-nil while paused

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewStream creates a stream. Call Run to start pumping.
func NewStream(src io.ReadCloser, enc Encoder, out chan<- []byte, onComplete func(error)) *Stream {
	s := &Stream{
		src:        src,
		enc:        enc,
		out:        out,
		onComplete: onComplete,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.SetGain(1)
	return s
}

// Run pumps frames until the source ends or Stop is called.
func (s *Stream) Run() {
	err := s.pump()
	_ = s.src.Close()
	close(s.done)
	if s.onComplete != nil {
		s.onComplete(err)
	}
}

func (s *Stream) pump() error {
	buf := make([]byte, frameBytes)
	pcm := make([]int16, frameSamples)

	for {
		if !s.waitResumed() {
			return nil
		}
		select {
		case <-s.stop:
			return nil
		default:
		}

		if _, err := io.ReadFull(s.src, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			select {
			case <-s.stop:
				// Reads fail once the process is killed on stop.
				return nil
			default:
			}
			return errors.Wrap(err, "read pcm")
		}

		decodeFrame(pcm, buf)
		applyGain(pcm, s.Gain())

		packet, err := s.enc.Encode(pcm)
		if err != nil {
			return err
		}

		select {
		case s.out <- packet:
		case <-s.stop:
			return nil
		}
	}
}

// waitResumed blocks while paused. It returns false when stopped.
func (s *Stream) waitResumed() bool {
	s.mu.Lock()
	wait := s.resume
	s.mu.Unlock()
	if wait == nil {
		return true
	}
	select {
	case <-wait:
		return true
	case <-s.stop:
		return false
	}
}

// Stop ends the stream. Safe to call more than once.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		// Unblock a pending read.
		_ = s.src.Close()
	})
}

// Done is closed once the pump has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Pause holds the pump before the next frame.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resume == nil {
		s.resume = make(chan struct{})
	}
}

// Resume releases a paused pump.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
	}
}

// Paused reports whether the stream is paused.
func (s *Stream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resume != nil
}

// SetGain sets the live gain, clamped to [0, 1].
func (s *Stream) SetGain(g float64) {
	g = math.Max(0, math.Min(1, g))
	s.gain.Store(math.Float64bits(g))
}

// Gain returns the live gain.
func (s *Stream) Gain() float64 {
	return math.Float64frombits(s.gain.Load())
}
