// Package audiotest provides an in-memory capture source for tests.
package audiotest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"talkpaste/internal/audio"
)

// Source produces a fixed number of synthetic frames per opened stream.
// Samples alternate between +Amplitude and -Amplitude, so the RMS level of
// the stream equals Amplitude. After Frames frames the stream reports
// ReadErr, or audio.ErrReadTimeout when ReadErr is nil.
type Source struct {
	Rate      int
	FrameSize int
	Frames    int
	Amplitude int16
	OpenErr   error
	ReadErr   error

	mu     sync.Mutex
	last   *Stream
	opens  atomic.Int32
	closes atomic.Int32
}

// Open implements audio.Source.
func (s *Source) Open(deviceID, sampleRate int) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, &audio.CaptureUnavailableError{DeviceID: deviceID, SampleRate: sampleRate, Err: s.OpenErr}
	}
	rate := s.Rate
	if rate == 0 {
		rate = sampleRate
	}
	size := s.FrameSize
	if size == 0 {
		size = 160
	}
	st := &Stream{
		src:     s,
		rate:    rate,
		size:    size,
		limit:   s.Frames,
		amp:     s.Amplitude,
		readErr: s.ReadErr,
		drained: make(chan struct{}),
	}
	s.last = st
	s.opens.Add(1)
	return st, nil
}

// SetOpenErr changes the error returned by the next Open calls.
func (s *Source) SetOpenErr(err error) {
	s.mu.Lock()
	s.OpenErr = err
	s.mu.Unlock()
}

// Opens and Closes count stream lifecycle calls.
func (s *Source) Opens() int  { return int(s.opens.Load()) }
func (s *Source) Closes() int { return int(s.closes.Load()) }

// WaitDrained blocks until the most recently opened stream has delivered all
// of its frames.
func (s *Source) WaitDrained(timeout time.Duration) bool {
	s.mu.Lock()
	st := s.last
	s.mu.Unlock()
	if st == nil {
		return false
	}
	select {
	case <-st.drained:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stream is the stream type returned by Source.
type Stream struct {
	src     *Source
	rate    int
	size    int
	limit   int
	amp     int16
	readErr error

	seq       int
	offset    time.Duration
	once      sync.Once
	drained   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func (st *Stream) ReadFrame() (audio.Frame, error) {
	if st.closed.Load() {
		return audio.Frame{}, errors.New("stream closed")
	}
	if st.seq >= st.limit {
		st.once.Do(func() { close(st.drained) })
		if st.readErr != nil {
			return audio.Frame{}, st.readErr
		}
		time.Sleep(time.Millisecond)
		return audio.Frame{}, audio.ErrReadTimeout
	}
	samples := make([]int16, st.size)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = st.amp
		} else {
			samples[i] = -st.amp
		}
	}
	f := audio.Frame{
		Seq:        st.seq,
		Captured:   time.Now(),
		Offset:     st.offset,
		SampleRate: st.rate,
		Samples:    samples,
	}
	st.seq++
	st.offset += f.Duration()
	return f, nil
}

func (st *Stream) SampleRate() int { return st.rate }

func (st *Stream) Close() error {
	st.closeOnce.Do(func() {
		st.closed.Store(true)
		st.src.closes.Add(1)
	})
	return nil
}
