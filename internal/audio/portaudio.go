package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

const (
	defaultFramesPerBuffer = 2048
	pollWindow             = 100 * time.Millisecond
	frameBacklog           = 256
)

// PortAudio captures from a PortAudio input device.
type PortAudio struct {
	FramesPerBuffer int
	Log             zerolog.Logger
}

// NewPortAudio returns a capture source reading framesPerBuffer samples per block.
func NewPortAudio(framesPerBuffer int, log zerolog.Logger) *PortAudio {
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}
	return &PortAudio{FramesPerBuffer: framesPerBuffer, Log: log}
}

// Open negotiates a sample rate with the device and starts the stream.
// Each candidate rate is tried with high and then low latency parameters.
func (p *PortAudio) Open(deviceID, sampleRate int) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &CaptureUnavailableError{DeviceID: deviceID, SampleRate: sampleRate, Err: fmt.Errorf("portaudio init: %w", err)}
	}

	dev, err := inputDevice(deviceID)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, &CaptureUnavailableError{DeviceID: deviceID, SampleRate: sampleRate, Err: err}
	}

	var lastErr error
	for _, rate := range FallbackRates(sampleRate) {
		for _, mode := range []string{"high", "low"} {
			var params portaudio.StreamParameters
			if mode == "high" {
				params = portaudio.HighLatencyParameters(dev, nil)
			} else {
				params = portaudio.LowLatencyParameters(dev, nil)
			}
			params.Input.Channels = 1
			params.SampleRate = float64(rate)
			params.FramesPerBuffer = p.FramesPerBuffer

			s := &paStream{
				rate:   rate,
				frames: make(chan Frame, frameBacklog),
				closed: make(chan struct{}),
				log:    p.Log,
			}
			if err := portaudio.IsFormatSupported(params, s.callback); err != nil {
				lastErr = err
				p.Log.Debug().Int("rate", rate).Str("latency", mode).Err(err).Msg("format not supported")
				continue
			}
			stream, err := portaudio.OpenStream(params, s.callback)
			if err != nil {
				lastErr = err
				p.Log.Debug().Int("rate", rate).Str("latency", mode).Err(err).Msg("open stream failed")
				continue
			}
			if err := stream.Start(); err != nil {
				_ = stream.Close()
				lastErr = err
				p.Log.Debug().Int("rate", rate).Str("latency", mode).Err(err).Msg("start stream failed")
				continue
			}
			s.stream = stream
			if rate != sampleRate {
				p.Log.Warn().Int("requested", sampleRate).Int("rate", rate).Str("device", dev.Name).Msg("sample rate fallback")
			}
			p.Log.Debug().Int("rate", rate).Str("latency", mode).Str("device", dev.Name).Msg("capture stream open")
			return s, nil
		}
	}

	_ = portaudio.Terminate()
	if lastErr == nil {
		lastErr = errors.New("no usable sample rate")
	}
	return nil, &CaptureUnavailableError{DeviceID: deviceID, SampleRate: sampleRate, Err: lastErr}
}

func inputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device index %d (%d devices)", deviceID, len(devices))
	}
	dev := devices[deviceID]
	if dev.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", deviceID, dev.Name)
	}
	return dev, nil
}

type paStream struct {
	stream *portaudio.Stream
	rate   int
	frames chan Frame
	log    zerolog.Logger

	// owned by the PortAudio callback thread
	seq     int
	offset  time.Duration
	dropped int

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *paStream) callback(in []int16) {
	samples := make([]int16, len(in))
	copy(samples, in)
	f := Frame{
		Seq:        s.seq,
		Captured:   time.Now(),
		Offset:     s.offset,
		SampleRate: s.rate,
		Samples:    samples,
	}
	s.seq++
	s.offset += f.Duration()
	select {
	case s.frames <- f:
	default:
		s.dropped++
	}
}

func (s *paStream) ReadFrame() (Frame, error) {
	t := time.NewTimer(pollWindow)
	defer t.Stop()
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.closed:
		return Frame{}, errors.New("audio: stream closed")
	case <-t.C:
		return Frame{}, ErrReadTimeout
	}
}

func (s *paStream) TryReadFrame() (Frame, bool) {
	select {
	case f := <-s.frames:
		return f, true
	default:
		return Frame{}, false
	}
}

func (s *paStream) SampleRate() int { return s.rate }

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if s.dropped > 0 {
			s.log.Warn().Int("frames", s.dropped).Msg("capture backlog overflowed, frames dropped")
		}
		_ = portaudio.Terminate()
	})
	return err
}

// ListDevices enumerates devices that can record.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	out := make([]DeviceInfo, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		info := DeviceInfo{
			ID:                i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Name == d.Name && def.HostApi == d.HostApi,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
