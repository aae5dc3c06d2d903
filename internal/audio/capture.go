package audio

import (
	"errors"
	"fmt"
)

// ErrReadTimeout is returned by Stream.ReadFrame when no audio arrived within
// the poll window. Callers should treat it as "try again".
var ErrReadTimeout = errors.New("audio: read timeout")

// Source opens capture streams on an input device.
type Source interface {
	// Open starts capturing mono 16-bit audio. deviceID -1 selects the
	// default input device. The returned stream may run at a different
	// sample rate than requested when the device does not support it.
	Open(deviceID, sampleRate int) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	ReadFrame() (Frame, error)
	SampleRate() int
	Close() error
}

// Buffered is implemented by streams that queue frames ahead of the reader.
// TryReadFrame returns a queued frame without waiting, or false when none is
// ready.
type Buffered interface {
	TryReadFrame() (Frame, bool)
}

// CaptureUnavailableError reports that no input stream could be opened or
// that a running stream failed.
type CaptureUnavailableError struct {
	DeviceID   int
	SampleRate int
	Err        error
}

func (e *CaptureUnavailableError) Error() string {
	dev := "default device"
	if e.DeviceID >= 0 {
		dev = fmt.Sprintf("device %d", e.DeviceID)
	}
	if e.SampleRate > 0 {
		return fmt.Sprintf("capture unavailable on %s at %d Hz: %v", dev, e.SampleRate, e.Err)
	}
	return fmt.Sprintf("capture unavailable on %s: %v", dev, e.Err)
}

func (e *CaptureUnavailableError) Unwrap() error { return e.Err }

// FallbackRates returns the sample rates to try, in order, when opening a
// device at requested. Duplicates and non-positive values are dropped.
func FallbackRates(requested int) []int {
	out := make([]int, 0, 4)
	seen := make(map[int]bool)
	for _, r := range []int{requested, 44100, 48000, 16000} {
		if r <= 0 || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// DeviceInfo describes an input-capable device.
type DeviceInfo struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}
