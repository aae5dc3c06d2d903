package audio

import "time"

// Frame is one block of mono 16-bit PCM captured from the input device.
// Frames are not modified after they are produced.
type Frame struct {
	Seq        int
	Captured   time.Time
	Offset     time.Duration
	SampleRate int
	Samples    []int16
}

// Duration is the length of audio held by the frame.
func (f Frame) Duration() time.Duration {
	return SamplesDuration(len(f.Samples), f.SampleRate)
}

// SamplesDuration converts a sample count at rate into a duration.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Join concatenates the samples of frames in order.
func Join(frames []Frame) []int16 {
	n := 0
	for _, f := range frames {
		n += len(f.Samples)
	}
	out := make([]int16, 0, n)
	for _, f := range frames {
		out = append(out, f.Samples...)
	}
	return out
}
