package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	ywav "github.com/youpy/go-wav"
)

// EncodeWAV writes mono 16-bit PCM samples as a WAV stream.
func EncodeWAV(w io.WriteSeeker, samples []int16, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %d", rate)
	}
	enc := wav.NewEncoder(w, rate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav close failed: %w", err)
	}
	return nil
}

// WriteWAVFile encodes samples to path. A partial file is removed on error.
func WriteWAVFile(path string, samples []int16, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav failed: %w", err)
	}
	if err := EncodeWAV(f, samples, rate); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close wav failed: %w", err)
	}
	return nil
}

// ReadWAVFile decodes a PCM WAV file. Multi-channel input is downmixed to
// mono and samples are scaled to 16 bits.
func ReadWAVFile(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	ch := int(dec.NumChans)
	if ch < 1 {
		ch = 1
	}
	shift := int(dec.BitDepth) - 16
	n := len(buf.Data) / ch
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		v := sum / ch
		switch {
		case shift > 0:
			v >>= uint(shift)
		case shift < 0:
			v <<= uint(-shift)
		}
		out[i] = clip16(float64(v))
	}
	return out, int(dec.SampleRate), nil
}

// WAVInfo is what Inspect reports about a WAV file.
type WAVInfo struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Samples       int
	Duration      time.Duration
}

// Inspect reads a WAV file header and counts its sample frames.
func Inspect(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	r := ywav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return WAVInfo{}, fmt.Errorf("read format: %w", err)
	}
	info := WAVInfo{
		Format:        format.AudioFormat,
		Channels:      int(format.NumChannels),
		SampleRate:    int(format.SampleRate),
		BitsPerSample: int(format.BitsPerSample),
	}
	for {
		samples, err := r.ReadSamples(4096)
		info.Samples += len(samples)
		if err == io.EOF {
			break
		}
		if err != nil {
			return info, fmt.Errorf("read samples: %w", err)
		}
	}
	info.Duration = SamplesDuration(info.Samples, info.SampleRate)
	return info, nil
}
