package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func tone(freq float64, rate int, d time.Duration, amp float64) []int16 {
	n := int(float64(rate) * d.Seconds())
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestFallbackRates(t *testing.T) {
	cases := []struct {
		in   int
		want []int
	}{
		{22050, []int{22050, 44100, 48000, 16000}},
		{44100, []int{44100, 48000, 16000}},
		{16000, []int{16000, 44100, 48000}},
		{0, []int{44100, 48000, 16000}},
	}
	for _, tc := range cases {
		if got := FallbackRates(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("FallbackRates(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCaptureUnavailableErrorUnwraps(t *testing.T) {
	base := errors.New("no such device")
	var err error = &CaptureUnavailableError{DeviceID: 7, SampleRate: 44100, Err: base}
	if !errors.Is(err, base) {
		t.Fatalf("errors.Is failed")
	}
	var cue *CaptureUnavailableError
	if !errors.As(err, &cue) || cue.DeviceID != 7 {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestWriteWAVFileRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteWAVFile(path, make([]int16, 100), 0); err == nil {
		t.Fatal("zero sample rate accepted")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("partial file kept: %v", err)
	}
}

func TestWAVRoundTripToneDuration(t *testing.T) {
	const rate = 16000
	samples := tone(440, rate, time.Second, 0.5)
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAVFile(path, samples, rate); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	got, gotRate, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if gotRate != rate {
		t.Fatalf("rate = %d", gotRate)
	}
	if d := len(got) - len(samples); d < -1 || d > 1 {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := 0; i < 100; i++ {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Channels != 1 || info.BitsPerSample != 16 || info.SampleRate != rate {
		t.Fatalf("info = %+v", info)
	}
	if d := info.Duration - time.Second; d < -time.Second/rate || d > time.Second/rate {
		t.Fatalf("duration = %v", info.Duration)
	}
}

func TestResampleLength(t *testing.T) {
	in := tone(440, 44100, 500*time.Millisecond, 0.5)
	out := Resample(in, 44100, 16000)
	if len(out) != 8000 {
		t.Fatalf("len = %d, want 8000", len(out))
	}
	if r := DB(RMS(out)) - DB(RMS(in)); math.Abs(r) > 0.5 {
		t.Fatalf("level changed by %.2f dB", r)
	}
	same := Resample(in, 44100, 44100)
	if len(same) != len(in) {
		t.Fatalf("identity resample changed length")
	}
}

func TestApplyGainClips(t *testing.T) {
	in := []int16{1000, -1000, 20000, -20000}
	out := ApplyGain(in, 6)
	if out[0] < 1990 || out[0] > 2000 {
		t.Fatalf("+6dB of 1000 = %d", out[0])
	}
	if out[2] != 32767 || out[3] != -32768 {
		t.Fatalf("not clipped: %v", out)
	}
	if in[0] != 1000 {
		t.Fatalf("input modified")
	}
}

func TestNormalizeRMS(t *testing.T) {
	quiet := tone(440, 16000, 200*time.Millisecond, 0.01)
	out := NormalizeRMS(quiet)
	if got := DB(RMS(out)); math.Abs(got-TargetRMSdB) > 0.2 {
		t.Fatalf("normalized rms = %.2f dB", got)
	}
	silent := make([]int16, 100)
	if got := NormalizeRMS(silent); !reflect.DeepEqual(got, silent) {
		t.Fatalf("silence changed")
	}
}

func TestAnalyzeQuality(t *testing.T) {
	cases := []struct {
		name string
		amp  float64
		want Quality
	}{
		{"quiet", 0.01, QualityPoor},
		{"fair", 0.07, QualityFair},
		{"good", 0.3, QualityGood},
		{"loud", 0.6, QualityExcellent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Analyze(tone(440, 16000, 100*time.Millisecond, tc.amp))
			if r.Quality != tc.want {
				t.Fatalf("quality = %s (rms %.1f dB), want %s", r.Quality, r.RMSDB, tc.want)
			}
		})
	}
	if q := Analyze(make([]int16, 10)).Quality; q != QualitySilent {
		t.Fatalf("silence graded %s", q)
	}
	if q := Analyze([]int16{0, 32767, -32768}).Quality; q != QualityClipped {
		t.Fatalf("clipping graded %s", q)
	}
}

func TestJoinAndDuration(t *testing.T) {
	frames := []Frame{
		{SampleRate: 1000, Samples: []int16{1, 2, 3}},
		{SampleRate: 1000, Samples: []int16{4, 5}},
	}
	if got := Join(frames); !reflect.DeepEqual(got, []int16{1, 2, 3, 4, 5}) {
		t.Fatalf("Join = %v", got)
	}
	if d := frames[0].Duration(); d != 3*time.Millisecond {
		t.Fatalf("Duration = %v", d)
	}
}
