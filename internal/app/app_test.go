package app

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkpaste/internal/audio"
	"talkpaste/internal/audio/audiotest"
	"talkpaste/internal/config"
)

func tone(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return s
}

func TestRunFileModeWritesTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 22); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("no file uploaded: %v", err)
		}
		_, _ = w.Write([]byte(`{"text":"hello from file"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "memo.wav")
	if err := audio.WriteWAVFile(in, tone(16000), 16000); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Provider = "http"
	cfg.APIEndpoint = server.URL
	cfg.CacheDir = filepath.Join(dir, "cache")
	out := filepath.Join(dir, "memo.txt")

	got, err := RunFileMode(context.Background(), cfg, in, out, zerolog.Nop())
	if err != nil {
		t.Fatalf("RunFileMode: %v", err)
	}
	if got != out {
		t.Fatalf("output = %s", got)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello from file" {
		t.Fatalf("transcript = %q", b)
	}
}

func TestRunFileModeMissingInput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	_, err := RunFileMode(context.Background(), cfg, filepath.Join(cfg.CacheDir, "nope.wav"), "", zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "stat failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestDiagnoseRecordsClip(t *testing.T) {
	src := &audiotest.Source{Rate: 16000, FrameSize: 160, Frames: 1000, Amplitude: 3000}
	cfg := config.DefaultConfig()
	cfg.SampleRate = 16000
	out := filepath.Join(t.TempDir(), "diag.wav")

	rep, err := Diagnose(context.Background(), src, cfg, 200*time.Millisecond, out, zerolog.Nop())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if rep.Info.SampleRate != 16000 || rep.Info.Channels != 1 || rep.Info.BitsPerSample != 16 {
		t.Fatalf("info = %+v", rep.Info)
	}
	if rep.Info.Samples != 3200 {
		t.Fatalf("samples = %d", rep.Info.Samples)
	}
	if !rep.SafetyStop {
		t.Fatal("clip should end at the requested length")
	}
	if rep.Level.Quality != audio.QualityOK {
		t.Fatalf("quality = %s (rms %.1f)", rep.Level.Quality, rep.Level.RMSDB)
	}

	var buf bytes.Buffer
	PrintReport(&buf, rep)
	for _, want := range []string{"16000 Hz", "0.20s", "Device:      default", "Quality:     ok"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("report missing %q:\n%s", want, buf.String())
		}
	}
}

func TestDiagnoseCancelled(t *testing.T) {
	src := &audiotest.Source{Rate: 16000, Frames: 10, Amplitude: 3000}
	cfg := config.DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := Diagnose(ctx, src, cfg, time.Hour, filepath.Join(t.TempDir(), "x.wav"), zerolog.Nop())
	if err != context.Canceled {
		t.Fatalf("err = %v", err)
	}
	if src.Closes() != 1 {
		t.Fatalf("closes = %d", src.Closes())
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	PrintDevices(&buf, []audio.DeviceInfo{
		{ID: 0, Name: "Built-in Microphone", HostAPI: "Core Audio", MaxInputChannels: 2, DefaultSampleRate: 48000, Default: true},
		{ID: 3, Name: "USB Headset", HostAPI: "Core Audio", MaxInputChannels: 1, DefaultSampleRate: 44100},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "*") || !strings.Contains(lines[1], "USB Headset") {
		t.Fatalf("output:\n%s", buf.String())
	}

	buf.Reset()
	PrintDevices(&buf, nil)
	if !strings.Contains(buf.String(), "no input devices") {
		t.Fatalf("output = %q", buf.String())
	}
}
