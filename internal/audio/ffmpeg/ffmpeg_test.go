package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestArgs(t *testing.T) {
	got := args("in.m4a", "out.wav", 16000)
	want := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in.m4a", "-vn", "-ac", "1",
		"-ar", "16000", "-c:a", "pcm_s16le", "-f", "wav", "out.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v", got)
	}
	for _, a := range args("in", "out", 0) {
		if a == "-ar" {
			t.Fatal("rate 0 should keep source rate")
		}
	}
}

func TestToWAVReportsFailure(t *testing.T) {
	if err := Available(); err != nil {
		t.Skip(err)
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(in, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}
	err := ToWAV(context.Background(), in, filepath.Join(dir, "out.wav"), 16000, zerolog.Nop())
	if err == nil {
		t.Fatal("expected ffmpeg error")
	}
}
