package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "warn", NoColor: true, Out: &buf})
	defer closer.Close()

	rec := Component(log, "record")
	rec.Info().Msg("hidden")
	rec.Warn().Msg("device busy")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line printed at warn level: %q", out)
	}
	if !strings.Contains(out, "[WRN]") || !strings.Contains(out, "component=record") || !strings.Contains(out, "device busy") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "talkpaste.log")
	log, closer := New(Options{Level: "debug", File: path, NoColor: true, Out: &buf})
	l := Component(log, "pipeline")
	l.Debug().Str("session", "abc").Msg("queued")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(b)
	if !strings.Contains(line, `"component":"pipeline"`) || !strings.Contains(line, `"session":"abc"`) {
		t.Fatalf("file line = %q", line)
	}
}
