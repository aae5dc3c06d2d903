package listener

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"talkpaste/internal/hotkey"
)

func TestOfferCountsDroppedEvents(t *testing.T) {
	var buf bytes.Buffer
	d := &dropCounter{log: zerolog.New(&buf)}
	events := make(chan hotkey.KeyEvent, 2)

	for i := 0; i < 2; i++ {
		if !d.offer(events, hotkey.KeyEvent{Key: "ctrl_r", Down: true}) {
			t.Fatalf("event %d dropped with room left", i)
		}
	}
	if d.offer(events, hotkey.KeyEvent{Key: "ctrl_r", Down: false}) {
		t.Fatal("event accepted by a full channel")
	}
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d", d.Dropped())
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"key":"ctrl_r"`) || !strings.Contains(out, `"down":false`) {
		t.Fatalf("log = %q", out)
	}

	// later drops are only logged every 100th time
	buf.Reset()
	for i := 0; i < 98; i++ {
		d.offer(events, hotkey.KeyEvent{Key: "alt_gr"})
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log: %q", buf.String())
	}
	d.offer(events, hotkey.KeyEvent{Key: "alt_gr"})
	if d.Dropped() != 100 || !strings.Contains(buf.String(), `"dropped":100`) {
		t.Fatalf("dropped = %d, log = %q", d.Dropped(), buf.String())
	}

	<-events
	if !d.offer(events, hotkey.KeyEvent{Key: "ctrl_r"}) {
		t.Fatal("event dropped after the consumer caught up")
	}
}
