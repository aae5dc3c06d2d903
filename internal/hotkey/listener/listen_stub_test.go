//go:build !windows && !darwin && !(linux && x11)

package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"talkpaste/internal/hotkey"
)

func TestListenWithoutBackend(t *testing.T) {
	chord, err := hotkey.ParseChord("ctrl_r+alt_gr")
	if err != nil {
		t.Fatal(err)
	}
	events, err := Listen(context.Background(), chord, zerolog.Nop())
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v", err)
	}
	if events != nil {
		t.Fatal("events channel returned with error")
	}
}
