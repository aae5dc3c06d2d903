//go:build !windows && !darwin && !(linux && x11)

package listener

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"talkpaste/internal/hotkey"
)

// ErrUnsupported is returned by Listen when no global hotkey backend is
// built in. On Linux the X11 backend needs the x11 build tag.
var ErrUnsupported = errors.New("global hotkey not available in this build")

// Listen is not supported on this platform.
func Listen(ctx context.Context, chord hotkey.Chord, log zerolog.Logger) (<-chan hotkey.KeyEvent, error) {
	if runtime.GOOS == "linux" {
		return nil, fmt.Errorf("hotkey %s: %w (rebuild with -tags x11)", chord, ErrUnsupported)
	}
	return nil, fmt.Errorf("hotkey %s: %w on %s", chord, ErrUnsupported, runtime.GOOS)
}
