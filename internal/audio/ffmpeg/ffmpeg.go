// Package ffmpeg shells out to ffmpeg to turn arbitrary media files into
// the mono 16-bit WAV the rest of the program understands.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Binary is the ffmpeg executable looked up on PATH.
var Binary = "ffmpeg"

// Available reports whether ffmpeg can be found.
func Available() error {
	if _, err := exec.LookPath(Binary); err != nil {
		return fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	return nil
}

func args(inPath, outPath string, rate int) []string {
	a := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", inPath, "-vn", "-ac", "1"}
	if rate > 0 {
		a = append(a, "-ar", strconv.Itoa(rate))
	}
	return append(a, "-c:a", "pcm_s16le", "-f", "wav", outPath)
}

// ToWAV converts inPath to a mono PCM WAV at rate (0 keeps the source rate).
func ToWAV(ctx context.Context, inPath, outPath string, rate int, log zerolog.Logger) error {
	a := args(inPath, outPath, rate)
	log.Debug().Str("cmd", Binary+" "+strings.Join(a, " ")).Msg("executing")
	cmd := exec.CommandContext(ctx, Binary, a...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
