package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TempPrefix marks files the program owns in the temp directory.
const TempPrefix = "RecordTemp_"

// TempPath returns a fresh RecordTemp_ path in dir with the given extension.
func TempPath(dir, ext string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s.%s", TempPrefix, id, ext))
}

// CleanupTemp removes RecordTemp_ leftovers from a previous run.
func CleanupTemp(dir string, log zerolog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("read temp dir failed")
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, TempPrefix) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("remove stale temp file failed")
		} else {
			log.Debug().Str("path", path).Msg("removed stale temp file")
		}
	}
}

// Cache decides what happens to an uploaded file once its job is done.
// With Keep set and a Dir, the audio is renamed to audio-<timestamp> in Dir
// and a successful response body is stored next to it; otherwise the file is
// deleted.
type Cache struct {
	Dir  string
	Keep bool
	Log  zerolog.Logger

	now func() time.Time
}

// Finish disposes of audioPath.
func (c *Cache) Finish(audioPath string, uploadOK bool, raw []byte) {
	if audioPath == "" {
		return
	}
	if !c.Keep || c.Dir == "" {
		_ = os.Remove(audioPath)
		return
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	base := "audio-" + now().Format("2006-01-02-15.04.05.000")

	dst := filepath.Join(c.Dir, base+filepath.Ext(audioPath))
	if err := os.Rename(audioPath, dst); err != nil {
		c.Log.Warn().Err(err).Str("path", dst).Msg("cache rename failed")
		_ = os.Remove(audioPath)
	}
	if uploadOK && len(raw) > 0 {
		jsonPath := filepath.Join(c.Dir, base+".json")
		if err := os.WriteFile(jsonPath, raw, 0644); err != nil {
			c.Log.Warn().Err(err).Str("path", jsonPath).Msg("cache write response failed")
		}
	}
}
