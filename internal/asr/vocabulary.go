package asr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Vocabulary holds domain terms passed to the provider as a prompt hint.
type Vocabulary struct {
	mu    sync.RWMutex
	terms []string
}

// ParseTerms splits comma or newline separated terms, dropping blanks and
// duplicates while keeping order.
func ParseTerms(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Load replaces the terms with the contents of path.
func (v *Vocabulary) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read vocabulary: %w", err)
	}
	v.Set(ParseTerms(string(b)))
	return nil
}

// Set replaces the terms.
func (v *Vocabulary) Set(terms []string) {
	v.mu.Lock()
	v.terms = append([]string(nil), terms...)
	v.mu.Unlock()
}

// Terms returns a copy of the current terms.
func (v *Vocabulary) Terms() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.terms...)
}

// Prompt renders the terms as a prompt hint.
func (v *Vocabulary) Prompt() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return strings.Join(v.terms, ", ")
}

// Watch reloads the vocabulary whenever path changes, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are picked up. reloaded, if non-nil, is called after each reload.
func (v *Vocabulary) Watch(ctx context.Context, path string, log zerolog.Logger, reloaded func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.Debug().Str("path", abs).Msg("watching vocabulary")

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := v.Load(abs); err != nil {
					log.Warn().Err(err).Msg("vocabulary reload failed, keeping previous terms")
					continue
				}
				log.Info().Int("terms", len(v.Terms())).Msg("vocabulary reloaded")
				if reloaded != nil {
					reloaded()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("vocabulary watcher error")
			}
		}
	}()
	return nil
}
