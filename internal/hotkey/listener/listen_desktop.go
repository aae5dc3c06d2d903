//go:build darwin || (linux && x11)

package listener

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	ghk "golang.design/x/hotkey"

	"talkpaste/internal/hotkey"
)

var mainKeys = map[hotkey.Key]ghk.Key{
	"space": ghk.KeySpace, "enter": ghk.KeyReturn, "esc": ghk.KeyEscape,
	"tab": ghk.KeyTab, "delete": ghk.KeyDelete,
	"left": ghk.KeyLeft, "right": ghk.KeyRight, "up": ghk.KeyUp, "down": ghk.KeyDown,
	"a": ghk.KeyA, "b": ghk.KeyB, "c": ghk.KeyC, "d": ghk.KeyD, "e": ghk.KeyE,
	"f": ghk.KeyF, "g": ghk.KeyG, "h": ghk.KeyH, "i": ghk.KeyI, "j": ghk.KeyJ,
	"k": ghk.KeyK, "l": ghk.KeyL, "m": ghk.KeyM, "n": ghk.KeyN, "o": ghk.KeyO,
	"p": ghk.KeyP, "q": ghk.KeyQ, "r": ghk.KeyR, "s": ghk.KeyS, "t": ghk.KeyT,
	"u": ghk.KeyU, "v": ghk.KeyV, "w": ghk.KeyW, "x": ghk.KeyX, "y": ghk.KeyY,
	"z": ghk.KeyZ,
	"0": ghk.Key0, "1": ghk.Key1, "2": ghk.Key2, "3": ghk.Key3, "4": ghk.Key4,
	"5": ghk.Key5, "6": ghk.Key6, "7": ghk.Key7, "8": ghk.Key8, "9": ghk.Key9,
}

var functionKeys = []ghk.Key{
	ghk.KeyF1, ghk.KeyF2, ghk.KeyF3, ghk.KeyF4, ghk.KeyF5, ghk.KeyF6,
	ghk.KeyF7, ghk.KeyF8, ghk.KeyF9, ghk.KeyF10, ghk.KeyF11, ghk.KeyF12,
}

func systemKey(k hotkey.Key) (ghk.Key, bool) {
	if v, ok := mainKeys[k]; ok {
		return v, true
	}
	if s := string(k); strings.HasPrefix(s, "f") {
		if n, err := strconv.Atoi(s[1:]); err == nil && n >= 1 && n <= len(functionKeys) {
			return functionKeys[n-1], true
		}
	}
	return 0, false
}

// Listen registers the chord as a global hotkey and reports press and
// release as key events. The OS hotkey API cannot tell left from right
// modifiers, so sided modifiers are registered as their generic form, and a
// chord needs exactly one non-modifier key.
func Listen(ctx context.Context, chord hotkey.Chord, log zerolog.Logger) (<-chan hotkey.KeyEvent, error) {
	mods, main, err := chord.Split()
	if err != nil {
		return nil, err
	}
	if main == "" {
		return nil, fmt.Errorf("hotkey %s needs a non-modifier key on this platform", chord)
	}
	key, ok := systemKey(main)
	if !ok {
		return nil, fmt.Errorf("hotkey %s: key %s not supported on this platform", chord, main)
	}
	var hmods []ghk.Modifier
	for _, m := range mods {
		hm, ok := systemModifier(m.Generic())
		if !ok {
			return nil, fmt.Errorf("hotkey %s: modifier %s not supported on this platform", chord, m)
		}
		hmods = append(hmods, hm)
	}

	hk := ghk.New(hmods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("register hotkey %s: %w", chord, err)
	}
	log.Debug().Str("hotkey", chord.String()).Msg("global hotkey registered")

	events := make(chan hotkey.KeyEvent, 64)
	go func() {
		defer close(events)
		defer func() {
			if err := hk.Unregister(); err != nil {
				log.Debug().Err(err).Msg("unregister hotkey failed")
			}
		}()
		send := func(down bool) bool {
			for _, k := range chord {
				select {
				case events <- hotkey.KeyEvent{Key: k, Down: down}:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				if !send(true) {
					return
				}
			case <-hk.Keyup():
				if !send(false) {
					return
				}
			}
		}
	}()
	return events, nil
}
