package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is a normalised key name such as "ctrl_r", "alt_gr", "a" or "f9".
type Key string

// KeyEvent is a single physical key transition.
type KeyEvent struct {
	Key  Key
	Down bool
}

var sided = map[Key][]Key{
	"ctrl":  {"ctrl_l", "ctrl_r"},
	"alt":   {"alt_l", "alt_r", "alt_gr"},
	"shift": {"shift_l", "shift_r"},
	"win":   {"win_l", "win_r"},
}

var aliases = map[string]Key{
	"control": "ctrl",
	"ctl":     "ctrl",
	"menu":    "alt",
	"option":  "alt",
	"altgr":   "alt_gr",
	"meta":    "win",
	"super":   "win",
	"cmd":     "win",
	"command": "win",
	"escape":  "esc",
	"return":  "enter",
}

var named = map[Key]bool{
	"space": true, "esc": true, "enter": true, "tab": true, "backspace": true,
	"insert": true, "delete": true, "home": true, "end": true, "pageup": true,
	"pagedown": true, "left": true, "up": true, "right": true, "down": true,
	"capslock": true, "pause": true, "add": true, "subtract": true,
}

// IsModifier reports whether k is a modifier, generic or sided.
func (k Key) IsModifier() bool {
	if _, ok := sided[k]; ok {
		return true
	}
	for _, keys := range sided {
		for _, s := range keys {
			if s == k {
				return true
			}
		}
	}
	return false
}

// Generic returns the side-less modifier name for k, or k itself.
func (k Key) Generic() Key {
	for g, keys := range sided {
		for _, s := range keys {
			if s == k {
				return g
			}
		}
	}
	return k
}

// Matches reports whether physical key p satisfies k. Generic modifiers
// match either side; right alt and alt gr are the same physical key.
func (k Key) Matches(p Key) bool {
	if k == p {
		return true
	}
	if (k == "alt_r" && p == "alt_gr") || (k == "alt_gr" && p == "alt_r") {
		return true
	}
	for _, s := range sided[k] {
		if s == p {
			return true
		}
	}
	return false
}

func validKey(k Key) bool {
	if k.IsModifier() || named[k] {
		return true
	}
	s := string(k)
	if len(s) == 1 {
		c := s[0]
		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}
	if strings.HasPrefix(s, "f") {
		n, err := strconv.Atoi(s[1:])
		return err == nil && n >= 1 && n <= 24
	}
	if strings.HasPrefix(s, "numpad") {
		n, err := strconv.Atoi(s[len("numpad"):])
		return err == nil && n >= 0 && n <= 9
	}
	return false
}

func normalizeToken(tok string) Key {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if a, ok := aliases[tok]; ok {
		return a
	}
	for _, prefix := range []string{"kp", "num"} {
		if !strings.HasPrefix(tok, prefix) || strings.HasPrefix(tok, "numpad") {
			continue
		}
		if rest := tok[len(prefix):]; len(rest) == 1 && rest[0] >= '0' && rest[0] <= '9' {
			return Key("numpad" + rest)
		}
	}
	return Key(tok)
}

// Chord is the set of keys that must be held together.
type Chord []Key

// ParseChord accepts strings like "ctrl_r+alt_gr" or "ctrl+shift+space".
func ParseChord(s string) (Chord, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty hotkey")
	}
	var c Chord
	seen := make(map[Key]bool)
	for _, tok := range strings.Split(s, "+") {
		k := normalizeToken(tok)
		if k == "" {
			return nil, fmt.Errorf("invalid hotkey '%s': empty key", s)
		}
		if !validKey(k) {
			return nil, fmt.Errorf("invalid hotkey '%s': unsupported key token: %s", s, k)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		c = append(c, k)
	}
	return c, nil
}

func (c Chord) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

// Contains reports whether physical key p satisfies any key of the chord.
func (c Chord) Contains(p Key) bool {
	for _, k := range c {
		if k.Matches(p) {
			return true
		}
	}
	return false
}

// HeldBy reports whether every chord key is satisfied by a pressed key.
func (c Chord) HeldBy(pressed map[Key]bool) bool {
	if len(c) == 0 {
		return false
	}
	for _, k := range c {
		ok := false
		for p := range pressed {
			if k.Matches(p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Split separates modifiers from the single non-modifier key, if any.
func (c Chord) Split() (mods []Key, main Key, err error) {
	for _, k := range c {
		if k.IsModifier() {
			mods = append(mods, k)
			continue
		}
		if main != "" {
			return nil, "", fmt.Errorf("hotkey %s has more than one non-modifier key", c)
		}
		main = k
	}
	return mods, main, nil
}
