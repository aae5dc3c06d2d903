//go:build linux && x11

package listener

import (
	ghk "golang.design/x/hotkey"

	"talkpaste/internal/hotkey"
)

// X11 maps alt to Mod1 and the super key to Mod4 on common layouts.
func systemModifier(k hotkey.Key) (ghk.Modifier, bool) {
	switch k {
	case "ctrl":
		return ghk.ModCtrl, true
	case "shift":
		return ghk.ModShift, true
	case "alt":
		return ghk.Mod1, true
	case "win":
		return ghk.Mod4, true
	}
	return 0, false
}
