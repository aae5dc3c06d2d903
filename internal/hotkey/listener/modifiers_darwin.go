//go:build darwin

package listener

import (
	ghk "golang.design/x/hotkey"

	"talkpaste/internal/hotkey"
)

func systemModifier(k hotkey.Key) (ghk.Modifier, bool) {
	switch k {
	case "ctrl":
		return ghk.ModCtrl, true
	case "shift":
		return ghk.ModShift, true
	case "alt":
		return ghk.ModOption, true
	case "win":
		return ghk.ModCmd, true
	}
	return 0, false
}
