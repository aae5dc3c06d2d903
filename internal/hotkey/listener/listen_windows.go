//go:build windows

package listener

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/rs/zerolog"

	"talkpaste/internal/hotkey"
)

const (
	VK_NUMPAD0  = 0x60
	VK_ADD      = 0x6B
	VK_SUBTRACT = 0x6D
)

var vkNames = map[uint32]hotkey.Key{
	0xA0: "shift_l", 0xA1: "shift_r",
	0xA2: "ctrl_l", 0xA3: "ctrl_r",
	0xA4: "alt_l", 0xA5: "alt_gr",
	0x5B: "win_l", 0x5C: "win_r",
	0x10: "shift", 0x11: "ctrl", 0x12: "alt",
	0x1B: "esc", 0x20: "space", 0x0D: "enter", 0x09: "tab", 0x08: "backspace",
	0x2D: "insert", 0x2E: "delete", 0x24: "home", 0x23: "end",
	0x21: "pageup", 0x22: "pagedown",
	0x25: "left", 0x26: "up", 0x27: "right", 0x28: "down",
	0x14: "capslock", 0x13: "pause",
	VK_ADD: "add", VK_SUBTRACT: "subtract",
}

// keyForVK maps a virtual-key code to its key name.
func keyForVK(vk uint32) (hotkey.Key, bool) {
	if k, ok := vkNames[vk]; ok {
		return k, true
	}
	switch {
	case vk >= 'A' && vk <= 'Z':
		return hotkey.Key(string(rune(vk - 'A' + 'a'))), true
	case vk >= '0' && vk <= '9':
		return hotkey.Key(string(rune(vk))), true
	case vk >= 0x70 && vk <= 0x87:
		return hotkey.Key(fmt.Sprintf("f%d", vk-0x70+1)), true
	case vk >= VK_NUMPAD0 && vk <= VK_NUMPAD0+9:
		return hotkey.Key(fmt.Sprintf("numpad%d", vk-VK_NUMPAD0)), true
	}
	return "", false
}

// Listen installs a low-level keyboard hook and reports transitions of the
// chord's keys until ctx is done. Injected keystrokes are ignored.
func Listen(ctx context.Context, chord hotkey.Chord, log zerolog.Logger) (<-chan hotkey.KeyEvent, error) {
	events := make(chan hotkey.KeyEvent, 256)
	drops := &dropCounter{log: log}
	errCh := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(events)

		user32 := syscall.NewLazyDLL("user32.dll")
		kernel32 := syscall.NewLazyDLL("kernel32.dll")
		procSetWindowsHookExW := user32.NewProc("SetWindowsHookExW")
		procUnhookWindowsHookEx := user32.NewProc("UnhookWindowsHookEx")
		procCallNextHookEx := user32.NewProc("CallNextHookEx")
		procGetMessageW := user32.NewProc("GetMessageW")
		procPostThreadMessageW := user32.NewProc("PostThreadMessageW")
		procGetCurrentThreadId := kernel32.NewProc("GetCurrentThreadId")

		const (
			WH_KEYBOARD_LL = 13
			WM_KEYDOWN     = 0x0100
			WM_KEYUP       = 0x0101
			WM_SYSKEYDOWN  = 0x0104
			WM_SYSKEYUP    = 0x0105
			WM_QUIT        = 0x0012
			LLKHF_INJECTED = 0x10
		)

		type KBDLLHOOKSTRUCT struct {
			vkCode      uint32
			scanCode    uint32
			flags       uint32
			time        uint32
			dwExtraInfo uintptr
		}

		callback := syscall.NewCallback(func(nCode, wParam, lParam uintptr) uintptr {
			if int32(nCode) < 0 {
				ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
				return ret
			}
			msg := uint32(wParam)
			k := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			if (k.flags & LLKHF_INJECTED) == 0 {
				if key, ok := keyForVK(k.vkCode); ok && chord.Contains(key) {
					down := msg == WM_KEYDOWN || msg == WM_SYSKEYDOWN
					up := msg == WM_KEYUP || msg == WM_SYSKEYUP
					if down || up {
						drops.offer(events, hotkey.KeyEvent{Key: key, Down: down})
					}
				}
			}
			ret, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
			return ret
		})

		hook, _, _ := procSetWindowsHookExW.Call(uintptr(WH_KEYBOARD_LL), callback, 0, 0)
		if hook == 0 {
			errCh <- fmt.Errorf("SetWindowsHookExW failed")
			return
		}
		tid, _, _ := procGetCurrentThreadId.Call()
		log.Debug().Str("hotkey", chord.String()).Msg("low-level hook installed (WH_KEYBOARD_LL)")
		errCh <- nil

		go func() {
			<-ctx.Done()
			procPostThreadMessageW.Call(tid, WM_QUIT, 0, 0)
		}()

		var msg struct {
			Hwnd    uintptr
			Message uint32
			WParam  uintptr
			LParam  uintptr
			Time    uint32
			Pt_x    int32
			Pt_y    int32
		}
		for {
			ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) == -1 {
				log.Error().Msg("GetMessageW error; exiting low-level hook loop")
				break
			}
			if ret == 0 {
				break
			}
		}

		procUnhookWindowsHookEx.Call(hook)
		log.Debug().Int64("dropped", drops.Dropped()).Msg("low-level hook uninstalled")
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return events, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("timeout installing low-level hook")
	}
}
