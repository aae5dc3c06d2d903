//go:build !darwin

package clipboard

import (
	"runtime"
	"time"

	"github.com/micmonay/keybd_event"
)

type keybdPaster struct {
	kb keybd_event.KeyBonding
}

func newKeystroker() (Keystroker, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	// uinput needs a moment before the virtual device accepts events
	if runtime.GOOS == "linux" {
		time.Sleep(2 * time.Second)
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	return &keybdPaster{kb: kb}, nil
}

// Paste sends Ctrl+V.
func (p *keybdPaster) Paste() error {
	return p.kb.Launching()
}
