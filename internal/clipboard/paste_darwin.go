//go:build darwin

package clipboard

import "github.com/micmonay/keybd_event"

type keybdPaster struct {
	kb keybd_event.KeyBonding
}

func newKeystroker() (Keystroker, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	kb.HasSuper(true)
	kb.SetKeys(keybd_event.VK_V)
	return &keybdPaster{kb: kb}, nil
}

// Paste sends Cmd+V.
func (p *keybdPaster) Paste() error {
	return p.kb.Launching()
}
