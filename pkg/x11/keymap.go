package x11

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/MatthiasKunnen/screenlock/pkg/keysym"
	"github.com/MatthiasKunnen/screenlock/pkg/unlock"
)

// keymap is a copy of the server's keycode to keysym table.
type keymap struct {
	min     xproto.Keycode
	perCode int
	syms    []xproto.Keysym
}

func loadKeymap(x *xgb.Conn, setup *xproto.SetupInfo) (*keymap, error) {
	count := int(setup.MaxKeycode) - int(setup.MinKeycode) + 1
	reply, err := xproto.GetKeyboardMapping(x, setup.MinKeycode, byte(count)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	return &keymap{
		min:     setup.MinKeycode,
		perCode: int(reply.KeysymsPerKeycode),
		syms:    reply.Keysyms,
	}, nil
}

func (k *keymap) at(code xproto.Keycode, column int) keysym.Keysym {
	if code < k.min || column >= k.perCode {
		return keysym.NoSymbol
	}
	i := int(code-k.min)*k.perCode + column
	if i >= len(k.syms) {
		return keysym.NoSymbol
	}
	return keysym.Keysym(k.syms[i])
}

// lookup picks the shifted column when exactly one of Shift and Lock is active.
func (k *keymap) lookup(code xproto.Keycode, state uint16) keysym.Keysym {
	shift := state&xproto.ModMaskShift != 0
	lock := state&xproto.ModMaskLock != 0

	if shift != lock {
		if ks := k.at(code, 1); ks != keysym.NoSymbol {
			return ks
		}
	}
	return k.at(code, 0)
}

func (k *keymap) classify(code xproto.Keycode, state uint16) unlock.Key {
	return classifyKeysym(k.lookup(code, state))
}

func classifyKeysym(ks keysym.Keysym) unlock.Key {
	switch ks {
	case keysym.Escape:
		return unlock.Key{Kind: unlock.KeyEscape}
	case keysym.Return, keysym.KPEnter:
		return unlock.Key{Kind: unlock.KeyEnter}
	case keysym.BackSpace, keysym.Delete:
		return unlock.Key{Kind: unlock.KeyBackspace}
	}

	if keysym.IsNonPrintable(ks) {
		return unlock.Key{Kind: unlock.KeyIgnored}
	}
	if r, ok := keysym.Rune(ks); ok {
		return unlock.Key{Kind: unlock.KeyChar, Rune: r}
	}
	return unlock.Key{Kind: unlock.KeyIgnored}
}
