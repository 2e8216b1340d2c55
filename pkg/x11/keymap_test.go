package x11

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"

	"github.com/MatthiasKunnen/screenlock/pkg/keysym"
	"github.com/MatthiasKunnen/screenlock/pkg/unlock"
)

// testKeymap maps keycode 8 to a/A, 9 to 1 with no shifted symbol, 10 to Return and 11 to
// KP_Enter.
func testKeymap() *keymap {
	return &keymap{
		min:     8,
		perCode: 2,
		syms: []xproto.Keysym{
			'a', 'A',
			'1', 0,
			xproto.Keysym(keysym.Return), 0,
			xproto.Keysym(keysym.KPEnter), 0,
		},
	}
}

func TestKeymap_Lookup(t *testing.T) {
	km := testKeymap()

	tests := []struct {
		name  string
		code  xproto.Keycode
		state uint16
		want  keysym.Keysym
	}{
		{"plain", 8, 0, 'a'},
		{"shift", 8, xproto.ModMaskShift, 'A'},
		{"caps lock", 8, xproto.ModMaskLock, 'A'},
		{"shift and caps lock cancel", 8, xproto.ModMaskShift | xproto.ModMaskLock, 'a'},
		{"shift without shifted symbol", 9, xproto.ModMaskShift, '1'},
		{"below minimum keycode", 7, 0, keysym.NoSymbol},
		{"beyond table", 40, 0, keysym.NoSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, km.lookup(tt.code, tt.state))
		})
	}
}

func TestKeymap_Classify(t *testing.T) {
	km := testKeymap()

	assert.Equal(t, unlock.Key{Kind: unlock.KeyChar, Rune: 'A'}, km.classify(8, xproto.ModMaskShift))
	assert.Equal(t, unlock.Key{Kind: unlock.KeyEnter}, km.classify(10, 0))
	assert.Equal(t, unlock.Key{Kind: unlock.KeyEnter}, km.classify(11, 0))
}

func TestClassifyKeysym(t *testing.T) {
	tests := []struct {
		name string
		ks   keysym.Keysym
		want unlock.Key
	}{
		{"escape", keysym.Escape, unlock.Key{Kind: unlock.KeyEscape}},
		{"return", keysym.Return, unlock.Key{Kind: unlock.KeyEnter}},
		{"keypad enter", keysym.KPEnter, unlock.Key{Kind: unlock.KeyEnter}},
		{"backspace", keysym.BackSpace, unlock.Key{Kind: unlock.KeyBackspace}},
		{"delete", keysym.Delete, unlock.Key{Kind: unlock.KeyBackspace}},
		{"latin", 'x', unlock.Key{Kind: unlock.KeyChar, Rune: 'x'}},
		{"latin-1 supplement", 0xe9, unlock.Key{Kind: unlock.KeyChar, Rune: 'é'}},
		{"unicode", 0x010020ac, unlock.Key{Kind: unlock.KeyChar, Rune: '€'}},
		{"function key", keysym.F1, unlock.Key{Kind: unlock.KeyIgnored}},
		{"modifier", keysym.ShiftL, unlock.Key{Kind: unlock.KeyIgnored}},
		{"keypad digit", keysym.KPSpace, unlock.Key{Kind: unlock.KeyIgnored}},
		{"cursor", keysym.Home, unlock.Key{Kind: unlock.KeyIgnored}},
		{"no symbol", keysym.NoSymbol, unlock.Key{Kind: unlock.KeyIgnored}},
		{"tab", keysym.Tab, unlock.Key{Kind: unlock.KeyIgnored}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyKeysym(tt.ks))
		})
	}
}
