package keysym

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNonPrintable(t *testing.T) {
	tests := []struct {
		name string
		ks   Keysym
		want bool
	}{
		{"a", 0x61, false},
		{"space", 0x20, false},
		{"eacute", 0xe9, false},
		{"Return", Return, false},
		{"Escape", Escape, false},
		{"BackSpace", BackSpace, false},
		{"Delete", Delete, false},
		{"KP_Enter", KPEnter, true},
		{"KP_0", 0xffb0, true},
		{"Left", 0xff51, true},
		{"Home", Home, true},
		{"Select", Select, true},
		{"Insert", 0xff63, true},
		{"KP_F2", 0xff92, true},
		{"F1", F1, true},
		{"F12", 0xffc9, true},
		{"Shift_L", ShiftL, true},
		{"Control_R", 0xffe4, true},
		{"Super_L", 0xffeb, true},
		{"ISO_Level3_Shift", 0xfe03, true},
		{"Mode_switch", ModeSwitch, true},
		{"Num_Lock", NumLock, true},
		{"private keypad", 0x11000042, true},
		{"unicode", 0x010020ac, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNonPrintable(tt.ks))
		})
	}
}

func TestRune(t *testing.T) {
	tests := []struct {
		ks     Keysym
		want   rune
		wantOK bool
	}{
		{0x61, 'a', true},
		{0x7e, '~', true},
		{0xe9, 'é', true},
		{0x010020ac, '€', true},
		{0x01000430, 'а', true},
		{0x1f, 0, false},
		{0x7f, 0, false},
		{NoSymbol, 0, false},
		{0x1008ff11, 0, false},
		{Return, 0, false},
	}

	for _, tt := range tests {
		r, ok := Rune(tt.ks)
		assert.Equal(t, tt.wantOK, ok, "keysym %#x", tt.ks)
		assert.Equal(t, tt.want, r, "keysym %#x", tt.ks)
	}
}
