// Package keysym classifies X11 keysyms and converts printable ones to runes.
//
// The ranges follow the IsXxxKey macros of Xutil.h.
package keysym

// Keysym is an X11 keyboard symbol.
type Keysym uint32

const (
	NoSymbol Keysym = 0

	BackSpace Keysym = 0xff08
	Tab       Keysym = 0xff09
	Return    Keysym = 0xff0d
	Escape    Keysym = 0xff1b
	Delete    Keysym = 0xffff

	Home       Keysym = 0xff50
	Select     Keysym = 0xff60
	Break      Keysym = 0xff6b
	ModeSwitch Keysym = 0xff7e
	NumLock    Keysym = 0xff7f

	KPSpace Keysym = 0xff80
	KPEnter Keysym = 0xff8d
	KPF1    Keysym = 0xff91
	KPF4    Keysym = 0xff94
	KPEqual Keysym = 0xffbd

	F1  Keysym = 0xffbe
	F35 Keysym = 0xffe0

	ShiftL Keysym = 0xffe1
	HyperR Keysym = 0xffee

	ISOLock       Keysym = 0xfe01
	ISOLevel5Lock Keysym = 0xfe13

	privateKeypadFirst Keysym = 0x11000000
	privateKeypadLast  Keysym = 0x1100ffff

	unicodeOffset Keysym = 0x01000000
	unicodeFirst  Keysym = 0x01000100
	unicodeLast   Keysym = 0x0110ffff
)

func IsKeypad(ks Keysym) bool { return ks >= KPSpace && ks <= KPEqual }

func IsPrivateKeypad(ks Keysym) bool { return ks >= privateKeypadFirst && ks <= privateKeypadLast }

func IsCursor(ks Keysym) bool { return ks >= Home && ks < Select }

func IsPF(ks Keysym) bool { return ks >= KPF1 && ks <= KPF4 }

func IsFunction(ks Keysym) bool { return ks >= F1 && ks <= F35 }

func IsMiscFunction(ks Keysym) bool { return ks >= Select && ks <= Break }

func IsModifier(ks Keysym) bool {
	return (ks >= ShiftL && ks <= HyperR) ||
		(ks >= ISOLock && ks <= ISOLevel5Lock) ||
		ks == ModeSwitch ||
		ks == NumLock
}

// IsNonPrintable reports whether ks belongs to one of the keypad, cursor, function or modifier
// classes. Keys of these classes never contribute to a password.
func IsNonPrintable(ks Keysym) bool {
	return IsKeypad(ks) ||
		IsPrivateKeypad(ks) ||
		IsCursor(ks) ||
		IsPF(ks) ||
		IsFunction(ks) ||
		IsMiscFunction(ks) ||
		IsModifier(ks)
}

// Rune returns the character produced by ks. Only Latin-1 and Unicode keysyms are mapped.
func Rune(ks Keysym) (rune, bool) {
	switch {
	case ks >= 0x20 && ks <= 0x7e, ks >= 0xa0 && ks <= 0xff:
		return rune(ks), true
	case ks >= unicodeFirst && ks <= unicodeLast:
		return rune(ks - unicodeOffset), true
	default:
		return 0, false
	}
}
