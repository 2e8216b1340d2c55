package x11

import (
	"errors"
	"fmt"

	"github.com/jezek/xgb/xproto"
)

var ErrNoScreens = errors.New("X server reports no screens")

// Palette holds the lock window colors as 0xRRGGBB.
type Palette struct {
	Locked uint32
	Input  uint32
	Failed uint32
}

// Target is the lock window of one X screen.
type Target struct {
	c      *Conn
	screen *xproto.ScreenInfo
	win    xproto.Window
	cursor xproto.Cursor

	locked, input, failed uint32
}

// Lock covers every screen with an override-redirect window and starts watching the roots for
// windows that could be stacked above the lock.
func (c *Conn) Lock(palette Palette) ([]*Target, error) {
	if len(c.setup.Roots) == 0 {
		return nil, ErrNoScreens
	}

	targets := make([]*Target, 0, len(c.setup.Roots))
	for i := range c.setup.Roots {
		t, err := c.lockScreen(&c.setup.Roots[i], palette)
		if err != nil {
			return nil, fmt.Errorf("failed to lock screen %d: %w", i, err)
		}
		c.targets = append(c.targets, t)
		targets = append(targets, t)
	}
	return targets, nil
}

func (c *Conn) lockScreen(screen *xproto.ScreenInfo, palette Palette) (*Target, error) {
	t := &Target{c: c, screen: screen}

	var err error
	if t.locked, err = c.allocColor(screen, palette.Locked); err != nil {
		return nil, err
	}
	if t.input, err = c.allocColor(screen, palette.Input); err != nil {
		return nil, err
	}
	if t.failed, err = c.allocColor(screen, palette.Failed); err != nil {
		return nil, err
	}

	t.win, err = xproto.NewWindowId(c.x)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}

	err = xproto.CreateWindowChecked(
		c.x,
		screen.RootDepth,
		t.win,
		screen.Root,
		0, 0,
		screen.WidthInPixels, screen.HeightInPixels,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{
			t.locked,
			1,
			xproto.EventMaskExposure | xproto.EventMaskKeyPress | xproto.EventMaskVisibilityChange,
		},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create lock window: %w", err)
	}

	if t.cursor, err = c.invisibleCursor(screen); err != nil {
		return nil, err
	}
	err = xproto.ChangeWindowAttributesChecked(c.x, t.win, xproto.CwCursor, []uint32{uint32(t.cursor)}).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to hide cursor: %w", err)
	}

	if err := xproto.MapWindowChecked(c.x, t.win).Check(); err != nil {
		return nil, fmt.Errorf("failed to map lock window: %w", err)
	}
	t.Raise()

	err = xproto.ChangeWindowAttributesChecked(
		c.x,
		screen.Root,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskSubstructureNotify},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to watch root window: %w", err)
	}

	return t, nil
}

func (c *Conn) allocColor(screen *xproto.ScreenInfo, rgb uint32) (uint32, error) {
	// X colors are 16 bits per channel.
	r := uint16(rgb>>16&0xff) * 0x101
	g := uint16(rgb>>8&0xff) * 0x101
	b := uint16(rgb&0xff) * 0x101

	reply, err := xproto.AllocColor(c.x, screen.DefaultColormap, r, g, b).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate color %06x: %w", rgb, err)
	}
	return reply.Pixel, nil
}

// invisibleCursor builds a cursor from an empty 1x1 bitmap.
func (c *Conn) invisibleCursor(screen *xproto.ScreenInfo) (xproto.Cursor, error) {
	pix, err := xproto.NewPixmapId(c.x)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}
	if err := xproto.CreatePixmapChecked(c.x, 1, pix, xproto.Drawable(screen.Root), 1, 1).Check(); err != nil {
		return 0, fmt.Errorf("failed to create cursor pixmap: %w", err)
	}
	defer xproto.FreePixmap(c.x, pix)

	gc, err := xproto.NewGcontextId(c.x)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate graphics context id: %w", err)
	}
	if err := xproto.CreateGCChecked(c.x, gc, xproto.Drawable(pix), xproto.GcForeground, []uint32{0}).Check(); err != nil {
		return 0, fmt.Errorf("failed to create graphics context: %w", err)
	}
	defer xproto.FreeGC(c.x, gc)

	xproto.PolyFillRectangle(c.x, xproto.Drawable(pix), gc, []xproto.Rectangle{{Width: 1, Height: 1}})

	cursor, err := xproto.NewCursorId(c.x)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate cursor id: %w", err)
	}
	if err := xproto.CreateCursorChecked(c.x, cursor, pix, pix, 0, 0, 0, 0, 0, 0, 0, 0).Check(); err != nil {
		return 0, fmt.Errorf("failed to create cursor: %w", err)
	}
	return cursor, nil
}

func (t *Target) GrabPointer() (bool, error) {
	mask := uint16(xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease | xproto.EventMaskPointerMotion)
	reply, err := xproto.GrabPointer(
		t.c.x,
		true,
		t.win,
		mask,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
		xproto.WindowNone,
		t.cursor,
		xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return false, err
	}
	return reply.Status == xproto.GrabStatusSuccess, nil
}

func (t *Target) GrabKeyboard() (bool, error) {
	reply, err := xproto.GrabKeyboard(
		t.c.x,
		true,
		t.win,
		xproto.TimeCurrentTime,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
	).Reply()
	if err != nil {
		return false, err
	}
	return reply.Status == xproto.GrabStatusSuccess, nil
}

// PaintInput shows the input color while something is typed and the lock color otherwise.
func (t *Target) PaintInput(typed int) {
	if typed > 0 {
		t.paint(t.input)
	} else {
		t.paint(t.locked)
	}
}

func (t *Target) PaintError() {
	t.paint(t.failed)
}

func (t *Target) paint(pixel uint32) {
	xproto.ChangeWindowAttributes(t.c.x, t.win, xproto.CwBackPixel, []uint32{pixel})
	xproto.ClearArea(t.c.x, false, t.win, 0, 0, 0, 0)
}

// Raise puts the lock window on top of its siblings.
func (t *Target) Raise() {
	xproto.ConfigureWindow(t.c.x, t.win, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})
}

// Raise puts every lock window on top.
func (c *Conn) Raise() {
	for _, t := range c.targets {
		t.Raise()
	}
}

func (t *Target) destroy() {
	xproto.DestroyWindow(t.c.x, t.win)
	if t.cursor != 0 {
		xproto.FreeCursor(t.c.x, t.cursor)
	}
}
