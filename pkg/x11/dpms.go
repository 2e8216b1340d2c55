package x11

import (
	"fmt"

	"github.com/jezek/xgb/dpms"
)

// Blank turns the monitors off through the DPMS extension. They come back on the next input.
func (c *Conn) Blank() error {
	if !c.dpmsReady {
		if err := dpms.Init(c.x); err != nil {
			return fmt.Errorf("DPMS extension unavailable: %w", err)
		}
		c.dpmsReady = true
	}

	if err := dpms.EnableChecked(c.x).Check(); err != nil {
		return fmt.Errorf("failed to enable DPMS: %w", err)
	}
	if err := dpms.ForceLevelChecked(c.x, dpms.DPMSModeOff).Check(); err != nil {
		return fmt.Errorf("failed to force DPMS off: %w", err)
	}
	return nil
}
