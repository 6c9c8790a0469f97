package panel

import (
	"context"
	"time"

	"pin/internal/color"
	"pin/internal/perr"
)

// Controller commands, per spec §4.1's documented init/refresh sequence.
const (
	cmdPanelSetting        = 0x00
	cmdPowerSetting        = 0x01
	cmdPowerOff            = 0x02
	cmdPowerOn             = 0x04
	cmdDeepSleep           = 0x07
	cmdDataStartTransmit1  = 0x10
	cmdDisplayRefresh      = 0x12
	cmdVCMDCSetting        = 0x82
	cmdTCONResolution      = 0x61
	cmdGetStatus           = 0x71
)

// Driver owns the framebuffer and the bus connection to the controller. It
// is not internally synchronized (spec §4.1 "Concurrency"): callers must
// serialize access, which is exactly what internal/display provides.
type Driver struct {
	bus *bus

	fb          []byte
	isSleeping  bool
	refreshes   uint64
	lastRefresh time.Time
}

// Init performs the documented reset -> power-on -> init sequence and
// allocates the framebuffer filled with white, per spec §4.1.
func Init(ctx context.Context, cfg BusConfig) (*Driver, error) {
	cfg = cfg.withDefaults()

	b, err := openBus(cfg)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		bus: b,
		fb:  make([]byte, FrameBytes),
	}

	if err := d.hardwareInit(ctx); err != nil {
		_ = b.close()
		return nil, err
	}

	d.Clear(color.White)
	return d, nil
}

func (d *Driver) hardwareInit(ctx context.Context) error {
	if err := d.bus.hardwareReset(); err != nil {
		return err
	}
	if err := d.bus.waitBusy(ctx, 5*time.Second); err != nil {
		return perr.Wrap(perr.Timeout, "panel.init", "reset busy-wait expired", err)
	}

	seq := []struct {
		cmd  byte
		data []byte
	}{
		{cmdPowerSetting, []byte{0x07, 0x07, 0x3F, 0x3F}},
		{cmdPowerOn, nil},
	}
	for _, step := range seq {
		if err := d.bus.sendCommand(step.cmd); err != nil {
			return err
		}
		if len(step.data) > 0 {
			if err := d.bus.sendData(step.data...); err != nil {
				return err
			}
		}
		if step.cmd == cmdPowerOn {
			if err := d.bus.waitBusy(ctx, 5*time.Second); err != nil {
				return perr.Wrap(perr.Timeout, "panel.init", "power-on busy-wait expired", err)
			}
		}
	}

	if err := d.bus.sendCommand(cmdPanelSetting); err != nil {
		return err
	}
	if err := d.bus.sendData(0x1F); err != nil {
		return err
	}

	if err := d.bus.sendCommand(cmdTCONResolution); err != nil {
		return err
	}
	if err := d.bus.sendData(byte(Width>>8), byte(Width&0xFF), byte(Height>>8), byte(Height&0xFF)); err != nil {
		return err
	}

	if err := d.bus.sendCommand(cmdVCMDCSetting); err != nil {
		return err
	}
	if err := d.bus.sendData(0x0E); err != nil {
		return err
	}

	return nil
}

// Clear fills every byte of the framebuffer with the packed value for color,
// per spec §4.1.
func (d *Driver) Clear(c color.Color) {
	v := byte(c)<<4 | byte(c)
	for i := range d.fb {
		d.fb[i] = v
	}
}

// Refresh streams the framebuffer to the controller and triggers a visible
// update. It wakes the panel first if sleeping, per spec §4.1.
func (d *Driver) Refresh(ctx context.Context, mode RefreshMode) error {
	if d.isSleeping {
		if err := d.Wake(ctx); err != nil {
			return err
		}
	}

	if err := d.bus.sendCommand(cmdDataStartTransmit1); err != nil {
		return err
	}
	if err := d.bus.sendData(d.fb...); err != nil {
		return err
	}
	if err := d.bus.sendCommand(cmdDisplayRefresh); err != nil {
		return err
	}
	if err := d.bus.waitBusy(ctx, 30*time.Second); err != nil {
		return perr.Wrap(perr.Timeout, "panel.refresh", "refresh busy-wait expired", err)
	}

	d.refreshes++
	d.lastRefresh = time.Now()
	_ = mode // mode is advisory at this layer; internal/display decides full vs partial policy.
	return nil
}

// Sleep powers the controller down into deep sleep, per spec §4.1.
func (d *Driver) Sleep(ctx context.Context) error {
	if err := d.bus.sendCommand(cmdPowerOff); err != nil {
		return err
	}
	if err := d.bus.waitBusy(ctx, 5*time.Second); err != nil {
		return perr.Wrap(perr.Timeout, "panel.sleep", "power-off busy-wait expired", err)
	}
	if err := d.bus.sendCommand(cmdDeepSleep); err != nil {
		return err
	}
	if err := d.bus.sendData(0xA5); err != nil {
		return err
	}
	d.isSleeping = true
	return nil
}

// Wake resets and powers the controller back on after Sleep.
func (d *Driver) Wake(ctx context.Context) error {
	if err := d.bus.hardwareReset(); err != nil {
		return err
	}
	if err := d.bus.waitBusy(ctx, 5*time.Second); err != nil {
		return perr.Wrap(perr.Timeout, "panel.wake", "reset busy-wait expired", err)
	}
	if err := d.bus.sendCommand(cmdPowerOn); err != nil {
		return err
	}
	if err := d.bus.waitBusy(ctx, 5*time.Second); err != nil {
		return perr.Wrap(perr.Timeout, "panel.wake", "power-on busy-wait expired", err)
	}
	d.isSleeping = false
	return nil
}

// Close releases the underlying bus.
func (d *Driver) Close() error {
	return d.bus.close()
}

// IsSleeping reports whether Sleep has been called without an intervening Wake.
func (d *Driver) IsSleeping() bool { return d.isSleeping }

// RefreshCount and LastRefresh expose the raw counters the display façade
// (internal/display) aggregates into its refresh-mode policy (spec §4.6).
func (d *Driver) RefreshCount() uint64     { return d.refreshes }
func (d *Driver) LastRefresh() time.Time   { return d.lastRefresh }

// RefreshMode selects the controller waveform; it is advisory at the panel
// layer (spec §4.1) and decided by internal/display's policy (spec §4.6).
type RefreshMode int

const (
	RefreshFull RefreshMode = iota
	RefreshPartial
	RefreshFast
)
