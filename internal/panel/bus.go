// Package panel drives the seven-color e-paper controller: the command/data
// protocol, the nibble-packed framebuffer, and the rasterization primitives
// built on top of it. It is a pure-Go port in the style of the teacher's
// internal/epd, generalized from the teacher's tri-color quad-segment wiring
// to the spec's single 600x448 seven-color panel, and moved from the
// teacher's deprecated periph.io/x/periph to periph.io/x/conn/v3 +
// periph.io/x/host/v3 (the same generation of the library used by the
// teacher's own internal/battery and by periph.io/x/devices/v3/ssd1322).
package panel

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"pin/internal/perr"
)

// Panel geometry, fixed by the hardware (spec §3).
const (
	Width        = 600
	Height       = 448
	StrideBytes  = Width / 2 // two pixels per byte
	FrameBytes   = StrideBytes * Height
)

// BusConfig names the GPIO pins and SPI port used to reach the controller.
// Zero values select periph.io's default SPI port and named GPIO pins
// compatible with a Raspberry Pi header, mirroring the teacher's BCM pin
// constants in internal/epd/epd_spi.go.
type BusConfig struct {
	SPIPort string // "" selects the default port, e.g. /dev/spidev0.0
	PinRST  string // e.g. "GPIO17"
	PinDC   string // e.g. "GPIO25"
	PinCS   string // e.g. "GPIO8" (often handled by the SPI port itself)
	PinBusy string // e.g. "GPIO24"
	MaxHz   int64  // SPI clock; 0 selects a conservative default
}

func (c BusConfig) withDefaults() BusConfig {
	if c.PinRST == "" {
		c.PinRST = "GPIO17"
	}
	if c.PinDC == "" {
		c.PinDC = "GPIO25"
	}
	if c.PinCS == "" {
		c.PinCS = "GPIO8"
	}
	if c.PinBusy == "" {
		c.PinBusy = "GPIO24"
	}
	if c.MaxHz == 0 {
		c.MaxHz = 2_000_000
	}
	return c
}

// bus wraps the raw SPI connection and control GPIOs, equivalent to the
// teacher's Dev.
type bus struct {
	conn spi.Conn
	rst  gpio.PinOut
	dc   gpio.PinOut
	cs   gpio.PinOut
	busy gpio.PinIn
}

func openBus(cfg BusConfig) (*bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "panel.open_bus", "periph host init failed", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "panel.open_bus", "failed to open SPI port", err)
	}

	conn, err := port.Connect(physic.Frequency(cfg.MaxHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, perr.Wrap(perr.HardwareFail, "panel.open_bus", "failed to connect SPI", err)
	}

	resolveOut := func(name string, level gpio.Level) (gpio.PinOut, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, perr.New(perr.HardwareFail, "panel.open_bus", fmt.Sprintf("gpio %s not found", name))
		}
		if err := p.Out(level); err != nil {
			return nil, perr.Wrap(perr.HardwareFail, "panel.open_bus", fmt.Sprintf("gpio %s out failed", name), err)
		}
		return p, nil
	}
	resolveIn := func(name string) (gpio.PinIn, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, perr.New(perr.HardwareFail, "panel.open_bus", fmt.Sprintf("gpio %s not found", name))
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, perr.Wrap(perr.HardwareFail, "panel.open_bus", fmt.Sprintf("gpio %s in failed", name), err)
		}
		return p, nil
	}

	rst, err := resolveOut(cfg.PinRST, gpio.High)
	if err != nil {
		return nil, err
	}
	dc, err := resolveOut(cfg.PinDC, gpio.Low)
	if err != nil {
		return nil, err
	}
	cs, err := resolveOut(cfg.PinCS, gpio.High)
	if err != nil {
		return nil, err
	}
	busyPin, err := resolveIn(cfg.PinBusy)
	if err != nil {
		return nil, err
	}

	return &bus{conn: conn, rst: rst, dc: dc, cs: cs, busy: busyPin}, nil
}

// sendCommand writes a single command byte with DC held low.
func (b *bus) sendCommand(cmd byte) error {
	return b.write(false, []byte{cmd})
}

// sendData writes data bytes with DC held high.
func (b *bus) sendData(data ...byte) error {
	return b.write(true, data)
}

func (b *bus) write(dataMode bool, buf []byte) error {
	level := gpio.Low
	if dataMode {
		level = gpio.High
	}
	if err := b.dc.Out(level); err != nil {
		return perr.Wrap(perr.HardwareFail, "panel.write", "dc pin set failed", err)
	}
	if err := b.cs.Out(gpio.Low); err != nil {
		return perr.Wrap(perr.HardwareFail, "panel.write", "cs pin set failed", err)
	}
	err := b.conn.Tx(buf, nil)
	_ = b.cs.Out(gpio.High)
	if err != nil {
		return perr.Wrap(perr.HardwareFail, "panel.write", "spi tx failed", err)
	}
	return nil
}

// waitBusy polls the busy line until it reports idle or the deadline
// expires. BUSY=low means busy on this controller family (the controller
// drives it high when idle), matching the teacher's EPD_*_ReadBusy convention.
func (b *bus) waitBusy(ctx context.Context, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if b.busy.Read() == gpio.High {
			return nil
		}
		select {
		case <-ctx.Done():
			return perr.New(perr.Timeout, "panel.wait_busy", "controller did not go idle before deadline")
		case <-ticker.C:
		}
	}
}

// hardwareReset pulses RST per spec §4.1: low >=10ms, high, then caller
// waits busy.
func (b *bus) hardwareReset() error {
	if err := b.rst.Out(gpio.Low); err != nil {
		return perr.Wrap(perr.HardwareFail, "panel.reset", "rst low failed", err)
	}
	time.Sleep(15 * time.Millisecond)
	if err := b.rst.Out(gpio.High); err != nil {
		return perr.Wrap(perr.HardwareFail, "panel.reset", "rst high failed", err)
	}
	time.Sleep(15 * time.Millisecond)
	return nil
}

func (b *bus) close() error {
	if closer, ok := b.conn.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

