// Package battery reads the device's battery voltage and charge
// percentage for the status payload (spec §6: battery_voltage,
// battery_percentage), abstracted behind a Reader so the HTTP surface
// never depends on whether real I2C hardware is present.
package battery

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// defaultI2CAddr is the 7-bit address a PiSugar3-compatible fuel gauge
// answers on.
const defaultI2CAddr = 0x75

// Status is the battery reading exposed through the status payload.
type Status struct {
	Percent   int `json:"percent"`
	VoltageMv int `json:"voltage_mv"`
}

// Reader abstracts how a Status is obtained, so the daemon can run
// without real battery hardware attached.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

type mockReader struct {
	rnd *rand.Rand
}

// i2cReader talks to a PiSugar3-compatible fuel gauge over I2C:
//   - 0x22 (high byte), 0x23 (low byte): voltage in millivolts
//   - 0x2A: percentage, 0-100
type i2cReader struct {
	busName string
	addr    uint16
}

// NewMockReader returns a Reader that reports a plausible random level,
// for development without battery hardware attached.
func NewMockReader() Reader {
	return &mockReader{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewI2CReader returns a Reader bound to the given I2C bus and address.
// busName is empty for periph's default bus. Connection setup happens
// lazily on the first Read, not here.
func NewI2CReader(busName string, addr uint16) Reader {
	if addr == 0 {
		addr = defaultI2CAddr
	}
	return &i2cReader{busName: busName, addr: addr}
}

func (m *mockReader) Read(_ context.Context) (Status, error) {
	return Status{Percent: 20 + m.rnd.Intn(81), VoltageMv: 0}, nil
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c reader unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, err
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}

	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	high, err := readReg(0x22)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(0x23)
	if err != nil {
		return Status{}, err
	}
	voltageMv := int(uint16(high)<<8 | uint16(low))

	pct, err := readReg(0x2A)
	if err != nil {
		return Status{}, err
	}
	if pct > 100 {
		pct = 100
	}

	return Status{Percent: int(pct), VoltageMv: voltageMv}, nil
}

// NewReader picks an I2C-backed Reader on Linux, falling back to a mock
// reader everywhere else.
func NewReader(busName string, addr uint16) Reader {
	if runtime.GOOS != "linux" {
		return NewMockReader()
	}
	return NewI2CReader(busName, addr)
}
