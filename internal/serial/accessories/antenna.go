package accessories

import (
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// PowerAntenna is the Power Antenna bundled with some titles. It only
// has an LED, driven by bit 0 of every byte sent to it.
type PowerAntenna struct {
	led     bool
	toggles int
	log     log.Logger
}

// NewPowerAntenna returns an antenna with its LED off.
func NewPowerAntenna(l log.Logger) *PowerAntenna {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &PowerAntenna{log: l}
}

// DeviceType implements the serial.Peripheral interface.
func (a *PowerAntenna) DeviceType() serial.DeviceType { return serial.DevicePowerAntenna }

// Reset implements the serial.Peripheral interface.
func (a *PowerAntenna) Reset() {
	a.led, a.toggles = false, 0
}

// ReceiveByte implements the serial.Peripheral interface.
func (a *PowerAntenna) ReceiveByte(b byte) (byte, bool) {
	if led := b&0x01 != 0; led != a.led {
		a.led = led
		a.toggles++
		a.log.Debugf("antenna: led %t", led)
	}
	return 0xFF, true
}

// LED reports whether the LED is lit.
func (a *PowerAntenna) LED() bool {
	return a.led
}

// Toggles returns how many times the LED has changed.
func (a *PowerAntenna) Toggles() int {
	return a.toggles
}
