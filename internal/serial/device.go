package serial

import "fmt"

// DeviceType identifies the peripheral plugged into the link port.
type DeviceType uint8

const (
	DeviceNone DeviceType = iota
	DeviceLink
	DevicePrinter
	DeviceMobileAdapter
	DeviceBarcodeBoy
	DeviceBarcodeTaisen
	DeviceFourPlayer
	DevicePowerAntenna
	DeviceEmbroidery
	DeviceMemoryCard
)

var deviceNames = map[DeviceType]string{
	DeviceNone:          "none",
	DeviceLink:          "link cable",
	DevicePrinter:       "printer",
	DeviceMobileAdapter: "mobile adapter",
	DeviceBarcodeBoy:    "barcode boy",
	DeviceBarcodeTaisen: "barcode taisen bardigun",
	DeviceFourPlayer:    "4 player adapter",
	DevicePowerAntenna:  "power antenna",
	DeviceEmbroidery:    "embroidery machine",
	DeviceMemoryCard:    "turbo file",
}

func (d DeviceType) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(d))
}

// IRDevice identifies what is on the other side of the infrared port.
type IRDevice uint8

const (
	IRNone IRDevice = iota
	IRPeer
)

// Peripheral is a device attached to the link port. Every byte the
// console shifts out is handed to ReceiveByte, which returns the byte
// shifted back in. irq reports whether the peripheral latched the byte.
type Peripheral interface {
	ReceiveByte(b byte) (reply byte, irq bool)
	Reset()
	DeviceType() DeviceType
}

// Driver is implemented by peripherals that can clock a transfer
// themselves. Push is called on every step with the elapsed cycles and
// the contents of SB; when ok is true, in is shifted into SB and the
// transfer completes as if the console had clocked it.
type Driver interface {
	Push(cycles int, out byte) (in byte, ok bool)
}

// Persister is implemented by peripherals that keep data between
// sessions. Load is called when the peripheral is attached and Save
// when the session ends.
type Persister interface {
	Load() error
	Save() error
}

// IRPort is the other end of the infrared port.
type IRPort interface {
	// SendIR switches the remote LED on or off.
	SendIR(on bool) error
	// OnIR registers the function called when the remote LED changes.
	OnIR(fn func(on bool))
}

// nullDevice is the Peripheral used when nothing is plugged in, it
// returns 0xFF for every byte.
type nullDevice struct{}

func (nullDevice) ReceiveByte(byte) (byte, bool) { return 0xFF, true }
func (nullDevice) Reset()                        {}
func (nullDevice) DeviceType() DeviceType        { return DeviceNone }
