package accessories

import (
	"errors"

	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// ErrInvalidBarcode is returned when a barcode contains anything other
// than digits.
var ErrInvalidBarcode = errors.New("accessories: invalid barcode")

var (
	barcodeBoyHandshake = [4]byte{0x10, 0x07, 0x10, 0x07}
	barcodeBoyReplies   = [4]byte{0xFF, 0xFF, 0x10, 0x07}
)

const (
	barcodeStart = 0x02
	barcodeEnd   = 0x03
)

// BarcodeBoy is the Barcode Boy card reader. The console opens a session
// with a 4 byte handshake, after which every swiped card is sent twice,
// framed by 0x02 and 0x03.
type BarcodeBoy struct {
	scanner
	handshake int
	log       log.Logger
}

// NewBarcodeBoy returns a Barcode Boy awaiting the handshake.
func NewBarcodeBoy(l log.Logger) *BarcodeBoy {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &BarcodeBoy{log: l}
}

// DeviceType implements the serial.Peripheral interface.
func (b *BarcodeBoy) DeviceType() serial.DeviceType { return serial.DeviceBarcodeBoy }

// Reset implements the serial.Peripheral interface.
func (b *BarcodeBoy) Reset() {
	b.handshake = 0
	b.scanner.reset()
}

// Ready reports whether the handshake has completed.
func (b *BarcodeBoy) Ready() bool {
	return b.handshake == len(barcodeBoyHandshake)
}

// ReceiveByte implements the serial.Peripheral interface.
func (b *BarcodeBoy) ReceiveByte(v byte) (byte, bool) {
	if b.Ready() {
		return 0xFF, true
	}
	if v != barcodeBoyHandshake[b.handshake] {
		b.log.Debugf("barcode boy: unexpected handshake byte %02X", v)
		b.handshake = 0
		return 0xFF, true
	}
	reply := barcodeBoyReplies[b.handshake]
	b.handshake++
	return reply, true
}

// Swipe queues a card for sending. The barcode must be all digits.
func (b *BarcodeBoy) Swipe(code string) error {
	if len(code) == 0 {
		return ErrInvalidBarcode
	}
	frame := make([]byte, 0, 2*(len(code)+2))
	for i := 0; i < 2; i++ {
		frame = append(frame, barcodeStart)
		for _, c := range []byte(code) {
			if c < '0' || c > '9' {
				return ErrInvalidBarcode
			}
			frame = append(frame, c)
		}
		frame = append(frame, barcodeEnd)
	}
	b.scanner.swipe(frame)
	return nil
}

// SwipeFile swipes the barcode stored in a file.
func (b *BarcodeBoy) SwipeFile(filename string) error {
	code, err := loadBarcode(filename)
	if err != nil {
		return err
	}
	return b.Swipe(string(code))
}

// Push implements the serial.Driver interface. The card is only sent
// once the handshake has completed.
func (b *BarcodeBoy) Push(cycles int, _ byte) (byte, bool) {
	if !b.Ready() {
		return 0, false
	}
	return b.scanner.push(cycles)
}
