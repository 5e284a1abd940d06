package accessories

import (
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// Bardigun is the Barcode Taisen Bardigun reader. It has no handshake,
// a swiped card is streamed as is once the reader settles, and the
// reader answers 0x00 while idle.
type Bardigun struct {
	scanner
	log log.Logger
}

// NewBardigun returns an idle Bardigun reader.
func NewBardigun(l log.Logger) *Bardigun {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &Bardigun{log: l}
}

// DeviceType implements the serial.Peripheral interface.
func (b *Bardigun) DeviceType() serial.DeviceType { return serial.DeviceBarcodeTaisen }

// Reset implements the serial.Peripheral interface.
func (b *Bardigun) Reset() {
	b.scanner.reset()
}

// ReceiveByte implements the serial.Peripheral interface.
func (b *Bardigun) ReceiveByte(byte) (byte, bool) {
	return 0x00, true
}

// Swipe queues barcode data for sending.
func (b *Bardigun) Swipe(data []byte) {
	if len(data) == 0 {
		return
	}
	b.log.Debugf("bardigun: swiped %d bytes", len(data))
	b.scanner.swipe(append([]byte(nil), data...))
}

// SwipeFile swipes the barcode data stored in a file.
func (b *Bardigun) SwipeFile(filename string) error {
	data, err := loadBarcode(filename)
	if err != nil {
		return err
	}
	b.Swipe(data)
	return nil
}

// Busy reports whether a swiped card is still being sent.
func (b *Bardigun) Busy() bool {
	return b.scanner.busy()
}

// Push implements the serial.Driver interface.
func (b *Bardigun) Push(cycles int, _ byte) (byte, bool) {
	return b.scanner.push(cycles)
}
