package accessories

import (
	"bytes"
	"fmt"

	"github.com/thelolagemann/gbcore/pkg/utils"
)

const (
	// settleCycles is the delay between a swipe and the first byte.
	settleCycles = 70224
	// byteCycles is the time the reader takes to clock out one byte.
	byteCycles = 8 * 512
)

// scanner streams a swiped barcode to the console, one byte per device
// clocked transfer, after the reader has settled.
type scanner struct {
	stream []byte
	pos    int
	settle int
	wait   int
}

func (s *scanner) swipe(stream []byte) {
	s.stream = stream
	s.pos = 0
	s.settle = settleCycles
	s.wait = 0
}

func (s *scanner) reset() {
	s.stream, s.pos, s.settle, s.wait = nil, 0, 0, 0
}

// busy reports whether a barcode is still being sent.
func (s *scanner) busy() bool {
	return s.stream != nil
}

// push advances the scanner and returns the next byte once it is due.
func (s *scanner) push(cycles int) (byte, bool) {
	if s.stream == nil {
		return 0, false
	}
	if s.settle > 0 {
		s.settle -= cycles
		if s.settle > 0 {
			return 0, false
		}
		cycles = -s.settle
		s.settle = 0
	}
	if s.wait -= cycles; s.wait > 0 {
		return 0, false
	}

	b := s.stream[s.pos]
	s.wait = byteCycles
	if s.pos++; s.pos == len(s.stream) {
		s.stream, s.pos = nil, 0
	}
	return b, true
}

// loadBarcode reads a barcode from a file, which may be compressed.
func loadBarcode(filename string) ([]byte, error) {
	raw, err := utils.LoadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("loading barcode: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("loading barcode: %s is empty", filename)
	}
	return raw, nil
}
