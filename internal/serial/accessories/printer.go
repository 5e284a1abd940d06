package accessories

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
	"golang.org/x/image/bmp"
)

// PrinterState is the position of the printer in the packet sequence.
type PrinterState uint8

const (
	AwaitingPacket PrinterState = iota
	ReceiveCommand
	ReceiveCompression
	ReceiveLength
	ReceiveData
	ReceiveChecksum
	AcknowledgePacket
)

func (s PrinterState) String() string {
	switch s {
	case AwaitingPacket:
		return "AwaitingPacket"
	case ReceiveCommand:
		return "ReceiveCommand"
	case ReceiveCompression:
		return "ReceiveCompression"
	case ReceiveLength:
		return "ReceiveLength"
	case ReceiveData:
		return "ReceiveData"
	case ReceiveChecksum:
		return "ReceiveChecksum"
	case AcknowledgePacket:
		return "AcknowledgePacket"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Command is a command that can be sent to the printer
type Command = uint8

const (
	// CommandInit is the command to initialize the printer
	CommandInit Command = 0x01
	// CommandPrint is the command to start printing
	CommandPrint Command = 0x02
	// CommandData is the command to send data to the printer
	CommandData Command = 0x04
	// CommandStatus is the command to get the status of the printer
	CommandStatus Command = 0x0F
)

// Printer status bits.
const (
	StatusChecksumError = 1 << iota
	StatusBusy
	StatusReady
	StatusUnprocessed
	StatusPacketError
)

const (
	printerMagic1 = 0x88
	printerMagic2 = 0x33
	printerAlive  = 0x81

	maxPacketData = 0x280
	stripWidth    = 160
	stripHeight   = 16
	stripPixels   = stripWidth * stripHeight // 2560
	stripBytes    = 40 * 16

	// printPolls is the number of status polls a print takes.
	printPolls = 4
)

// shades is the greyscale ramp of the thermal paper.
var shades = [4]uint8{0xFF, 0xAA, 0x55, 0x00}

// Printer is a Game Boy Printer. Image data arrives in DATA packets as
// strips of 160x16 pixels, which are rasterized into an image by the
// next PRINT packet.
type Printer struct {
	state    PrinterState
	previous byte

	command     Command
	compressed  bool
	length      uint16
	lengthBytes uint8
	data        []byte
	checksum    uint16 // running sum of the packet body
	received    uint16 // checksum sent by the console
	sumBytes    uint8
	ackBytes    uint8
	status      uint8
	polls       int

	pending []byte  // tile data not yet forming a whole strip
	strips  []uint8 // 2 bit colour indexes, stripPixels per strip

	jobs []image.Image
	log  log.Logger
}

// NewPrinter returns a printer with an empty buffer.
func NewPrinter(l log.Logger) *Printer {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &Printer{log: l, data: make([]byte, 0, maxPacketData)}
}

// DeviceType implements the serial.Peripheral interface.
func (p *Printer) DeviceType() serial.DeviceType { return serial.DevicePrinter }

// Reset implements the serial.Peripheral interface.
func (p *Printer) Reset() {
	p.resetPacket()
	p.status = 0
	p.polls = 0
	p.pending = p.pending[:0]
	p.strips = p.strips[:0]
}

// State returns the position of the printer in the packet sequence.
func (p *Printer) State() PrinterState {
	return p.state
}

// Status returns the printer status byte.
func (p *Printer) Status() uint8 {
	return p.status
}

// Checksum returns the running checksum of the current packet.
func (p *Printer) Checksum() uint16 {
	return p.checksum
}

// Strips returns the number of buffered strips.
func (p *Printer) Strips() int {
	return len(p.strips) / stripPixels
}

func (p *Printer) resetPacket() {
	p.state = AwaitingPacket
	p.command = 0
	p.compressed = false
	p.length, p.lengthBytes = 0, 0
	p.data = p.data[:0]
	p.checksum, p.received, p.sumBytes = 0, 0, 0
	p.ackBytes = 0
}

// ReceiveByte implements the serial.Peripheral interface.
func (p *Printer) ReceiveByte(b byte) (byte, bool) {
	prev := p.previous
	p.previous = b

	// the magic bytes start a new packet outside of the data and checksum
	if prev == printerMagic1 && b == printerMagic2 && p.state != ReceiveData && p.state != ReceiveChecksum {
		p.resetPacket()
		p.state = ReceiveCommand
		return 0x00, true
	}

	switch p.state {
	case AwaitingPacket:
		// waiting for the magic bytes
	case ReceiveCommand:
		switch b {
		case CommandInit, CommandPrint, CommandData, CommandStatus:
			p.command = b
			p.checksum += uint16(b)
			p.state = ReceiveCompression
		default:
			p.log.Debugf("printer: unknown command %02X", b)
			p.resetPacket()
		}
	case ReceiveCompression:
		if b > 1 {
			p.log.Debugf("printer: invalid compression flag %02X", b)
			p.resetPacket()
			break
		}
		p.compressed = b == 1
		p.checksum += uint16(b)
		p.state = ReceiveLength
	case ReceiveLength:
		p.checksum += uint16(b)
		p.length |= uint16(b) << (8 * p.lengthBytes)
		if p.lengthBytes++; p.lengthBytes < 2 {
			break
		}
		switch {
		case p.length > maxPacketData:
			p.log.Debugf("printer: invalid packet length %d", p.length)
			p.resetPacket()
		case p.length == 0:
			p.state = ReceiveChecksum
		default:
			p.state = ReceiveData
		}
	case ReceiveData:
		p.data = append(p.data, b)
		p.checksum += uint16(b)
		if uint16(len(p.data)) == p.length {
			p.state = ReceiveChecksum
		}
	case ReceiveChecksum:
		p.received |= uint16(b) << (8 * p.sumBytes)
		if p.sumBytes++; p.sumBytes == 2 {
			p.state = AcknowledgePacket
		}
	case AcknowledgePacket:
		if p.ackBytes++; p.ackBytes == 1 {
			return printerAlive, true
		}

		if p.received != p.checksum {
			p.log.Debugf("printer: checksum mismatch, expected %04X got %04X", p.checksum, p.received)
			p.status |= StatusChecksumError
		} else {
			p.status &^= StatusChecksumError
			p.runCommand()
		}
		status := p.status
		p.resetPacket()
		return status, true
	}

	return 0x00, true
}

// runCommand runs the command of the acknowledged packet.
func (p *Printer) runCommand() {
	switch p.command {
	case CommandInit:
		p.status = 0
		p.polls = 0
		p.pending = p.pending[:0]
		p.strips = p.strips[:0]
	case CommandData:
		if len(p.data) == 0 {
			p.status |= StatusReady
			return
		}
		data := p.data
		if p.compressed {
			var err error
			if data, err = DecompressRLE(data); err != nil {
				p.log.Warnf("printer: %v", err)
				p.status |= StatusPacketError
				return
			}
		}
		p.appendTiles(data)
		p.status |= StatusUnprocessed
	case CommandPrint:
		if len(p.data) != 4 {
			p.log.Debugf("printer: print packet with %d bytes", len(p.data))
			p.status |= StatusPacketError
			return
		}
		if img := p.rasterize(p.data[2], p.data[3]); img != nil {
			p.jobs = append(p.jobs, img)
			p.log.Infof("printer: printed %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
		}
		p.pending = p.pending[:0]
		p.strips = p.strips[:0]
		p.status = StatusBusy | StatusReady
		p.polls = printPolls
	case CommandStatus:
		if p.polls > 0 {
			if p.polls--; p.polls == 0 {
				p.status = StatusReady
			}
		}
	}
}

// appendTiles decodes tile data into strips. A strip is 2 rows of 20
// tiles, each tile 8 rows of 2 bitplanes.
func (p *Printer) appendTiles(data []byte) {
	p.pending = append(p.pending, data...)
	for len(p.pending) >= stripBytes {
		strip := make([]uint8, stripPixels)
		for tile := 0; tile < 40; tile++ {
			tx, ty := tile%20, tile/20
			for y := 0; y < 8; y++ {
				lo := p.pending[tile*16+y*2]
				hi := p.pending[tile*16+y*2+1]
				for x := 0; x < 8; x++ {
					bit := 7 - x
					colour := (lo>>bit)&1 | ((hi>>bit)&1)<<1
					strip[(ty*8+y)*stripWidth+tx*8+x] = colour
				}
			}
		}
		p.strips = append(p.strips, strip...)
		p.pending = p.pending[stripBytes:]
	}
}

// rasterize converts the buffered strips to an image, remapping colours
// through the palette and scaling the shades by the exposure.
func (p *Printer) rasterize(palette, exposure byte) image.Image {
	if len(p.strips) == 0 {
		return nil
	}
	if palette == 0 {
		palette = 0xE4
	}
	brightness := 200 - int(exposure&0x7F)*200/0x7F

	img := image.NewGray(image.Rect(0, 0, stripWidth, len(p.strips)/stripWidth))
	for i, colour := range p.strips {
		shade := int(shades[(palette>>(colour<<1))&3])
		img.Pix[i] = uint8(utils.Clamp(0, shade*brightness/100, 255))
	}
	return img
}

// HasPrintJob reports whether a printed image is waiting.
func (p *Printer) HasPrintJob() bool {
	return len(p.jobs) > 0
}

// PrintJob returns the oldest printed image.
func (p *Printer) PrintJob() (image.Image, bool) {
	if len(p.jobs) == 0 {
		return nil, false
	}
	img := p.jobs[0]
	p.jobs = p.jobs[1:]
	return img, true
}

// JobID identifies a printed image by its contents.
func JobID(img image.Image) uint64 {
	h := xxhash.New()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			h.Write([]byte{g.Y})
		}
	}
	return h.Sum64()
}

// SaveImage encodes img as a BMP.
func SaveImage(w io.Writer, img image.Image) error {
	return bmp.Encode(w, img)
}

// SaveJobs writes every waiting print job to dir, named by its JobID,
// and returns the created files.
func (p *Printer) SaveJobs(dir string) ([]string, error) {
	var files []string
	for {
		img, ok := p.PrintJob()
		if !ok {
			return files, nil
		}
		name := filepath.Join(dir, fmt.Sprintf("print-%016x.bmp", JobID(img)))
		f, err := os.Create(name)
		if err != nil {
			return files, err
		}
		if err := SaveImage(f, img); err != nil {
			f.Close()
			return files, fmt.Errorf("printer: encoding %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return files, err
		}
		files = append(files, name)
	}
}
