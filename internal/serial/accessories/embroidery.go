package accessories

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"

	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Embroidery machine commands.
const (
	EmbroideryStatus = 0x00
	EmbroideryBegin  = 0x01
	EmbroideryStitch = 0x02
	EmbroideryThread = 0x03
	EmbroideryEnd    = 0x04
)

const (
	embroideryEscape = 0x1B
	embroideryAck    = 0x06
	embroideryNAK    = 0x15

	// CanvasSize is the width and height of the embroidery hoop, in
	// stitch units.
	CanvasSize = 512
)

// threads are the colours of the machine's thread spools. Index 0 marks
// an empty canvas cell.
var threads = [8]color.RGBA{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
	{0xD0, 0x20, 0x20, 0xFF},
	{0x20, 0x80, 0x30, 0xFF},
	{0x20, 0x40, 0xC0, 0xFF},
	{0xE0, 0xC0, 0x20, 0xFF},
	{0x90, 0x30, 0xA0, 0xFF},
	{0xF0, 0x80, 0x20, 0xFF},
}

type embroideryState uint8

const (
	embroideryAwaitEscape embroideryState = iota
	embroideryCommand
	embroideryLength
	embroideryPayload
	embroideryChecksum
)

// point is a position on the canvas.
type point struct{ x, y int }

// segment is a run of stitches sewn with one thread.
type segment struct {
	thread uint8
	points []point
}

// Embroidery is an embroidery machine driven over the link port.
// Packets take the form
//
//	1B cmd len payload... sum
//
// where sum is the low byte of cmd+len+payload. Stitch packets carry
// pairs of signed offsets, which are sewn into a persistent canvas.
type Embroidery struct {
	state   embroideryState
	command byte
	length  int
	payload []byte
	pending []byte // bytes queued for the console
	status  uint8

	canvas   []uint8
	pos      point
	thread   uint8
	stitches []segment
	designs  int
	menu     bool
	button   bool

	file string
	log  log.Logger
}

// NewEmbroidery returns a machine whose canvas is persisted to path. An
// empty path keeps the canvas in memory.
func NewEmbroidery(path string, l log.Logger) *Embroidery {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &Embroidery{
		canvas: make([]uint8, CanvasSize*CanvasSize),
		pos:    point{CanvasSize / 2, CanvasSize / 2},
		thread: 1,
		file:   path,
		log:    l,
	}
}

// DeviceType implements the serial.Peripheral interface.
func (e *Embroidery) DeviceType() serial.DeviceType { return serial.DeviceEmbroidery }

// Reset implements the serial.Peripheral interface. The canvas is kept.
func (e *Embroidery) Reset() {
	e.resetPacket()
	e.pending = e.pending[:0]
	e.status = 0
	e.menu, e.button = false, false
}

func (e *Embroidery) resetPacket() {
	e.state = embroideryAwaitEscape
	e.command, e.length = 0, 0
	e.payload = e.payload[:0]
}

// ReceiveByte implements the serial.Peripheral interface.
func (e *Embroidery) ReceiveByte(b byte) (byte, bool) {
	reply := byte(0x00)
	if len(e.pending) > 0 {
		reply = e.pending[0]
		e.pending = e.pending[1:]
	}

	switch e.state {
	case embroideryAwaitEscape:
		if b == embroideryEscape {
			e.state = embroideryCommand
		}
	case embroideryCommand:
		if b > EmbroideryEnd {
			e.log.Debugf("embroidery: unknown command %02X", b)
			e.resetPacket()
			break
		}
		e.command = b
		e.state = embroideryLength
	case embroideryLength:
		e.length = int(b)
		e.state = embroideryPayload
		if e.length == 0 {
			e.state = embroideryChecksum
		}
	case embroideryPayload:
		e.payload = append(e.payload, b)
		if len(e.payload) == e.length {
			e.state = embroideryChecksum
		}
	case embroideryChecksum:
		sum := e.command + byte(e.length)
		for _, v := range e.payload {
			sum += v
		}
		if sum != b {
			e.log.Debugf("embroidery: checksum mismatch, expected %02X got %02X", sum, b)
			e.status |= 0x01
			e.pending = append(e.pending, embroideryNAK)
		} else {
			e.status &^= 0x01
			e.pending = append(e.pending, embroideryAck)
			e.runCommand()
		}
		e.resetPacket()
	}

	return reply, true
}

func (e *Embroidery) runCommand() {
	switch e.command {
	case EmbroideryStatus:
		status := e.status
		if e.menu {
			status |= 0x80
		}
		e.pending = append(e.pending, status)
	case EmbroideryBegin:
		e.pos = point{CanvasSize / 2, CanvasSize / 2}
		e.stitches = append(e.stitches, segment{thread: e.thread, points: []point{e.pos}})
	case EmbroideryStitch:
		if e.menu {
			e.log.Debugf("embroidery: discarding %d stitches in menu", len(e.payload)/2)
			return
		}
		if len(e.payload)&1 != 0 {
			e.log.Debugf("embroidery: odd stitch payload")
			e.status |= 0x02
			return
		}
		for i := 0; i < len(e.payload); i += 2 {
			e.stitch(int(int8(e.payload[i])), int(int8(e.payload[i+1])))
		}
	case EmbroideryThread:
		if len(e.payload) != 1 || e.payload[0] == 0 || int(e.payload[0]) >= len(threads) {
			e.log.Debugf("embroidery: invalid thread %v", e.payload)
			e.status |= 0x02
			return
		}
		e.thread = e.payload[0]
		e.stitches = append(e.stitches, segment{thread: e.thread, points: []point{e.pos}})
	case EmbroideryEnd:
		e.designs++
		e.log.Infof("embroidery: finished design %d", e.designs)
	}
}

// stitch sews from the needle position by the given offset, clamped to
// the hoop.
func (e *Embroidery) stitch(dx, dy int) {
	next := point{
		x: utils.Clamp(0, e.pos.x+dx, CanvasSize-1),
		y: utils.Clamp(0, e.pos.y+dy, CanvasSize-1),
	}
	e.line(e.pos, next)
	if len(e.stitches) == 0 || e.stitches[len(e.stitches)-1].thread != e.thread {
		e.stitches = append(e.stitches, segment{thread: e.thread, points: []point{e.pos}})
	}
	last := &e.stitches[len(e.stitches)-1]
	last.points = append(last.points, next)
	e.pos = next
}

// line rasterizes a segment, stepping one unit along the dominant axis
// each iteration.
func (e *Embroidery) line(from, to point) {
	dx, dy := utils.Abs(to.x-from.x), -utils.Abs(to.y-from.y)
	sx, sy := 1, 1
	if from.x > to.x {
		sx = -1
	}
	if from.y > to.y {
		sy = -1
	}

	err := dx + dy
	for x, y := from.x, from.y; ; {
		e.canvas[y*CanvasSize+x] = e.thread
		if x == to.x && y == to.y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// SetMenuButton sets the state of the machine's menu button. Each press
// toggles the menu overlay.
func (e *Embroidery) SetMenuButton(pressed bool) {
	if pressed && !e.button {
		e.menu = !e.menu
	}
	e.button = pressed
}

// InMenu reports whether the menu overlay is shown.
func (e *Embroidery) InMenu() bool {
	return e.menu
}

// Position returns the needle position.
func (e *Embroidery) Position() (x, y int) {
	return e.pos.x, e.pos.y
}

// Designs returns the number of finished designs.
func (e *Embroidery) Designs() int {
	return e.designs
}

// Stitched reports the thread sewn at x, y, 0 when the cell is empty.
func (e *Embroidery) Stitched(x, y int) uint8 {
	if x < 0 || y < 0 || x >= CanvasSize || y >= CanvasSize {
		return 0
	}
	return e.canvas[y*CanvasSize+x]
}

// Image returns the canvas. While the menu is shown, the canvas is
// dimmed behind the overlay.
func (e *Embroidery) Image() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for i, thread := range e.canvas {
		c := threads[thread]
		if e.menu {
			c.R, c.G, c.B = c.R/2, c.G/2, c.B/2
		}
		img.Pix[i*4] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	return img
}

// SaveImage encodes the canvas as a BMP.
func (e *Embroidery) SaveImage(w io.Writer) error {
	return SaveImage(w, e.Image())
}

// SavePlot renders the stitch path as a vector plot, the format chosen
// by the file extension.
func (e *Embroidery) SavePlot(filename string) error {
	p := plot.New()
	p.Title.Text = "Embroidery"
	p.X.Min, p.X.Max = 0, CanvasSize
	p.Y.Min, p.Y.Max = 0, CanvasSize

	for _, seg := range e.stitches {
		if len(seg.points) < 2 {
			continue
		}
		xys := make(plotter.XYs, len(seg.points))
		for i, pt := range seg.points {
			xys[i].X = float64(pt.x)
			xys[i].Y = float64(CanvasSize - 1 - pt.y)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("embroidery: %w", err)
		}
		line.Color = threads[seg.thread]
		p.Add(line)
	}

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

// Load implements the serial.Persister interface. A missing file leaves
// the canvas blank.
func (e *Embroidery) Load() error {
	if e.file == "" {
		return nil
	}
	raw, err := utils.LoadFile(e.file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("embroidery: loading canvas: %w", err)
	}
	if len(raw) != len(e.canvas) {
		return fmt.Errorf("embroidery: canvas is %d bytes, expected %d", len(raw), len(e.canvas))
	}
	for i, thread := range raw {
		if int(thread) >= len(threads) {
			thread = 0
		}
		e.canvas[i] = thread
	}
	return nil
}

// Save implements the serial.Persister interface.
func (e *Embroidery) Save() error {
	if e.file == "" {
		return nil
	}
	return utils.WriteFile(e.file, e.canvas)
}
