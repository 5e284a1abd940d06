package ppu

import (
	"encoding/binary"
	"image"

	"github.com/cespare/xxhash"
	"golang.org/x/image/draw"
)

// Layout describes how the 160x144 image is placed in the framebuffer.
type Layout uint8

const (
	// LayoutNative is a 160x144 framebuffer.
	LayoutNative Layout = iota
	// LayoutLetterbox is a 240x160 framebuffer with the image at (40,8).
	LayoutLetterbox
	// LayoutStretch is a 240x160 framebuffer with the image stretched
	// horizontally by 3/2 at y=8. Every pair of pixels becomes 3, the
	// middle one blending its neighbours.
	LayoutStretch
)

// Size returns the dimensions of the framebuffer for the layout.
func (l Layout) Size() (width, height int) {
	switch l {
	case LayoutLetterbox, LayoutStretch:
		return 240, 160
	}
	return ScreenWidth, ScreenHeight
}

func (l Layout) String() string {
	switch l {
	case LayoutLetterbox:
		return "letterbox"
	case LayoutStretch:
		return "stretch"
	}
	return "native"
}

// Frame is a completed framebuffer of 0xAARRGGBB pixels.
type Frame struct {
	Width, Height int
	Pix           []uint32
}

// At returns the pixel at x, y.
func (f Frame) At(x, y int) uint32 {
	return f.Pix[y*f.Width+x]
}

// Image converts the frame into an image.RGBA.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, c := range f.Pix {
		img.Pix[i*4] = uint8(c >> 16)
		img.Pix[i*4+1] = uint8(c >> 8)
		img.Pix[i*4+2] = uint8(c)
		img.Pix[i*4+3] = uint8(c >> 24)
	}
	return img
}

// Scale returns the frame as an image enlarged n times with nearest
// neighbour sampling. n below 1 is treated as 1.
func (f Frame) Scale(n int) *image.RGBA {
	src := f.Image()
	if n <= 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, f.Width*n, f.Height*n))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Hash returns the xxhash of the frame's pixels.
func (f Frame) Hash() uint64 {
	return hashPixels(f.Pix, nil)
}

// Presenter receives completed frames. The frame is a copy and may be
// retained.
type Presenter interface {
	Present(Frame)
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(Frame)

func (fn PresenterFunc) Present(f Frame) {
	fn(f)
}

// SetLayout requests a new framebuffer layout. The change is applied at
// the start of the next VBlank, or immediately while the LCD is off.
func (p *PPU) SetLayout(l Layout) {
	p.pendingLayout = l
	p.resizePending = true
	if !p.enabled {
		p.applyResize()
	}
}

// Layout returns the active layout.
func (p *PPU) Layout() Layout {
	return p.layout
}

func (p *PPU) applyResize() {
	p.layout = p.pendingLayout
	p.resizePending = false
	p.allocateFrame()
	p.log.Debugf("ppu: framebuffer layout set to %s", p.layout)
}

func (p *PPU) allocateFrame() {
	w, h := p.layout.Size()
	p.frame = make([]uint32, w*h)
	for i := range p.frame {
		p.frame[i] = 0xFF000000
	}
}

// output places the visible part of the rendered line into the
// framebuffer according to the layout.
func (p *PPU) output(ly uint8) {
	src := p.line.colour[:ScreenWidth]
	width, _ := p.layout.Size()

	switch p.layout {
	case LayoutLetterbox:
		copy(p.frame[(int(ly)+8)*width+40:], src)
	case LayoutStretch:
		dst := p.frame[(int(ly)+8)*width:][:width]
		for i := 0; i < ScreenWidth/2; i++ {
			a, b := src[i*2], src[i*2+1]
			dst[i*3] = a
			dst[i*3+1] = blend(a, b)
			dst[i*3+2] = b
		}
	default:
		copy(p.frame[int(ly)*width:], src)
	}
}

// blend returns the per channel average of two ARGB colours, rounded
// down.
func blend(a, b uint32) uint32 {
	return a&b + ((a^b)&0xFEFEFEFE)>>1
}

// Framebuffer returns a copy of the framebuffer.
func (p *PPU) Framebuffer() Frame {
	w, h := p.layout.Size()
	return Frame{
		Width:  w,
		Height: h,
		Pix:    append([]uint32(nil), p.frame...),
	}
}

// FrameHash returns the xxhash of the framebuffer, for comparing frames
// without copying them.
func (p *PPU) FrameHash() uint64 {
	return hashPixels(p.frame, &p.hashBuf)
}

func hashPixels(pix []uint32, scratch *[]byte) uint64 {
	var buf []byte
	if scratch != nil {
		buf = *scratch
	}
	if cap(buf) < len(pix)*4 {
		buf = make([]byte, len(pix)*4)
		if scratch != nil {
			*scratch = buf
		}
	}
	buf = buf[:len(pix)*4]
	for i, c := range pix {
		binary.LittleEndian.PutUint32(buf[i*4:], c)
	}
	return xxhash.Sum64(buf)
}
