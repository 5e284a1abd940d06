package ppu

import (
	"fmt"

	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

const (
	// ScreenWidth is the width of the screen in pixels.
	ScreenWidth = 160
	// ScreenHeight is the height of the screen in pixels.
	ScreenHeight = 144
)

const (
	// LineCycles is the number of cycles taken to draw a single line,
	// including horizontal blanking.
	LineCycles = 456
	// FrameCycles is the number of cycles in a full frame of 154 lines.
	FrameCycles = LineCycles * 154

	// mode edges within a line
	oamCycles   = 80
	hblankStart = 252

	// start of ModeVBlank within a frame
	visibleCycles = LineCycles * ScreenHeight
)

// Mode is the mode reported in the low 2 bits of the STAT register.
type Mode uint8

const (
	// ModeHBlank (Mode 0) - Horizontal Blanking Period
	//
	//	- Allows CPU access to VRAM/OAM
	//	- STAT interrupt available if enabled via STAT.3
	ModeHBlank Mode = iota

	// ModeVBlank (Mode 1) - Vertical Blanking Period
	//
	//	Duration 4560 dots (10 lines)
	//	- VBlank interrupt raised via IF.0 on entry
	//	- STAT interrupt available if enabled via STAT.4
	//	- Active during LY 144-153
	ModeVBlank

	// ModeOAM (Mode 2) - OAM Scan
	//
	//	Duration: 80 dots (fixed)
	//	- STAT interrupt available if enabled via STAT.5
	ModeOAM

	// ModeVRAM (Mode 3) - Pixel Transfer
	//
	//	Duration: 172 dots
	//	- No STAT interrupts available
	ModeVRAM
)

var modeNames = [4]string{"HBlank", "VBlank", "OAM", "VRAM"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Config holds the construction time settings of the PPU.
type Config struct {
	// Layout is the initial framebuffer layout.
	Layout Layout
	// Palette is the shade set used to colour DMG output.
	Palette Palette
	// Presenter receives a copy of every completed frame. May be nil.
	Presenter Presenter
	// Logger overrides the logger of the bus.
	Logger log.Logger
}

// PPU implements the Game Boy's (P)ixel (P)rocessing (U)nit, as a
// scanline renderer driven by elapsed CPU cycles.
//
// References:
//   - [Pan Docs](https://gbdev.io/pandocs/Graphics.html)
//   - [Hacktix GBEDG](https://hacktix.github.io/GBEDG/ppu/)
type PPU struct {
	// LCDC register
	enabled    bool  // LCDC.7 - LCD Enable
	bgEnabled  bool  // LCDC.0 - BG Display (CGB: BG master priority)
	winEnabled bool  // LCDC.5 - Window Enable
	objEnabled bool  // LCDC.1 - OBJ Enable
	bgTileMap  uint8 // LCDC.3 - BG Tile Map Select (0=9800-9BFF, 1=9C00-9FFF)
	winTileMap uint8 // LCDC.6 - Window Tile Map Select
	objSize    uint8 // LCDC.2 - OBJ Size (8 or 16)
	tileData   uint8 // LCDC.4 - BG/Win Tile Data Select (0=8800-97FF, 1=8000-8FFF)

	// Timing state
	mode        Mode
	clock       int // cycles into the current frame
	vblankClock int // cycles into the current VBlank line
	ly, lyc     uint8
	status      uint8 // STAT bits 2-6

	// Scroll registers
	scy, scx uint8
	wy, wx   uint8

	wyLatched uint8 // WY as latched on the first window line of the frame
	wyLock    bool

	// CGB palettes, raw 15 bit colours and derived ARGB
	bgRaw         [8][4]uint16
	objRaw        [8][4]uint16
	bgColour      [8][4]uint32
	objColour     [8][4]uint32
	bcpsIndex     uint8
	ocpsIndex     uint8
	bcpsIncrement bool
	ocpsIncrement bool

	// DMG palettes
	palette Palette
	shades  [4]uint32
	dmgBG   [4]uint32
	dmgOBJ  [2][4]uint32

	// lookup tables
	signedTileLUT   [256]uint8
	unsignedTileLUT [256]uint8
	flipLUT8        [8]uint8
	flipLUT16       [16]uint8

	sprites     [40]sprite
	spriteDirty [40]bool
	renderList  [10]uint8
	renderCount int

	line scanline

	// output
	layout        Layout
	pendingLayout Layout
	resizePending bool
	frame         []uint32
	blankFrame    bool
	frames        uint64
	hashBuf       []byte

	cgb       bool
	presenter Presenter
	b         *io.Bus
	log       log.Logger
}

// New creates and initializes a PPU instance ready to be stepped. The
// PPU reserves its registers on the bus, so only one PPU may be attached
// to a bus.
func New(b *io.Bus, cfg Config) *PPU {
	p := &PPU{
		b:         b,
		cgb:       b.IsGBC(),
		presenter: cfg.Presenter,
		log:       cfg.Logger,
		objSize:   8,
	}
	if p.log == nil {
		p.log = b.Log()
	}

	p.buildLUTs()
	p.layout = cfg.Layout
	p.allocateFrame()

	for pal := 0; pal < 8; pal++ {
		for c := 0; c < 4; c++ {
			p.bgRaw[pal][c] = 0x7FFF
			p.objRaw[pal][c] = 0x7FFF
		}
		p.updateColours(pal)
	}
	p.SetPalette(cfg.Palette)
	for i := range p.spriteDirty {
		p.spriteDirty[i] = true
	}

	b.ReserveAddress(types.LCDC, func(v byte) byte {
		p.writeLCDC(v)
		return v
	})
	b.ReserveAddress(types.STAT, func(v byte) byte {
		// only the interrupt enable bits are writable
		p.status = p.status&types.Bit2 | v&0b0111_1000
		return p.stat()
	})
	b.ReserveLazyReader(types.STAT, p.stat)
	b.ReserveAddress(types.SCY, func(v byte) byte {
		p.scy = v
		return v
	})
	b.ReserveAddress(types.SCX, func(v byte) byte {
		p.scx = v
		return v
	})
	b.ReserveAddress(types.LY, func(v byte) byte {
		// read only
		return p.ly
	})
	b.ReserveAddress(types.LYC, func(v byte) byte {
		p.lyc = v
		// only the coincidence flag follows a LYC write, the interrupt
		// is raised when the line changes
		if p.enabled && p.ly == p.lyc {
			p.status |= types.Bit2
		} else {
			p.status &^= types.Bit2
		}
		p.syncStat()
		return v
	})
	b.ReserveAddress(types.BGP, func(v byte) byte {
		p.dmgBG = p.remap(v)
		return v
	})
	b.ReserveAddress(types.OBP0, func(v byte) byte {
		p.dmgOBJ[0] = p.remap(v)
		return v
	})
	b.ReserveAddress(types.OBP1, func(v byte) byte {
		p.dmgOBJ[1] = p.remap(v)
		return v
	})
	b.ReserveAddress(types.WY, func(v byte) byte {
		p.wy = v
		return v
	})
	b.ReserveAddress(types.WX, func(v byte) byte {
		p.wx = v
		return v
	})

	// setup CGB only registers
	if p.cgb {
		b.ReserveAddress(types.BCPS, func(v byte) byte {
			p.bcpsIndex = v & 0x3F
			p.bcpsIncrement = v&types.Bit7 > 0
			return v | types.Bit6
		})
		b.ReserveAddress(types.BCPD, func(v byte) byte {
			p.bcpsIndex = p.writePalette(&p.bgRaw, p.bcpsIndex, p.bcpsIncrement, v)
			p.b.Set(types.BCPS, p.b.Get(types.BCPS)&0xC0|p.bcpsIndex)
			return v
		})
		b.ReserveLazyReader(types.BCPD, func() byte {
			return readPalette(&p.bgRaw, p.bcpsIndex)
		})
		b.ReserveAddress(types.OCPS, func(v byte) byte {
			p.ocpsIndex = v & 0x3F
			p.ocpsIncrement = v&types.Bit7 > 0
			return v | types.Bit6
		})
		b.ReserveAddress(types.OCPD, func(v byte) byte {
			p.ocpsIndex = p.writePalette(&p.objRaw, p.ocpsIndex, p.ocpsIncrement, v)
			p.b.Set(types.OCPS, p.b.Get(types.OCPS)&0xC0|p.ocpsIndex)
			return v
		})
		b.ReserveLazyReader(types.OCPD, func() byte {
			return readPalette(&p.objRaw, p.ocpsIndex)
		})
	}

	b.WatchOAM(func(index uint8) {
		p.spriteDirty[index] = true
	})

	p.syncStat()
	return p
}

func (p *PPU) writeLCDC(v byte) {
	// is the screen turning off?
	if p.enabled && v&types.Bit7 == 0 {
		// the screen should only be turned off in VBlank
		if p.mode != ModeVBlank {
			p.log.Warnf("ppu: LCD disabled outside of VBlank (mode %d, line %d)", p.mode, p.ly)
		}
		p.enabled = false

		// when the LCD is off, LY reads 0, and STAT mode reads 0 (HBlank),
		// LYC isn't compared until the LCD is enabled again
		p.ly, p.mode = 0, ModeHBlank
		p.clock, p.vblankClock = 0, 0
		p.b.Set(types.LY, 0)
		p.syncStat()

		if p.resizePending {
			p.applyResize()
		}
	} else if !p.enabled && v&types.Bit7 != 0 {
		p.enabled = true
		p.clock, p.vblankClock = 0, 0
		p.mode = ModeOAM

		// the LCD doesn't receive the first frame after being turned on
		p.blankFrame = true
		p.compareLine(0)
	}

	p.winTileMap = v >> 6 & 1
	p.winEnabled = v&types.Bit5 > 0
	p.tileData = v >> 4 & 1
	p.bgTileMap = v >> 3 & 1
	p.objSize = 8 + (v & types.Bit2 << 1)
	p.objEnabled = v&types.Bit1 > 0
	p.bgEnabled = v&types.Bit0 > 0
}

// Step advances the PPU by the given number of cycles. A single call may
// cross any number of mode transitions, each of which is handled in
// order. A cycle count of zero is treated as one.
func (p *PPU) Step(cycles int) {
	cycles = utils.ZeroAdjust(max(cycles, 0))
	if !p.enabled {
		return
	}

	for cycles > 0 {
		edge := p.cyclesToEdge()
		if edge > cycles {
			p.advance(cycles)
			return
		}
		p.advance(edge)
		cycles -= edge
		p.transition()
	}
}

// cyclesToEdge returns the number of cycles until the next mode or
// line transition.
func (p *PPU) cyclesToEdge() int {
	if p.mode == ModeVBlank {
		return LineCycles - p.vblankClock
	}
	switch lineClock := p.clock % LineCycles; {
	case lineClock < oamCycles:
		return oamCycles - lineClock
	case lineClock < hblankStart:
		return hblankStart - lineClock
	default:
		return LineCycles - lineClock
	}
}

func (p *PPU) advance(cycles int) {
	p.clock += cycles
	if p.mode == ModeVBlank {
		p.vblankClock += cycles
	}
}

// transition handles the edge the clock has just reached.
func (p *PPU) transition() {
	if p.mode == ModeVBlank {
		p.vblankClock = 0
		if p.clock >= FrameCycles {
			// LY already reads 0 from the start of line 153
			p.clock, p.ly = 0, 0
			p.b.Set(types.LY, 0)
			p.enterOAM()
			return
		}

		p.ly++
		p.b.Set(types.LY, p.ly)
		p.compareLine(p.ly)
		if p.ly == 153 {
			// line 153 is only reported briefly before LY resets
			p.ly = 0
			p.b.Set(types.LY, 0)
			p.compareLine(0)
		}
		return
	}

	switch p.clock % LineCycles {
	case oamCycles:
		p.setMode(ModeVRAM)
	case hblankStart:
		p.enterHBlank()
	case 0:
		if p.clock == visibleCycles {
			p.enterVBlank()
			return
		}
		p.ly++
		p.b.Set(types.LY, p.ly)
		p.compareLine(p.ly)
		p.enterOAM()
	}
}

func (p *PPU) enterOAM() {
	p.setMode(ModeOAM)
	if p.status&types.Bit5 != 0 {
		p.b.RaiseInterrupt(io.LCDINT)
	}
}

func (p *PPU) enterHBlank() {
	p.setMode(ModeHBlank)

	p.b.HBlankDMA()
	p.refreshSprites()
	p.buildRenderList()
	p.renderScanline()

	if p.status&types.Bit3 != 0 {
		p.b.RaiseInterrupt(io.LCDINT)
	}
}

func (p *PPU) enterVBlank() {
	p.ly++
	p.b.Set(types.LY, p.ly)
	p.compareLine(p.ly)

	p.setMode(ModeVBlank)
	p.vblankClock = 0

	p.b.RaiseInterrupt(io.VBlankINT)
	if p.status&types.Bit4 != 0 {
		p.b.RaiseInterrupt(io.LCDINT)
	}

	if p.presenter != nil {
		p.presenter.Present(p.Framebuffer())
	}
	if p.resizePending {
		p.applyResize()
	}

	p.wyLock = false
	p.blankFrame = false
	p.frames++
}

// compareLine compares line against LYC, updating the coincidence flag
// and raising the LYC STAT interrupt on a match.
func (p *PPU) compareLine(line uint8) {
	if line == p.lyc {
		p.status |= types.Bit2
		if p.status&types.Bit6 != 0 {
			p.b.RaiseInterrupt(io.LCDINT)
		}
	} else {
		p.status &^= types.Bit2
	}
	p.syncStat()
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	p.syncStat()
}

func (p *PPU) stat() byte {
	return types.Bit7 | p.status | uint8(p.mode)
}

// syncStat keeps the STAT register on the bus in line with the
// internal mode and coincidence flag.
func (p *PPU) syncStat() {
	p.b.Set(types.STAT, p.stat())
}

// Mode returns the current mode of the PPU.
func (p *PPU) Mode() Mode {
	return p.mode
}

// LY returns the current line.
func (p *PPU) LY() uint8 {
	return p.ly
}

// Enabled reports whether the LCD is switched on.
func (p *PPU) Enabled() bool {
	return p.enabled
}

// Frames returns the number of frames completed since power on.
func (p *PPU) Frames() uint64 {
	return p.frames
}
