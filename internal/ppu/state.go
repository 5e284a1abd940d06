package ppu

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

var _ types.Stater = (*PPU)(nil)

// Save implements the types.Stater interface.
//
// The values are saved in the following order:
//   - LCDC (uint8)
//   - mode (uint8)
//   - clock, vblankClock (uint32)
//   - ly, lyc, status (uint8)
//   - scy, scx, wy, wx, wyLatched (uint8)
//   - wyLock (bool)
//   - BG and OBJ raw colours ([8][4]uint16 each)
//   - bcpsIndex (uint8), bcpsIncrement (bool)
//   - ocpsIndex (uint8), ocpsIncrement (bool)
//   - palette (uint8)
//   - layout (uint8)
//   - blankFrame (bool)
//   - frames (uint32)
func (p *PPU) Save(s *types.State) {
	s.Write8(p.b.Get(types.LCDC))
	s.Write8(uint8(p.mode))
	s.Write32(uint32(p.clock))
	s.Write32(uint32(p.vblankClock))
	s.Write8(p.ly)
	s.Write8(p.lyc)
	s.Write8(p.status)
	s.Write8(p.scy)
	s.Write8(p.scx)
	s.Write8(p.wy)
	s.Write8(p.wx)
	s.Write8(p.wyLatched)
	s.WriteBool(p.wyLock)
	for _, raw := range []*[8][4]uint16{&p.bgRaw, &p.objRaw} {
		for pal := range raw {
			for c := range raw[pal] {
				s.Write16(raw[pal][c])
			}
		}
	}
	s.Write8(p.bcpsIndex)
	s.WriteBool(p.bcpsIncrement)
	s.Write8(p.ocpsIndex)
	s.WriteBool(p.ocpsIncrement)
	s.Write8(uint8(p.palette))
	s.Write8(uint8(p.layout))
	s.WriteBool(p.blankFrame)
	s.Write32(uint32(p.frames))
}

// Load implements the types.Stater interface. A clock past the end of
// the frame restarts the frame, and LY and the mode are always derived
// from the clock rather than trusted.
func (p *PPU) Load(s *types.State) {
	lcdc := s.Read8()
	p.enabled = lcdc&types.Bit7 != 0
	p.winTileMap = lcdc >> 6 & 1
	p.winEnabled = lcdc&types.Bit5 > 0
	p.tileData = lcdc >> 4 & 1
	p.bgTileMap = lcdc >> 3 & 1
	p.objSize = 8 + (lcdc & types.Bit2 << 1)
	p.objEnabled = lcdc&types.Bit1 > 0
	p.bgEnabled = lcdc&types.Bit0 > 0

	p.mode = Mode(s.Read8())
	p.clock = int(s.Read32())
	p.vblankClock = int(s.Read32())
	p.ly = s.Read8()
	p.lyc = s.Read8()
	p.status = s.Read8() & 0b0111_1100
	p.scy = s.Read8()
	p.scx = s.Read8()
	p.wy = s.Read8()
	p.wx = s.Read8()
	p.wyLatched = s.Read8()
	p.wyLock = s.ReadBool()
	for _, raw := range []*[8][4]uint16{&p.bgRaw, &p.objRaw} {
		for pal := range raw {
			for c := range raw[pal] {
				raw[pal][c] = s.Read16() & 0x7FFF
			}
		}
	}
	p.bcpsIndex = s.Read8() & 0x3F
	p.bcpsIncrement = s.ReadBool()
	p.ocpsIndex = s.Read8() & 0x3F
	p.ocpsIncrement = s.ReadBool()
	p.palette = Palette(s.Read8())
	layout := Layout(s.Read8())
	p.blankFrame = s.ReadBool()
	p.frames = uint64(s.Read32())

	if p.clock >= FrameCycles || p.clock < 0 {
		p.clock = 0
	}
	p.ly, p.mode = position(p.clock)
	p.vblankClock = 0
	if p.mode == ModeVBlank {
		p.vblankClock = p.clock % LineCycles
	}
	if !p.enabled {
		p.ly, p.mode, p.clock = 0, ModeHBlank, 0
	}

	// derived state
	for pal := 0; pal < 8; pal++ {
		p.updateColours(pal)
	}
	p.SetPalette(p.palette)
	for i := range p.spriteDirty {
		p.spriteDirty[i] = true
	}
	if layout > LayoutStretch {
		layout = LayoutNative
	}
	if layout != p.layout {
		p.pendingLayout = layout
		p.applyResize()
	}
	p.resizePending = false

	p.b.Set(types.LY, p.ly)
	p.syncStat()
}

// position returns the line and mode the PPU is in clock cycles into a
// frame. LY reads 0 for all of line 153.
func position(clock int) (uint8, Mode) {
	line, lineClock := clock/LineCycles, clock%LineCycles
	switch {
	case line >= 153:
		return 0, ModeVBlank
	case line >= ScreenHeight:
		return uint8(line), ModeVBlank
	case lineClock < oamCycles:
		return uint8(line), ModeOAM
	case lineClock < hblankStart:
		return uint8(line), ModeVRAM
	}
	return uint8(line), ModeHBlank
}
