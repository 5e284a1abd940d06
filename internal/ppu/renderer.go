package ppu

import "github.com/thelolagemann/gbcore/internal/types"

// scanline holds the working buffers of a single line. raw and priority
// record the background so that sprites can be composited against it.
type scanline struct {
	raw      [256]uint8  // BG/window colour number before palette lookup
	priority [256]bool   // CGB BG-to-OBJ priority attribute
	colour   [256]uint32 // resolved ARGB
}

// Layer identifies one of the layers rendered by RenderLayer.
type Layer uint8

const (
	LayerBackground Layer = iota
	LayerWindow
	LayerSprites
)

// renderScanline renders the current line and places it into the
// framebuffer.
func (p *PPU) renderScanline() {
	sl := &p.line

	if p.blankFrame {
		white := p.white()
		for x := range sl.colour {
			sl.colour[x] = white
			sl.raw[x] = 0
			sl.priority[x] = false
		}
		p.output(p.ly)
		return
	}

	p.renderBackground(p.ly, sl)

	// once latched, later WY writes don't move the window this frame
	wy := p.wy
	if p.wyLock {
		wy = p.wyLatched
	}

	// DMG draws the window only when the background is enabled
	if p.winEnabled && (p.cgb || p.bgEnabled) && p.ly >= wy && int(p.wx)-7 < ScreenWidth {
		if !p.wyLock {
			p.wyLatched = p.wy
			p.wyLock = true
		}
		p.renderWindow(p.ly-p.wyLatched, sl)
	}

	if p.objEnabled {
		p.renderSprites(p.ly, sl, p.renderList[:p.renderCount])
	}

	p.output(p.ly)
}

// renderBackground draws the 32 tiles of the background row for ly.
// Every pixel is written at its scrolled screen position, wrapping
// around the 256 pixel buffer.
func (p *PPU) renderBackground(ly uint8, sl *scanline) {
	if !p.cgb && !p.bgEnabled {
		for x := range sl.colour {
			sl.raw[x] = 0
			sl.priority[x] = false
			sl.colour[x] = p.shades[0]
		}
		return
	}

	row := ly + p.scy
	mapAddress := uint16(0x1800) | uint16(p.bgTileMap)<<10 | uint16(row>>3)<<5
	tileMap, attrMap := p.b.VRAM(0), p.b.VRAM(1)

	for tx := uint16(0); tx < 32; tx++ {
		index := tileMap[mapAddress+tx]
		var attr uint8
		if p.cgb {
			attr = attrMap[mapAddress+tx]
		}

		pixels := p.bgTileRow(index, attr, row&7)
		start := uint8(tx<<3) - p.scx
		for px, c := range pixels {
			x := start + uint8(px)
			sl.raw[x] = c
			sl.priority[x] = attr&types.Bit7 != 0
			sl.colour[x] = p.bgPixel(attr, c)
		}
	}
}

// renderWindow draws the given window row, starting at WX-7 and stopping
// at the right edge of the screen.
func (p *PPU) renderWindow(row uint8, sl *scanline) {
	wx := int(p.wx) - 7
	mapAddress := uint16(0x1800) | uint16(p.winTileMap)<<10 | uint16(row>>3)<<5
	tileMap, attrMap := p.b.VRAM(0), p.b.VRAM(1)

	winX := 0
	if wx < 0 {
		winX = -wx
	}

	var (
		pixels [8]uint8
		attr   uint8
	)
	for first := true; wx+winX < ScreenWidth; winX++ {
		if first || winX&7 == 0 {
			first = false
			tx := uint16(winX >> 3)
			index := tileMap[mapAddress+tx]
			attr = 0
			if p.cgb {
				attr = attrMap[mapAddress+tx]
			}
			pixels = p.bgTileRow(index, attr, row&7)
		}

		x := wx + winX
		c := pixels[winX&7]
		sl.raw[x] = c
		sl.priority[x] = attr&types.Bit7 != 0
		sl.colour[x] = p.bgPixel(attr, c)
	}
}

// renderSprites draws the sprites in list, lowest priority first so that
// higher priority sprites overwrite them.
func (p *PPU) renderSprites(ly uint8, sl *scanline, list []uint8) {
	height := int(p.objSize)

	// CGB with LCDC.0 clear: sprites are always drawn over the background,
	// whatever the priority attributes say
	masterPriority := p.cgb && !p.bgEnabled

	for k := len(list) - 1; k >= 0; k-- {
		s := &p.sprites[list[k]]

		row := int(ly) - s.y
		if s.flipY {
			if height == 16 {
				row = int(p.flipLUT16[row&15])
			} else {
				row = int(p.flipLUT8[row&7])
			}
		}
		tile := s.tile
		if height == 16 {
			tile &^= 1
		}
		var bank uint8
		if p.cgb {
			bank = s.bank
		}

		pixels := p.tileRow(bank, uint16(tile)<<4+uint16(row)<<1, s.flipX)
		for px, c := range pixels {
			x := s.x + px
			if x < 0 || x >= ScreenWidth || c == 0 {
				continue
			}
			if !masterPriority {
				if s.behindBG && sl.raw[x] != 0 {
					continue
				}
				if p.cgb && sl.priority[x] && sl.raw[x] != 0 {
					continue
				}
			}
			sl.colour[x] = p.objPixel(s, c)
		}
	}
}

func (p *PPU) bgTileRow(index, attr, y uint8) [8]uint8 {
	if attr&types.Bit6 != 0 {
		y = p.flipLUT8[y]
	}
	return p.tileRow(attr>>3&1, p.tileAddress(index)+uint16(y)<<1, attr&types.Bit5 != 0)
}

func (p *PPU) bgPixel(attr, c uint8) uint32 {
	if p.cgb {
		return p.bgColour[attr&7][c]
	}
	return p.dmgBG[c]
}

func (p *PPU) objPixel(s *sprite, c uint8) uint32 {
	if p.cgb {
		return p.objColour[s.palette][c]
	}
	return p.dmgOBJ[s.palette&1][c]
}

// RenderLayer renders a single layer of the given line, as it would
// appear with the current register values. The framebuffer isn't
// touched. Pixels a layer doesn't cover are left as 0.
func (p *PPU) RenderLayer(line uint8, layer Layer) [256]uint32 {
	var sl scanline
	switch layer {
	case LayerBackground:
		p.renderBackground(line, &sl)
	case LayerWindow:
		if line >= p.wy {
			p.renderWindow(line-p.wy, &sl)
		}
	case LayerSprites:
		var list [10]uint8
		p.refreshSprites()
		n := collectSprites(p.sprites[:], line, int(p.objSize), !p.cgb, &list)
		p.renderSprites(line, &sl, list[:n])
	}
	return sl.colour
}
