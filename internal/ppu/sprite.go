package ppu

import "github.com/thelolagemann/gbcore/internal/types"

// sprite is the decoded form of an OAM entry.
type sprite struct {
	x, y     int   // screen position, bias removed
	tile     uint8 // tile index
	palette  uint8 // CGB 0-7, DMG 0-1
	bank     uint8 // CGB VRAM bank
	flipX    bool
	flipY    bool
	behindBG bool // OBJ-to-BG priority, drawn behind BG colours 1-3
}

// refreshSprites re-reads every sprite whose OAM entry has been
// modified since it was last read.
func (p *PPU) refreshSprites() {
	oam := p.b.OAM()
	for i := range p.sprites {
		if !p.spriteDirty[i] {
			continue
		}
		p.spriteDirty[i] = false

		entry := oam[i*4 : i*4+4]
		s := &p.sprites[i]
		s.y = int(entry[0]) - 16
		s.x = int(entry[1]) - 8
		s.tile = entry[2]

		attr := entry[3]
		s.behindBG = attr&types.Bit7 != 0
		s.flipY = attr&types.Bit6 != 0
		s.flipX = attr&types.Bit5 != 0
		if p.cgb {
			s.palette = attr & 0x07
			s.bank = attr >> 3 & 1
		} else {
			s.palette = attr >> 4 & 1
		}
	}
}

// buildRenderList selects up to 10 sprites that intersect the current
// line, in priority order. DMG sprites with a lower x coordinate take
// priority, OAM order breaking ties; CGB priority is OAM order alone.
func (p *PPU) buildRenderList() {
	p.renderCount = collectSprites(p.sprites[:], p.ly, int(p.objSize), !p.cgb, &p.renderList)
}

func collectSprites(sprites []sprite, ly uint8, height int, sortByX bool, list *[10]uint8) int {
	count := 0
	for i := range sprites {
		if count == len(list) {
			break
		}
		if y := sprites[i].y; int(ly) >= y && int(ly) < y+height {
			list[count] = uint8(i)
			count++
		}
	}

	if sortByX {
		// insertion sort is stable, preserving OAM order on equal x
		for i := 1; i < count; i++ {
			for j := i; j > 0 && sprites[list[j]].x < sprites[list[j-1]].x; j-- {
				list[j], list[j-1] = list[j-1], list[j]
			}
		}
	}
	return count
}

// RenderList returns the OAM indexes of the sprites selected for the
// last rendered line, highest priority first.
func (p *PPU) RenderList() []uint8 {
	return append([]uint8(nil), p.renderList[:p.renderCount]...)
}
