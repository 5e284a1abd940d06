package ppu

import "github.com/thelolagemann/gbcore/internal/types"

// Palette selects the 4 shades used to colour DMG output.
type Palette uint8

const (
	// Greyscale is the default greyscale palette.
	Greyscale Palette = iota
	// Green is the green palette which attempts to emulate
	// the original colour palette as it would have appeared
	// on the original Game Boy.
	Green
	// Red is a red palette.
	Red
	// Yellow is a yellow palette.
	Yellow
)

// shadeSets holds the ARGB shades of each Palette, lightest first.
var shadeSets = [...][4]uint32{
	Greyscale: {0xFFFFFFFF, 0xFFCCCCCC, 0xFF777777, 0xFF000000},
	Green:     {0xFF9BBC0F, 0xFF8BAC0F, 0xFF306230, 0xFF0F380F},
	Red:       {0xFFFF0000, 0xFFCC0000, 0xFF770000, 0xFF000000},
	Yellow:    {0xFFFFFF00, 0xFFCCCC00, 0xFF777700, 0xFF000000},
}

// SetPalette changes the shade set used for DMG output. The palette
// registers are re-applied immediately.
func (p *PPU) SetPalette(pal Palette) {
	if int(pal) >= len(shadeSets) {
		pal = Greyscale
	}
	p.palette = pal
	p.shades = shadeSets[pal]
	p.dmgBG = p.remap(p.b.Get(types.BGP))
	p.dmgOBJ[0] = p.remap(p.b.Get(types.OBP0))
	p.dmgOBJ[1] = p.remap(p.b.Get(types.OBP1))
}

// remap converts a DMG palette register into 4 ARGB colours.
func (p *PPU) remap(v byte) [4]uint32 {
	return [4]uint32{
		p.shades[v&3],
		p.shades[v>>2&3],
		p.shades[v>>4&3],
		p.shades[v>>6&3],
	}
}

// white returns the colour of a blank screen.
func (p *PPU) white() uint32 {
	if p.cgb {
		return 0xFFFFFFFF
	}
	return p.shades[0]
}

// writePalette writes one byte of a CGB colour, addressed by the
// palette index register, and returns the index after any increment.
// Writes during ModeVRAM are dropped as the palette memory is in use.
func (p *PPU) writePalette(raw *[8][4]uint16, index uint8, increment bool, v byte) uint8 {
	if p.mode != ModeVRAM {
		pal, colour := index>>3&7, index&7>>1
		if index&1 == 1 {
			raw[pal][colour] = raw[pal][colour]&0x00FF | uint16(v)<<8
		} else {
			raw[pal][colour] = raw[pal][colour]&0xFF00 | uint16(v)
		}
		p.updateColours(int(pal))
	}
	if increment {
		index = (index + 1) & 0x3F
	}
	return index
}

func readPalette(raw *[8][4]uint16, index uint8) byte {
	c := raw[index>>3&7][index&7>>1]
	if index&1 == 1 {
		return uint8(c >> 8)
	}
	return uint8(c)
}

// updateColours derives the ARGB colours of a CGB palette from its raw
// 15 bit values.
func (p *PPU) updateColours(pal int) {
	for c := 0; c < 4; c++ {
		p.bgColour[pal][c] = RGB555ToARGB(p.bgRaw[pal][c])
		p.objColour[pal][c] = RGB555ToARGB(p.objRaw[pal][c])
	}
}

// RGB555ToARGB converts a CGB colour (bits 0-4 red, 5-9 green, 10-14
// blue) to 0xAARRGGBB, scaling each 5 bit channel to 8 bits.
func RGB555ToARGB(c uint16) uint32 {
	r, g, b := uint32(c&0x1F), uint32(c>>5&0x1F), uint32(c>>10&0x1F)
	r, g, b = r<<3|r>>2, g<<3|g>>2, b<<3|b>>2
	return 0xFF000000 | r<<16 | g<<8 | b
}
