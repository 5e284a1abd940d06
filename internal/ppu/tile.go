package ppu

// buildLUTs fills the tile index and flip lookup tables.
//
// In 0x8800 addressing mode tile indexes are signed, with index 0 found
// at 0x9000. signedTileLUT converts such an index into a slot counted
// from 0x8800, and unsignedTileLUT converts a slot back into the index.
func (p *PPU) buildLUTs() {
	for i := 0; i < 256; i++ {
		if i < 128 {
			p.signedTileLUT[i] = uint8(i + 128)
		} else {
			p.signedTileLUT[i] = uint8(i - 128)
		}
	}
	for i := 0; i < 256; i++ {
		p.unsignedTileLUT[p.signedTileLUT[i]] = uint8(i)
	}
	for i := uint8(0); i < 8; i++ {
		p.flipLUT8[i] = 7 - i
	}
	for i := uint8(0); i < 16; i++ {
		p.flipLUT16[i] = 15 - i
	}
}

// tileAddress returns the VRAM offset of the tile referenced by index
// from the BG or window tile map.
func (p *PPU) tileAddress(index uint8) uint16 {
	if p.tileData == 1 {
		return uint16(index) << 4
	}
	return 0x0800 + uint16(p.signedTileLUT[index])<<4
}

// TileIndex returns the tile map index that refers to the tile stored at
// the given VRAM address under the current addressing mode. ok is false
// when the tile can't be referenced from the tile maps.
func (p *PPU) TileIndex(address uint16) (index uint8, ok bool) {
	slot := int(address&0x1FFF) >> 4
	if p.tileData == 1 {
		return uint8(slot), slot < 256
	}
	slot -= 128
	if slot < 0 || slot > 255 {
		return 0, false
	}
	return p.unsignedTileLUT[slot], true
}

// tileRow decodes one row of a tile into 2 bit colour numbers, applying
// the horizontal flip when requested.
func (p *PPU) tileRow(bank uint8, address uint16, flipX bool) [8]uint8 {
	vram := p.b.VRAM(bank)
	lo, hi := vram[address&0x1FFF], vram[(address+1)&0x1FFF]

	var row [8]uint8
	for x := uint8(0); x < 8; x++ {
		bit := x
		if flipX {
			bit = p.flipLUT8[x]
		}
		row[x] = lo>>(7-bit)&1 | (hi>>(7-bit)&1)<<1
	}
	return row
}
