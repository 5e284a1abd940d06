package io

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

// oamDMA copies 160 bytes from value<<8 into OAM. The transfer
// is performed at once, and every OAM entry is reported as changed.
func (b *Bus) oamDMA(value byte) {
	source := uint16(value) << 8
	if source >= 0xE000 {
		// echo RAM and above mirror work RAM
		source -= 0x2000
	}
	for i := uint16(0); i < types.OAMSize; i++ {
		b.data[types.OAMStart+i] = b.Read(source + i)
	}
	for i := uint8(0); i < 40; i++ {
		b.notifyOAM(i)
	}
}

func (b *Bus) reserveHDMA() {
	b.ReserveAddress(types.HDMA1, func(v byte) byte {
		b.hdmaSource = b.hdmaSource&0x00F0 | uint16(v)<<8
		return 0xFF
	})
	b.ReserveAddress(types.HDMA2, func(v byte) byte {
		b.hdmaSource = b.hdmaSource&0xFF00 | uint16(v&0xF0)
		return 0xFF
	})
	b.ReserveAddress(types.HDMA3, func(v byte) byte {
		b.hdmaDestination = b.hdmaDestination&0x00F0 | uint16(v&0x1F)<<8
		return 0xFF
	})
	b.ReserveAddress(types.HDMA4, func(v byte) byte {
		b.hdmaDestination = b.hdmaDestination&0xFF00 | uint16(v&0xF0)
		return 0xFF
	})
	b.ReserveAddress(types.HDMA5, func(v byte) byte {
		length := v&0x7F + 1

		if v&types.Bit7 != 0 {
			// HBlank DMA, one block is copied every HBlank
			b.hdmaActive = true
			b.hdmaRemaining = length
			return v & 0x7F
		}

		if b.hdmaActive {
			// writing bit 7 = 0 during an HBlank DMA cancels it
			b.hdmaActive = false
			return types.Bit7 | (b.hdmaRemaining-1)&0x7F
		}

		// general purpose DMA copies everything at once
		b.copyBlocks(length)
		return 0xFF
	})
	b.Set(types.HDMA5, 0xFF)
}

// HBlankDMA copies the next block of a pending HBlank DMA. It is
// called by the LCD controller on entering HBlank.
func (b *Bus) HBlankDMA() {
	if !b.hdmaActive || b.hdmaRemaining == 0 {
		return
	}

	b.copyBlocks(1)
	b.hdmaRemaining--

	if b.hdmaRemaining == 0 {
		b.hdmaActive = false
		b.Set(types.HDMA5, 0xFF)
	} else {
		b.Set(types.HDMA5, (b.hdmaRemaining-1)&0x7F)
	}
}

// HDMAActive reports whether an HBlank DMA is in progress.
func (b *Bus) HDMAActive() bool {
	return b.hdmaActive
}

// copyBlocks copies length 16 byte blocks from the DMA source into
// the currently selected VRAM bank.
func (b *Bus) copyBlocks(length uint8) {
	for i := 0; i < int(length)*16; i++ {
		b.vram[b.vramBank][b.hdmaDestination&0x1FFF] = b.Read(b.hdmaSource)
		b.hdmaSource++
		b.hdmaDestination++
	}
}
