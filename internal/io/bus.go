// Package io provides the memory bus shared by the LCD controller and the
// serial port. It owns the hardware registers, both banks of video RAM,
// the object attribute table and the DMA engines.
package io

import (
	"fmt"

	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// WriteHandler is a function that handles writing to a memory address.
// It should return the new value to be written back to the memory address.
type WriteHandler func(byte) byte

// Bus is the address space seen by the CPU. Hardware components reserve
// the IO registers they own, and are notified through their WriteHandler
// whenever the CPU writes to them.
type Bus struct {
	data [0x10000]byte

	vram     [2][types.VRAMSize]byte
	vramBank uint8

	writeHandlers [0x100]WriteHandler
	lazyReaders   [0x100]func() byte
	oamWatchers   []func(index uint8)

	model types.Model

	// VRAM DMA
	hdmaSource      uint16
	hdmaDestination uint16
	hdmaRemaining   uint8
	hdmaActive      bool

	log log.Logger
}

// NewBus returns a Bus for the given model.
func NewBus(model types.Model, l log.Logger) *Bus {
	if l == nil {
		l = log.NewNullLogger()
	}
	b := &Bus{
		model: model,
		log:   l,
	}

	b.ReserveAddress(types.DMA, func(v byte) byte {
		b.oamDMA(v)
		return v
	})
	b.Set(types.IF, 0xE0)

	if model.IsCGB() {
		b.ReserveAddress(types.VBK, func(v byte) byte {
			b.vramBank = v & types.Bit0
			return v | 0xFE
		})
		b.Set(types.VBK, 0xFE)
		b.reserveHDMA()
	}

	return b
}

// ReserveAddress reserves an IO register on the bus. The handler is
// called whenever the CPU writes to the address.
func (b *Bus) ReserveAddress(addr uint16, handler WriteHandler) {
	if addr < 0xFF00 {
		panic(fmt.Sprintf("address %04X is not an IO register", addr))
	}
	// check to make sure address hasn't already been reserved
	if b.writeHandlers[addr&0xFF] != nil {
		panic(fmt.Sprintf("address %04X has already been reserved", addr))
	}
	b.writeHandlers[addr&0xFF] = handler
}

// ReserveLazyReader registers a function that provides the value of an
// IO register when the CPU reads it, for registers whose value isn't
// kept up to date in memory.
func (b *Bus) ReserveLazyReader(addr uint16, reader func() byte) {
	b.lazyReaders[addr&0xFF] = reader
}

// WatchOAM registers a function that is called with the entry index
// whenever an OAM entry is modified.
func (b *Bus) WatchOAM(fn func(index uint8)) {
	b.oamWatchers = append(b.oamWatchers, fn)
}

// Read reads the value at the given address, as seen by the CPU.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr >= types.VRAMStart && addr < types.VRAMStart+types.VRAMSize:
		return b.vram[b.vramBank][addr-types.VRAMStart]
	case addr >= 0xFF00:
		if reader := b.lazyReaders[addr&0xFF]; reader != nil {
			return reader()
		}
	}
	return b.data[addr]
}

// Write writes the value to the given address, as the CPU would.
func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr >= types.VRAMStart && addr < types.VRAMStart+types.VRAMSize:
		b.vram[b.vramBank][addr-types.VRAMStart] = value
	case addr >= types.OAMStart && addr < types.OAMStart+types.OAMSize:
		b.data[addr] = value
		b.notifyOAM(uint8((addr - types.OAMStart) >> 2))
	case addr >= 0xFF00:
		if handler := b.writeHandlers[addr&0xFF]; handler != nil {
			value = handler(value)
		}
		b.data[addr] = value
	default:
		b.data[addr] = value
	}
}

// Get gets the value at the specified memory address, bypassing
// any lazy reader.
func (b *Bus) Get(addr uint16) byte {
	return b.data[addr]
}

// Set sets the value at the specified memory address. This function
// ignores the write handler and just sets the value.
func (b *Bus) Set(addr uint16, value byte) {
	b.data[addr] = value
}

// SetBit sets the bit at the specified memory address.
func (b *Bus) SetBit(addr uint16, bit byte) {
	b.data[addr] |= bit
}

// ClearBit clears the bit at the specified memory address.
func (b *Bus) ClearBit(addr uint16, bit byte) {
	b.data[addr] &^= bit
}

// TestBit tests the bit at the specified memory address.
func (b *Bus) TestBit(addr uint16, bit byte) bool {
	return b.data[addr]&bit != 0
}

// VRAM returns the given bank of video RAM.
func (b *Bus) VRAM(bank uint8) *[types.VRAMSize]byte {
	return &b.vram[bank&1]
}

// OAM returns the object attribute table.
func (b *Bus) OAM() []byte {
	return b.data[types.OAMStart : types.OAMStart+types.OAMSize]
}

// Model returns the hardware model the bus was created for.
func (b *Bus) Model() types.Model {
	return b.model
}

// IsGBC reports whether colour hardware is present.
func (b *Bus) IsGBC() bool {
	return b.model.IsCGB()
}

// Log returns the logger attached to the bus.
func (b *Bus) Log() log.Logger {
	return b.log
}

func (b *Bus) notifyOAM(index uint8) {
	for _, fn := range b.oamWatchers {
		fn(index)
	}
}

var _ types.Stater = (*Bus)(nil)

// Save implements the types.Stater interface.
//
// The values are saved in the following order:
//   - IO registers 0xFF00-0xFFFF ([256]byte)
//   - OAM ([160]byte)
//   - VRAM bank 0, VRAM bank 1 ([8192]byte each)
//   - vramBank (uint8)
//   - hdmaSource, hdmaDestination (uint16)
//   - hdmaRemaining (uint8)
//   - hdmaActive (bool)
func (b *Bus) Save(s *types.State) {
	s.WriteData(b.data[0xFF00:])
	s.WriteData(b.OAM())
	s.WriteData(b.vram[0][:])
	s.WriteData(b.vram[1][:])
	s.Write8(b.vramBank)
	s.Write16(b.hdmaSource)
	s.Write16(b.hdmaDestination)
	s.Write8(b.hdmaRemaining)
	s.WriteBool(b.hdmaActive)
}

// Load implements the types.Stater interface.
func (b *Bus) Load(s *types.State) {
	s.ReadData(b.data[0xFF00:])
	s.ReadData(b.OAM())
	s.ReadData(b.vram[0][:])
	s.ReadData(b.vram[1][:])
	b.vramBank = s.Read8() & 1
	if !b.IsGBC() {
		b.vramBank = 0
	}
	b.hdmaSource = s.Read16()
	b.hdmaDestination = s.Read16()
	b.hdmaRemaining = s.Read8()
	b.hdmaActive = s.ReadBool()

	for i := uint8(0); i < 40; i++ {
		b.notifyOAM(i)
	}
}
