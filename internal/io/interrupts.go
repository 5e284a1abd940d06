package io

import (
	"github.com/thelolagemann/gbcore/internal/types"
)

const (
	// VBlankINT is the VBlank interrupt flag (bit 0),
	// which is requested every time the PPU enters
	// VBlank mode.
	VBlankINT = types.Bit0
	// LCDINT is the LCD interrupt flag (bit 1), which
	// is requested by the LCD STAT register (types.STAT),
	// when certain conditions are met.
	LCDINT = types.Bit1
	// TimerINT is the Timer interrupt flag (bit 2).
	TimerINT = types.Bit2
	// SerialINT is the Serial interrupt flag (bit 3),
	// which is requested when a serial transfer is
	// completed.
	SerialINT = types.Bit3
	// JoypadINT is the Joypad interrupt Flag (bit 4).
	JoypadINT = types.Bit4
)

// RaiseInterrupt raises the specified interrupt by setting
// the flag in the types.IF register. Servicing the interrupt
// is left to the CPU.
func (b *Bus) RaiseInterrupt(interrupt byte) {
	b.data[types.IF] |= interrupt
}

// InterruptPending reports whether the given interrupt flag is set.
func (b *Bus) InterruptPending(interrupt byte) bool {
	return b.data[types.IF]&interrupt != 0
}

// AcknowledgeInterrupt clears the given interrupt flag, as the CPU
// does when it dispatches the interrupt.
func (b *Bus) AcknowledgeInterrupt(interrupt byte) {
	b.data[types.IF] &^= interrupt
}
