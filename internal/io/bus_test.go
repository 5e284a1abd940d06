package io

import (
	"testing"

	"github.com/thelolagemann/gbcore/internal/types"
)

func TestBus_ReserveAddress(t *testing.T) {
	b := NewBus(types.DMGABC, nil)

	var written byte
	b.ReserveAddress(0xFF42, func(v byte) byte {
		written = v
		return v | 0x80
	})
	b.Write(0xFF42, 0x12)

	if written != 0x12 {
		t.Errorf("Expected handler to receive 0x12, got %#02x", written)
	}
	if got := b.Read(0xFF42); got != 0x92 {
		t.Errorf("Expected handler result 0x92 to be stored, got %#02x", got)
	}

	t.Run("reserving twice panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Errorf("Expected panic when reserving 0xFF42 twice")
			}
		}()
		b.ReserveAddress(0xFF42, func(v byte) byte { return v })
	})
}

func TestBus_LazyReader(t *testing.T) {
	b := NewBus(types.DMGABC, nil)
	b.ReserveLazyReader(0xFF44, func() byte { return 0x99 })

	if got := b.Read(0xFF44); got != 0x99 {
		t.Errorf("Expected lazy reader value 0x99, got %#02x", got)
	}
	if got := b.Get(0xFF44); got != 0x00 {
		t.Errorf("Expected raw value 0x00, got %#02x", got)
	}
}

func TestBus_VRAMBanks(t *testing.T) {
	t.Run("CGB", func(t *testing.T) {
		b := NewBus(types.CGBABC, nil)
		b.Write(0x8000, 0x11)
		b.Write(types.VBK, 1)
		b.Write(0x8000, 0x22)

		if b.VRAM(0)[0] != 0x11 {
			t.Errorf("Expected bank 0 to hold 0x11, got %#02x", b.VRAM(0)[0])
		}
		if b.VRAM(1)[0] != 0x22 {
			t.Errorf("Expected bank 1 to hold 0x22, got %#02x", b.VRAM(1)[0])
		}
		if got := b.Read(types.VBK); got != 0xFF {
			t.Errorf("Expected VBK to read 0xFF, got %#02x", got)
		}
	})
	t.Run("DMG", func(t *testing.T) {
		b := NewBus(types.DMGABC, nil)
		b.Write(types.VBK, 1)
		b.Write(0x8000, 0x33)

		if b.VRAM(0)[0] != 0x33 {
			t.Errorf("Expected VBK to be ignored on DMG, got %#02x in bank 0", b.VRAM(0)[0])
		}
	})
}

func TestBus_OAMDMA(t *testing.T) {
	b := NewBus(types.DMGABC, nil)
	notified := make(map[uint8]int)
	b.WatchOAM(func(index uint8) {
		notified[index]++
	})

	for i := uint16(0); i < types.OAMSize; i++ {
		b.Write(0xC000+i, uint8(i))
	}
	b.Write(types.DMA, 0xC0)

	for i := uint16(0); i < types.OAMSize; i++ {
		if got := b.Get(types.OAMStart + i); got != uint8(i) {
			t.Fatalf("Expected OAM[%d] to be %d, got %d", i, i, got)
		}
	}
	if len(notified) != 40 {
		t.Errorf("Expected all 40 OAM entries to be reported, got %d", len(notified))
	}

	b.Write(types.OAMStart+9, 0xFF)
	if notified[2] != 2 {
		t.Errorf("Expected a CPU write to report entry 2, got %d reports", notified[2])
	}
}

func TestBus_VRAMDMA(t *testing.T) {
	setup := func() *Bus {
		b := NewBus(types.CGBABC, nil)
		for i := uint16(0); i < 0x80; i++ {
			b.Write(0xC000+i, uint8(i)+1)
		}
		b.Write(types.HDMA1, 0xC0)
		b.Write(types.HDMA2, 0x00)
		b.Write(types.HDMA3, 0x00)
		b.Write(types.HDMA4, 0x10)
		return b
	}

	t.Run("general purpose", func(t *testing.T) {
		b := setup()
		b.Write(types.HDMA5, 0x01) // 2 blocks

		for i := 0; i < 32; i++ {
			if got := b.VRAM(0)[0x10+i]; got != uint8(i)+1 {
				t.Fatalf("Expected VRAM[%#x] to be %d, got %d", 0x10+i, i+1, got)
			}
		}
		if got := b.Get(types.HDMA5); got != 0xFF {
			t.Errorf("Expected HDMA5 to read 0xFF after transfer, got %#02x", got)
		}
	})
	t.Run("hblank", func(t *testing.T) {
		b := setup()
		b.Write(types.HDMA5, 0x82) // 3 blocks

		if b.VRAM(0)[0x10] != 0 {
			t.Errorf("Expected no data to be copied before HBlank")
		}
		b.HBlankDMA()
		if b.VRAM(0)[0x10] != 1 || b.VRAM(0)[0x20] != 0 {
			t.Errorf("Expected exactly one block after one HBlank")
		}
		if got := b.Get(types.HDMA5); got != 0x01 {
			t.Errorf("Expected HDMA5 to report 2 remaining blocks (0x01), got %#02x", got)
		}
		b.HBlankDMA()
		b.HBlankDMA()
		if b.HDMAActive() {
			t.Errorf("Expected HDMA to finish after 3 HBlanks")
		}
		if b.VRAM(0)[0x3F] != 48 {
			t.Errorf("Expected 48 bytes copied, got last byte %d", b.VRAM(0)[0x3F])
		}
	})
	t.Run("cancel", func(t *testing.T) {
		b := setup()
		b.Write(types.HDMA5, 0x83)
		b.HBlankDMA()
		b.Write(types.HDMA5, 0x00)

		if b.HDMAActive() {
			t.Errorf("Expected HDMA to be cancelled")
		}
		if got := b.Get(types.HDMA5); got != 0x82 {
			t.Errorf("Expected HDMA5 to be 0x82 after cancel, got %#02x", got)
		}
	})
}

func TestBus_RaiseInterrupt(t *testing.T) {
	b := NewBus(types.DMGABC, nil)
	b.RaiseInterrupt(VBlankINT)
	b.RaiseInterrupt(SerialINT)

	if got := b.Get(types.IF) & 0x1F; got != 0x09 {
		t.Errorf("Expected IF to be 0x09, got %#02x", got)
	}
	b.AcknowledgeInterrupt(VBlankINT)
	if b.InterruptPending(VBlankINT) {
		t.Errorf("Expected VBlank interrupt to be acknowledged")
	}
}

func TestBus_State(t *testing.T) {
	b := NewBus(types.CGBABC, nil)
	b.Write(types.VBK, 1)
	b.Write(0x8123, 0x45)
	b.Write(types.OAMStart+3, 0x67)
	b.Set(types.SCX, 0x89)

	s := types.NewState()
	b.Save(s)

	restored := NewBus(types.CGBABC, nil)
	watched := 0
	restored.WatchOAM(func(uint8) { watched++ })
	loaded, err := types.StateFromBytes(s.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	restored.Load(loaded)

	if err := loaded.Err(); err != nil {
		t.Fatal(err)
	}
	if restored.Read(0x8123) != 0x45 {
		t.Errorf("Expected VRAM bank 1 to be restored and selected")
	}
	if restored.Get(types.OAMStart+3) != 0x67 {
		t.Errorf("Expected OAM to be restored")
	}
	if restored.Get(types.SCX) != 0x89 {
		t.Errorf("Expected IO registers to be restored")
	}
	if watched != 40 {
		t.Errorf("Expected OAM watchers to be notified of all 40 entries, got %d", watched)
	}
}
