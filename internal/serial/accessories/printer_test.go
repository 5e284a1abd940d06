package accessories

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"
)

// printerPacket builds a complete packet, including the 2 trailing bytes
// the console sends to read the acknowledgement.
func printerPacket(cmd byte, compressed bool, data []byte) []byte {
	var comp byte
	if compressed {
		comp = 1
	}
	body := []byte{cmd, comp, byte(len(data)), byte(len(data) >> 8)}
	body = append(body, data...)

	var sum uint16
	for _, b := range body {
		sum += uint16(b)
	}

	packet := append([]byte{0x88, 0x33}, body...)
	return append(packet, byte(sum), byte(sum>>8), 0x00, 0x00)
}

// feed sends every byte to the printer and returns the replies.
func feed(p *Printer, data []byte) []byte {
	replies := make([]byte, len(data))
	for i, b := range data {
		replies[i], _ = p.ReceiveByte(b)
	}
	return replies
}

// testStrip returns the tile data of one strip, with the top row of
// tile 0 in colour 1 and the top row of tile 20 in colour 2.
func testStrip() []byte {
	data := make([]byte, stripBytes)
	data[0] = 0xFF
	data[20*16+1] = 0xFF
	return data
}

func TestPrinter_Init(t *testing.T) {
	p := NewPrinter(nil)
	replies := feed(p, []byte{0x88, 0x33, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})

	if replies[8] != 0x81 {
		t.Errorf("Expected 0x81 on the first trailing byte, got %02X", replies[8])
	}
	if replies[9] != 0x00 {
		t.Errorf("Expected status 0x00, got %02X", replies[9])
	}
	if p.State() != AwaitingPacket {
		t.Errorf("Expected %s, got %s", AwaitingPacket, p.State())
	}
}

func TestPrinter_Checksum(t *testing.T) {
	valid := printerPacket(CommandStatus, false, []byte{0x10, 0x20})

	p := NewPrinter(nil)
	feed(p, valid[:len(valid)-2])
	if p.State() != AcknowledgePacket {
		t.Fatalf("Expected %s, got %s", AcknowledgePacket, p.State())
	}
	if want := uint16(0x0F + 0x02 + 0x10 + 0x20); p.Checksum() != want {
		t.Errorf("Expected checksum %04X, got %04X", want, p.Checksum())
	}
	feed(p, valid[len(valid)-2:])
	good := p.Status()

	corrupt := append([]byte(nil), valid...)
	corrupt[7] ^= 0x01 // second data byte
	p = NewPrinter(nil)
	replies := feed(p, corrupt)
	if p.Status() != good|StatusChecksumError {
		t.Errorf("Expected status %02X, got %02X", good|StatusChecksumError, p.Status())
	}
	if replies[len(replies)-1] != p.Status() {
		t.Errorf("Expected status reply %02X, got %02X", p.Status(), replies[len(replies)-1])
	}
	if p.State() != AwaitingPacket {
		t.Errorf("Expected printer to return to %s, got %s", AwaitingPacket, p.State())
	}

	// a good packet clears the error
	feed(p, valid)
	if p.Status()&StatusChecksumError != 0 {
		t.Errorf("Expected checksum error to clear")
	}
}

func TestPrinter_Print(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "raw"
		if compressed {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			p := NewPrinter(nil)
			feed(p, printerPacket(CommandInit, false, nil))

			data := testStrip()
			if compressed {
				data = CompressRLE(data)
			}
			replies := feed(p, printerPacket(CommandData, compressed, data))
			if got := replies[len(replies)-1]; got != StatusUnprocessed {
				t.Errorf("Expected status %02X after DATA, got %02X", StatusUnprocessed, got)
			}
			if p.Strips() != 1 {
				t.Fatalf("Expected 1 strip, got %d", p.Strips())
			}

			feed(p, printerPacket(CommandData, false, nil))
			if p.Status()&StatusReady == 0 {
				t.Errorf("Expected empty DATA packet to set the ready bit")
			}

			replies = feed(p, printerPacket(CommandPrint, false, []byte{0x01, 0x13, 0xE4, 0x40}))
			if got := replies[len(replies)-1]; got != StatusBusy|StatusReady {
				t.Errorf("Expected status %02X after PRINT, got %02X", StatusBusy|StatusReady, got)
			}

			img, ok := p.PrintJob()
			if !ok {
				t.Fatalf("Expected a print job")
			}
			if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 16 {
				t.Fatalf("Expected 160x16 image, got %dx%d", b.Dx(), b.Dy())
			}
			gray := img.(*image.Gray)
			for _, tc := range []struct {
				x, y int
				want uint8
			}{
				{0, 0, 0xAA},
				{7, 0, 0xAA},
				{8, 0, 0xFF},
				{0, 1, 0xFF},
				{0, 8, 0x55},
				{159, 15, 0xFF},
			} {
				if got := gray.GrayAt(tc.x, tc.y).Y; got != tc.want {
					t.Errorf("Expected %02X at %d,%d, got %02X", tc.want, tc.x, tc.y, got)
				}
			}

			for i := 0; i < printPolls; i++ {
				feed(p, printerPacket(CommandStatus, false, nil))
			}
			if p.Status() != StatusReady {
				t.Errorf("Expected status %02X after printing, got %02X", StatusReady, p.Status())
			}
		})
	}
}

func TestPrinter_Exposure(t *testing.T) {
	for _, tc := range []struct {
		exposure byte
		want     uint8
	}{
		{0x00, 0xFF}, // 200% clamps
		{0x40, 0xAA},
		{0x7F, 0x00},
	} {
		p := NewPrinter(nil)
		feed(p, printerPacket(CommandData, false, testStrip()))
		feed(p, printerPacket(CommandPrint, false, []byte{0x01, 0x00, 0xE4, tc.exposure}))
		img, _ := p.PrintJob()
		if got := img.(*image.Gray).GrayAt(0, 0).Y; got != tc.want {
			t.Errorf("Expected %02X at exposure %02X, got %02X", tc.want, tc.exposure, got)
		}
	}
}

func TestPrinter_Resync(t *testing.T) {
	p := NewPrinter(nil)

	feed(p, []byte{0x88, 0x33, 0x05})
	if p.State() != AwaitingPacket {
		t.Errorf("Expected unknown command to reset the printer, got %s", p.State())
	}

	// a packet abandoned after its command byte
	feed(p, []byte{0x88, 0x33, 0x01})
	replies := feed(p, printerPacket(CommandInit, false, nil))
	if replies[len(replies)-2] != 0x81 || p.State() != AwaitingPacket {
		t.Errorf("Expected magic bytes to resync the printer")
	}

	t.Run("magic inside data", func(t *testing.T) {
		p := NewPrinter(nil)
		data := testStrip()
		data[100], data[101] = 0x88, 0x33
		replies := feed(p, printerPacket(CommandData, false, data))

		if replies[len(replies)-2] != 0x81 {
			t.Errorf("Expected the packet to be acknowledged, got %02X", replies[len(replies)-2])
		}
		if status := replies[len(replies)-1]; status&StatusChecksumError != 0 || status&StatusUnprocessed == 0 {
			t.Errorf("Expected an unprocessed strip without checksum error, got status %02X", status)
		}
		if p.Strips() != 1 {
			t.Errorf("Expected 1 strip, got %d", p.Strips())
		}
	})
}

func TestPrinter_SaveJobs(t *testing.T) {
	p := NewPrinter(nil)
	feed(p, printerPacket(CommandData, false, testStrip()))
	feed(p, printerPacket(CommandPrint, false, []byte{0x01, 0x00, 0xE4, 0x40}))

	dir := t.TempDir()
	files, err := p.SaveJobs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	if filepath.Dir(files[0]) != dir {
		t.Errorf("Expected file in %s, got %s", dir, files[0])
	}
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("BM")) {
		t.Errorf("Expected a BMP file")
	}
	if p.HasPrintJob() {
		t.Errorf("Expected print queue to be empty")
	}
}
