package accessories

import (
	"bytes"
	"path/filepath"
	"testing"
)

func turboFilePacket(cmd byte, args ...byte) []byte {
	sum := cmd
	for _, b := range args {
		sum += b
	}
	p := append([]byte{0x6C, 0x00, cmd}, args...)
	return append(p, -sum)
}

// transact sends a packet and clocks out its response.
func transact(tf *TurboFile, packet []byte) []byte {
	sendAll(tf, packet)
	var reply []byte
	for len(tf.reply) > 0 {
		r, _ := tf.ReceiveByte(0x00)
		reply = append(reply, r)
	}
	return reply
}

func TestTurboFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "turbo.sav")
	tf := NewTurboFile(file, 1, nil)
	if tf.Banks() != 128 {
		t.Fatalf("Expected 128 banks, got %d", tf.Banks())
	}

	t.Run("status", func(t *testing.T) {
		reply := transact(tf, turboFilePacket(TurboFileStatus))
		if want := []byte{0xA5, 0x90, 0x00, 0x00, 0x00, 0x70}; !bytes.Equal(reply, want) {
			t.Errorf("Expected % X, got % X", want, reply)
		}
	})

	block := bytes.Repeat([]byte{0x5A}, TurboFileBlockSize)
	t.Run("write and read", func(t *testing.T) {
		transact(tf, turboFilePacket(TurboFileBankSelect, 0x00, 0x03))
		if tf.Bank() != 3 {
			t.Fatalf("Expected bank 3, got %d", tf.Bank())
		}
		reply := transact(tf, turboFilePacket(TurboFileWrite, append([]byte{0x00, 0x40}, block...)...))
		if reply[1] != 0xB0 || reply[2] != 0x00 {
			t.Errorf("Expected write to succeed, got % X", reply)
		}

		reply = transact(tf, turboFilePacket(TurboFileRead, 0x00, 0x40))
		if !bytes.Equal(reply[3:3+TurboFileBlockSize], block) {
			t.Errorf("Expected block to read back, got % X", reply[3:])
		}
		var sum byte
		for _, b := range reply[1:] {
			sum += b
		}
		if sum != 0 {
			t.Errorf("Expected response to sum to 0, got %02X", sum)
		}
	})
	t.Run("range", func(t *testing.T) {
		reply := transact(tf, turboFilePacket(TurboFileBankSelect, 0x00, 0x80))
		if reply[2]&TurboFileRangeError == 0 || tf.Bank() != 3 {
			t.Errorf("Expected out of range bank to be rejected, got % X", reply)
		}
		reply = transact(tf, turboFilePacket(TurboFileRead, 0x1F, 0xE0))
		if reply[2]&TurboFileRangeError == 0 {
			t.Errorf("Expected read past the bank to be rejected, got % X", reply)
		}
	})
	t.Run("checksum", func(t *testing.T) {
		p := turboFilePacket(TurboFileStatus)
		p[len(p)-1]++
		reply := transact(tf, p)
		if reply[2]&TurboFileChecksumError == 0 {
			t.Errorf("Expected checksum error, got % X", reply)
		}
	})
	t.Run("persist", func(t *testing.T) {
		if err := tf.Save(); err != nil {
			t.Fatal(err)
		}
		restored := NewTurboFile(file, 1, nil)
		if err := restored.Load(); err != nil {
			t.Fatal(err)
		}
		transact(restored, turboFilePacket(TurboFileBankSelect, 0x00, 0x03))
		reply := transact(restored, turboFilePacket(TurboFileRead, 0x00, 0x40))
		if !bytes.Equal(reply[3:3+TurboFileBlockSize], block) {
			t.Errorf("Expected block to persist")
		}
	})
}
