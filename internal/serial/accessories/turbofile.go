package accessories

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

// Turbo File commands.
const (
	TurboFileStatus     = 0x10
	TurboFileBankSelect = 0x22
	TurboFileWrite      = 0x30
	TurboFileRead       = 0x40
)

// Turbo File status bits.
const (
	TurboFileChecksumError = 1 << iota
	TurboFileRangeError
)

const (
	turboFileSync1    = 0x6C
	turboFileSync2    = 0x00
	turboFileResponse = 0xA5

	// TurboFileBankSize is the size of one bank of storage.
	TurboFileBankSize = 8 * 1024
	// TurboFileBlockSize is the unit of every read and write.
	TurboFileBlockSize = 64
)

// turboFileArgs is the number of argument bytes of each command.
var turboFileArgs = map[byte]int{
	TurboFileStatus:     0,
	TurboFileBankSelect: 2,
	TurboFileWrite:      2 + TurboFileBlockSize,
	TurboFileRead:       2,
}

type turboFileState uint8

const (
	turboFileAwaitSync1 turboFileState = iota
	turboFileAwaitSync2
	turboFileCommand
	turboFileArguments
	turboFileChecksum
)

// TurboFile is the Turbo File GB memory card. Packets take the form
//
//	6C 00 cmd args... sum
//
// with sum chosen so that cmd, args and sum add up to 0 modulo 256. Every
// packet is answered with
//
//	A5 cmd|80 status data... sum
//
// summed the same way over everything after A5.
type TurboFile struct {
	state   turboFileState
	command byte
	args    []byte
	reply   []byte
	status  uint8

	bank    int
	storage []byte

	file string
	log  log.Logger
}

// NewTurboFile returns a memory card of the given size in megabytes,
// persisted to path. An empty path keeps the contents in memory.
func NewTurboFile(path string, megabytes int, l log.Logger) *TurboFile {
	if l == nil {
		l = log.NewNullLogger()
	}
	megabytes = utils.Clamp(1, megabytes, 2)
	return &TurboFile{
		storage: bytes.Repeat([]byte{0xFF}, megabytes<<20),
		file:    path,
		log:     l,
	}
}

// DeviceType implements the serial.Peripheral interface.
func (t *TurboFile) DeviceType() serial.DeviceType { return serial.DeviceMemoryCard }

// Reset implements the serial.Peripheral interface.
func (t *TurboFile) Reset() {
	t.resetPacket()
	t.reply = nil
	t.status = 0
	t.bank = 0
}

func (t *TurboFile) resetPacket() {
	t.state = turboFileAwaitSync1
	t.command = 0
	t.args = t.args[:0]
}

// Banks returns the number of banks of storage.
func (t *TurboFile) Banks() int {
	return len(t.storage) / TurboFileBankSize
}

// Bank returns the selected bank.
func (t *TurboFile) Bank() int {
	return t.bank
}

// Status returns the status byte.
func (t *TurboFile) Status() uint8 {
	return t.status
}

// ReceiveByte implements the serial.Peripheral interface.
func (t *TurboFile) ReceiveByte(b byte) (byte, bool) {
	if len(t.reply) > 0 {
		out := t.reply[0]
		t.reply = t.reply[1:]
		return out, true
	}

	switch t.state {
	case turboFileAwaitSync1:
		if b == turboFileSync1 {
			t.state = turboFileAwaitSync2
		}
	case turboFileAwaitSync2:
		if b != turboFileSync2 {
			t.log.Debugf("turbo file: unexpected sync byte %02X", b)
			t.resetPacket()
			break
		}
		t.state = turboFileCommand
	case turboFileCommand:
		n, ok := turboFileArgs[b]
		if !ok {
			t.log.Debugf("turbo file: unknown command %02X", b)
			t.resetPacket()
			break
		}
		t.command = b
		t.state = turboFileArguments
		if n == 0 {
			t.state = turboFileChecksum
		}
	case turboFileArguments:
		t.args = append(t.args, b)
		if len(t.args) == turboFileArgs[t.command] {
			t.state = turboFileChecksum
		}
	case turboFileChecksum:
		sum := t.command + b
		for _, v := range t.args {
			sum += v
		}
		if sum != 0 {
			t.log.Debugf("turbo file: checksum mismatch on command %02X", t.command)
			t.status |= TurboFileChecksumError
			t.respond(nil)
		} else {
			t.status &^= TurboFileChecksumError
			t.respond(t.runCommand())
		}
		t.resetPacket()
	}
	return 0x00, true
}

func (t *TurboFile) runCommand() []byte {
	t.status &^= TurboFileRangeError

	switch t.command {
	case TurboFileStatus:
		return []byte{byte(t.bank >> 8), byte(t.bank)}
	case TurboFileBankSelect:
		bank := int(t.args[0])<<8 | int(t.args[1])
		if bank >= t.Banks() {
			t.log.Debugf("turbo file: bank %d out of range", bank)
			t.status |= TurboFileRangeError
			return nil
		}
		t.bank = bank
	case TurboFileWrite:
		offset, ok := t.offset()
		if !ok {
			return nil
		}
		copy(t.storage[offset:offset+TurboFileBlockSize], t.args[2:])
	case TurboFileRead:
		offset, ok := t.offset()
		if !ok {
			return nil
		}
		return append([]byte(nil), t.storage[offset:offset+TurboFileBlockSize]...)
	}
	return nil
}

// offset returns the storage offset addressed by the first two argument
// bytes within the selected bank.
func (t *TurboFile) offset() (int, bool) {
	within := int(t.args[0])<<8 | int(t.args[1])
	if within%TurboFileBlockSize != 0 || within+TurboFileBlockSize > TurboFileBankSize {
		t.log.Debugf("turbo file: block offset %04X out of range", within)
		t.status |= TurboFileRangeError
		return 0, false
	}
	return t.bank*TurboFileBankSize + within, true
}

// respond queues the response packet for the current command.
func (t *TurboFile) respond(data []byte) {
	reply := append([]byte{turboFileResponse, t.command | 0x80, t.status}, data...)
	var sum byte
	for _, v := range reply[1:] {
		sum += v
	}
	t.reply = append(reply, -sum)
}

// Load implements the serial.Persister interface. A missing file leaves
// the card erased.
func (t *TurboFile) Load() error {
	if t.file == "" {
		return nil
	}
	raw, err := utils.LoadFile(t.file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("turbo file: loading storage: %w", err)
	}
	if len(raw) != len(t.storage) {
		return fmt.Errorf("turbo file: storage is %d bytes, expected %d", len(raw), len(t.storage))
	}
	copy(t.storage, raw)
	return nil
}

// Save implements the serial.Persister interface.
func (t *TurboFile) Save() error {
	if t.file == "" {
		return nil
	}
	return utils.WriteFile(t.file, t.storage)
}
