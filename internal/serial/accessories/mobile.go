package accessories

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

// Mobile adapter commands.
const (
	MobileBeginSession    = 0x10
	MobileEndSession      = 0x11
	MobileDial            = 0x12
	MobileHangUp          = 0x13
	MobileTelephoneStatus = 0x17
	MobileReadConfig      = 0x19
	MobileWriteConfig     = 0x1A
	MobileISPLogin        = 0x21
	MobileISPLogout       = 0x22
	MobileOpenTCP         = 0x23
	MobileCloseTCP        = 0x24
	MobileDNSQuery        = 0x28
	MobileError           = 0x6E
)

const (
	mobileMagic1     = 0x99
	mobileMagic2     = 0x66
	mobileIdle       = 0x4B
	mobileChecksumNG = 0xF1
	mobileDeviceID   = 0x88

	// MobileConfigSize is the size of the adapter's configuration memory.
	MobileConfigSize = 192
)

type mobileState uint8

const (
	mobileAwaitMagic1 mobileState = iota
	mobileAwaitMagic2
	mobileHeader
	mobileData
	mobileChecksum
	mobileDevice
	mobileAck
	mobileRespond
)

// MobileAdapter is the Mobile Adapter GB. Packets from the console take
// the form
//
//	99 66 cmd 00 lenHi lenLo data... sumHi sumLo 80 00
//
// The adapter answers the last two bytes with its device ID and the
// command with bit 7 set, then streams its reply packet back in the same
// form. There is no network behind the adapter, every command that
// would reach the internet answers with an error packet.
type MobileAdapter struct {
	state   mobileState
	header  [4]byte
	hdrPos  int
	length  int
	data    []byte
	sum     uint16
	recvSum uint16
	sumPos  int
	sumOK   bool

	reply    []byte
	replyPos int

	session bool
	calling bool
	config  [MobileConfigSize]byte

	kind uint8
	path string
	log  log.Logger
}

// NewMobileAdapter returns an adapter whose configuration is persisted
// to path. kind selects the device ID reported to the console, 0 for the
// PDC adapter. An empty path keeps the configuration in memory.
func NewMobileAdapter(path string, kind uint8, l log.Logger) *MobileAdapter {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &MobileAdapter{path: path, kind: kind & 0x07, log: l}
}

// DeviceType implements the serial.Peripheral interface.
func (m *MobileAdapter) DeviceType() serial.DeviceType { return serial.DeviceMobileAdapter }

// Reset implements the serial.Peripheral interface.
func (m *MobileAdapter) Reset() {
	m.resetPacket()
	m.reply, m.replyPos = nil, 0
	m.session, m.calling = false, false
}

func (m *MobileAdapter) resetPacket() {
	m.state = mobileAwaitMagic1
	m.hdrPos, m.length = 0, 0
	m.data = m.data[:0]
	m.sum, m.recvSum, m.sumPos = 0, 0, 0
}

// Config returns the configuration memory.
func (m *MobileAdapter) Config() [MobileConfigSize]byte {
	return m.config
}

// Session reports whether the console has opened a session.
func (m *MobileAdapter) Session() bool {
	return m.session
}

func (m *MobileAdapter) id() byte {
	return mobileDeviceID + m.kind
}

// ReceiveByte implements the serial.Peripheral interface.
func (m *MobileAdapter) ReceiveByte(b byte) (byte, bool) {
	switch m.state {
	case mobileAwaitMagic1:
		if b == mobileMagic1 {
			m.state = mobileAwaitMagic2
		}
	case mobileAwaitMagic2:
		if b != mobileMagic2 {
			m.malformed("magic", b)
			break
		}
		m.state = mobileHeader
	case mobileHeader:
		m.header[m.hdrPos] = b
		m.sum += uint16(b)
		if m.hdrPos++; m.hdrPos < len(m.header) {
			break
		}
		if m.header[1] != 0 {
			m.malformed("header", m.header[1])
			break
		}
		m.length = int(m.header[2])<<8 | int(m.header[3])
		switch {
		case m.length > 0xFF:
			m.malformed("length", m.header[2])
		case m.length == 0:
			m.state = mobileChecksum
		default:
			m.state = mobileData
		}
	case mobileData:
		m.data = append(m.data, b)
		m.sum += uint16(b)
		if len(m.data) == m.length {
			m.state = mobileChecksum
		}
	case mobileChecksum:
		m.recvSum = m.recvSum<<8 | uint16(b)
		if m.sumPos++; m.sumPos == 2 {
			m.state = mobileDevice
		}
	case mobileDevice:
		if b&0x80 == 0 {
			m.malformed("device id", b)
			break
		}
		m.state = mobileAck
		return m.id(), true
	case mobileAck:
		if m.recvSum != m.sum {
			m.log.Debugf("mobile: checksum mismatch, expected %04X got %04X", m.sum, m.recvSum)
			m.resetPacket()
			return mobileChecksumNG, true
		}
		cmd := m.header[0]
		m.reply = m.runCommand(cmd, m.data)
		m.replyPos = 0
		if m.reply == nil {
			m.resetPacket()
			return mobileChecksumNG, true
		}
		m.state = mobileRespond
		return cmd ^ 0x80, true
	case mobileRespond:
		out := m.reply[m.replyPos]
		if m.replyPos++; m.replyPos == len(m.reply) {
			m.reply = nil
			m.resetPacket()
		}
		return out, true
	}
	return mobileIdle, true
}

func (m *MobileAdapter) malformed(what string, b byte) {
	m.log.Debugf("mobile: malformed packet, unexpected %s %02X", what, b)
	m.resetPacket()
}

// runCommand executes a command and returns the reply packet, or nil
// when the command is not understood.
func (m *MobileAdapter) runCommand(cmd byte, data []byte) []byte {
	if !m.session && cmd != MobileBeginSession {
		m.log.Debugf("mobile: command %02X outside of a session", cmd)
		return m.packet(MobileError, []byte{cmd, 0x01})
	}

	switch cmd {
	case MobileBeginSession:
		m.session = true
		return m.packet(cmd, data)
	case MobileEndSession:
		m.session, m.calling = false, false
		return m.packet(cmd, nil)
	case MobileDial:
		m.calling = true
		return m.packet(cmd, nil)
	case MobileHangUp:
		m.calling = false
		return m.packet(cmd, nil)
	case MobileTelephoneStatus:
		status := byte(0x00)
		if m.calling {
			status = 0x05
		}
		return m.packet(cmd, []byte{status, 0x4D, 0x00})
	case MobileReadConfig:
		if len(data) != 2 || int(data[0])+int(data[1]) > MobileConfigSize {
			return m.packet(MobileError, []byte{cmd, 0x02})
		}
		offset, n := int(data[0]), int(data[1])
		return m.packet(cmd, append([]byte{data[0]}, m.config[offset:offset+n]...))
	case MobileWriteConfig:
		if len(data) < 1 || int(data[0])+len(data)-1 > MobileConfigSize {
			return m.packet(MobileError, []byte{cmd, 0x02})
		}
		copy(m.config[data[0]:], data[1:])
		return m.packet(cmd, []byte{data[0], byte(len(data) - 1)})
	case MobileISPLogin, MobileISPLogout, MobileOpenTCP, MobileCloseTCP, MobileDNSQuery:
		return m.packet(MobileError, []byte{cmd, 0x03})
	}

	m.log.Debugf("mobile: unknown command %02X", cmd)
	return nil
}

// packet builds a reply packet sent by the adapter.
func (m *MobileAdapter) packet(cmd byte, data []byte) []byte {
	p := make([]byte, 0, len(data)+10)
	p = append(p, mobileMagic1, mobileMagic2, cmd^0x80, 0x00, byte(len(data)>>8), byte(len(data)))
	p = append(p, data...)

	var sum uint16
	for _, b := range p[2:] {
		sum += uint16(b)
	}
	return append(p, byte(sum>>8), byte(sum), m.id(), 0x00)
}

// Load implements the serial.Persister interface. A missing file leaves
// the configuration blank.
func (m *MobileAdapter) Load() error {
	if m.path == "" {
		return nil
	}
	raw, err := utils.LoadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mobile: loading configuration: %w", err)
	}
	if len(raw) != MobileConfigSize {
		return fmt.Errorf("mobile: configuration is %d bytes, expected %d", len(raw), MobileConfigSize)
	}
	copy(m.config[:], raw)
	return nil
}

// Save implements the serial.Persister interface.
func (m *MobileAdapter) Save() error {
	if m.path == "" {
		return nil
	}
	return utils.WriteFile(m.path, m.config[:])
}
