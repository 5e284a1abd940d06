package accessories

import (
	"bytes"

	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	hubPing  = 0xFE
	hubAck   = 0x88
	hubStart = 0xAA
	hubReset = 0xFF
)

// HubPeer supplies the packets of the remote players for a round. It is
// handed the local player's packet and returns the packets of players 2
// to 4, nil for an empty slot.
type HubPeer func(local []byte) [3][]byte

// FourPlayer is the DMG-07 4 player adapter, with the console as player
// 1. While pinging, every 4 byte cycle the console sends
//
//	88 88 rate size
//
// and receives FE followed by 3 status bytes. Four 0xAA bytes start the
// transmission phase, where each round the console sends 4*size bytes,
// the first size of which are its packet, and receives the packets of
// all 4 players from the previous round. Four 0xFF bytes return to the
// ping phase.
type FourPlayer struct {
	transmitting bool
	pingPos      int
	rate, size   byte
	starts       int
	resets       int

	local  []byte
	round  []byte
	outPos int

	peer HubPeer
	log  log.Logger
}

// NewFourPlayer returns an adapter in the ping phase. A nil peer leaves
// the remote slots empty.
func NewFourPlayer(peer HubPeer, l log.Logger) *FourPlayer {
	if l == nil {
		l = log.NewNullLogger()
	}
	return &FourPlayer{peer: peer, log: l, size: 4}
}

// DeviceType implements the serial.Peripheral interface.
func (f *FourPlayer) DeviceType() serial.DeviceType { return serial.DeviceFourPlayer }

// Reset implements the serial.Peripheral interface.
func (f *FourPlayer) Reset() {
	f.transmitting = false
	f.pingPos, f.starts, f.resets = 0, 0, 0
	f.rate, f.size = 0, 4
	f.local, f.round, f.outPos = nil, nil, 0
}

// Transmitting reports whether the adapter has left the ping phase.
func (f *FourPlayer) Transmitting() bool {
	return f.transmitting
}

// PacketSize returns the packet size negotiated during the ping phase.
func (f *FourPlayer) PacketSize() int {
	return int(f.size)
}

// Rate returns the transfer rate byte negotiated during the ping phase.
func (f *FourPlayer) Rate() byte {
	return f.rate
}

func (f *FourPlayer) status() byte {
	players := byte(0x1)
	if f.peer != nil {
		players = 0xF
	}
	return players<<4 | 0x01
}

// ReceiveByte implements the serial.Peripheral interface.
func (f *FourPlayer) ReceiveByte(b byte) (byte, bool) {
	if f.transmitting {
		return f.transmit(b), true
	}
	return f.ping(b), true
}

func (f *FourPlayer) ping(b byte) byte {
	reply := f.status()
	if f.pingPos == 0 {
		reply = hubPing
	}

	if b == hubStart {
		f.starts++
	} else {
		f.starts = 0
	}

	switch f.pingPos {
	case 0, 1:
		if b != hubAck && b != hubStart {
			f.log.Debugf("4 player: unexpected ping byte %02X", b)
			f.Reset()
			return reply
		}
	case 2:
		if b != hubStart {
			f.rate = b
		}
	case 3:
		if b != hubStart {
			if b == 0 || b > 16 {
				f.log.Debugf("4 player: invalid packet size %d", b)
				f.Reset()
				return reply
			}
			f.size = b
		}
	}

	if f.pingPos = (f.pingPos + 1) & 3; f.pingPos == 0 && f.starts >= 4 {
		f.startTransmission()
	}
	return reply
}

func (f *FourPlayer) startTransmission() {
	f.transmitting = true
	f.starts, f.resets = 0, 0
	f.local = make([]byte, 0, f.size)
	f.round = bytes.Repeat([]byte{hubReset}, 4*int(f.size))
	f.outPos = 0
	f.log.Infof("4 player: transmitting %d byte packets", f.size)
}

func (f *FourPlayer) transmit(b byte) byte {
	if b == hubReset {
		if f.resets++; f.resets == 4 {
			f.log.Infof("4 player: returning to ping phase")
			f.Reset()
			return hubReset
		}
	} else {
		f.resets = 0
	}

	reply := f.round[f.outPos]
	if len(f.local) < int(f.size) {
		f.local = append(f.local, b)
	}
	if f.outPos++; f.outPos == len(f.round) {
		f.assemble()
	}
	return reply
}

// assemble builds the next round from the local packet and the remote
// players' packets.
func (f *FourPlayer) assemble() {
	size := int(f.size)
	var remote [3][]byte
	if f.peer != nil {
		remote = f.peer(append([]byte(nil), f.local...))
	}

	round := make([]byte, 0, 4*size)
	round = append(round, f.local...)
	for _, slot := range remote {
		packet := bytes.Repeat([]byte{hubReset}, size)
		copy(packet, slot)
		round = append(round, packet...)
	}
	f.round = round
	f.local = f.local[:0]
	f.outPos = 0
}
