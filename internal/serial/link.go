package serial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thelolagemann/gbcore/pkg/log"
)

// ErrDisconnected is returned when the linked peer does not respond.
var ErrDisconnected = errors.New("serial: peer disconnected")

// Tag identifies the kind of a Message.
type Tag uint8

const (
	TagData Tag = iota
	TagSyncStart
	TagSyncStop
	TagSuspend
	TagResume
	TagIRSignal
)

func (t Tag) String() string {
	switch t {
	case TagData:
		return "data"
	case TagSyncStart:
		return "sync start"
	case TagSyncStop:
		return "sync stop"
	case TagSuspend:
		return "suspend"
	case TagResume:
		return "resume"
	case TagIRSignal:
		return "ir signal"
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Message is a single unit exchanged between linked peers. On the wire
// it is encoded as [payload, tag].
type Message struct {
	Payload byte
	Tag     Tag
}

// Bytes returns the wire encoding of the message.
func (m Message) Bytes() []byte {
	return []byte{m.Payload, byte(m.Tag)}
}

// ParseMessage decodes a message from its wire encoding.
func ParseMessage(b []byte) (Message, error) {
	if len(b) != 2 {
		return Message{}, fmt.Errorf("serial: invalid message length %d", len(b))
	}
	if Tag(b[1]) > TagIRSignal {
		return Message{}, fmt.Errorf("serial: unknown message tag %02X", b[1])
	}
	return Message{Payload: b[0], Tag: Tag(b[1])}, nil
}

// Transport carries messages to and from a linked peer.
type Transport interface {
	Send(ctx context.Context, m Message) error
	// Receive blocks until a message arrives or ctx is done.
	Receive(ctx context.Context) (Message, error)
	// Poll returns the next message if one has already arrived.
	Poll() (Message, bool)
	Close() error
}

// handshake payloads
const (
	request  = 0x00
	response = 0x01
)

const (
	// syncUnit is the number of cycles per sync stamp, one scanline.
	syncUnit = 456
	// clockSpeed converts transport latency into cycles.
	clockSpeed = 4194304
)

// latencyReporter is implemented by transports that can measure their
// round trip time.
type latencyReporter interface {
	Latency() time.Duration
}

// Link is a link cable to another console, carried over a Transport.
//
// When the console clocks a transfer, the byte is sent to the peer and
// the Link blocks until the peer's reply arrives, bounded by the
// timeout. When the peer clocks a transfer, the Link answers with the
// contents of SB and hands the received byte to the controller.
// A peer that fails to answer marks the link as disconnected, after
// which every transfer reads 0xFF until Resume succeeds.
type Link struct {
	t         Transport
	timeout   time.Duration
	connected bool
	suspended bool // peer paused

	out     byte   // last SB seen by Push
	pending []byte // bytes received from the peer while busy
	cycles  uint64

	onIR func(bool)
	log  log.Logger
}

// NewLink returns a Link over the given transport. A zero timeout uses
// 500ms.
func NewLink(t Transport, timeout time.Duration, l log.Logger) *Link {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	if l == nil {
		l = log.NewNullLogger()
	}
	return &Link{
		t:         t,
		timeout:   timeout,
		connected: true,
		out:       0xFF,
		log:       l,
	}
}

// DeviceType implements the Peripheral interface.
func (l *Link) DeviceType() DeviceType { return DeviceLink }

// Reset implements the Peripheral interface.
func (l *Link) Reset() {
	l.pending = l.pending[:0]
}

// Connected reports whether the peer is answering.
func (l *Link) Connected() bool {
	return l.connected
}

// Suspended reports whether the peer has paused.
func (l *Link) Suspended() bool {
	return l.suspended
}

// ReceiveByte sends b to the peer and waits for its reply.
func (l *Link) ReceiveByte(b byte) (byte, bool) {
	if !l.connected {
		return 0xFF, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.t.Send(ctx, Message{Payload: b, Tag: TagData}); err != nil {
		l.disconnect(err)
		return 0xFF, true
	}
	m, err := l.await(ctx, TagData)
	if err != nil {
		l.disconnect(err)
		return 0xFF, true
	}
	return m.Payload, true
}

// Push implements the Driver interface. It answers transfers clocked by
// the peer with the contents of SB.
func (l *Link) Push(cycles int, out byte) (byte, bool) {
	l.cycles += uint64(cycles)
	l.out = out

	if len(l.pending) > 0 {
		in := l.pending[0]
		l.pending = l.pending[1:]
		return in, true
	}

	for {
		m, ok := l.t.Poll()
		if !ok {
			return 0, false
		}
		if m.Tag == TagData {
			l.reply(m)
			return m.Payload, true
		}
		l.handle(m)
	}
}

// reply answers a data message from the peer, which is clocking the
// transfer.
func (l *Link) reply(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.t.Send(ctx, Message{Payload: l.out, Tag: TagData}); err != nil {
		l.disconnect(err)
		return
	}
	l.connected = true
}

// await receives messages until one with the given tag arrives.
// Unrelated messages are handled as they come in.
func (l *Link) await(ctx context.Context, tag Tag) (Message, error) {
	for {
		m, err := l.t.Receive(ctx)
		if err != nil {
			return Message{}, err
		}
		switch {
		case m.Tag == tag && (tag == TagData || m.Payload == response || tag == TagSyncStop):
			return m, nil
		case m.Tag == TagData:
			// the peer clocked a transfer of its own
			l.reply(m)
			l.pending = append(l.pending, m.Payload)
		default:
			l.handle(m)
		}
	}
}

// handle processes a control message.
func (l *Link) handle(m Message) {
	switch m.Tag {
	case TagSyncStart:
		l.send(Message{Payload: l.stamp(), Tag: TagSyncStop})
	case TagSyncStop:
		l.log.Debugf("link: unexpected sync stop")
	case TagSuspend:
		if m.Payload == request {
			l.suspended = true
			l.send(Message{Payload: response, Tag: TagSuspend})
		}
	case TagResume:
		if m.Payload == request {
			l.suspended = false
			l.connected = true
			l.send(Message{Payload: response, Tag: TagResume})
		}
	case TagIRSignal:
		if l.onIR != nil {
			l.onIR(m.Payload != 0)
		}
	}
}

func (l *Link) send(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.t.Send(ctx, m); err != nil {
		l.disconnect(err)
	}
}

func (l *Link) stamp() uint8 {
	return uint8(l.cycles / syncUnit)
}

func (l *Link) disconnect(err error) {
	if l.connected {
		l.log.Warnf("link: peer disconnected: %v", err)
	}
	l.connected = false
}

// RequestSync exchanges clock stamps with the peer and returns the drift
// between the two, in scanlines, positive when the peer is ahead. When
// the transport reports its latency, the peer's stamp is advanced by the
// one way trip it spent in flight.
func (l *Link) RequestSync(ctx context.Context) (int8, error) {
	if !l.connected {
		return 0, ErrDisconnected
	}
	local := l.stamp()
	if err := l.t.Send(ctx, Message{Payload: local, Tag: TagSyncStart}); err != nil {
		l.disconnect(err)
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	m, err := l.await(ctx, TagSyncStop)
	if err != nil {
		l.disconnect(err)
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return int8(m.Payload + l.transit() - local), nil
}

// transit returns the scanlines that pass during a one way trip over the
// transport.
func (l *Link) transit() uint8 {
	lr, ok := l.t.(latencyReporter)
	if !ok {
		return 0
	}
	oneWay := lr.Latency() / 2
	if oneWay <= 0 {
		return 0
	}
	lines := int64(oneWay) * clockSpeed / int64(time.Second) / syncUnit
	if lines > 127 {
		lines = 127
	}
	return uint8(lines)
}

// Suspend tells the peer that this console is pausing.
func (l *Link) Suspend(ctx context.Context) error {
	if !l.connected {
		return ErrDisconnected
	}
	return l.handshake(ctx, TagSuspend)
}

// Resume re-establishes the link with the peer. It is the only way to
// recover a disconnected link.
func (l *Link) Resume(ctx context.Context) error {
	if err := l.handshake(ctx, TagResume); err != nil {
		return err
	}
	l.connected = true
	return nil
}

func (l *Link) handshake(ctx context.Context, tag Tag) error {
	if err := l.t.Send(ctx, Message{Payload: request, Tag: tag}); err != nil {
		l.disconnect(err)
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if _, err := l.await(ctx, tag); err != nil {
		l.disconnect(err)
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

// SendIR implements the IRPort interface.
func (l *Link) SendIR(on bool) error {
	if !l.connected {
		return ErrDisconnected
	}
	var payload byte
	if on {
		payload = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.t.Send(ctx, Message{Payload: payload, Tag: TagIRSignal})
}

// OnIR implements the IRPort interface.
func (l *Link) OnIR(fn func(on bool)) {
	l.onIR = fn
}

// Close closes the underlying transport.
func (l *Link) Close() error {
	l.connected = false
	return l.t.Close()
}
