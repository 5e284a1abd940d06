package serial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/types"
)

// chanTransport is an in-memory Transport used to link controllers in
// tests.
type chanTransport struct {
	in  <-chan Message
	out chan<- Message
}

func newPipe() (*chanTransport, *chanTransport) {
	a, b := make(chan Message, 16), make(chan Message, 16)
	return &chanTransport{in: a, out: b}, &chanTransport{in: b, out: a}
}

func (t *chanTransport) Send(ctx context.Context, m Message) error {
	select {
	case t.out <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *chanTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-t.in:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (t *chanTransport) Poll() (Message, bool) {
	select {
	case m := <-t.in:
		return m, true
	default:
		return Message{}, false
	}
}

func (t *chanTransport) Close() error { return nil }

// echo replies with the complement of every byte it receives.
type echo struct {
	received     []byte
	resets       int
	loads, saves int
}

func (e *echo) ReceiveByte(b byte) (byte, bool) {
	e.received = append(e.received, b)
	return ^b, true
}
func (e *echo) Reset()                 { e.resets++ }
func (e *echo) DeviceType() DeviceType { return DevicePowerAntenna }
func (e *echo) Load() error            { e.loads++; return nil }
func (e *echo) Save() error            { e.saves++; return nil }

// clocked pushes a byte once enough cycles have passed.
type clocked struct {
	echo
	wait int
	b    byte
	out  byte
}

func (c *clocked) Push(cycles int, out byte) (byte, bool) {
	if c.wait <= 0 {
		return 0, false
	}
	if c.wait -= cycles; c.wait <= 0 {
		c.out = out
		return c.b, true
	}
	return 0, false
}

func newTestController(model types.Model) (*Controller, *io.Bus) {
	b := io.NewBus(model, nil)
	return NewController(b, Config{Timeout: time.Second}), b
}

func TestController_InternalClock(t *testing.T) {
	t.Run("no device", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		b.Write(types.SB, 0x42)
		b.Write(types.SC, 0x81)

		c.Step(8*ticksPerBit - 1)
		if !c.Transferring() {
			t.Fatalf("Expected transfer to be in progress")
		}
		if b.InterruptPending(io.SerialINT) {
			t.Errorf("Expected no serial interrupt before the 8th bit")
		}

		c.Step(1)
		if c.Transferring() {
			t.Errorf("Expected transfer to be complete")
		}
		if got := b.Read(types.SB); got != 0xFF {
			t.Errorf("Expected SB to be 0xFF, got %02X", got)
		}
		if b.Read(types.SC)&types.Bit7 != 0 {
			t.Errorf("Expected SC bit 7 to be cleared")
		}
		if !b.InterruptPending(io.SerialINT) {
			t.Errorf("Expected serial interrupt to be raised")
		}
	})
	t.Run("fast clock", func(t *testing.T) {
		c, b := newTestController(types.CGBABC)
		b.Write(types.SB, 0x12)
		b.Write(types.SC, 0x83)
		cycles := 0
		for c.Transferring() && cycles < 8*ticksPerBit {
			c.Step(1)
			cycles++
		}
		if cycles != 128 {
			t.Errorf("Expected a fast byte to take 128 cycles, got %d", cycles)
		}
	})
	t.Run("fast clock ignored on DMG", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		b.Write(types.SC, 0x83)
		c.Step(8 * fastTicksPerBit)
		if !c.Transferring() {
			t.Errorf("Expected DMG transfer to still be in progress")
		}
	})
	t.Run("zero cycles", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		b.Write(types.SC, 0x81)
		for i := 0; i < 8*ticksPerBit; i++ {
			c.Step(0)
		}
		if c.Transferring() {
			t.Errorf("Expected zero cycle steps to count as one cycle")
		}
	})
	t.Run("peripheral", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		e := &echo{}
		if err := c.Attach(e); err != nil {
			t.Fatal(err)
		}
		for _, v := range []byte{0x01, 0xF0} {
			b.Write(types.SB, v)
			b.Write(types.SC, 0x81)
			c.Step(8 * ticksPerBit)
			if got := b.Read(types.SB); got != ^v {
				t.Errorf("Expected SB to be %02X, got %02X", ^v, got)
			}
		}
		if len(e.received) != 2 || e.received[0] != 0x01 || e.received[1] != 0xF0 {
			t.Errorf("Expected peripheral to receive [01 F0], got % X", e.received)
		}
		if c.LastByte() != 0x0F {
			t.Errorf("Expected last byte 0F, got %02X", c.LastByte())
		}
	})
}

func TestController_ExternalClock(t *testing.T) {
	t.Run("no device", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		b.Write(types.SC, 0x80)
		c.Step(70224)
		if !c.Transferring() {
			t.Errorf("Expected transfer to wait for an external clock")
		}
	})
	t.Run("driver", func(t *testing.T) {
		c, b := newTestController(types.DMGABC)
		d := &clocked{wait: 100, b: 0x5A}
		if err := c.Attach(d); err != nil {
			t.Fatal(err)
		}
		b.Write(types.SB, 0x11)
		b.Write(types.SC, 0x80)
		c.Step(60)
		if !c.Transferring() {
			t.Fatalf("Expected transfer to still be pending")
		}
		c.Step(60)
		if got := b.Read(types.SB); got != 0x5A {
			t.Errorf("Expected SB to be 5A, got %02X", got)
		}
		if d.out != 0x11 {
			t.Errorf("Expected driver to receive 11, got %02X", d.out)
		}
		if !b.InterruptPending(io.SerialINT) || c.Transferring() {
			t.Errorf("Expected transfer to complete with an interrupt")
		}
	})
}

func TestController_Attach(t *testing.T) {
	c, _ := newTestController(types.DMGABC)
	if c.DeviceType() != DeviceNone || c.Connected() {
		t.Errorf("Expected no device to be connected")
	}

	e := &echo{}
	if err := c.Attach(e); err != nil {
		t.Fatal(err)
	}
	if c.Device() != e || c.DeviceType() != DevicePowerAntenna {
		t.Errorf("Expected attached device, got %s", c.DeviceType())
	}
	if e.loads != 1 || e.resets != 1 {
		t.Errorf("Expected one load and one reset, got %d and %d", e.loads, e.resets)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if e.saves != 1 {
		t.Errorf("Expected one save, got %d", e.saves)
	}

	if err := c.Attach(nil); err != nil {
		t.Fatal(err)
	}
	if c.DeviceType() != DeviceNone {
		t.Errorf("Expected device to be unplugged, got %s", c.DeviceType())
	}
}

func TestController_State(t *testing.T) {
	c, b := newTestController(types.DMGABC)
	b.Write(types.SB, 0x42)
	b.Write(types.SC, 0x81)
	c.Step(3*ticksPerBit + 10)

	s := types.NewState()
	c.Save(s)
	loaded, err := types.StateFromBytes(s.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	c2, b2 := newTestController(types.DMGABC)
	b2.Set(types.SB, 0x42)
	b2.Set(types.SC, 0x81)
	c2.Load(loaded)
	if err := loaded.Err(); err != nil {
		t.Fatal(err)
	}
	if c2.bitsShifted != 3 || c2.shiftClock != 10 || !c2.Transferring() {
		t.Errorf("Expected 3 bits and 10 cycles in flight, got %d and %d", c2.bitsShifted, c2.shiftClock)
	}
	c2.Step(5*ticksPerBit - 10)
	if c2.Transferring() {
		t.Errorf("Expected restored transfer to complete on time")
	}
}

func TestLink_Transfer(t *testing.T) {
	a, z := newPipe()

	master, mb := newTestController(types.DMGABC)
	slave, sb := newTestController(types.DMGABC)
	if err := master.Attach(NewLink(a, time.Second, nil)); err != nil {
		t.Fatal(err)
	}
	if err := slave.Attach(NewLink(z, time.Second, nil)); err != nil {
		t.Fatal(err)
	}
	sb.Write(types.SB, 0x34)
	sb.Write(types.SC, 0x80)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				slave.Step(4)
			}
		}
	}()

	mb.Write(types.SB, 0x12)
	mb.Write(types.SC, 0x81)
	master.Step(8 * ticksPerBit)
	close(done)
	wg.Wait()

	if got := mb.Read(types.SB); got != 0x34 {
		t.Errorf("Expected master SB to be 34, got %02X", got)
	}
	if got := sb.Read(types.SB); got != 0x12 {
		t.Errorf("Expected slave SB to be 12, got %02X", got)
	}
	if !sb.InterruptPending(io.SerialINT) || slave.Transferring() {
		t.Errorf("Expected slave transfer to complete with an interrupt")
	}
	if !master.Connected() {
		t.Errorf("Expected master to remain connected")
	}
}

func TestLink_Disconnect(t *testing.T) {
	a, _ := newPipe()
	l := NewLink(a, 10*time.Millisecond, nil)

	if got, _ := l.ReceiveByte(0x12); got != 0xFF {
		t.Errorf("Expected FF from a silent peer, got %02X", got)
	}
	if l.Connected() {
		t.Errorf("Expected link to be disconnected")
	}

	start := time.Now()
	if got, _ := l.ReceiveByte(0x12); got != 0xFF {
		t.Errorf("Expected FF while disconnected, got %02X", got)
	}
	if time.Since(start) > 5*time.Millisecond {
		t.Errorf("Expected disconnected transfer not to wait for the peer")
	}
	if _, err := l.RequestSync(context.Background()); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Expected ErrDisconnected, got %v", err)
	}
}

func TestLink_Resume(t *testing.T) {
	a, z := newPipe()
	l := NewLink(a, 10*time.Millisecond, nil)
	l.ReceiveByte(0x00)
	if l.Connected() {
		t.Fatalf("Expected link to be disconnected")
	}
	// drain the unanswered data byte
	z.Poll()

	peer := NewLink(z, time.Second, nil)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m, err := z.Receive(ctx)
		if err == nil {
			peer.handle(m)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	if !l.Connected() {
		t.Errorf("Expected link to be connected after resume")
	}
}

func TestLink_Suspend(t *testing.T) {
	a, z := newPipe()
	l := NewLink(a, time.Second, nil)
	peer := NewLink(z, time.Second, nil)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if m, err := z.Receive(ctx); err == nil {
			peer.handle(m)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Suspend(ctx); err != nil {
		t.Fatal(err)
	}
	// the ack has been sent, so the peer has recorded the suspension
	if !peer.Suspended() {
		t.Errorf("Expected peer to be suspended")
	}
}

func TestLink_RequestSync(t *testing.T) {
	for _, tc := range []struct {
		name  string
		local int
		peer  byte
		drift int8
	}{
		{"peer ahead", 10, 13, 3},
		{"peer behind", 10, 7, -3},
		{"wrap", 255, 2, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a, z := newPipe()
			l := NewLink(a, time.Second, nil)
			l.Push(tc.local*syncUnit, 0)

			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if m, err := z.Receive(ctx); err == nil && m.Tag == TagSyncStart {
					z.Send(ctx, Message{Payload: tc.peer, Tag: TagSyncStop})
				}
			}()

			drift, err := l.RequestSync(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if drift != tc.drift {
				t.Errorf("Expected drift %d, got %d", tc.drift, drift)
			}
		})
	}

	t.Run("latency", func(t *testing.T) {
		a, z := newPipe()
		// 1ms each way is 4194 cycles, 9 whole lines
		l := NewLink(slowTransport{a, 2 * time.Millisecond}, time.Second, nil)
		l.Push(10*syncUnit, 0)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if m, err := z.Receive(ctx); err == nil && m.Tag == TagSyncStart {
				z.Send(ctx, Message{Payload: 13, Tag: TagSyncStop})
			}
		}()

		drift, err := l.RequestSync(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if drift != 12 {
			t.Errorf("Expected drift 12 with transit compensation, got %d", drift)
		}
	})
	t.Run("answer", func(t *testing.T) {
		a, z := newPipe()
		l := NewLink(a, time.Second, nil)
		l.Push(20*syncUnit, 0)
		z.Send(context.Background(), Message{Tag: TagSyncStart})
		l.Push(1, 0)
		m, ok := z.Poll()
		if !ok || m.Tag != TagSyncStop || m.Payload != 20 {
			t.Errorf("Expected sync stop with stamp 20, got %v %+v", ok, m)
		}
	})
}

// slowTransport reports a fixed round trip time.
type slowTransport struct {
	*chanTransport
	rtt time.Duration
}

func (s slowTransport) Latency() time.Duration { return s.rtt }

func TestController_Infrared(t *testing.T) {
	a, z := newPipe()
	c, b := newTestController(types.CGBABC)
	if err := c.Attach(NewLink(a, time.Second, nil)); err != nil {
		t.Fatal(err)
	}
	if c.IRDevice() != IRPeer {
		t.Fatalf("Expected link to be attached to the infrared port")
	}

	b.Write(types.RP, 0xC1)
	if m, ok := z.Poll(); !ok || m.Tag != TagIRSignal || m.Payload != 1 {
		t.Errorf("Expected IR on message, got %v %+v", ok, m)
	}
	if b.Read(types.RP)&types.Bit1 == 0 {
		t.Errorf("Expected no signal before the peer's LED is on")
	}

	z.Send(context.Background(), Message{Payload: 1, Tag: TagIRSignal})
	c.Step(4)
	if b.Read(types.RP)&types.Bit1 != 0 {
		t.Errorf("Expected RP bit 1 to be low while receiving a signal")
	}

	b.Write(types.RP, 0x01)
	if b.Read(types.RP)&types.Bit1 == 0 {
		t.Errorf("Expected signal to be hidden while reading is disabled")
	}
}

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage(Message{Payload: 0xAB, Tag: TagIRSignal}.Bytes())
	if err != nil || m.Payload != 0xAB || m.Tag != TagIRSignal {
		t.Errorf("Expected {AB ir signal}, got %+v %v", m, err)
	}
	if _, err := ParseMessage([]byte{0x00}); err == nil {
		t.Errorf("Expected error for short message")
	}
	if _, err := ParseMessage([]byte{0x00, 0x06}); err == nil {
		t.Errorf("Expected error for unknown tag")
	}
}
