package serial

import (
	"context"
	"time"

	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

const (
	ticksPerBit     = 512
	fastTicksPerBit = 16
)

// Config holds the construction time settings of the Controller.
type Config struct {
	// Timeout bounds every blocking exchange with a linked peer.
	Timeout time.Duration
	// SyncInterval is the number of cycles between sync handshakes with
	// a linked peer. Zero disables automatic syncing.
	SyncInterval int
	// Logger overrides the logger of the bus.
	Logger log.Logger
}

// Controller is the serial controller. It is responsible for sending and
// receiving data to and from the attached peripheral.
//
// With the internal clock selected (SC bit 0) the console is the master:
// a byte takes 8 bit periods to shift out, after which the peripheral's
// reply is loaded into SB. With the external clock, the peripheral (or
// linked peer) drives the transfer.
type Controller struct {
	connected     bool
	transferring  bool  // SC bit 7
	internalClock bool  // SC bit 0
	fastClock     bool  // SC bit 1, CGB only
	shiftClock    int   // cycles into the current bit
	bitsShifted   uint8 // bits shifted in the current byte
	lastByte      uint8 // last byte received
	transferByte  uint8 // byte being shifted out

	device     Peripheral
	deviceType DeviceType

	ir       IRDevice
	irPort   IRPort
	irLED    bool
	irRead   bool
	irSignal bool
	rp       uint8

	syncClock   int // cycles since the last sync
	syncCounter uint32
	syncDrift   int8
	dropped     int

	cfg Config
	b   *io.Bus
	log log.Logger
}

// NewController creates a new Controller with no peripheral attached.
func NewController(b *io.Bus, cfg Config) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	c := &Controller{
		b:      b,
		cfg:    cfg,
		log:    cfg.Logger,
		device: nullDevice{},
	}
	if c.log == nil {
		c.log = b.Log()
	}

	b.ReserveAddress(types.SB, func(v byte) byte {
		return v
	})
	b.ReserveAddress(types.SC, func(v byte) byte {
		c.internalClock = v&types.Bit0 != 0
		c.fastClock = b.IsGBC() && v&types.Bit1 != 0
		start := v&types.Bit7 != 0

		if start && !c.transferring {
			c.transferByte = b.Get(types.SB)
			c.shiftClock, c.bitsShifted = 0, 0
		}
		c.transferring = start

		return v | c.unusedSC()
	})
	b.Set(types.SC, c.unusedSC())

	if b.IsGBC() {
		b.ReserveAddress(types.RP, func(v byte) byte {
			c.writeRP(v)
			return c.readRP()
		})
		b.ReserveLazyReader(types.RP, c.readRP)
		c.rp = 0x3E
		b.Set(types.RP, c.readRP())
	}

	return c
}

// unusedSC returns the SC bits that always read as 1. Bit 1 selects the
// fast clock on CGB.
func (c *Controller) unusedSC() byte {
	if c.b.IsGBC() {
		return 0x7C
	}
	return 0x7E
}

// Attach plugs a peripheral into the link port, replacing the current
// one. Peripherals implementing Persister are loaded. A nil peripheral
// unplugs the current one.
func (c *Controller) Attach(p Peripheral) error {
	if p == nil {
		p = nullDevice{}
	}
	c.device = p
	c.deviceType = p.DeviceType()
	c.connected = c.deviceType != DeviceNone
	p.Reset()

	if link, ok := p.(*Link); ok {
		c.connected = link.Connected()
		if c.ir == IRNone {
			c.AttachIR(link)
		}
	}

	c.log.Infof("serial: attached %s", c.deviceType)
	if persister, ok := p.(Persister); ok {
		if err := persister.Load(); err != nil {
			return err
		}
	}
	return nil
}

// Device returns the attached peripheral.
func (c *Controller) Device() Peripheral {
	return c.device
}

// DeviceType returns the type of the attached peripheral.
func (c *Controller) DeviceType() DeviceType {
	return c.deviceType
}

// Connected reports whether a peripheral is attached and responding.
func (c *Controller) Connected() bool {
	return c.connected
}

// Close persists the attached peripheral's data.
func (c *Controller) Close() error {
	if persister, ok := c.device.(Persister); ok {
		return persister.Save()
	}
	return nil
}

// Reset resets the controller and the attached peripheral.
func (c *Controller) Reset() {
	c.transferring, c.internalClock, c.fastClock = false, false, false
	c.shiftClock, c.bitsShifted = 0, 0
	c.syncClock, c.syncDrift = 0, 0
	c.b.Set(types.SC, c.unusedSC())
	c.device.Reset()
}

// Step advances the controller by the given number of cycles. A cycle
// count of zero is treated as one.
func (c *Controller) Step(cycles int) {
	cycles = utils.ZeroAdjust(max(cycles, 0))

	if driver, ok := c.device.(Driver); ok {
		if in, ok := driver.Push(cycles, c.b.Get(types.SB)); ok {
			c.receiveByte(in)
		}
	}

	if c.transferring && c.internalClock {
		period := ticksPerBit
		if c.fastClock {
			period = fastTicksPerBit
		}
		c.shiftClock += cycles
		for c.transferring && c.shiftClock >= period {
			c.shiftClock -= period
			if c.bitsShifted++; c.bitsShifted == 8 {
				c.sendByte()
			}
		}
	}

	if link, ok := c.device.(*Link); ok {
		c.connected = link.Connected()
		if c.cfg.SyncInterval > 0 && c.connected {
			c.syncClock += cycles
			if c.syncClock >= c.cfg.SyncInterval {
				c.syncClock = 0
				c.sync(link)
			}
		}
	}
}

// sendByte completes an internally clocked transfer, exchanging SB with
// the attached peripheral.
func (c *Controller) sendByte() {
	reply, irq := c.device.ReceiveByte(c.transferByte)
	if !irq {
		c.dropped++
		c.log.Debugf("serial: %s dropped %02X", c.deviceType, c.transferByte)
	}
	c.complete(reply)
}

// receiveByte completes a transfer clocked by the peripheral.
func (c *Controller) receiveByte(in byte) {
	c.transferByte = c.b.Get(types.SB)
	c.complete(in)
}

// complete loads the received byte into SB, clears the transfer flag and
// raises the serial interrupt.
func (c *Controller) complete(in byte) {
	c.lastByte = in
	c.b.Set(types.SB, in)
	c.transferring = false
	c.shiftClock, c.bitsShifted = 0, 0
	c.b.ClearBit(types.SC, types.Bit7)
	c.b.RaiseInterrupt(io.SerialINT)
}

func (c *Controller) sync(link *Link) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	drift, err := link.RequestSync(ctx)
	if err != nil {
		c.log.Warnf("serial: sync failed: %v", err)
		c.connected = link.Connected()
		return
	}
	c.syncCounter++
	c.syncDrift = drift
}

// SyncDrift returns the drift measured by the last sync handshake, in
// lines, positive when the peer is ahead.
func (c *Controller) SyncDrift() int8 {
	return c.syncDrift
}

// LastByte returns the last byte received.
func (c *Controller) LastByte() byte {
	return c.lastByte
}

// Transferring reports whether a transfer is in progress.
func (c *Controller) Transferring() bool {
	return c.transferring
}

// AttachIR connects the infrared port to a remote LED. A nil port
// disconnects it.
func (c *Controller) AttachIR(p IRPort) {
	c.irPort = p
	c.irSignal = false
	if p == nil {
		c.ir = IRNone
		return
	}
	c.ir = IRPeer
	p.OnIR(c.receiveIR)
}

// IRDevice returns what is connected to the infrared port.
func (c *Controller) IRDevice() IRDevice {
	return c.ir
}

func (c *Controller) writeRP(v byte) {
	led := v&types.Bit0 != 0
	if led != c.irLED {
		c.irLED = led
		if c.irPort != nil {
			if err := c.irPort.SendIR(led); err != nil {
				c.log.Debugf("serial: infrared send failed: %v", err)
			}
		}
	}
	c.irRead = v&0xC0 == 0xC0
	c.rp = v & 0xC1
}

// readRP composes RP: bits 2-5 read as 1, bit 1 is low while reading is
// enabled and the remote LED is on.
func (c *Controller) readRP() byte {
	v := c.rp | 0x3E
	if c.irRead && c.irSignal {
		v &^= types.Bit1
	}
	return v
}

func (c *Controller) receiveIR(on bool) {
	c.irSignal = on
	if c.b.IsGBC() {
		c.b.Set(types.RP, c.readRP())
	}
}

var _ types.Stater = (*Controller)(nil)

// Save implements the types.Stater interface.
//
// The values are saved in the following order:
//   - transferring, internalClock, fastClock (bool)
//   - shiftClock (uint32)
//   - bitsShifted, lastByte, transferByte (uint8)
//   - syncClock, syncCounter (uint32)
//   - syncDrift (uint8)
//   - rp (uint8)
//   - irLED, irRead (bool)
func (c *Controller) Save(s *types.State) {
	s.WriteBool(c.transferring)
	s.WriteBool(c.internalClock)
	s.WriteBool(c.fastClock)
	s.Write32(uint32(c.shiftClock))
	s.Write8(c.bitsShifted)
	s.Write8(c.lastByte)
	s.Write8(c.transferByte)
	s.Write32(uint32(c.syncClock))
	s.Write32(c.syncCounter)
	s.Write8(uint8(c.syncDrift))
	s.Write8(c.rp)
	s.WriteBool(c.irLED)
	s.WriteBool(c.irRead)
}

// Load implements the types.Stater interface.
func (c *Controller) Load(s *types.State) {
	c.transferring = s.ReadBool()
	c.internalClock = s.ReadBool()
	c.fastClock = s.ReadBool()
	c.shiftClock = int(s.Read32())
	c.bitsShifted = s.Read8()
	c.lastByte = s.Read8()
	c.transferByte = s.Read8()
	c.syncClock = int(s.Read32())
	c.syncCounter = s.Read32()
	c.syncDrift = int8(s.Read8())
	c.rp = s.Read8() & 0xC1
	c.irLED = s.ReadBool()
	c.irRead = s.ReadBool()

	if c.bitsShifted > 7 || c.shiftClock >= ticksPerBit || c.shiftClock < 0 {
		c.bitsShifted, c.shiftClock = 0, 0
	}
	if c.syncClock < 0 {
		c.syncClock = 0
	}
}
