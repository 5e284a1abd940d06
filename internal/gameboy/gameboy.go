// Package gameboy drives the LCD controller and serial port of a Game
// Boy from elapsed CPU cycles.
package gameboy

import (
	"errors"
	"fmt"

	"github.com/thelolagemann/gbcore/internal/io"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

const (
	// ClockSpeed is the clock speed of the Game Boy.
	ClockSpeed = 4194304 // 4.194304 MHz
	// CyclesPerFrame is the number of clock cycles per frame.
	CyclesPerFrame = ppu.FrameCycles
	// stepCycles is the granularity RunFrame steps at, one machine cycle.
	stepCycles = 4
)

// GameBoy owns the bus, the PPU and the serial controller, and steps
// them together.
type GameBoy struct {
	b      *io.Bus
	PPU    *ppu.PPU
	Serial *serial.Controller

	model      types.Model
	ppuConfig  ppu.Config
	serialCfg  serial.Config
	peripheral serial.Peripheral
	transport  serial.Transport
	state      []byte

	cycles uint64
	log    log.Logger
}

// New returns a GameBoy configured by opts. Errors are returned when an
// attached peripheral cannot load its data, or a provided state cannot
// be restored.
func New(opts ...Opt) (*GameBoy, error) {
	g := &GameBoy{
		model: types.DMGABC,
		log:   log.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.ppuConfig.Logger == nil {
		g.ppuConfig.Logger = g.log
	}
	if g.serialCfg.Logger == nil {
		g.serialCfg.Logger = g.log
	}

	g.b = io.NewBus(g.model, g.log)
	g.PPU = ppu.New(g.b, g.ppuConfig)
	g.Serial = serial.NewController(g.b, g.serialCfg)

	if g.peripheral == nil && g.transport != nil {
		g.peripheral = serial.NewLink(g.transport, g.serialCfg.Timeout, g.log)
	}
	if g.peripheral != nil {
		if err := g.Serial.Attach(g.peripheral); err != nil {
			return nil, fmt.Errorf("gameboy: attaching %s: %w", g.peripheral.DeviceType(), err)
		}
	}

	if g.state != nil {
		s, err := types.StateFromBytes(g.state)
		if err != nil {
			return nil, fmt.Errorf("gameboy: %w", err)
		}
		if err := g.restore(s); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Bus returns the memory bus shared by the components.
func (g *GameBoy) Bus() *io.Bus {
	return g.b
}

// Model returns the emulated model.
func (g *GameBoy) Model() types.Model {
	return g.model
}

// Cycles returns the number of cycles stepped so far.
func (g *GameBoy) Cycles() uint64 {
	return g.cycles
}

// Step advances every component by the given number of cycles.
func (g *GameBoy) Step(cycles int) {
	cycles = utils.ZeroAdjust(max(cycles, 0))
	g.PPU.Step(cycles)
	g.Serial.Step(cycles)
	g.cycles += uint64(cycles)
}

// RunFrame steps until the PPU completes a frame, or for one frame's
// worth of cycles while the LCD is off, and returns the framebuffer.
func (g *GameBoy) RunFrame() ppu.Frame {
	frames := g.PPU.Frames()
	for elapsed := 0; elapsed < CyclesPerFrame; elapsed += stepCycles {
		g.Step(stepCycles)
		if g.PPU.Frames() != frames {
			break
		}
	}
	return g.PPU.Framebuffer()
}

var _ types.Stater = (*GameBoy)(nil)

// Save implements the types.Stater interface.
//
// The values are saved in the following order:
//   - model (uint8)
//   - cycles (uint32 high, uint32 low)
//   - bus
//   - PPU
//   - serial controller
func (g *GameBoy) Save(s *types.State) {
	s.Write8(uint8(g.model))
	s.Write32(uint32(g.cycles >> 32))
	s.Write32(uint32(g.cycles))
	g.b.Save(s)
	g.PPU.Save(s)
	g.Serial.Save(s)
}

// Load implements the types.Stater interface. A state saved by another
// model is ignored, use LoadState to be told about it.
func (g *GameBoy) Load(s *types.State) {
	if err := g.restore(s); err != nil {
		g.log.Errorf("gameboy: %v", err)
	}
}

// restore loads s into the GameBoy. The state is first loaded into
// scratch components, so a state that fails leaves the GameBoy as it was.
func (g *GameBoy) restore(s *types.State) error {
	if err := g.scratch().load(s.Fork()); err != nil {
		return err
	}
	return g.load(s)
}

// scratch returns an unattached GameBoy of the same model.
func (g *GameBoy) scratch() *GameBoy {
	l := log.NewNullLogger()
	b := io.NewBus(g.model, l)
	return &GameBoy{
		b:      b,
		PPU:    ppu.New(b, ppu.Config{Logger: l}),
		Serial: serial.NewController(b, serial.Config{Logger: l}),
		model:  g.model,
		log:    l,
	}
}

func (g *GameBoy) load(s *types.State) error {
	if m := types.Model(s.Read8()); m != g.model {
		return fmt.Errorf("gameboy: state is for %s, running %s", types.ModelNames[m], types.ModelNames[g.model])
	}
	cycles := uint64(s.Read32())<<32 | uint64(s.Read32())
	g.b.Load(s)
	g.PPU.Load(s)
	g.Serial.Load(s)
	if err := s.Err(); err != nil {
		return fmt.Errorf("gameboy: %w", err)
	}
	g.cycles = cycles
	return nil
}

// SaveState writes the state of the GameBoy to filename.
func (g *GameBoy) SaveState(filename string) error {
	s := types.NewState()
	g.Save(s)
	if err := s.SaveToFile(filename); err != nil {
		return fmt.Errorf("gameboy: saving state: %w", err)
	}
	g.log.Infof("gameboy: saved state to %s", filename)
	return nil
}

// LoadState restores the state of the GameBoy from filename.
func (g *GameBoy) LoadState(filename string) error {
	s, err := types.StateFromFile(filename)
	if err != nil {
		return fmt.Errorf("gameboy: loading state: %w", err)
	}
	return g.restore(s)
}

// Close persists the attached peripheral and closes the link transport.
func (g *GameBoy) Close() error {
	err := g.Serial.Close()
	if link, ok := g.Serial.Device().(*serial.Link); ok {
		err = errors.Join(err, link.Close())
	} else if g.transport != nil {
		err = errors.Join(err, g.transport.Close())
	}
	return err
}
