package gameboy

import (
	"time"

	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

// Opt is a function that modifies a GameBoy
// instance.
type Opt func(gb *GameBoy)

// AsModel sets the model to emulate.
func AsModel(m types.Model) Opt {
	return func(gb *GameBoy) {
		if m == types.Unset {
			m = types.DMGABC
		}
		gb.model = m
	}
}

func WithLogger(l log.Logger) Opt {
	return func(gb *GameBoy) {
		if l == nil {
			l = log.NewNullLogger()
		}
		gb.log = l
	}
}

// WithLayout sets the initial framebuffer layout.
func WithLayout(l ppu.Layout) Opt {
	return func(gb *GameBoy) {
		gb.ppuConfig.Layout = l
	}
}

// WithPalette sets the shades used for DMG output.
func WithPalette(p ppu.Palette) Opt {
	return func(gb *GameBoy) {
		gb.ppuConfig.Palette = p
	}
}

// WithPresenter hands every completed frame to p.
func WithPresenter(p ppu.Presenter) Opt {
	return func(gb *GameBoy) {
		gb.ppuConfig.Presenter = p
	}
}

// WithPeripheral plugs p into the link port.
func WithPeripheral(p serial.Peripheral) Opt {
	return func(gb *GameBoy) {
		gb.peripheral = p
	}
}

// WithTransport links the GameBoy to a peer over t. It is ignored when
// a peripheral is also provided.
func WithTransport(t serial.Transport) Opt {
	return func(gb *GameBoy) {
		gb.transport = t
	}
}

// WithLinkTimeout bounds every exchange with a linked peer.
func WithLinkTimeout(d time.Duration) Opt {
	return func(gb *GameBoy) {
		gb.serialCfg.Timeout = d
	}
}

// WithSyncInterval sets how often, in cycles, linked peers measure their
// drift.
func WithSyncInterval(cycles int) Opt {
	return func(gb *GameBoy) {
		gb.serialCfg.SyncInterval = cycles
	}
}

// WithState restores a state produced by Save once the GameBoy is built.
func WithState(b []byte) Opt {
	return func(gb *GameBoy) {
		gb.state = b
	}
}
