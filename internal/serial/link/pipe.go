// Package link provides the transports that carry link cable traffic
// between two consoles.
package link

import (
	"context"
	"errors"
	"sync"

	"github.com/thelolagemann/gbcore/internal/serial"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("link: transport closed")

// pipe is one end of an in-memory transport.
type pipe struct {
	in   <-chan serial.Message
	out  chan<- serial.Message
	done chan struct{}
	peer *pipe
	once sync.Once
}

// Pipe returns both ends of an in-memory transport, for linking two
// consoles in the same process.
func Pipe() (serial.Transport, serial.Transport) {
	a, b := make(chan serial.Message, 64), make(chan serial.Message, 64)
	left := &pipe{in: a, out: b, done: make(chan struct{})}
	right := &pipe{in: b, out: a, done: make(chan struct{})}
	left.peer, right.peer = right, left
	return left, right
}

func (p *pipe) Send(ctx context.Context, m serial.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}

	select {
	case p.out <- m:
		return nil
	case <-p.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipe) Receive(ctx context.Context) (serial.Message, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-p.done:
		return serial.Message{}, ErrClosed
	case <-p.peer.done:
		return serial.Message{}, ErrClosed
	case <-ctx.Done():
		return serial.Message{}, ctx.Err()
	}
}

func (p *pipe) Poll() (serial.Message, bool) {
	select {
	case m := <-p.in:
		return m, true
	default:
		return serial.Message{}, false
	}
}

func (p *pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
