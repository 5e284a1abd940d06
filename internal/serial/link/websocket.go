package link

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gbcore/internal/serial"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Conn is a Transport over a websocket connection. Every message is
// sent as a 2 byte binary frame.
type Conn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	recv chan serial.Message
	err  error // set by the read pump before recv is closed

	avgLatency time.Duration
	closeOnce  sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		conn: ws,
		recv: make(chan serial.Message, 256),
	}
	go c.readPump()
	return c
}

// Dial connects to a peer served by Handler.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws), nil
}

// Handler returns an http.Handler that upgrades requests to websocket
// connections and hands each one to fn.
func Handler(fn func(serial.Transport)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return // upgrader has already replied
		}
		fn(newConn(ws))
	})
}

// readPump decodes incoming frames until the connection fails.
func (c *Conn) readPump() {
	defer close(c.recv)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		m, err := serial.ParseMessage(message)
		if err != nil {
			continue // skip malformed frames
		}
		c.recv <- m
	}
}

// Send implements the serial.Transport interface.
func (c *Conn) Send(ctx context.Context, m serial.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, m.Bytes()); err != nil {
		return err
	}
	return nil
}

// Receive implements the serial.Transport interface.
func (c *Conn) Receive(ctx context.Context) (serial.Message, error) {
	select {
	case m, ok := <-c.recv:
		if !ok {
			return serial.Message{}, c.closedErr()
		}
		return m, nil
	case <-ctx.Done():
		return serial.Message{}, ctx.Err()
	}
}

// Poll implements the serial.Transport interface.
func (c *Conn) Poll() (serial.Message, bool) {
	select {
	case m, ok := <-c.recv:
		return m, ok
	default:
		return serial.Message{}, false
	}
}

func (c *Conn) closedErr() error {
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// Latency samples the kernel's round trip time for the connection and
// returns the smoothed average, or zero when the platform cannot report
// it. Link calls it on every sync.
func (c *Conn) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tcp, ok := c.conn.UnderlyingConn().(*net.TCPConn); ok {
		if rtt, err := roundTrip(tcp); err == nil {
			if c.avgLatency == 0 {
				c.avgLatency = rtt
			} else {
				c.avgLatency = (c.avgLatency*9 + rtt) / 10
			}
		}
	}
	return c.avgLatency
}

// Close implements the serial.Transport interface.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
