package link

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thelolagemann/gbcore/internal/serial"
)

func TestPipe(t *testing.T) {
	a, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok := b.Poll(); ok {
		t.Errorf("Expected empty pipe")
	}
	if err := a.Send(ctx, serial.Message{Payload: 0x42, Tag: serial.TagData}); err != nil {
		t.Fatal(err)
	}
	m, err := b.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Payload != 0x42 || m.Tag != serial.TagData {
		t.Errorf("Expected {42 data}, got %+v", m)
	}

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		if _, err := a.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	})
	t.Run("closed", func(t *testing.T) {
		b.Close()
		if err := a.Send(ctx, serial.Message{}); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
		if _, err := a.Receive(ctx); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	})
}

func TestPipe_LinkedConsoles(t *testing.T) {
	a, b := Pipe()
	master := serial.NewLink(a, time.Second, nil)
	slave := serial.NewLink(b, time.Second, nil)

	done := make(chan byte)
	go func() {
		for {
			if in, ok := slave.Push(4, 0x99); ok {
				done <- in
				return
			}
		}
	}()

	reply, _ := master.ReceiveByte(0x11)
	if reply != 0x99 {
		t.Errorf("Expected reply 99, got %02X", reply)
	}
	if in := <-done; in != 0x11 {
		t.Errorf("Expected slave to receive 11, got %02X", in)
	}
}

func TestWebsocket(t *testing.T) {
	srv := httptest.NewServer(Handler(func(tr serial.Transport) {
		defer tr.Close()
		ctx := context.Background()
		for {
			m, err := tr.Receive(ctx)
			if err != nil {
				return
			}
			if m.Tag == serial.TagData {
				m.Payload = ^m.Payload
			}
			if err := tr.Send(ctx, m); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	l := serial.NewLink(conn, time.Second, nil)
	for _, v := range []byte{0x00, 0x0F, 0xA5} {
		if got, _ := l.ReceiveByte(v); got != ^v {
			t.Errorf("Expected %02X, got %02X", ^v, got)
		}
	}
	if !l.Connected() {
		t.Errorf("Expected link to stay connected")
	}
	if conn.Latency() < 0 {
		t.Errorf("Expected non-negative latency, got %s", conn.Latency())
	}

	// the echo peer returns our own stamp, leaving only the transit time
	drift, err := l.RequestSync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if drift < 0 {
		t.Errorf("Expected the transit time to never be negative, got %d", drift)
	}

	t.Run("peer closed", func(t *testing.T) {
		conn.Close()
		if _, err := conn.Receive(ctx); err == nil {
			t.Errorf("Expected error from a closed connection")
		}
	})
}
