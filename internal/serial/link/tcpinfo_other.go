//go:build !linux

package link

import (
	"errors"
	"net"
	"time"
)

func roundTrip(*net.TCPConn) (time.Duration, error) {
	return 0, errors.New("link: round trip time not supported")
}
