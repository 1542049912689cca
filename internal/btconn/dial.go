// Package btconn provides support for dialing and accepting BitTorrent connections.
package btconn

import (
	"bytes"
	"context"
	"net"
	"time"
)

// Dial opens a new connection to the address and does the BitTorrent protocol
// handshake. Returns a net.Conn that is ready for sending/receiving peer
// protocol messages, along with the id the remote peer announced.
//
// The handshake must complete within handshakeTimeout. Closing stopC aborts
// the attempt.
func Dial(
	addr net.Addr,
	dialTimeout, handshakeTimeout time.Duration,
	ih, ourID [20]byte,
	stopC chan struct{}) (conn net.Conn, peerID [20]byte, err error) {

	done := make(chan struct{})
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopC:
			cancel()
		case <-done:
		}
	}()

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err = dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return
	}
	defer func(conn net.Conn) {
		if err != nil {
			conn.Close()
		}
	}(conn)
	go func(conn net.Conn) {
		select {
		case <-stopC:
			conn.Close()
		case <-done:
		}
	}(conn)

	if err = conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return
	}

	out := bytes.NewBuffer(make([]byte, 0, handshakeLength))
	if err = writeHandshake(out, ih, ourID); err != nil {
		return
	}
	if _, err = conn.Write(out.Bytes()); err != nil {
		return
	}

	var ihRead [20]byte
	ihRead, err = readHandshake1(conn)
	if err != nil {
		return
	}
	if ihRead != ih {
		err = ErrInvalidInfoHash
		return
	}

	peerID, err = readHandshake2(conn)
	if err != nil {
		return
	}
	if peerID == ourID {
		err = ErrOwnConnection
		return
	}

	err = conn.SetDeadline(time.Time{})
	return
}
