package btconn

import (
	"net"
	"time"
)

// Accept reads the BitTorrent handshake from an incoming connection, replies
// with our own and returns the announced info hash and peer id. The conn is
// then ready for sending/receiving peer protocol messages.
//
// hasInfoHash decides whether the announced info hash belongs to a torrent we
// are transferring; a false return fails the handshake.
func Accept(
	conn net.Conn,
	handshakeTimeout time.Duration,
	hasInfoHash func([20]byte) bool,
	ourID [20]byte) (peerID, infoHash [20]byte, err error) {

	if err = conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return
	}

	infoHash, err = readHandshake1(conn)
	if err != nil {
		return
	}
	if !hasInfoHash(infoHash) {
		err = ErrInvalidInfoHash
		return
	}

	if err = writeHandshake(conn, infoHash, ourID); err != nil {
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
