package btconn

import (
	"encoding/binary"
	"io"
)

// First 20 bytes of every handshake: a length byte of 19 followed by the protocol name.
var pstr = [20]byte{19, 'B', 'i', 't', 'T', 'o', 'r', 'r', 'e', 'n', 't', ' ', 'p', 'r', 'o', 't', 'o', 'c', 'o', 'l'}

// handshakeLength is the exact size of a BitTorrent handshake on the wire.
const handshakeLength = 20 + 8 + 20 + 20

func writeHandshake(w io.Writer, ih, id [20]byte) error {
	h := struct {
		Pstr     [20]byte
		Reserved [8]byte
		InfoHash [20]byte
		PeerID   [20]byte
	}{
		Pstr:     pstr,
		InfoHash: ih,
		PeerID:   id,
	}
	return binary.Write(w, binary.BigEndian, h)
}

// readHandshake1 reads the first 48 bytes of a handshake and returns the
// announced info hash. It is split from readHandshake2 so the info hash can
// be validated before the peer id arrives.
func readHandshake1(r io.Reader) (ih [20]byte, err error) {
	_, err = io.ReadFull(r, ih[:])
	if err != nil {
		return
	}
	if ih != pstr {
		err = errInvalidProtocol
		return
	}
	var reserved [8]byte
	_, err = io.ReadFull(r, reserved[:])
	if err != nil {
		return
	}
	_, err = io.ReadFull(r, ih[:])
	return
}

// readHandshake2 reads the trailing 20-byte peer id of a handshake.
func readHandshake2(r io.Reader) (id [20]byte, err error) {
	_, err = io.ReadFull(r, id[:])
	return
}
