package tracker

import (
	"encoding/binary"
	"net"
)

// PeerAddress is a candidate peer endpoint returned from an announce.
type PeerAddress struct {
	Addr *net.TCPAddr

	// ID is the 20-byte peer id when the tracker sent one.
	// Compact peer lists carry no ids.
	ID *[20]byte
}

// HasID reports whether the tracker knew the peer's id.
func (p PeerAddress) HasID() bool { return p.ID != nil }

func (p PeerAddress) String() string { return p.Addr.String() }

// compactPeerLength is the size of one entry in a compact peer list:
// a 4-byte IPv4 address followed by a 2-byte port, both big-endian.
const compactPeerLength = 6

// DecodePeersCompact parses a compact peer list into addresses.
func DecodePeersCompact(b []byte) ([]PeerAddress, error) {
	if len(b)%compactPeerLength != 0 {
		return nil, ErrInvalidResponse
	}
	peers := make([]PeerAddress, 0, len(b)/compactPeerLength)
	for i := 0; i < len(b); i += compactPeerLength {
		ip := net.IPv4(b[i], b[i+1], b[i+2], b[i+3])
		port := binary.BigEndian.Uint16(b[i+4 : i+6])
		peers = append(peers, PeerAddress{
			Addr: &net.TCPAddr{IP: ip, Port: int(port)},
		})
	}
	return peers, nil
}
