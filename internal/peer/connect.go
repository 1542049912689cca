package peer

import (
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/btconn"
	"github.com/boostbt/boost/internal/logger"
)

// Connect dials addr and does the BitTorrent handshake for the torrent
// identified by ih. On success the returned peer is already bridging in the
// background and its eventual teardown is reported with a Stopped event on
// events like every other connection.
//
// A failed dial or handshake returns an error and produces no lifecycle
// events at all.
func Connect(
	addr net.Addr,
	dialTimeout, handshakeTimeout time.Duration,
	ih [20]byte,
	ourID ID,
	messages chan<- Message,
	events chan<- Event,
	downloadBucket, uploadBucket *ratelimit.Bucket,
	stopC chan struct{}) (*Peer, error) {

	log := logger.New("peer -> " + addr.String())

	conn, peerID, err := btconn.Dial(addr, dialTimeout, handshakeTimeout, ih, ourID, stopC)
	if err != nil {
		return nil, err
	}

	p := New(conn, peerID, messages, events, log, downloadBucket, uploadBucket)
	go p.Run()
	return p, nil
}
