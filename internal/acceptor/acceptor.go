// Package acceptor accepts incoming peer connections and starts them bridging.
package acceptor

import (
	"net"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/btconn"
	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/peer"
)

// Acceptor takes connections from a listener through the handshake and runs
// them as peers. Handshaken peers are announced with a Started event on the
// shared events channel; their teardown produces the usual Stopped event.
type Acceptor struct {
	listener         net.Listener
	peerID           peer.ID
	infoHash         [20]byte
	handshakeTimeout time.Duration
	limiter          chan struct{}
	messages         chan<- peer.Message
	events           chan<- peer.Event
	downloadBucket   *ratelimit.Bucket
	uploadBucket     *ratelimit.Bucket
	log              logger.Logger
}

// New returns a new Acceptor draining the listener.
// limiter bounds the number of inbound connections handled at once.
func New(
	listener net.Listener,
	peerID peer.ID,
	infoHash [20]byte,
	handshakeTimeout time.Duration,
	limiter chan struct{},
	messages chan<- peer.Message,
	events chan<- peer.Event,
	downloadBucket, uploadBucket *ratelimit.Bucket,
	l logger.Logger) *Acceptor {
	return &Acceptor{
		listener:         listener,
		peerID:           peerID,
		infoHash:         infoHash,
		handshakeTimeout: handshakeTimeout,
		limiter:          limiter,
		messages:         messages,
		events:           events,
		downloadBucket:   downloadBucket,
		uploadBucket:     uploadBucket,
		log:              l,
	}
}

// Run accepts connections until the listener is closed or stopC is closed.
// It returns after every accepted connection has finished.
func (a *Acceptor) Run(stopC chan struct{}) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-stopC:
			default:
				a.log.Error(err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.handleConn(conn, stopC)
		}()
	}
}

func (a *Acceptor) handleConn(conn net.Conn, stopC chan struct{}) {
	log := logger.New("peer <- " + conn.RemoteAddr().String())

	select {
	case a.limiter <- struct{}{}:
		defer func() { <-a.limiter }()
	default:
		log.Debugln("peer limit reached, rejecting peer")
		conn.Close()
		return
	}

	// Stopping must not wait out a handshake in flight.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stopC:
			conn.Close()
		case <-done:
		}
	}()

	peerID, _, err := btconn.Accept(
		conn,
		a.handshakeTimeout,
		func(infoHash [20]byte) bool { return infoHash == a.infoHash },
		a.peerID,
	)
	if err != nil {
		select {
		case <-stopC:
		default:
			if err == btconn.ErrOwnConnection {
				log.Warning(err)
			} else {
				log.Error(err)
			}
		}
		conn.Close()
		return
	}
	log.Debugf("Connection accepted. (client=%q)", peerID[:8])

	p := peer.New(conn, peerID, a.messages, a.events, log, a.downloadBucket, a.uploadBucket)
	// The consumer drains lifecycle events for every connection it has been
	// told about. A connection it was never told about must not run.
	select {
	case a.events <- peer.Event{Type: peer.Started, ID: p.ID, Peer: p}:
	case <-stopC:
		conn.Close()
		return
	}
	p.Run()
}
