// Package peer implements the post-handshake part of a BitTorrent peer
// connection: a handle for sending commands and a bridge that forwards
// decoded messages from many connections onto one shared channel.
package peer

import (
	"encoding/hex"
	"errors"
	"net"
	"sync"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/peer/peerreader"
	"github.com/boostbt/boost/internal/peer/peerwriter"
	"github.com/boostbt/boost/internal/peerprotocol"
)

// ID is the 20-byte identifier a peer announces in its handshake.
//
// ID is the sole identity of a Peer: two handles carrying the same ID refer
// to the same peer and are interchangeable. Sets of live peers must be keyed
// by ID, never by handle pointer.
type ID [20]byte

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ErrClosed is returned from commands after the connection has torn down or
// the handle has been closed. It is a local error; nothing reaches the network.
var ErrClosed = errors.New("peer connection is closed")

// Peer is a handle to a live, handshaken connection.
type Peer struct {
	// ID of the remote peer, read from its handshake.
	ID ID

	conn      net.Conn
	reader    *peerreader.PeerReader
	writer    *peerwriter.PeerWriter
	messages  chan<- Message
	events    chan<- Event
	log       logger.Logger
	closeC    chan struct{}
	doneC     chan struct{}
	closeOnce sync.Once
}

// New returns a new Peer wrapping a handshaken connection.
//
// Messages decoded from conn are forwarded to the shared messages channel,
// tagged with the peer's id. Exactly one Stopped event is delivered on events
// when Run ends. Buckets throttle piece traffic when not nil.
func New(conn net.Conn, id ID, messages chan<- Message, events chan<- Event, l logger.Logger, downloadBucket, uploadBucket *ratelimit.Bucket) *Peer {
	return &Peer{
		ID:       id,
		conn:     conn,
		reader:   peerreader.New(conn, l, downloadBucket),
		writer:   peerwriter.New(conn, l, uploadBucket),
		messages: messages,
		events:   events,
		log:      l,
		closeC:   make(chan struct{}),
		doneC:    make(chan struct{}),
	}
}

// Addr returns the remote address of the connection.
func (p *Peer) Addr() net.Addr { return p.conn.RemoteAddr() }

func (p *Peer) String() string { return p.conn.RemoteAddr().String() }

// Logger for the peer that logs messages prefixed with the peer address.
func (p *Peer) Logger() logger.Logger { return p.log }

// Run starts the two forwarding duties of the connection and blocks until one
// of them ends: commands from the handle are written to the socket while
// messages read from the socket go to the shared channel. Whichever duty
// finishes first, for whatever reason, ends the other one too, and a single
// Stopped event is delivered before Run returns.
func (p *Peer) Run() {
	p.log.Debugln("Communicating peer", p.conn.RemoteAddr())

	defer func() {
		p.events <- Event{Type: Stopped, ID: p.ID, Peer: p}
	}()
	defer close(p.doneC)

	go p.reader.Run()
	defer func() { <-p.reader.Done() }()

	go p.writer.Run()
	defer func() { <-p.writer.Done() }()

	defer p.conn.Close()

	for {
		select {
		case msg := <-p.reader.Messages():
			select {
			case p.messages <- Message{ID: p.ID, Payload: msg}:
			case <-p.closeC:
			}
		case <-p.closeC:
			p.reader.Stop()
			p.writer.Stop()
			return
		case <-p.reader.Done():
			p.writer.Stop()
			return
		case <-p.writer.Done():
			p.reader.Stop()
			return
		}
	}
}

// SendMessage queues a message for sending. Does not block.
// Fails with ErrClosed when the connection has already torn down.
func (p *Peer) SendMessage(msg peerprotocol.Message) error {
	select {
	case <-p.closeC:
		return ErrClosed
	default:
	}
	if err := p.writer.SendMessage(msg); err != nil {
		return ErrClosed
	}
	return nil
}

// Choke tells the peer to stop requesting pieces.
func (p *Peer) Choke() error {
	return p.SendMessage(peerprotocol.ChokeMessage{})
}

// Unchoke tells the peer that it may request pieces.
func (p *Peer) Unchoke() error {
	return p.SendMessage(peerprotocol.UnchokeMessage{})
}

// SetInterested tells the peer whether we want to request pieces from it.
func (p *Peer) SetInterested(interested bool) error {
	if interested {
		return p.SendMessage(peerprotocol.InterestedMessage{})
	}
	return p.SendMessage(peerprotocol.NotInterestedMessage{})
}

// Close ends the connection. No further commands are accepted after Close;
// they fail with ErrClosed without reaching the network. Close may be called
// any number of times, from any goroutine.
func (p *Peer) Close() {
	p.closeOnce.Do(func() { close(p.closeC) })
}
