// Package peerreader decodes a stream of peer protocol messages from a connection.
package peerreader

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/peerprotocol"
)

const (
	// time to wait for a message. peer must send keep-alive messages to keep connection alive.
	readTimeout = 2 * time.Minute
	// length + msgid + longest fixed-size payload
	readBufferSize = 4 + 1 + 12
)

// PeerReader is the read half of a peer connection. It decodes whole messages
// from the socket and forwards them in arrival order on its channel.
type PeerReader struct {
	conn     net.Conn
	r        io.Reader
	log      logger.Logger
	messages chan peerprotocol.Message
	stopC    chan struct{}
	doneC    chan struct{}
}

// New returns a new PeerReader for a handshaken connection.
// When bucket is not nil, reads are throttled through it.
func New(conn net.Conn, l logger.Logger, bucket *ratelimit.Bucket) *PeerReader {
	var r io.Reader = conn
	if bucket != nil {
		r = ratelimit.Reader(r, bucket)
	}
	return &PeerReader{
		conn:     conn,
		r:        bufio.NewReaderSize(r, readBufferSize),
		log:      l,
		messages: make(chan peerprotocol.Message),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
	}
}

// Messages returns the channel decoded messages are delivered on.
func (p *PeerReader) Messages() <-chan peerprotocol.Message {
	return p.messages
}

// Stop makes Run return as soon as possible.
func (p *PeerReader) Stop() {
	close(p.stopC)
}

// Done is closed when Run returns.
func (p *PeerReader) Done() chan struct{} {
	return p.doneC
}

// Run reads messages until the stream fails or Stop is called.
func (p *PeerReader) Run() {
	defer close(p.doneC)

	var err error
	defer func() {
		if err == nil {
			return
		} else if err == io.EOF { // peer closed the connection
			return
		} else if err == io.ErrUnexpectedEOF {
			return
		} else if _, ok := err.(*net.OpError); ok {
			return
		}
		select {
		case <-p.stopC: // don't log error if peer is stopped
		default:
			p.log.Error(err)
		}
	}()

	for {
		err = p.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if err != nil {
			return
		}

		var msg peerprotocol.Message
		msg, err = peerprotocol.ReadMessage(p.r)
		if err != nil {
			return
		}
		if msg == nil { // keep-alive or an unhandled message type
			continue
		}

		select {
		case p.messages <- msg:
		case <-p.stopC:
			return
		}
	}
}
