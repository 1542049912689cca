// Package peerwriter writes queued peer protocol messages to a connection.
package peerwriter

import (
	"container/list"
	"errors"
	"io"
	"net"
	"time"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/peerprotocol"
)

const keepAlivePeriod = 2 * time.Minute

// ErrStopped is returned from SendMessage after the writer has stopped.
var ErrStopped = errors.New("peer writer stopped")

// PeerWriter is the write half of a peer connection. Messages queued with
// SendMessage are written to the socket in issuance order. The queue is
// unbounded and drained by a separate goroutine, so a stalled socket delays
// writes, never the caller. Keep-alives are sent periodically while the
// socket is idle.
type PeerWriter struct {
	conn       net.Conn
	w          io.Writer
	queueC     chan peerprotocol.Message
	writeQueue *list.List
	writeC     chan peerprotocol.Message
	log        logger.Logger
	stopC      chan struct{}
	doneC      chan struct{}
}

// New returns a new PeerWriter for a handshaken connection.
// When bucket is not nil, writes are throttled through it.
func New(conn net.Conn, l logger.Logger, bucket *ratelimit.Bucket) *PeerWriter {
	var w io.Writer = conn
	if bucket != nil {
		w = ratelimit.Writer(w, bucket)
	}
	return &PeerWriter{
		conn:       conn,
		w:          w,
		queueC:     make(chan peerprotocol.Message),
		writeQueue: list.New(),
		writeC:     make(chan peerprotocol.Message),
		log:        l,
		stopC:      make(chan struct{}),
		doneC:      make(chan struct{}),
	}
}

// SendMessage queues a message for writing. It does not wait for the write to
// happen. Returns ErrStopped when the writer has already ended.
func (p *PeerWriter) SendMessage(msg peerprotocol.Message) error {
	select {
	case p.queueC <- msg:
		return nil
	case <-p.doneC:
		return ErrStopped
	}
}

// Stop makes Run return as soon as possible.
func (p *PeerWriter) Stop() {
	close(p.stopC)
}

// Done is closed when Run returns.
func (p *PeerWriter) Done() chan struct{} {
	return p.doneC
}

// Run moves queued messages towards the socket until Stop is called. The
// queue pump must never block on the socket itself; actual writes happen in
// messageWriter.
func (p *PeerWriter) Run() {
	defer close(p.doneC)

	go p.messageWriter()

	for {
		var (
			e      *list.Element
			msg    peerprotocol.Message
			writeC chan peerprotocol.Message
		)
		if p.writeQueue.Len() > 0 {
			e = p.writeQueue.Front()
			msg = e.Value.(peerprotocol.Message)
			writeC = p.writeC
		}
		select {
		case m := <-p.queueC:
			p.writeQueue.PushBack(m)
		case writeC <- msg:
			p.writeQueue.Remove(e)
		case <-p.stopC:
			return
		}
	}
}

// messageWriter does the socket writes. A failed write closes the connection
// so the read half fails too and the whole connection tears down.
func (p *PeerWriter) messageWriter() {
	keepAliveTicker := time.NewTicker(keepAlivePeriod / 2)
	defer keepAliveTicker.Stop()

	for {
		select {
		case msg := <-p.writeC:
			if err := peerprotocol.WriteMessage(p.w, msg); err != nil {
				if _, ok := err.(*net.OpError); ok {
					p.log.Debugf("cannot write message [%v]: %s", msg.ID(), err.Error())
				} else {
					p.log.Errorf("cannot write message [%v]: %s", msg.ID(), err.Error())
				}
				p.conn.Close()
				return
			}
		case <-keepAliveTicker.C:
			if err := peerprotocol.WriteKeepAlive(p.w); err != nil {
				if _, ok := err.(*net.OpError); ok {
					p.log.Debugf("cannot write keepalive message: %s", err.Error())
				} else {
					p.log.Errorf("cannot write keepalive message: %s", err.Error())
				}
				p.conn.Close()
				return
			}
		case <-p.stopC:
			return
		}
	}
}
