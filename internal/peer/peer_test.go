package peer

import (
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/boostbt/boost/internal/btconn"
	"github.com/boostbt/boost/internal/peerprotocol"
)

var (
	ourID    = ID{0x01}
	remoteID = [20]byte{0x02}
	infoHash = [20]byte{0x0E}
)

const timeout = 10 * time.Second

// remotePeer is the other end of the wire in tests.
type remotePeer struct {
	listener net.Listener
	conns    chan net.Conn
	errs     chan error
}

// startRemotePeer listens on a random port and answers one handshake.
func startRemotePeer(t *testing.T) *remotePeer {
	t.Helper()
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	rp := &remotePeer{
		listener: l,
		conns:    make(chan net.Conn, 1),
		errs:     make(chan error, 1),
	}
	go func() {
		conn, err := l.Accept()
		if err != nil {
			rp.errs <- err
			return
		}
		_, _, err = btconn.Accept(conn, timeout, func(h [20]byte) bool { return h == infoHash }, remoteID)
		if err != nil {
			conn.Close()
			rp.errs <- err
			return
		}
		rp.conns <- conn
	}()
	return rp
}

func (rp *remotePeer) conn(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-rp.conns:
		return conn
	case err := <-rp.errs:
		t.Fatal(err)
	case <-time.After(timeout):
		t.Fatal("remote peer did not accept a connection")
	}
	return nil
}

func (rp *remotePeer) close() {
	rp.listener.Close()
}

func connectToRemote(t *testing.T, rp *remotePeer, messages chan Message, events chan Event) *Peer {
	t.Helper()
	p, err := Connect(rp.listener.Addr(), timeout, timeout, infoHash, ourID, messages, events, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func waitStopped(t *testing.T, events chan Event, id ID) {
	t.Helper()
	select {
	case ev := <-events:
		if ev.Type != Stopped {
			t.Fatalf("event type: %v", ev.Type)
		}
		if ev.ID != id {
			t.Fatalf("event id: %v", ev.ID)
		}
	case <-time.After(timeout):
		t.Fatal("no stopped event")
	}
}

func assertNoEvent(t *testing.T, events chan Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// A handshake announcing the wrong torrent must fail the connection before it
// ever starts bridging: no Started, and no Stopped either.
func TestConnectInfoHashMismatch(t *testing.T) {
	defer leaktest.Check(t)()

	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		conn, err2 := l.Accept()
		if err2 != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 68)
		_, err2 = conn.Read(buf)
		if err2 != nil {
			return
		}
		// reply with a handshake for a different torrent
		reply := make([]byte, 0, 68)
		reply = append(reply, 19)
		reply = append(reply, []byte("BitTorrent protocol")...)
		reply = append(reply, make([]byte, 8)...)
		otherHash := [20]byte{0xFF}
		reply = append(reply, otherHash[:]...)
		reply = append(reply, remoteID[:]...)
		_, _ = conn.Write(reply)
	}()

	messages := make(chan Message, 1)
	events := make(chan Event, 1)
	_, err = Connect(l.Addr(), timeout, timeout, infoHash, ourID, messages, events, nil, nil, nil)
	if err != btconn.ErrInvalidInfoHash {
		t.Fatalf("err: %v", err)
	}
	assertNoEvent(t, events)
}

// An abrupt close by the remote peer after bridging has started must produce
// exactly one Stopped event and leak nothing.
func TestRemoteCloseEmitsStopped(t *testing.T) {
	defer leaktest.Check(t)()

	rp := startRemotePeer(t)
	defer rp.close()

	messages := make(chan Message, 1)
	events := make(chan Event, 2)
	p := connectToRemote(t, rp, messages, events)

	conn := rp.conn(t)
	conn.Close()

	waitStopped(t, events, p.ID)
	assertNoEvent(t, events)
}

func TestCloseEmitsStopped(t *testing.T) {
	defer leaktest.Check(t)()

	rp := startRemotePeer(t)
	defer rp.close()

	messages := make(chan Message, 1)
	events := make(chan Event, 2)
	p := connectToRemote(t, rp, messages, events)
	conn := rp.conn(t)
	defer conn.Close()

	p.Close()
	waitStopped(t, events, p.ID)
	assertNoEvent(t, events)

	if err := p.Choke(); err != ErrClosed {
		t.Fatalf("err: %v", err)
	}
}

func TestCommandsReachTheWire(t *testing.T) {
	defer leaktest.Check(t)()

	rp := startRemotePeer(t)
	defer rp.close()

	messages := make(chan Message, 1)
	events := make(chan Event, 2)
	p := connectToRemote(t, rp, messages, events)
	conn := rp.conn(t)
	defer conn.Close()

	if err := p.SetInterested(true); err != nil {
		t.Fatal(err)
	}
	if err := p.Choke(); err != nil {
		t.Fatal(err)
	}

	// commands arrive in issuance order
	msg, err := peerprotocol.ReadMessage(conn)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(peerprotocol.InterestedMessage); !ok {
		t.Fatalf("msg: %T", msg)
	}
	msg, err = peerprotocol.ReadMessage(conn)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msg.(peerprotocol.ChokeMessage); !ok {
		t.Fatalf("msg: %T", msg)
	}

	p.Close()
	waitStopped(t, events, p.ID)
}

func TestMessagesForwardedWithPeerID(t *testing.T) {
	defer leaktest.Check(t)()

	rp := startRemotePeer(t)
	defer rp.close()

	messages := make(chan Message, 2)
	events := make(chan Event, 2)
	p := connectToRemote(t, rp, messages, events)
	conn := rp.conn(t)
	defer conn.Close()

	if err := peerprotocol.WriteMessage(conn, peerprotocol.UnchokeMessage{}); err != nil {
		t.Fatal(err)
	}
	if err := peerprotocol.WriteMessage(conn, peerprotocol.HaveMessage{Index: 7}); err != nil {
		t.Fatal(err)
	}

	// messages from one peer arrive in order, tagged with its id
	select {
	case msg := <-messages:
		if msg.ID != p.ID {
			t.Fatalf("id: %v", msg.ID)
		}
		if _, ok := msg.Payload.(peerprotocol.UnchokeMessage); !ok {
			t.Fatalf("msg: %T", msg.Payload)
		}
	case <-time.After(timeout):
		t.Fatal("no message")
	}
	select {
	case msg := <-messages:
		if have, ok := msg.Payload.(peerprotocol.HaveMessage); !ok || have.Index != 7 {
			t.Fatalf("msg: %+v", msg.Payload)
		}
	case <-time.After(timeout):
		t.Fatal("no message")
	}

	p.Close()
	waitStopped(t, events, p.ID)
}
