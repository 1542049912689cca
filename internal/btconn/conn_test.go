package btconn

import (
	"bytes"
	"net"
	"testing"
	"time"
)

var (
	id1      = [20]byte{0x0C}
	id2      = [20]byte{0x0D}
	infoHash = [20]byte{0x0E}
)

const timeout = 10 * time.Second

func TestHandshakeLength(t *testing.T) {
	var buf bytes.Buffer
	err := writeHandshake(&buf, infoHash, id1)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != handshakeLength {
		t.Fatalf("handshake length: %d", buf.Len())
	}
	if buf.Bytes()[0] != 19 {
		t.Fatalf("length byte: %d", buf.Bytes()[0])
	}
	if string(buf.Bytes()[1:20]) != "BitTorrent protocol" {
		t.Fatalf("protocol name: %q", buf.Bytes()[1:20])
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := writeHandshake(&buf, infoHash, id1)
	if err != nil {
		t.Fatal(err)
	}
	ih, err := readHandshake1(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if ih != infoHash {
		t.Fatalf("info hash: %v", ih)
	}
	id, err := readHandshake2(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if id != id1 {
		t.Fatalf("peer id: %v", id)
	}
}

func TestHandshakeInvalidProtocol(t *testing.T) {
	var buf bytes.Buffer
	err := writeHandshake(&buf, infoHash, id1)
	if err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	b[5] ^= 0xFF // corrupt the protocol name
	_, err = readHandshake1(bytes.NewReader(b))
	if err != errInvalidProtocol {
		t.Fatalf("err: %v", err)
	}

	b[5] ^= 0xFF
	b[0] = 18 // corrupt the length byte
	_, err = readHandshake1(bytes.NewReader(b))
	if err != errInvalidProtocol {
		t.Fatalf("err: %v", err)
	}
}

func TestHandshakeShortStream(t *testing.T) {
	var buf bytes.Buffer
	err := writeHandshake(&buf, infoHash, id1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = readHandshake1(bytes.NewReader(buf.Bytes()[:30]))
	if err == nil {
		t.Fatal("expected error from short stream")
	}
}

func TestDialAccept(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	done := make(chan struct{})
	var gerr error
	go func() {
		defer close(done)
		conn, id, err2 := Dial(l.Addr(), timeout, timeout, infoHash, id1, nil)
		if err2 != nil {
			gerr = err2
			return
		}
		defer conn.Close()
		if id != id2 {
			t.Errorf("id: %v", id)
		}
	}()
	conn, err := l.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	id, ih, err := Accept(conn, timeout, func(h [20]byte) bool { return h == infoHash }, id2)
	if err != nil {
		t.Fatal(err)
	}
	<-done
	if gerr != nil {
		t.Fatal(gerr)
	}
	if ih != infoHash {
		t.Errorf("ih: %v", ih)
	}
	if id != id1 {
		t.Errorf("id: %v", id)
	}
}

func TestAcceptUnknownInfoHash(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, _, err2 := Dial(l.Addr(), timeout, timeout, infoHash, id1, nil)
		if err2 == nil {
			conn.Close()
			t.Error("dial must fail when acceptor rejects the info hash")
		}
	}()
	conn, err := l.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_, _, err = Accept(conn, timeout, func(h [20]byte) bool { return false }, id2)
	if err != ErrInvalidInfoHash {
		t.Fatalf("err: %v", err)
	}
	conn.Close()
	<-done
}
