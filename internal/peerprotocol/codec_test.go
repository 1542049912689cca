package peerprotocol

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestWriteReadRoundTrip(t *testing.T) {
	msgs := []Message{
		ChokeMessage{},
		UnchokeMessage{},
		InterestedMessage{},
		NotInterestedMessage{},
		HaveMessage{Index: 42},
		BitfieldMessage{Data: []byte{0xAA, 0x55}},
		RequestMessage{Index: 1, Begin: 2, Length: 3},
		CancelMessage{RequestMessage{Index: 4, Begin: 5, Length: 6}},
		PieceMessage{Index: 7, Begin: 8, Data: []byte("block data")},
		PortMessage{Port: 6881},
	}
	var buf bytes.Buffer
	for _, msg := range msgs {
		err := WriteMessage(&buf, msg)
		if err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range msgs {
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, want, got)
	}
}

// Messages may arrive split across many socket reads.
func TestReadPartialReads(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, RequestMessage{Index: 1, Begin: 2, Length: 3})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ReadMessage(iotest.OneByteReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, RequestMessage{Index: 1, Begin: 2, Length: 3}, msg)
}

func TestReadKeepAlive(t *testing.T) {
	var buf bytes.Buffer
	err := WriteKeepAlive(&buf)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Fatalf("keep-alive decoded as %v", msg)
	}
}

func TestReadTooLong(t *testing.T) {
	buf := bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadMessage(buf)
	assert.Equal(t, ErrTooLong, err)
}

func TestReadShortStream(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, HaveMessage{Index: 1})
	if err != nil {
		t.Fatal(err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	_, err = ReadMessage(truncated)
	if err == nil {
		t.Fatal("expected error from truncated stream")
	}
}

func TestReadUnknownMessage(t *testing.T) {
	var buf bytes.Buffer
	// id 13 with a 2-byte payload, then a have message
	buf.Write([]byte{0, 0, 0, 3, 13, 1, 2})
	err := WriteMessage(&buf, HaveMessage{Index: 9})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Fatalf("unknown message decoded as %v", msg)
	}
	msg, err = ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, HaveMessage{Index: 9}, msg)
}

// A fixed-size message kind whose length prefix does not match its payload
// size would leave unread bytes in the stream; it must fail instead.
func TestReadWrongFixedLength(t *testing.T) {
	frames := [][]byte{
		{0, 0, 0, 10, byte(Have), 0, 0, 0, 1, 2, 3, 4, 5, 6},  // have with 9-byte payload
		{0, 0, 0, 3, byte(Choke), 1, 2},                       // choke with a payload
		{0, 0, 0, 5, byte(Request), 0, 0, 0, 0},               // request too short
		{0, 0, 0, 4, byte(Port), 0x1a, 0xe1, 0, 0},            // port with 3-byte payload
		{0, 0, 0, 2, byte(Interested), 0},                     // interested with a payload
	}
	for _, frame := range frames {
		_, err := ReadMessage(bytes.NewReader(frame))
		if err == nil {
			t.Fatalf("frame %v decoded without error", frame)
		}
	}
}

func TestReadOversizedRequest(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, RequestMessage{Index: 0, Begin: 0, Length: MaxBlockSize + 1})
	if err != nil {
		t.Fatal(err)
	}
	_, err = ReadMessage(&buf)
	if err == nil {
		t.Fatal("expected error for oversized request")
	}
}

func TestReadEOF(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}
