package peerprotocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
)

const (
	// MaxLength is the maximum accepted value of a message length prefix.
	// A remote peer declaring a larger message is considered hostile.
	// One piece block plus message header fits comfortably.
	MaxLength = 128 * 1024

	// MaxBlockSize is the maximum accepted length of a block in piece and request messages.
	MaxBlockSize = 16 * 1024
)

// ErrTooLong is returned when a message declares a length larger than MaxLength.
var ErrTooLong = errors.New("received message is too long")

// fixedPayloadLength has the exact payload size of every message kind that
// does not carry variable-length data. A mismatching length prefix would
// desync the stream, so it fails the whole connection.
var fixedPayloadLength = map[MessageID]uint32{
	Choke:         0,
	Unchoke:       0,
	Interested:    0,
	NotInterested: 0,
	Have:          4,
	Request:       12,
	Cancel:        12,
	Port:          2,
}

// ReadMessage reads exactly one length-prefixed message from r.
//
// It returns (nil, nil) for keep-alive messages and for message types it does
// not know; unknown payloads are discarded so the stream stays framed.
// Reads restart transparently after partial reads because all reads go
// through io.ReadFull semantics.
func ReadMessage(r io.Reader) (Message, error) {
	var length uint32
	err := binary.Read(r, binary.BigEndian, &length)
	if err != nil {
		return nil, err
	}
	if length == 0 { // keep-alive
		return nil, nil
	}
	if length > MaxLength {
		return nil, ErrTooLong
	}

	var id MessageID
	err = binary.Read(r, binary.BigEndian, &id)
	if err != nil {
		return nil, err
	}
	length--
	if want, ok := fixedPayloadLength[id]; ok && length != want {
		return nil, fmt.Errorf("received %v message with payload length %d, must be %d", id, length, want)
	}

	switch id {
	case Choke:
		return ChokeMessage{}, nil
	case Unchoke:
		return UnchokeMessage{}, nil
	case Interested:
		return InterestedMessage{}, nil
	case NotInterested:
		return NotInterestedMessage{}, nil
	case Have:
		var hm HaveMessage
		err = binary.Read(r, binary.BigEndian, &hm)
		return hm, err
	case Bitfield:
		bm := BitfieldMessage{Data: make([]byte, length)}
		_, err = io.ReadFull(r, bm.Data)
		return bm, err
	case Request:
		var rm RequestMessage
		err = binary.Read(r, binary.BigEndian, &rm)
		if err != nil {
			return nil, err
		}
		if rm.Length > MaxBlockSize {
			return nil, fmt.Errorf("received a request with block size larger than allowed (%d > %d)", rm.Length, MaxBlockSize)
		}
		return rm, nil
	case Cancel:
		var cm CancelMessage
		err = binary.Read(r, binary.BigEndian, &cm)
		return cm, err
	case Piece:
		if length < 8 {
			return nil, errors.New("received a piece message shorter than its header")
		}
		var pm PieceMessage
		err = binary.Read(r, binary.BigEndian, &pm.Index)
		if err != nil {
			return nil, err
		}
		err = binary.Read(r, binary.BigEndian, &pm.Begin)
		if err != nil {
			return nil, err
		}
		length -= 8
		if length > MaxBlockSize {
			return nil, fmt.Errorf("received a piece with block size larger than allowed (%d > %d)", length, MaxBlockSize)
		}
		pm.Data = make([]byte, length)
		_, err = io.ReadFull(r, pm.Data)
		return pm, err
	case Port:
		var pm PortMessage
		err = binary.Read(r, binary.BigEndian, &pm)
		return pm, err
	default:
		_, err = io.CopyN(ioutil.Discard, r, int64(length))
		return nil, err
	}
}

// WriteMessage writes msg to w with its length prefix and type discriminant.
func WriteMessage(w io.Writer, msg Message) error {
	payload, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+len(payload)))
	buf[4] = byte(msg.ID())
	copy(buf[5:], payload)
	_, err = w.Write(buf)
	return err
}

// WriteKeepAlive writes a keep-alive message, a zero length prefix with no payload.
func WriteKeepAlive(w io.Writer) error {
	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}
