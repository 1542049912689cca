// Package peerprotocol contains types and functions for the BitTorrent peer wire protocol.
package peerprotocol

import (
	"bytes"
	"encoding"
	"encoding/binary"
)

// Message is a peer message of the BitTorrent wire protocol.
type Message interface {
	encoding.BinaryMarshaler
	ID() MessageID
}

// HaveMessage indicates a peer has the piece with index.
type HaveMessage struct {
	Index uint32
}

// ID returns the peer protocol message type.
func (m HaveMessage) ID() MessageID { return Have }

// MarshalBinary returns the payload bytes.
func (m HaveMessage) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4))
	err := binary.Write(buf, binary.BigEndian, m)
	return buf.Bytes(), err
}

// RequestMessage is sent when a peer wants a certain block of a piece.
type RequestMessage struct {
	Index, Begin, Length uint32
}

// ID returns the peer protocol message type.
func (m RequestMessage) ID() MessageID { return Request }

// MarshalBinary returns the payload bytes.
func (m RequestMessage) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 12))
	err := binary.Write(buf, binary.BigEndian, m)
	return buf.Bytes(), err
}

// PieceMessage carries a block of piece data.
type PieceMessage struct {
	Index, Begin uint32
	Data         []byte
}

// ID returns the peer protocol message type.
func (m PieceMessage) ID() MessageID { return Piece }

// MarshalBinary returns the payload bytes.
func (m PieceMessage) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8+len(m.Data)))
	binary.Write(buf, binary.BigEndian, m.Index) // nolint: errcheck
	binary.Write(buf, binary.BigEndian, m.Begin) // nolint: errcheck
	buf.Write(m.Data)
	return buf.Bytes(), nil
}

// BitfieldMessage is sent after the handshake to tell which pieces the peer has.
type BitfieldMessage struct {
	Data []byte
}

// ID returns the peer protocol message type.
func (m BitfieldMessage) ID() MessageID { return Bitfield }

// MarshalBinary returns the payload bytes.
func (m BitfieldMessage) MarshalBinary() ([]byte, error) {
	return m.Data, nil
}

// PortMessage announces the UDP port number of the DHT node run by the peer.
type PortMessage struct {
	Port uint16
}

// ID returns the peer protocol message type.
func (m PortMessage) ID() MessageID { return Port }

// MarshalBinary returns the payload bytes.
func (m PortMessage) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 2))
	err := binary.Write(buf, binary.BigEndian, m)
	return buf.Bytes(), err
}

type emptyMessage struct{}

// MarshalBinary returns the payload bytes.
func (m emptyMessage) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

// ChokeMessage tells the peer that it should not request pieces.
type ChokeMessage struct{ emptyMessage }

// UnchokeMessage tells the peer that it may request pieces.
type UnchokeMessage struct{ emptyMessage }

// InterestedMessage tells the peer that we want to request pieces.
type InterestedMessage struct{ emptyMessage }

// NotInterestedMessage tells the peer that we don't want anything from it.
type NotInterestedMessage struct{ emptyMessage }

// CancelMessage cancels a previously sent request.
type CancelMessage struct{ RequestMessage }

// ID returns the peer protocol message type.
func (m ChokeMessage) ID() MessageID { return Choke }

// ID returns the peer protocol message type.
func (m UnchokeMessage) ID() MessageID { return Unchoke }

// ID returns the peer protocol message type.
func (m InterestedMessage) ID() MessageID { return Interested }

// ID returns the peer protocol message type.
func (m NotInterestedMessage) ID() MessageID { return NotInterested }

// ID returns the peer protocol message type.
func (m CancelMessage) ID() MessageID { return Cancel }
