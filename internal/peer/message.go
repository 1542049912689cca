package peer

import "github.com/boostbt/boost/internal/peerprotocol"

// Message couples a decoded wire message with the id of the peer that sent
// it. The shared channel carries traffic from every connection, so consumers
// need the tag to attribute messages.
type Message struct {
	ID      ID
	Payload peerprotocol.Message
}
