package peer

// EventType tells what happened to a connection.
type EventType int

const (
	// Started means an incoming connection completed its handshake and began
	// bridging. Outgoing connections do not produce Started events because
	// Connect hands the peer back directly.
	Started EventType = iota

	// Stopped means a bridging connection has ended. It is delivered exactly
	// once per connection, on every termination path, and never without the
	// connection having reached the bridging state first.
	Stopped
)

// Event is a lifecycle notification for one peer connection.
type Event struct {
	Type EventType

	// ID of the peer the event is about.
	ID ID

	// Peer is the handle of the connection the event is about. Because a
	// peer id may be seen on more than one connection, consumers tracking
	// handles by id should compare Peer before dropping an entry.
	Peer *Peer
}
