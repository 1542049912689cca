package btconn

var (
	errInvalidProtocol = &Error{"invalid protocol string"}

	// ErrInvalidInfoHash is returned when the announced info hash does not
	// match the torrent being transferred on this connection.
	ErrInvalidInfoHash = &Error{"invalid info hash"}

	// ErrOwnConnection is returned when the remote peer id is our own id,
	// meaning we have connected to ourselves.
	ErrOwnConnection = &Error{"dropped own connection"}
)

// Error is a handshake failure. Any handshake failure is fatal to the connection.
type Error struct {
	message string
}

func (e *Error) Error() string {
	return e.message
}
