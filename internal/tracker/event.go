package tracker

// Event type that is sent in an announce request.
type Event int

// Tracker announce events.
const (
	EventNone Event = iota
	EventCompleted
	EventStarted
	EventStopped
)

var eventNames = [...]string{
	"",
	"completed",
	"started",
	"stopped",
}

// String returns the name of the event as represented in the HTTP tracker protocol.
func (e Event) String() string {
	return eventNames[e]
}
