package counters

import "sync/atomic"

type counterName int

// stats
const (
	BytesDownloaded counterName = iota
	BytesUploaded
	BytesLeft
)

// Counters provides concurrent-safe access over the transfer counters
// reported to the tracker.
type Counters [3]int64

func New(dl, ul, left int64) Counters {
	var c Counters
	c.Incr(BytesDownloaded, dl)
	c.Incr(BytesUploaded, ul)
	c.Incr(BytesLeft, left)
	return c
}

func (c *Counters) Incr(name counterName, value int64) {
	atomic.AddInt64(&c[name], value)
}

func (c *Counters) Read(name counterName) int64 {
	return atomic.LoadInt64(&c[name])
}
