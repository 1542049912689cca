package announcer

import (
	"context"
	"time"

	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/tracker"
)

// StopAnnouncer sends the "stopped" event to the tracker. It makes a single
// attempt bounded by a timeout and signals resultC when done, whether the
// announce succeeded or not.
type StopAnnouncer struct {
	log     logger.Logger
	timeout time.Duration
	tracker tracker.Tracker
	torrent tracker.Torrent
	resultC chan struct{}
	closeC  chan struct{}
	doneC   chan struct{}
}

// NewStopAnnouncer returns a new StopAnnouncer.
func NewStopAnnouncer(trk tracker.Tracker, torrent tracker.Torrent, timeout time.Duration, resultC chan struct{}, l logger.Logger) *StopAnnouncer {
	return &StopAnnouncer{
		log:     l,
		timeout: timeout,
		tracker: trk,
		torrent: torrent,
		resultC: resultC,
		closeC:  make(chan struct{}),
		doneC:   make(chan struct{}),
	}
}

// Close the announcer, abandoning the attempt.
func (a *StopAnnouncer) Close() {
	close(a.closeC)
	<-a.doneC
}

// Run the announcer.
func (a *StopAnnouncer) Run() {
	defer close(a.doneC)

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-a.closeC:
			cancel()
		}
	}()

	req := tracker.AnnounceRequest{
		Torrent: a.torrent,
		Event:   tracker.EventStopped,
	}
	if _, err := a.tracker.Announce(ctx, req); err != nil {
		a.log.Debugln("stop announce failed:", err)
	}
	select {
	case a.resultC <- struct{}{}:
	case <-a.closeC:
	}
}
