// Package boost provides the networking core of a BitTorrent client: a
// tracker announce client and an engine that maintains peer wire protocol
// connections discovered through the tracker.
package boost

import (
	"crypto/rand"

	"github.com/cenkalti/log"

	"github.com/boostbt/boost/internal/logger"
)

// Version of the client. Set when building:
// "$ go build -ldflags "-X github.com/boostbt/boost.Version=0001" ./cmd/boost"
var Version = "0001"

// http://www.bittorrent.org/beps/bep_0020.html
var peerIDPrefix = []byte("-BO" + Version + "-")

func generatePeerID() ([20]byte, error) {
	var id [20]byte
	copy(id[:], peerIDPrefix)
	_, err := rand.Read(id[len(peerIDPrefix):])
	return id, err
}

// SetLogLevel changes the level of the log messages printed to the console.
func SetLogLevel(l log.Level) {
	logger.SetLevel(l)
}
