// Package tracker provides support for announcing torrents to HTTP trackers.
package tracker

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Tracker is the common interface implemented by tracker clients.
type Tracker interface {
	// Announce transfer to the tracker.
	// Announce should be called periodically with the interval returned in AnnounceResponse.
	// Announce should also be called on specific events.
	Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error)

	// URL of the tracker.
	URL() string
}

// AnnounceRequest contains the parameters that are sent in an announce.
type AnnounceRequest struct {
	Torrent Torrent
	Event   Event
	NumWant int
}

// Torrent contains fields that describe the transfer being announced.
type Torrent struct {
	BytesUploaded   int64
	BytesDownloaded int64
	BytesLeft       int64
	InfoHash        [20]byte
	PeerID          [20]byte
	Port            int
}

// AnnounceResponse is a successfully parsed announce reply.
//
// A non-empty WarningMessage means the tracker classified the reply as a
// warning; the rest of the fields are still fully populated.
type AnnounceResponse struct {
	Interval       time.Duration
	MinInterval    time.Duration
	TrackerID      string
	Seeders        int32
	Leechers       int32
	WarningMessage string
	Peers          []PeerAddress
}

var (
	// ErrDecode is returned when a response body is not valid bencode.
	ErrDecode = errors.New("cannot decode response")

	// ErrInvalidResponse is returned when a response decodes fine but does
	// not carry the mandatory announce fields in their correct form.
	ErrInvalidResponse = errors.New("invalid response")
)

// Error is the failure reason string sent by the tracker in an announce response.
type Error struct {
	FailureReason string
}

func (e *Error) Error() string { return e.FailureReason }

// StatusError is returned from announces when the HTTP response code is not 200 OK.
// The response body is not inspected in that case.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "http status: " + strconv.Itoa(e.Code)
}
