package tracker

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zeebo/bencode"

	"github.com/boostbt/boost/internal/logger"
)

// HTTPTracker announces to a tracker over the HTTP protocol.
type HTTPTracker struct {
	rawURL    string
	url       *url.URL
	log       logger.Logger
	http      *http.Client
	trackerID string
}

var _ Tracker = (*HTTPTracker)(nil)

// NewHTTPTracker returns a new HTTPTracker for the announce URL.
func NewHTTPTracker(u *url.URL, timeout time.Duration) *HTTPTracker {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}
	return &HTTPTracker{
		rawURL: u.String(),
		url:    u,
		log:    logger.New("tracker " + u.String()),
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// URL of the tracker.
func (t *HTTPTracker) URL() string { return t.rawURL }

// announceResponse is the bencode shape of an announce reply.
// Mandatory fields are pointers so a missing key can be told apart from a zero value.
type announceResponse struct {
	FailureReason  *string            `bencode:"failure reason"`
	WarningMessage string             `bencode:"warning message"`
	Interval       *int64             `bencode:"interval"`
	MinInterval    int64              `bencode:"min interval"`
	TrackerID      string             `bencode:"tracker id"`
	Complete       *int32             `bencode:"complete"`
	Incomplete     *int32             `bencode:"incomplete"`
	Peers          bencode.RawMessage `bencode:"peers"`
}

// Announce does a single announce exchange with the tracker.
//
// A "failure reason" in the reply is returned as *Error; a non-200 status as
// *StatusError. A reply carrying a "warning message" is returned with the
// WarningMessage field set, otherwise a nil error means a plain success.
// No retry is done here; callers decide when to announce again.
func (t *HTTPTracker) Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error) {
	infoHash := req.Torrent.InfoHash
	peerID := req.Torrent.PeerID
	q := url.Values{}
	q.Set("info_hash", string(infoHash[:]))
	q.Set("peer_id", string(peerID[:]))
	q.Set("port", strconv.Itoa(req.Torrent.Port))
	q.Set("uploaded", strconv.FormatInt(req.Torrent.BytesUploaded, 10))
	q.Set("downloaded", strconv.FormatInt(req.Torrent.BytesDownloaded, 10))
	q.Set("left", strconv.FormatInt(req.Torrent.BytesLeft, 10))
	if req.NumWant > 0 {
		q.Set("numwant", strconv.Itoa(req.NumWant))
	}
	if req.Event != EventNone {
		q.Set("event", req.Event.String())
	}
	if t.trackerID != "" {
		q.Set("trackerid", t.trackerID)
	}

	u := *t.url
	if u.RawQuery != "" {
		u.RawQuery += "&" + q.Encode()
	} else {
		u.RawQuery = q.Encode()
	}
	t.log.Debugf("making request to: %q", u.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(httpReq)
	if err != nil {
		// Transport level failure. The context error is more useful when the
		// announce was cancelled.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var response announceResponse
	if err = bencode.DecodeBytes(body, &response); err != nil {
		return nil, ErrDecode
	}
	if response.FailureReason != nil {
		// All other keys are ignored on failure.
		return nil, &Error{FailureReason: *response.FailureReason}
	}
	if response.Interval == nil || response.Complete == nil || response.Incomplete == nil || len(response.Peers) == 0 {
		return nil, ErrInvalidResponse
	}

	peers, err := t.parsePeers(response.Peers)
	if err != nil {
		return nil, err
	}

	if response.TrackerID != "" {
		t.trackerID = response.TrackerID
	}
	if response.WarningMessage != "" {
		t.log.Warning(response.WarningMessage)
	}

	return &AnnounceResponse{
		Interval:       time.Duration(*response.Interval) * time.Second,
		MinInterval:    time.Duration(response.MinInterval) * time.Second,
		TrackerID:      response.TrackerID,
		Seeders:        *response.Complete,
		Leechers:       *response.Incomplete,
		WarningMessage: response.WarningMessage,
		Peers:          peers,
	}, nil
}

// Peers may be in dictionary or compact model.
func (t *HTTPTracker) parsePeers(raw bencode.RawMessage) ([]PeerAddress, error) {
	if raw[0] == 'l' {
		return t.parsePeersDictionary(raw)
	}
	var b []byte
	if err := bencode.DecodeBytes(raw, &b); err != nil {
		// Neither a list nor a byte string.
		return nil, ErrInvalidResponse
	}
	return DecodePeersCompact(b)
}

func (t *HTTPTracker) parsePeersDictionary(raw bencode.RawMessage) ([]PeerAddress, error) {
	var entries []struct {
		PeerID string `bencode:"peer id"`
		IP     string `bencode:"ip"`
		Port   int    `bencode:"port"`
	}
	if err := bencode.DecodeBytes(raw, &entries); err != nil {
		return nil, ErrInvalidResponse
	}

	peers := make([]PeerAddress, len(entries))
	for i, e := range entries {
		if len(e.PeerID) != 20 {
			return nil, ErrInvalidResponse
		}
		ip := net.ParseIP(e.IP)
		if ip == nil {
			return nil, ErrInvalidResponse
		}
		if e.Port <= 0 || e.Port > 65535 {
			return nil, ErrInvalidResponse
		}
		var id [20]byte
		copy(id[:], e.PeerID)
		peers[i] = PeerAddress{
			Addr: &net.TCPAddr{IP: ip, Port: e.Port},
			ID:   &id,
		}
	}
	return peers, nil
}
