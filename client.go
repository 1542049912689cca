package boost

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/boostbt/boost/internal/acceptor"
	"github.com/boostbt/boost/internal/announcer"
	"github.com/boostbt/boost/internal/counters"
	"github.com/boostbt/boost/internal/logger"
	"github.com/boostbt/boost/internal/metainfo"
	"github.com/boostbt/boost/internal/peer"
	"github.com/boostbt/boost/internal/peerprotocol"
	"github.com/boostbt/boost/internal/tracker"
)

// Client announces a single torrent to its tracker and maintains connections
// to the peers the tracker returns, as well as peers that connect to us.
type Client struct {
	config    Config
	peerID    [20]byte
	metainfo  *metainfo.MetaInfo
	trk       tracker.Tracker
	counters  counters.Counters
	log       logger.Logger
	metrics   *clientMetrics
	createdAt time.Time

	downloadBucket *ratelimit.Bucket
	uploadBucket   *ratelimit.Bucket

	// Run loop state. Only the run goroutine touches these.
	peers    map[peer.ID]*peer.Peer
	numConns int
	dialing  int

	listener  net.Listener
	acceptor  *acceptor.Acceptor
	announcer *announcer.PeriodicalAnnouncer

	messagesC     chan peer.Message
	eventsC       chan peer.Event
	newPeersC     chan []tracker.PeerAddress
	connectedC    chan *peer.Peer
	statsCommandC chan statsRequest
	closeC        chan struct{}
	doneC         chan struct{}
	closeOnce     sync.Once
}

// NewClient returns a new Client for the torrent read from r.
// A nil cfg means DefaultConfig.
func NewClient(r io.Reader, cfg *Config) (*Client, error) {
	mi, err := metainfo.New(r)
	if err != nil {
		return nil, err
	}
	return newClient(mi, cfg)
}

// NewClientFromFile returns a new Client for the torrent file at the path.
func NewClientFromFile(path string, cfg *Config) (*Client, error) {
	mi, err := metainfo.Open(path)
	if err != nil {
		return nil, err
	}
	return newClient(mi, cfg)
}

func newClient(mi *metainfo.MetaInfo, cfg *Config) (*Client, error) {
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	peerID, err := generatePeerID()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(mi.Announce)
	if err != nil {
		return nil, err
	}
	c := &Client{
		config:        *cfg,
		peerID:        peerID,
		metainfo:      mi,
		trk:           tracker.NewHTTPTracker(u, cfg.Tracker.timeout()),
		counters:      counters.New(0, 0, mi.Info.TotalLength),
		log:           logger.New("client " + mi.Info.Name),
		createdAt:     time.Now(),
		peers:         make(map[peer.ID]*peer.Peer),
		messagesC:     make(chan peer.Message),
		eventsC:       make(chan peer.Event),
		newPeersC:     make(chan []tracker.PeerAddress),
		connectedC:    make(chan *peer.Peer),
		statsCommandC: make(chan statsRequest),
		closeC:        make(chan struct{}),
		doneC:         make(chan struct{}),
	}
	c.metrics = newClientMetrics(c.createdAt)
	if cfg.SpeedLimitDownload > 0 {
		bps := int64(cfg.SpeedLimitDownload) * 1024
		c.downloadBucket = ratelimit.NewBucketWithRate(float64(bps), bps)
	}
	if cfg.SpeedLimitUpload > 0 {
		bps := int64(cfg.SpeedLimitUpload) * 1024
		c.uploadBucket = ratelimit.NewBucketWithRate(float64(bps), bps)
	}
	return c, nil
}

// PeerID returns the id the client sends in handshakes and announces.
func (c *Client) PeerID() [20]byte { return c.peerID }

// Port the client is listening on. Zero before Start.
func (c *Client) Port() int {
	if c.listener == nil {
		return 0
	}
	return c.listener.Addr().(*net.TCPAddr).Port
}

// Start begins listening for incoming peers and announcing to the tracker.
func (c *Client) Start() error {
	listener, err := net.Listen("tcp4", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return err
	}
	c.listener = listener
	c.log.Notice("Listening peers on tcp://" + listener.Addr().String())

	limiter := make(chan struct{}, c.config.Peer.MaxConnections)
	c.acceptor = acceptor.New(
		listener,
		c.peerID,
		c.metainfo.Info.Hash,
		c.config.Peer.handshakeTimeout(),
		limiter,
		c.messagesC,
		c.eventsC,
		c.downloadBucket,
		c.uploadBucket,
		logger.New("acceptor"),
	)
	c.announcer = announcer.NewPeriodicalAnnouncer(
		c.trk,
		c.config.Tracker.NumWant,
		c.config.Tracker.minInterval(),
		c.announceTorrent,
		c.newPeersC,
		logger.New("announcer "+c.trk.URL()),
	)
	go c.acceptor.Run(c.closeC)
	go c.announcer.Run()
	go c.run()
	return nil
}

// Close stops the client: all peer connections are torn down, the tracker is
// sent a "stopped" event, and the listener is closed. Blocks until done.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closeC) })
	<-c.doneC
}

func (c *Client) announceTorrent() tracker.Torrent {
	return tracker.Torrent{
		BytesUploaded:   c.counters.Read(counters.BytesUploaded),
		BytesDownloaded: c.counters.Read(counters.BytesDownloaded),
		BytesLeft:       c.counters.Read(counters.BytesLeft),
		InfoHash:        c.metainfo.Info.Hash,
		PeerID:          c.peerID,
		Port:            c.Port(),
	}
}

func (c *Client) run() {
	defer close(c.doneC)
	for {
		select {
		case addrs := <-c.newPeersC:
			c.dialPeers(addrs)
		case p := <-c.connectedC:
			c.dialing--
			if p != nil {
				c.addPeer(p)
			}
		case ev := <-c.eventsC:
			c.handlePeerEvent(ev)
		case msg := <-c.messagesC:
			c.handleMessage(msg)
		case req := <-c.statsCommandC:
			req.Response <- c.stats()
		case <-c.closeC:
			c.stop()
			return
		}
	}
}

func (c *Client) dialPeers(addrs []tracker.PeerAddress) {
	for _, pa := range addrs {
		if pa.HasID() && *pa.ID == c.peerID {
			continue
		}
		if pa.HasID() {
			if _, ok := c.peers[peer.ID(*pa.ID)]; ok {
				continue
			}
		}
		if c.numConns+c.dialing >= c.config.Peer.MaxConnections {
			break
		}
		c.dialing++
		go func(addr *net.TCPAddr) {
			p, err := peer.Connect(
				addr,
				c.config.Peer.dialTimeout(),
				c.config.Peer.handshakeTimeout(),
				c.metainfo.Info.Hash,
				c.peerID,
				c.messagesC,
				c.eventsC,
				c.downloadBucket,
				c.uploadBucket,
				c.closeC,
			)
			if err != nil {
				logger.New("peer -> "+addr.String()).Debugln("cannot connect peer:", err)
			}
			c.connectedC <- p
		}(pa.Addr)
	}
}

// addPeer starts tracking a bridging connection. Connections that duplicate
// an already tracked peer id are closed; their Stopped event is still counted
// through numConns.
func (c *Client) addPeer(p *peer.Peer) {
	c.numConns++
	if _, ok := c.peers[p.ID]; ok {
		p.Logger().Debugln("peer already connected, dropping duplicate connection")
		p.Close()
		return
	}
	if len(c.peers) >= c.config.Peer.MaxConnections {
		p.Logger().Debugln("peer limit reached, dropping connection")
		p.Close()
		return
	}
	c.peers[p.ID] = p
	c.metrics.Peers.Inc(1)
	c.announcer.NeedMorePeers(len(c.peers) < c.config.Peer.MaxConnections/2)
}

func (c *Client) handlePeerEvent(ev peer.Event) {
	switch ev.Type {
	case peer.Started:
		c.addPeer(ev.Peer)
	case peer.Stopped:
		c.numConns--
		if c.peers[ev.ID] == ev.Peer {
			delete(c.peers, ev.ID)
			c.metrics.Peers.Dec(1)
			c.announcer.NeedMorePeers(len(c.peers) < c.config.Peer.MaxConnections/2)
		}
	}
}

func (c *Client) handleMessage(msg peer.Message) {
	c.metrics.MessagesIn.Mark(1)
	switch m := msg.Payload.(type) {
	case peerprotocol.PieceMessage:
		n := int64(len(m.Data))
		c.counters.Incr(counters.BytesDownloaded, n)
		c.counters.Incr(counters.BytesLeft, -n)
		c.metrics.SpeedDownload.Mark(n)
	case peerprotocol.RequestMessage:
		// We do not serve pieces. Keep the peer choked so it stops asking.
		if p, ok := c.peers[msg.ID]; ok {
			_ = p.Choke()
		}
	}
}

// stop tears down every connection and waits for each one's Stopped event,
// then tells the tracker the transfer has stopped.
func (c *Client) stop() {
	c.log.Info("stopping client")
	c.listener.Close()
	c.announcer.Close()
	for _, p := range c.peers {
		p.Close()
	}
	for c.numConns > 0 || c.dialing > 0 {
		select {
		case p := <-c.connectedC:
			c.dialing--
			if p != nil {
				c.numConns++
				p.Close()
			}
		case ev := <-c.eventsC:
			switch ev.Type {
			case peer.Started:
				c.numConns++
				ev.Peer.Close()
			case peer.Stopped:
				c.numConns--
			}
		case <-c.messagesC:
		}
	}

	resultC := make(chan struct{})
	sa := announcer.NewStopAnnouncer(c.trk, c.announceTorrent(), c.config.Tracker.stopTimeout(), resultC, logger.New("stop announcer"))
	go sa.Run()
	<-resultC

	c.metrics.Close()
	c.log.Info("client stopped")
}

// Stats about the client.
type Stats struct {
	// Number of connected peers.
	Peers int

	BytesDownloaded int64
	BytesUploaded   int64
	BytesLeft       int64

	// State of the periodical announcer.
	Tracker announcer.Stats
}

type statsRequest struct {
	Response chan Stats
}

// Stats returns a snapshot of the client state. Valid after Start.
func (c *Client) Stats() Stats {
	var stats Stats
	if c.announcer == nil {
		return stats
	}
	req := statsRequest{Response: make(chan Stats, 1)}
	select {
	case c.statsCommandC <- req:
	case <-c.doneC:
		return c.stats()
	}
	select {
	case stats = <-req.Response:
	case <-c.doneC:
	}
	return stats
}

func (c *Client) stats() Stats {
	return Stats{
		Peers:           len(c.peers),
		BytesDownloaded: c.counters.Read(counters.BytesDownloaded),
		BytesUploaded:   c.counters.Read(counters.BytesUploaded),
		BytesLeft:       c.counters.Read(counters.BytesLeft),
		Tracker:         c.announcer.Stats(),
	}
}
