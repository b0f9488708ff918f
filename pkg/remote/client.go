// Package remote pushes joint command frames to a renderer over a gorilla
// WebSocket connection.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
	"github.com/teslashibe/go-mimic/pkg/visibility"
)

// DeadZoneRad is the default minimum joint change worth sending (~0.3°).
const DeadZoneRad = 0.005

// ErrBackoff is returned while the client waits before redialing.
var ErrBackoff = errors.New("remote: waiting to reconnect")

// Config configures the client.
type Config struct {
	URL           string        `mapstructure:"url" json:"url"` // Empty disables the client
	DeadZone      float64       `mapstructure:"dead_zone" json:"dead_zone"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval" json:"retry_interval"`
}

// DefaultConfig returns a disabled client configuration.
func DefaultConfig() Config {
	return Config{
		DeadZone:      DeadZoneRad,
		DialTimeout:   5 * time.Second,
		RetryInterval: 2 * time.Second,
	}
}

// sendBuffer is how many encoded frames may wait for the writer.
const sendBuffer = 16

// Client is a pipeline.FrameSink. Frames whose every joint moved less than
// the dead zone, with an unchanged visibility state, are not sent.
//
// HandleFrame never touches the network: dialing and writing happen on
// background goroutines so a stalled renderer cannot hold up the frame loop.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger

	mu         sync.Mutex
	link       *link
	dialing    bool
	cancelDial context.CancelFunc
	lastDial   time.Time
	pending    *outgoing // Latest frame seen while disconnected
	lastSent   map[string]float64
	lastState  visibility.State
	primed     bool // lastSent reflects what this connection has seen

	// Diagnostics
	frames        uint64
	sent          uint64
	skipped       uint64
	errorCount    uint64
	lastErrorTime time.Time
}

// link is one renderer connection and its writer.
type link struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}

type outgoing struct {
	data  []byte
	state visibility.State
	cmds  map[string]float64
}

// New creates a client. It dials lazily on the first frame.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.DeadZone <= 0 {
		cfg.DeadZone = def.DeadZone
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		logger:   log.Component("remote").With("url", cfg.URL),
		lastSent: make(map[string]float64),
	}
}

// HandleFrame implements pipeline.FrameSink. While disconnected the frame is
// kept as pending and a background dial is started; ErrBackoff is returned
// while the retry interval has not elapsed since the last failed dial.
func (c *Client) HandleFrame(_ context.Context, res pipeline.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames++
	if c.frames%300 == 0 {
		c.logger.Debug("remote heartbeat",
			"frames", c.frames, "sent", c.sent, "skipped", c.skipped, "errors", c.errorCount)
	}

	if c.link != nil && !c.changed(res) {
		c.skipped++
		return nil
	}

	out, err := encode(res)
	if err != nil {
		return err
	}

	if c.link == nil {
		c.pending = out
		return c.startDial()
	}
	return c.enqueue(out)
}

func encode(res pipeline.Result) (*outgoing, error) {
	msg, err := protocol.NewJointsMessage(res.Seq, res.Source, res.Frame)
	if err != nil {
		return nil, err
	}
	data, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	cmds := make(map[string]float64, len(res.Frame.Commands))
	for _, cmd := range res.Frame.Commands {
		cmds[cmd.Joint] = cmd.Value
	}
	return &outgoing{data: data, state: res.Frame.State, cmds: cmds}, nil
}

// enqueue hands a frame to the writer without blocking. c.mu must be held.
func (c *Client) enqueue(out *outgoing) error {
	select {
	case c.link.send <- out.data:
	default:
		c.skipped++
		return errors.New("remote: send buffer full")
	}
	c.sent++
	c.primed = true
	c.lastState = out.state
	for joint, v := range out.cmds {
		c.lastSent[joint] = v
	}
	return nil
}

// changed reports whether the frame differs from the last one sent by more
// than the dead zone.
func (c *Client) changed(res pipeline.Result) bool {
	if !c.primed || res.Frame.State != c.lastState {
		return true
	}
	for _, cmd := range res.Frame.Commands {
		prev, ok := c.lastSent[cmd.Joint]
		if !ok || math.Abs(cmd.Value-prev) >= c.cfg.DeadZone {
			return true
		}
	}
	return false
}

// startDial launches a background dial unless one is running or the client
// is backing off. c.mu must be held.
func (c *Client) startDial() error {
	if c.dialing {
		return nil
	}
	if !c.lastDial.IsZero() && time.Since(c.lastDial) < c.cfg.RetryInterval {
		return ErrBackoff
	}
	c.lastDial = time.Now()
	c.dialing = true

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.cancelDial = cancel
	go c.dial(ctx, cancel)
	return nil
}

func (c *Client) dial(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = false
	c.cancelDial = nil
	if errors.Is(ctx.Err(), context.Canceled) {
		// Close ran while dialing
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.failed(fmt.Errorf("dial renderer: %w", err))
		return
	}

	l := &link{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	c.link = l
	c.primed = false
	clear(c.lastSent)
	go c.write(l)
	go c.drain(l)
	c.logger.Info("renderer connected")

	if c.pending != nil {
		c.enqueue(c.pending)
		c.pending = nil
	}
}

// write is the only goroutine writing data frames to the connection.
func (c *Client) write(l *link) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.send:
			l.conn.SetWriteDeadline(time.Now().Add(c.cfg.DialTimeout))
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.drop(l, fmt.Errorf("send joints: %w", err))
				return
			}
		}
	}
}

// drain reads until the connection fails so control frames are handled.
func (c *Client) drain(l *link) {
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			c.drop(l, err)
			return
		}
	}
}

// drop retires l if it is still the current connection.
func (c *Client) drop(l *link, err error) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
		c.failed(err)
		c.logger.Info("renderer disconnected", "error", err)
	}
	c.mu.Unlock()
	l.close()
}

// failed logs errors at most once per 5 seconds.
func (c *Client) failed(err error) {
	c.errorCount++
	if c.lastErrorTime.IsZero() || time.Since(c.lastErrorTime) > 5*time.Second {
		c.logger.Warn("remote renderer error", "error", err, "total_errors", c.errorCount)
		c.lastErrorTime = time.Now()
	}
}

// Stats are the client's counters.
type Stats struct {
	Connected bool   `json:"connected"`
	Frames    uint64 `json:"frames"`
	Sent      uint64 `json:"sent"`
	Skipped   uint64 `json:"skipped"`
	Errors    uint64 `json:"errors"`
}

// Stats returns the client's counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Connected: c.link != nil,
		Frames:    c.frames,
		Sent:      c.sent,
		Skipped:   c.skipped,
		Errors:    c.errorCount,
	}
}

// Close cancels a running dial and closes the connection with a normal
// close frame. A later frame dials again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelDial != nil {
		c.cancelDial()
	}
	c.pending = nil
	l := c.link
	if l == nil {
		return nil
	}
	c.link = nil
	err := l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	l.close()
	return err
}
