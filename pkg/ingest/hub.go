// Package ingest accepts landmark streams from pose estimators over WebSocket.
package ingest

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
)

// Hub manages WebSocket connections from estimators
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	logger  *slog.Logger

	// Callbacks
	onConnect    func(s *Stream)
	onDisconnect func(s *Stream)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesDropped    atomic.Uint64
}

// NewHub creates a new estimator hub
func NewHub() *Hub {
	return &Hub{
		streams: make(map[string]*Stream),
		logger:  log.Component("ingest"),
	}
}

// OnConnect sets the callback run when an estimator connects
func (h *Hub) OnConnect(callback func(s *Stream)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback run after an estimator's stream has ended
func (h *Hub) OnDisconnect(callback func(s *Stream)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/estimator", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/estimator", websocket.New(h.handleEstimator))
	app.Get("/ws/estimator/:id", websocket.New(h.handleEstimator))
}

// handleEstimator handles an estimator WebSocket connection
func (h *Hub) handleEstimator(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	stream := newStream(id, c)

	h.mu.Lock()
	if old, ok := h.streams[id]; ok {
		old.setState(pipeline.Ended)
	}
	h.streams[id] = stream
	count := len(h.streams)
	connectCb := h.onConnect
	h.mu.Unlock()

	h.logger.Info("estimator connected", "stream", id, "total", count)
	if connectCb != nil {
		connectCb(stream)
	}

	defer func() {
		stream.setState(pipeline.Ended)

		h.mu.Lock()
		if h.streams[id] == stream {
			delete(h.streams, id)
		}
		count := len(h.streams)
		disconnectCb := h.onDisconnect
		h.mu.Unlock()

		h.logger.Info("estimator disconnected", "stream", id, "total", count)
		if disconnectCb != nil {
			disconnectCb(stream)
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("estimator read error", "stream", id, "error", err)
			return
		}

		stream.touch()
		h.messagesReceived.Add(1)
		if done := h.handleMessage(stream, data); done {
			return
		}
	}
}

// handleMessage processes one estimator message. It reports true when the
// estimator has ended its stream.
func (h *Hub) handleMessage(s *Stream, data []byte) bool {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("parse error", "stream", s.ID, "error", err)
		return false
	}

	switch msg.Type {
	case protocol.TypeLandmarks:
		h.framesReceived.Add(1)
		d, err := msg.GetLandmarkData()
		if err != nil {
			h.logger.Warn("bad landmark frame", "stream", s.ID, "error", err)
			return false
		}
		if !s.pushLandmarks(d) {
			h.framesDropped.Add(1)
		}

	case protocol.TypePause:
		s.setState(pipeline.Paused)

	case protocol.TypeResume:
		s.setState(pipeline.Playing)

	case protocol.TypeEnd:
		s.setState(pipeline.Ended)
		return true

	case protocol.TypePing:
		h.SendPong(s.ID, msg.Timestamp)
	}
	return false
}

// SendPong sends a pong response to an estimator
func (h *Hub) SendPong(id string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendTo(id, msg)
}

func (h *Hub) sendTo(id string, msg *protocol.Message) error {
	h.mu.RLock()
	s, ok := h.streams[id]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "estimator not connected")
	}

	h.messagesSent.Add(1)
	return s.Send(msg)
}

// Stream returns a stream by ID
func (h *Hub) Stream(id string) *Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.streams[id]
}

// Count returns the number of connected estimators
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// Stats contains hub statistics
type Stats struct {
	StreamCount      int    `json:"stream_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		StreamCount:      h.Count(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesDropped:    h.framesDropped.Load(),
	}
}

// Infos returns info about all connected estimators, oldest first
func (h *Hub) Infos() []Info {
	h.mu.RLock()
	infos := make([]Info, 0, len(h.streams))
	for _, s := range h.streams {
		infos = append(infos, s.Info())
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Connected.Before(infos[j].Connected)
	})
	return infos
}

// RegisterAPIRoutes registers API routes for estimator management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	streams := api.Group("/streams")

	streams.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"streams": h.Infos(),
			"count":   h.Count(),
		})
	})

	streams.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
