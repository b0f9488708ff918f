package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-mimic/pkg/landmark"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/protocol"
)

// Stream is one connected pose estimator. It is both the frame driver's
// source (playback state and media time) and its detector (the latest
// landmark set).
type Stream struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu        sync.Mutex
	writeMu   sync.Mutex
	lastSeen  time.Time
	state     pipeline.SourceState
	mediaTime time.Duration
	seq       uint64
	set       *landmark.Set
	decodeErr error
	frames    uint64
	held      bool // Explicit pause; landmark frames do not resume playback
}

func newStream(id string, conn *websocket.Conn) *Stream {
	now := time.Now()
	return &Stream{
		ID:        id,
		Conn:      conn,
		Connected: now,
		lastSeen:  now,
		state:     pipeline.Paused, // Until the first landmark frame arrives
	}
}

// State implements pipeline.Source.
func (s *Stream) State() pipeline.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentTime implements pipeline.Source. It is the media time of the
// latest landmark frame.
func (s *Stream) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaTime
}

// Detect implements pipeline.Detector. It returns the latest landmark set,
// or the error that made the latest frame undecodable.
func (s *Stream) Detect(ctx context.Context) (*landmark.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decodeErr != nil {
		return nil, s.decodeErr
	}
	return s.set, nil
}

// LastSeen returns when the estimator last sent anything.
func (s *Stream) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Send writes a message to the estimator.
func (s *Stream) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.Conn == nil {
		return fmt.Errorf("ingest: stream %s has no connection", s.ID)
	}
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Stream) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// pushLandmarks records a landmark frame. Frames older than the current
// media time are dropped. A frame starts playback unless the source sent an
// explicit pause.
func (s *Stream) pushLandmarks(d *protocol.LandmarkData) bool {
	set, err := d.Set()
	t := time.Duration(d.TimestampMs) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == pipeline.Ended {
		return false
	}
	if s.frames > 0 && t < s.mediaTime {
		return false
	}
	s.set, s.decodeErr = set, err
	s.mediaTime = t
	s.seq = d.Seq
	s.frames++
	if !s.held {
		s.state = pipeline.Playing
	}
	return true
}

func (s *Stream) setState(state pipeline.SourceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == pipeline.Ended {
		return
	}
	s.state = state
	s.held = state == pipeline.Paused
}

// Info is a snapshot of a stream for the API.
type Info struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Seq       uint64    `json:"seq"`
	Frames    uint64    `json:"frames"`
	MediaMs   int64     `json:"media_ms"`
}

// Info returns a snapshot of the stream.
func (s *Stream) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.ID,
		State:     s.state.String(),
		Connected: s.Connected,
		LastSeen:  s.lastSeen,
		Seq:       s.seq,
		Frames:    s.frames,
		MediaMs:   s.mediaTime.Milliseconds(),
	}
}
