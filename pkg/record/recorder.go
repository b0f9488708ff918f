package record

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
)

// Config controls recording.
type Config struct {
	Path  string `mapstructure:"path" json:"path"`   // Empty disables recording
	Every int    `mapstructure:"every" json:"every"` // Keep every Nth frame; failures are always kept
}

// DefaultConfig records every frame to mimic.db.
func DefaultConfig() Config {
	return Config{Path: "mimic.db", Every: 1}
}

// Recorder is a pipeline.FrameSink that writes frame outcomes to a store.
// A new session starts whenever the frame source changes. Frames without a
// source (the reset pose after a detach) end the open session and are not
// stored.
type Recorder struct {
	store  *Store
	robot  string
	every  uint64
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
	count   uint64
}

// NewRecorder creates a recorder for the named robot.
func NewRecorder(store *Store, robot string, every int) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{
		store:  store,
		robot:  robot,
		every:  uint64(every),
		logger: log.Component("record"),
	}
}

// HandleFrame implements pipeline.FrameSink.
func (r *Recorder) HandleFrame(_ context.Context, res pipeline.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res.Source == "" {
		at := res.At
		if at.IsZero() {
			at = time.Now()
		}
		return r.endLocked(at)
	}
	if r.session == nil || r.session.Source != res.Source {
		if err := r.rotate(res.Source, res.At); err != nil {
			return err
		}
	}

	r.count++
	if !res.Failed && (r.count-1)%r.every != 0 {
		return nil
	}

	return r.store.Sessions().AppendFrame(&Frame{
		SessionID:  r.session.ID,
		Seq:        res.Seq,
		MediaMs:    res.MediaTime.Milliseconds(),
		State:      string(res.Frame.State),
		Failed:     res.Failed,
		Commands:   res.Frame.Commands,
		RecordedAt: res.At,
	})
}

func (r *Recorder) rotate(source string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	if err := r.endLocked(at); err != nil {
		return err
	}

	sess := &Session{Source: source, Robot: r.robot, StartedAt: at}
	if err := r.store.Sessions().Create(sess); err != nil {
		return err
	}
	r.session = sess
	r.count = 0
	r.logger.Info("session started", "session", sess.ID, "source", source)
	return nil
}

func (r *Recorder) endLocked(at time.Time) error {
	if r.session == nil {
		return nil
	}
	id := r.session.ID
	r.session = nil
	if err := r.store.Sessions().End(id, at); err != nil {
		return err
	}
	r.logger.Info("session ended", "session", id)
	return nil
}

// Current returns the open session ID, or "".
func (r *Recorder) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ""
	}
	return r.session.ID
}

// Close ends the open session.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endLocked(time.Now())
}
