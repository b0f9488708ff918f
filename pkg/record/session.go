package record

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-mimic/pkg/retarget"
)

// Session is one continuous run of a single source.
type Session struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Robot     string     `json:"robot"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Frames    int        `json:"frames"`
}

// Frame is one recorded frame outcome.
type Frame struct {
	ID         int64              `json:"id"`
	SessionID  string             `json:"session_id"`
	Seq        uint64             `json:"seq"`
	MediaMs    int64              `json:"media_ms"`
	State      string             `json:"state"`
	Failed     bool               `json:"failed"`
	Commands   []retarget.Command `json:"commands"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// SessionRepository provides access to sessions and their frames.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create starts a new session for source. The ID is generated when empty.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, robot, started_ms) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Source, sess.Robot, sess.StartedAt.UnixMilli(),
	)
	return err
}

// End marks a session finished.
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_ms = ? WHERE id = ? AND ended_ms IS NULL`, at.UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, source, robot, started_ms, ended_ms, frames FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

// List returns sessions, newest first.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		`SELECT id, source, robot, started_ms, ended_ms, frames
		 FROM sessions ORDER BY started_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess    Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Source, &sess.Robot, &started, &ended, &sess.Frames); err != nil {
		return nil, err
	}
	sess.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		sess.EndedAt = &t
	}
	return &sess, nil
}

// AppendFrame stores a frame and bumps the session's frame count.
func (r *SessionRepository) AppendFrame(f *Frame) error {
	commands, err := json.Marshal(f.Commands)
	if err != nil {
		return err
	}
	if f.RecordedAt.IsZero() {
		f.RecordedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO frames (session_id, seq, media_ms, state, failed, commands, recorded_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, int64(f.Seq), f.MediaMs, f.State, f.Failed, string(commands), f.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if f.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE sessions SET frames = frames + 1 WHERE id = ?`, f.SessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Frames returns a session's frames in sequence order, starting after seq
// `after`.
func (r *SessionRepository) Frames(sessionID string, after uint64, limit int) ([]Frame, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, media_ms, state, failed, commands, recorded_ms
		 FROM frames WHERE session_id = ? AND seq > ?
		 ORDER BY seq LIMIT ?`,
		sessionID, int64(after), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			f        Frame
			seq      int64
			commands string
			recorded int64
		)
		if err := rows.Scan(&f.ID, &f.SessionID, &seq, &f.MediaMs, &f.State, &f.Failed, &commands, &recorded); err != nil {
			return nil, err
		}
		f.Seq = uint64(seq)
		f.RecordedAt = time.UnixMilli(recorded)
		if err := json.Unmarshal([]byte(commands), &f.Commands); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}
