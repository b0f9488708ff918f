package record

func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per estimator stream bound to the driver
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			robot TEXT NOT NULL DEFAULT '',
			started_ms INTEGER NOT NULL,
			ended_ms INTEGER,
			frames INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			media_ms INTEGER NOT NULL,
			state TEXT NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			commands TEXT NOT NULL,
			recorded_ms INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_frames_session_seq ON frames(session_id, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
