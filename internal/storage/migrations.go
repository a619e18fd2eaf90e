package storage

import (
	"fmt"
)

func (d *Database) runMigrations() error {
	migrations := []string{
		createTables,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const createTables = `
CREATE TABLE IF NOT EXISTS playlist_state (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS playlist_history (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS play_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id TEXT NOT NULL,
	played_at DATETIME NOT NULL,
	synced BOOLEAN NOT NULL DEFAULT FALSE
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_playlist_history_saved_at ON playlist_history(saved_at);
CREATE INDEX IF NOT EXISTS idx_play_reports_sync_query ON play_reports(synced, played_at);
`
