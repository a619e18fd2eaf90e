package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/selfmusic/player/pkg/types"
)

const currentPlaylistKey = "current-playlist"

// LoadCurrent returns the persisted current snapshot, or nil when none has
// been saved yet. A row that fails to decode is returned as an error; the
// caller decides whether to heal by deleting it.
func (d *Database) LoadCurrent() (*types.PlaylistSnapshot, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	var data string
	err := d.db.QueryRow(
		`SELECT data FROM playlist_state WHERE key = ?`, currentPlaylistKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		d.debugLog("LoadCurrent", err, time.Since(start))
		return nil, fmt.Errorf("query current playlist: %w", err)
	}

	var snapshot types.PlaylistSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		d.debugLog("LoadCurrent", err, time.Since(start))
		return nil, fmt.Errorf("decode current playlist: %w", err)
	}

	return &snapshot, nil
}

// SaveCurrent overwrites the current snapshot and appends a copy to the
// history log, pruning history beyond the configured limit. Both writes
// happen in one transaction.
func (d *Database) SaveCurrent(snapshot *types.PlaylistSnapshot) error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		d.debugLog("SaveCurrent", err, time.Since(start))
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("Failed to rollback transaction: %v", rbErr)
		}
	}()

	now := time.Now().UTC()

	if _, err := tx.Exec(
		`INSERT INTO playlist_state (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		currentPlaylistKey, string(data), now,
	); err != nil {
		d.debugLog("SaveCurrent", err, time.Since(start))
		return fmt.Errorf("write current playlist: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO playlist_history (id, data, saved_at) VALUES (?, ?, ?)`,
		uuid.NewString(), string(data), now,
	); err != nil {
		d.debugLog("SaveCurrent", err, time.Since(start))
		return fmt.Errorf("append playlist history: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM playlist_history WHERE id NOT IN (
			SELECT id FROM playlist_history ORDER BY saved_at DESC, id LIMIT ?
		)`,
		d.historyLimit,
	); err != nil {
		d.debugLog("SaveCurrent", err, time.Since(start))
		return fmt.Errorf("prune playlist history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		d.debugLog("SaveCurrent", err, time.Since(start))
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeleteCurrent removes the current snapshot. History is kept.
func (d *Database) DeleteCurrent() error {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return err
	}

	if _, err := d.db.Exec(
		`DELETE FROM playlist_state WHERE key = ?`, currentPlaylistKey,
	); err != nil {
		d.debugLog("DeleteCurrent", err, time.Since(start))
		return fmt.Errorf("delete current playlist: %w", err)
	}

	return nil
}

// History returns saved snapshots newest first. Entries that no longer
// decode are skipped rather than failing the whole read.
func (d *Database) History() ([]*types.SnapshotHistoryEntry, error) {
	start := time.Now()

	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := d.db.Query(
		`SELECT id, data, saved_at FROM playlist_history ORDER BY saved_at DESC, id LIMIT ?`,
		d.historyLimit,
	)
	if err != nil {
		d.debugLog("History", err, time.Since(start))
		return nil, fmt.Errorf("query playlist history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("Failed to close rows: %v", closeErr)
		}
	}()

	var entries []*types.SnapshotHistoryEntry
	for rows.Next() {
		var (
			id      string
			data    string
			savedAt time.Time
		)
		if err := rows.Scan(&id, &data, &savedAt); err != nil {
			d.debugLog("History", err, time.Since(start))
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		entry := &types.SnapshotHistoryEntry{ID: id, SavedAt: savedAt}
		if err := json.Unmarshal([]byte(data), &entry.PlaylistSnapshot); err != nil {
			d.debugLog("History", err, time.Since(start))
			continue
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		d.debugLog("History", err, time.Since(start))
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
