package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/pkg/types"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "player.db")
	cfg.Storage.EnableWAL = true
	cfg.Storage.HistoryLimit = 10

	db, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	return db
}

func testSnapshot(n, index int) *types.PlaylistSnapshot {
	songs := make([]*types.Song, n)
	for i := range songs {
		songs[i] = &types.Song{ID: fmt.Sprintf("song-%d", i), Title: fmt.Sprintf("Song %d", i)}
	}
	now := time.Now().UTC()
	s := &types.PlaylistSnapshot{
		Songs:        songs,
		CurrentIndex: index,
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if index >= 0 && index < n {
		id := songs[index].ID
		s.CurrentSongID = &id
	}
	return s
}

func TestLoadCurrentEmpty(t *testing.T) {
	db := newTestDatabase(t)

	snapshot, err := db.LoadCurrent()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snapshot != nil {
		t.Errorf("expected nil on fresh database, got %v", snapshot)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	want := testSnapshot(3, 1)
	if err := db.SaveCurrent(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadCurrent()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot")
	}
	if len(got.Songs) != 3 || got.CurrentIndex != 1 {
		t.Errorf("got %d songs index %d", len(got.Songs), got.CurrentIndex)
	}
	if got.CurrentSongID == nil || *got.CurrentSongID != "song-1" {
		t.Errorf("current song id = %v", got.CurrentSongID)
	}
	if got.Songs[2].Title != "Song 2" {
		t.Errorf("song title = %q", got.Songs[2].Title)
	}
}

func TestSaveOverwritesCurrent(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.SaveCurrent(testSnapshot(3, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveCurrent(testSnapshot(5, 4)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadCurrent()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Songs) != 5 || got.CurrentIndex != 4 {
		t.Errorf("got %d songs index %d, want latest write", len(got.Songs), got.CurrentIndex)
	}
}

func TestDeleteCurrent(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.SaveCurrent(testSnapshot(2, 0)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.DeleteCurrent(); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := db.LoadCurrent()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}

	// Deleting again is not an error.
	if err := db.DeleteCurrent(); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestCorruptRowReturnsError(t *testing.T) {
	db := newTestDatabase(t)

	if _, err := db.GetDB().Exec(
		`INSERT INTO playlist_state (key, data) VALUES (?, ?)`,
		"current-playlist", "{not json",
	); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	if _, err := db.LoadCurrent(); err == nil {
		t.Error("expected decode error for corrupt data")
	}
}

func TestHistoryBounded(t *testing.T) {
	db := newTestDatabase(t)

	for i := 0; i < 15; i++ {
		s := testSnapshot(i+1, 0)
		if err := db.SaveCurrent(s); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	entries, err := db.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("history length = %d, want 10", len(entries))
	}

	// Newest first: the last save had 15 songs.
	if len(entries[0].Songs) != 15 {
		t.Errorf("newest entry has %d songs, want 15", len(entries[0].Songs))
	}
	if len(entries[9].Songs) != 6 {
		t.Errorf("oldest kept entry has %d songs, want 6", len(entries[9].Songs))
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.ID == "" {
			t.Error("history entry missing id")
		}
		if seen[e.ID] {
			t.Errorf("duplicate history id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestHistoryEmptyDatabase(t *testing.T) {
	db := newTestDatabase(t)

	entries, err := db.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d", len(entries))
	}
}

func TestClosedDatabaseRejectsOperations(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "player.db")
	cfg.Storage.HistoryLimit = 10

	db, err := NewDatabase(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := db.SaveCurrent(testSnapshot(1, 0)); err == nil {
		t.Error("save on closed database should fail")
	}
	if _, err := db.LoadCurrent(); err == nil {
		t.Error("load on closed database should fail")
	}
}
