package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/selfmusic/player/pkg/types"
)

type memStore struct {
	data    []byte
	saves   int
	deletes int
	loadErr error
	saveErr error
}

func (m *memStore) LoadCurrent() (*types.PlaylistSnapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, nil
	}
	var s types.PlaylistSnapshot
	if err := json.Unmarshal(m.data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memStore) SaveCurrent(s *types.PlaylistSnapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

func (m *memStore) DeleteCurrent() error {
	m.data = nil
	m.deletes++
	return nil
}

func (m *memStore) History() ([]*types.SnapshotHistoryEntry, error) {
	return nil, nil
}

type fakeCatalog struct {
	hot     []*types.Song
	hotErr  error
	page    []*types.Song
	pageErr error
}

func (f *fakeCatalog) GetSongs(ctx context.Context, page, limit int) (*types.SongListResponse, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return &types.SongListResponse{Data: f.page, Total: len(f.page), Page: page, Limit: limit}, nil
}

func (f *fakeCatalog) GetHotSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return f.hot, f.hotErr
}

func (f *fakeCatalog) GetTrendingSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return nil, nil
}

func (f *fakeCatalog) GetNewSongs(ctx context.Context, limit int) ([]*types.Song, error) {
	return nil, nil
}

func (f *fakeCatalog) GetMoodSongs(ctx context.Context, moodID string, limit int) ([]*types.Song, error) {
	return nil, nil
}

func makeSongs(n int) []*types.Song {
	songs := make([]*types.Song, n)
	for i := range songs {
		songs[i] = &types.Song{ID: fmt.Sprintf("song-%d", i), Title: fmt.Sprintf("Song %d", i)}
	}
	return songs
}

func newTestManager(store *memStore) *Manager {
	m := NewManager(store, nil, nil)
	m.rng = rand.New(rand.NewSource(42))
	return m
}

func TestNextSequential(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	m.CreateSnapshot(makeSongs(3), 0)

	song := m.Next(false, types.RepeatNone)
	if song == nil || song.ID != "song-1" {
		t.Fatalf("expected song-1, got %v", song)
	}
	song = m.Next(false, types.RepeatNone)
	if song == nil || song.ID != "song-2" {
		t.Fatalf("expected song-2, got %v", song)
	}
	if song := m.Next(false, types.RepeatNone); song != nil {
		t.Errorf("expected nil at playlist end, got %s", song.ID)
	}
	if idx := m.Current().CurrentIndex; idx != 2 {
		t.Errorf("pointer moved on failed advance: index = %d", idx)
	}
}

func TestNextRepeatAllWraps(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(3), 2)

	song := m.Next(false, types.RepeatAll)
	if song == nil || song.ID != "song-0" {
		t.Fatalf("expected wrap to song-0, got %v", song)
	}
}

func TestNextRepeatOneKeepsPosition(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	m.CreateSnapshot(makeSongs(3), 1)
	savesBefore := store.saves

	song := m.Next(true, types.RepeatOne)
	if song == nil || song.ID != "song-1" {
		t.Fatalf("expected song-1, got %v", song)
	}
	if m.Current().CurrentIndex != 1 {
		t.Errorf("repeat-one moved the pointer")
	}
	if store.saves != savesBefore {
		t.Errorf("repeat-one persisted a snapshot")
	}
}

func TestNextShuffleAvoidsCurrent(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(5), 2)

	for i := 0; i < 50; i++ {
		before := m.Current().CurrentIndex
		song := m.Next(true, types.RepeatNone)
		if song == nil {
			t.Fatal("shuffle returned nil on non-empty playlist")
		}
		if m.Current().CurrentIndex == before {
			t.Fatalf("shuffle landed on the current index %d", before)
		}
	}
}

func TestNextShuffleSingleSong(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(1), 0)

	if song := m.Next(true, types.RepeatNone); song != nil {
		t.Errorf("single-song shuffle without repeat should stop, got %s", song.ID)
	}
	if song := m.Next(true, types.RepeatAll); song == nil || song.ID != "song-0" {
		t.Errorf("single-song shuffle with repeat-all should wrap to itself, got %v", song)
	}
}

func TestNextEmptyPlaylist(t *testing.T) {
	m := newTestManager(&memStore{})
	if song := m.Next(false, types.RepeatAll); song != nil {
		t.Errorf("expected nil with no playlist, got %v", song)
	}
}

func TestPreviousWrapsUnconditionally(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(3), 0)

	song := m.Previous()
	if song == nil || song.ID != "song-2" {
		t.Fatalf("expected wrap to song-2, got %v", song)
	}
	song = m.Previous()
	if song == nil || song.ID != "song-1" {
		t.Fatalf("expected song-1, got %v", song)
	}
}

func TestJumpTo(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(4), 0)

	song := m.JumpTo("song-2")
	if song == nil || song.ID != "song-2" {
		t.Fatalf("expected song-2, got %v", song)
	}
	if m.Current().CurrentIndex != 2 {
		t.Errorf("index = %d, want 2", m.Current().CurrentIndex)
	}

	if song := m.JumpTo("missing"); song != nil {
		t.Errorf("jump to unknown id should return nil, got %v", song)
	}
	if m.Current().CurrentIndex != 2 {
		t.Errorf("failed jump moved the pointer")
	}
}

func TestCanAdvanceTruthTable(t *testing.T) {
	cases := []struct {
		name    string
		n       int
		index   int
		shuffle bool
		repeat  types.RepeatMode
		want    bool
	}{
		{"empty", 0, -1, false, types.RepeatNone, false},
		{"repeat one single", 1, 0, false, types.RepeatOne, true},
		{"repeat all at end", 3, 2, false, types.RepeatAll, true},
		{"shuffle single", 1, 0, true, types.RepeatNone, false},
		{"shuffle multiple", 3, 2, true, types.RepeatNone, true},
		{"sequential mid", 3, 1, false, types.RepeatNone, true},
		{"sequential end", 3, 2, false, types.RepeatNone, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(&memStore{})
			if tc.n > 0 {
				m.CreateSnapshot(makeSongs(tc.n), tc.index)
			}
			if got := m.CanAdvance(tc.shuffle, tc.repeat); got != tc.want {
				t.Errorf("CanAdvance(%v, %v) = %v, want %v", tc.shuffle, tc.repeat, got, tc.want)
			}
		})
	}
}

func TestCanRetreat(t *testing.T) {
	m := newTestManager(&memStore{})
	if m.CanRetreat() {
		t.Error("empty playlist should not retreat")
	}
	m.CreateSnapshot(makeSongs(1), 0)
	if m.CanRetreat() {
		t.Error("single-song playlist should not retreat")
	}
	m.CreateSnapshot(makeSongs(2), 0)
	if !m.CanRetreat() {
		t.Error("two songs should retreat")
	}
}

func TestShuffleOrderKeepsCurrentSong(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(10), 4)

	snapshot := m.ShuffleOrder()
	if len(snapshot.Songs) != 10 {
		t.Fatalf("shuffle changed length: %d", len(snapshot.Songs))
	}
	current := snapshot.Songs[snapshot.CurrentIndex]
	if current.ID != "song-4" {
		t.Errorf("current song changed after shuffle: %s", current.ID)
	}

	seen := make(map[string]bool)
	for _, s := range snapshot.Songs {
		if seen[s.ID] {
			t.Fatalf("duplicate song after shuffle: %s", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestCreateSnapshotClampsIndex(t *testing.T) {
	m := newTestManager(&memStore{})

	s := m.CreateSnapshot(makeSongs(3), 99)
	if s.CurrentIndex != 2 {
		t.Errorf("index = %d, want 2", s.CurrentIndex)
	}
	s = m.CreateSnapshot(makeSongs(3), -5)
	if s.CurrentIndex != 0 {
		t.Errorf("index = %d, want 0", s.CurrentIndex)
	}
	s = m.CreateSnapshot(nil, 3)
	if s.CurrentIndex != -1 {
		t.Errorf("empty snapshot index = %d, want -1", s.CurrentIndex)
	}
	if s.CurrentSongID != nil {
		t.Errorf("empty snapshot has current song id")
	}
}

func TestCreateSnapshotKeepsCreatedAtOnEdit(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot(makeSongs(3), 0)

	born := time.Now().Add(-time.Hour).UTC()
	m.Current().CreatedAt = born

	s := m.CreateSnapshot(makeSongs(4), 1)
	if !s.CreatedAt.Equal(born) {
		t.Errorf("edit moved CreatedAt to %v, want %v", s.CreatedAt, born)
	}
	if !s.LastUpdated.After(born) {
		t.Errorf("LastUpdated = %v, want after %v", s.LastUpdated, born)
	}

	// A brand new playlist after clearing starts its own clock.
	m.Clear()
	s = m.CreateSnapshot(makeSongs(2), 0)
	if s.CreatedAt.Equal(born) {
		t.Error("fresh playlist inherited an old CreatedAt")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	m.CreateSnapshot(makeSongs(3), 1)

	m2 := newTestManager(store)
	snapshot := m2.Load()
	if snapshot == nil {
		t.Fatal("expected snapshot after save")
	}
	if len(snapshot.Songs) != 3 || snapshot.CurrentIndex != 1 {
		t.Errorf("got %d songs index %d", len(snapshot.Songs), snapshot.CurrentIndex)
	}
	if snapshot.CurrentSongID == nil || *snapshot.CurrentSongID != "song-1" {
		t.Errorf("current song id = %v", snapshot.CurrentSongID)
	}
}

func TestLoadHealsCorruptData(t *testing.T) {
	store := &memStore{data: []byte(`{"songs": "not an array"`)}
	m := newTestManager(store)

	if snapshot := m.Load(); snapshot != nil {
		t.Fatalf("expected nil for corrupt data, got %v", snapshot)
	}
	if store.deletes == 0 {
		t.Error("corrupt snapshot was not deleted")
	}
	if snapshot := m.Load(); snapshot != nil {
		t.Error("second load after healing should be clean nil")
	}
}

func TestLoadHealsInvalidShape(t *testing.T) {
	bad, _ := json.Marshal(&types.PlaylistSnapshot{
		Songs:        []*types.Song{{ID: "a", Title: "A"}},
		CurrentIndex: 5,
	})
	store := &memStore{data: bad}
	m := newTestManager(store)

	if snapshot := m.Load(); snapshot != nil {
		t.Fatalf("out-of-range index should be rejected, got %v", snapshot)
	}
	if store.deletes == 0 {
		t.Error("invalid snapshot was not deleted")
	}
}

func TestLoadRejectsSongMissingFields(t *testing.T) {
	bad, _ := json.Marshal(&types.PlaylistSnapshot{
		Songs:        []*types.Song{{ID: "", Title: "No ID"}},
		CurrentIndex: 0,
	})
	store := &memStore{data: bad}
	m := newTestManager(store)

	if snapshot := m.Load(); snapshot != nil {
		t.Fatalf("song without id should be rejected, got %v", snapshot)
	}
}

func TestSaveErrorDoesNotBlockNavigation(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)
	m.CreateSnapshot(makeSongs(3), 0)
	store.saveErr = errors.New("disk full")

	song := m.Next(false, types.RepeatNone)
	if song == nil || song.ID != "song-1" {
		t.Fatalf("navigation failed under save error: %v", song)
	}
	if m.Current().CurrentIndex != 1 {
		t.Errorf("in-memory pointer not advanced")
	}
}

func TestBootstrapDefaultHotSongs(t *testing.T) {
	songs := makeSongs(50)
	for i, s := range songs {
		s.PlayCount = i
	}
	catalog := &fakeCatalog{hot: songs}
	m := NewManager(&memStore{}, catalog, nil)

	got := m.BootstrapDefault(context.Background())
	if len(got) != 30 {
		t.Fatalf("got %d songs, want 30", len(got))
	}
	if got[0].PlayCount != 49 {
		t.Errorf("first song playCount = %d, want 49", got[0].PlayCount)
	}
	for i := 1; i < len(got); i++ {
		if got[i].PlayCount > got[i-1].PlayCount {
			t.Fatalf("songs not sorted by play count at %d", i)
		}
	}
}

func TestBootstrapDefaultFallsBackToPage(t *testing.T) {
	catalog := &fakeCatalog{
		hotErr: errors.New("unavailable"),
		page:   makeSongs(10),
	}
	m := NewManager(&memStore{}, catalog, nil)

	got := m.BootstrapDefault(context.Background())
	if len(got) != 10 {
		t.Fatalf("got %d songs, want 10", len(got))
	}
}

func TestBootstrapDefaultAllFailed(t *testing.T) {
	catalog := &fakeCatalog{
		hotErr:  errors.New("unavailable"),
		pageErr: errors.New("unavailable"),
	}
	m := NewManager(&memStore{}, catalog, nil)

	if got := m.BootstrapDefault(context.Background()); got != nil {
		t.Errorf("expected nil when catalog is unreachable, got %d songs", len(got))
	}
}

func TestAdoptTransientDoesNotPersist(t *testing.T) {
	store := &memStore{}
	m := newTestManager(store)

	m.AdoptTransient(makeSongs(3), 0)
	if store.saves != 0 {
		t.Errorf("transient adoption persisted %d times", store.saves)
	}

	// Navigation persists from then on.
	if song := m.Next(false, types.RepeatNone); song == nil {
		t.Fatal("navigation failed on transient playlist")
	}
	if store.saves != 1 {
		t.Errorf("navigation should persist, saves = %d", store.saves)
	}
}

func TestFindRanksTitleMatches(t *testing.T) {
	m := newTestManager(&memStore{})
	m.CreateSnapshot([]*types.Song{
		{ID: "1", Title: "Midnight City"},
		{ID: "2", Title: "Morning Light"},
		{ID: "3", Title: "City Lights"},
	}, 0)

	got := m.Find("city", 10)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	for _, s := range got {
		if s.ID != "1" && s.ID != "3" {
			t.Errorf("unexpected match %s", s.ID)
		}
	}
}

func TestFallbackSong(t *testing.T) {
	s := FallbackSong("file:///assets/sample.mp3")
	if s.ID != FallbackSongID {
		t.Errorf("id = %s", s.ID)
	}
	if s.AudioURL == nil || *s.AudioURL != "file:///assets/sample.mp3" {
		t.Errorf("audio url = %v", s.AudioURL)
	}
}
