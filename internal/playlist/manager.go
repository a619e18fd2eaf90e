package playlist

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/internal/search"
	"github.com/selfmusic/player/pkg/types"
)

// FallbackSongID marks the bundled track used when no catalog data is
// reachable. Plays of this track are never reported.
const FallbackSongID = "fallback-track"

const (
	defaultHotFetchLimit    = 50
	defaultBootstrapSize    = 30
	defaultFallbackPageSize = 100
)

// Manager owns the ordered playlist snapshot: navigation through it,
// shuffling it, and keeping the persisted copy in sync. All methods are
// safe for concurrent use.
type Manager struct {
	store   types.SnapshotStore
	catalog types.Catalog

	mu      sync.Mutex
	current *types.PlaylistSnapshot
	rng     *rand.Rand

	hotFetchLimit    int
	bootstrapSize    int
	fallbackPageSize int
	maxFindResults   int
	debug            bool
}

func NewManager(store types.SnapshotStore, catalog types.Catalog, cfg *config.Config) *Manager {
	m := &Manager{
		store:            store,
		catalog:          catalog,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		hotFetchLimit:    defaultHotFetchLimit,
		bootstrapSize:    defaultBootstrapSize,
		fallbackPageSize: defaultFallbackPageSize,
	}

	if cfg != nil {
		m.debug = cfg.Debug
		if cfg.Playback.HotSongsFetchLimit > 0 {
			m.hotFetchLimit = cfg.Playback.HotSongsFetchLimit
		}
		if cfg.Playback.BootstrapSize > 0 {
			m.bootstrapSize = cfg.Playback.BootstrapSize
		}
		if cfg.Playback.FallbackPageSize > 0 {
			m.fallbackPageSize = cfg.Playback.FallbackPageSize
		}
		m.maxFindResults = cfg.Search.MaxResults
	}

	return m
}

func (m *Manager) debugLog(format string, args ...interface{}) {
	if !m.debug {
		return
	}
	log.Printf("[PLAYLIST] "+format, args...)
}

// Load reads the persisted snapshot. A snapshot that is missing, corrupt,
// or structurally invalid yields nil; corrupt data is deleted so the next
// load starts clean.
func (m *Manager) Load() *types.PlaylistSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.store.LoadCurrent()
	if err != nil {
		m.debugLog("Failed to load snapshot, discarding: %v", err)
		m.deleteStored()
		m.current = nil
		return nil
	}
	if snapshot == nil {
		m.current = nil
		return nil
	}

	if !validSnapshot(snapshot) {
		m.debugLog("Persisted snapshot failed validation, discarding")
		m.deleteStored()
		m.current = nil
		return nil
	}

	m.current = snapshot
	return snapshot
}

func validSnapshot(s *types.PlaylistSnapshot) bool {
	if s.Songs == nil {
		return false
	}
	for _, song := range s.Songs {
		if song == nil || song.ID == "" || song.Title == "" {
			return false
		}
	}
	if len(s.Songs) == 0 {
		return s.CurrentIndex == -1 || s.CurrentIndex == 0
	}
	return s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Songs)
}

// deleteStored removes the persisted snapshot, logging failures. Callers
// hold the lock.
func (m *Manager) deleteStored() {
	if err := m.store.DeleteCurrent(); err != nil {
		log.Printf("[PLAYLIST] Failed to delete stored snapshot: %v", err)
	}
}

// save persists the current snapshot. Persistence failures never interrupt
// playback; they are logged and swallowed. Callers hold the lock.
func (m *Manager) save() {
	if m.current == nil {
		return
	}
	m.current.LastUpdated = time.Now().UTC()
	if err := m.store.SaveCurrent(m.current); err != nil {
		log.Printf("[PLAYLIST] Failed to persist snapshot: %v", err)
	}
}

// CreateSnapshot replaces the active playlist with the given songs and
// pointer, persisting the result. The index is clamped into range.
func (m *Manager) CreateSnapshot(songs []*types.Song, index int) *types.PlaylistSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]*types.Song, len(songs))
	copy(copied, songs)

	if len(copied) == 0 {
		index = -1
	} else if index < 0 {
		index = 0
	} else if index >= len(copied) {
		index = len(copied) - 1
	}

	now := time.Now().UTC()
	created := now
	if m.current != nil {
		// Edits keep the playlist's birth time; only LastUpdated moves.
		created = m.current.CreatedAt
	}
	snapshot := &types.PlaylistSnapshot{
		Songs:        copied,
		CurrentIndex: index,
		CreatedAt:    created,
		LastUpdated:  now,
	}
	if index >= 0 {
		id := copied[index].ID
		snapshot.CurrentSongID = &id
	}

	m.current = snapshot
	m.save()
	return snapshot
}

// AdoptTransient installs a playlist without persisting it. Used for
// bootstrap content, which only reaches disk once the user navigates.
func (m *Manager) AdoptTransient(songs []*types.Song, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]*types.Song, len(songs))
	copy(copied, songs)

	if len(copied) == 0 {
		index = -1
	} else if index < 0 || index >= len(copied) {
		index = 0
	}

	now := time.Now().UTC()
	snapshot := &types.PlaylistSnapshot{
		Songs:        copied,
		CurrentIndex: index,
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if index >= 0 {
		id := copied[index].ID
		snapshot.CurrentSongID = &id
	}
	m.current = snapshot
}

// Current returns the active snapshot, which may be nil.
func (m *Manager) Current() *types.PlaylistSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Clear drops the active playlist and its persisted copy.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.deleteStored()
}

// Next resolves the song that follows the current one. Repeat-one wins over
// everything and keeps the pointer in place; shuffle picks a random other
// index; otherwise the pointer advances, wrapping only under repeat-all.
// Returns nil when playback should stop.
func (m *Manager) Next(shuffle bool, repeat types.RepeatMode) *types.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || len(s.Songs) == 0 {
		return nil
	}

	idx := s.CurrentIndex
	if idx < 0 || idx >= len(s.Songs) {
		idx = 0
	}

	if repeat == types.RepeatOne {
		return s.Songs[idx]
	}

	var next int
	switch {
	case shuffle && len(s.Songs) > 1:
		r := m.rng.Intn(len(s.Songs) - 1)
		if r >= idx {
			r++
		}
		next = r
	case idx+1 < len(s.Songs):
		next = idx + 1
	case repeat == types.RepeatAll:
		next = 0
	default:
		return nil
	}

	m.setIndexLocked(next)
	return s.Songs[next]
}

// Previous steps the pointer back, wrapping to the end unconditionally.
// Shuffle does not affect backward navigation.
func (m *Manager) Previous() *types.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || len(s.Songs) == 0 {
		return nil
	}

	idx := s.CurrentIndex - 1
	if idx < 0 {
		idx = len(s.Songs) - 1
	}

	m.setIndexLocked(idx)
	return s.Songs[idx]
}

// JumpTo moves the pointer to the first song with the given id. Returns nil
// when the song is not in the playlist.
func (m *Manager) JumpTo(songID string) *types.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return nil
	}

	for i, song := range s.Songs {
		if song.ID == songID {
			m.setIndexLocked(i)
			return song
		}
	}
	return nil
}

func (m *Manager) setIndexLocked(idx int) {
	s := m.current
	s.CurrentIndex = idx
	if idx >= 0 && idx < len(s.Songs) {
		id := s.Songs[idx].ID
		s.CurrentSongID = &id
	} else {
		s.CurrentSongID = nil
	}
	m.save()
}

// CanAdvance reports whether Next would produce a song.
func (m *Manager) CanAdvance(shuffle bool, repeat types.RepeatMode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || len(s.Songs) == 0 {
		return false
	}

	switch {
	case repeat == types.RepeatOne:
		return true
	case repeat == types.RepeatAll:
		return true
	case shuffle:
		return len(s.Songs) > 1
	default:
		return s.CurrentIndex < len(s.Songs)-1
	}
}

// CanRetreat reports whether Previous would change position.
func (m *Manager) CanRetreat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current != nil && len(m.current.Songs) > 1
}

// ShuffleOrder randomizes the song order and relocates the pointer so the
// same song stays current. The shuffled order is persisted.
func (m *Manager) ShuffleOrder() *types.PlaylistSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil || len(s.Songs) == 0 {
		return s
	}

	var currentID string
	if s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Songs) {
		currentID = s.Songs[s.CurrentIndex].ID
	}

	shuffled := make([]*types.Song, len(s.Songs))
	copy(shuffled, s.Songs)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	idx := 0
	if currentID != "" {
		for i, song := range shuffled {
			if song.ID == currentID {
				idx = i
				break
			}
		}
	}

	s.Songs = shuffled
	m.setIndexLocked(idx)
	return s
}

// Find ranks songs in the active playlist against the query. limit <= 0
// falls back to the configured maximum.
func (m *Manager) Find(query string, limit int) []*types.Song {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	if limit <= 0 {
		limit = m.maxFindResults
	}
	return search.RankSongs(m.current.Songs, query, limit)
}

// History returns the persisted snapshot history, newest first.
func (m *Manager) History() ([]*types.SnapshotHistoryEntry, error) {
	return m.store.History()
}

// BootstrapDefault assembles a starter playlist from the catalog: the hot
// list sorted by play count, or a page of all songs when the hot list is
// unavailable. Returns nil when nothing could be fetched; the caller falls
// back to the bundled track.
func (m *Manager) BootstrapDefault(ctx context.Context) []*types.Song {
	if m.catalog == nil {
		return nil
	}

	hot, err := m.catalog.GetHotSongs(ctx, m.hotFetchLimit)
	if err != nil {
		m.debugLog("Hot songs unavailable: %v", err)
	}
	if len(hot) > 0 {
		return m.topByPlayCount(hot)
	}

	page, err := m.catalog.GetSongs(ctx, 1, m.fallbackPageSize)
	if err != nil {
		m.debugLog("Song page unavailable: %v", err)
		return nil
	}
	if page == nil || len(page.Data) == 0 {
		return nil
	}
	return m.topByPlayCount(page.Data)
}

func (m *Manager) topByPlayCount(songs []*types.Song) []*types.Song {
	sorted := make([]*types.Song, len(songs))
	copy(sorted, songs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlayCount > sorted[j].PlayCount
	})
	if len(sorted) > m.bootstrapSize {
		sorted = sorted[:m.bootstrapSize]
	}
	return sorted
}

// FallbackSong returns the bundled track played when neither persistence
// nor the catalog yields anything.
func FallbackSong(audioURL string) *types.Song {
	return &types.Song{
		ID:       FallbackSongID,
		Title:    "Sample Track",
		Duration: 0,
		AudioURL: &audioURL,
	}
}
