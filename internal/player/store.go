package player

import (
	"context"
	"log"
	"sync"

	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/internal/playlist"
	"github.com/selfmusic/player/pkg/types"
)

// State is the complete playback state. Listeners receive copies; the
// playlist slice is shared and must be treated as read-only.
type State struct {
	CurrentSong  *types.Song
	IsPlaying    bool
	Volume       float64
	CurrentTime  float64
	Duration     float64
	Playlist     []*types.Song
	CurrentIndex int
	RepeatMode   types.RepeatMode
	ShuffleMode  bool
	PlaybackMode types.PlaybackMode
	CurrentMood  *types.Mood
	PlaylistInfo *types.Playlist

	// ShouldSeek is a one-shot seek request consumed by the synchronizer.
	ShouldSeek *float64
	LastError  error
}

// Listener observes state changes. Listeners run synchronously on the
// mutating goroutine and must not call back into the Store while handling
// a notification, except through methods documented as reentrant.
type Listener func(State)

// Store is the single source of truth for playback state. Mutations happen
// under the lock, then listeners are notified with a snapshot taken after
// the mutation.
type Store struct {
	mu        sync.Mutex
	state     State
	manager   *playlist.Manager
	listeners []Listener
	debug     bool
}

func NewStore(manager *playlist.Manager, cfg *config.Config) *Store {
	volume := 0.7
	debug := false
	if cfg != nil {
		if cfg.Audio.DefaultVolume >= 0 && cfg.Audio.DefaultVolume <= 1 {
			volume = cfg.Audio.DefaultVolume
		}
		debug = cfg.Debug
	}

	return &Store{
		state: State{
			Volume:       volume,
			CurrentIndex: -1,
			PlaybackMode: types.PlaybackModeSong,
		},
		manager: manager,
		debug:   debug,
	}
}

func (s *Store) debugLog(format string, args ...interface{}) {
	if !s.debug {
		return
	}
	log.Printf("[PLAYER] "+format, args...)
}

// OnChange registers a listener. The listener is not called with the
// current state; it only sees subsequent changes.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// GetState returns a snapshot of the current state.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// mutate runs fn under the lock, then notifies listeners with the
// resulting snapshot outside the lock.
func (s *Store) mutate(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// applyCurrentSongLocked switches the current song. Duration is kept when
// the same song is reloaded so the UI does not flash to zero; a different
// song resets it to 0 until the output reports the real value. Position
// always restarts.
func applyCurrentSongLocked(st *State, song *types.Song) {
	sameSong := st.CurrentSong != nil && song != nil && st.CurrentSong.ID == song.ID
	st.CurrentSong = song
	st.CurrentTime = 0
	if !sameSong {
		st.Duration = 0
	}
	st.LastError = nil
}

// SetSong plays a standalone song. The playlist context is kept so the
// user can return to it, but mood and playlist metadata no longer apply.
func (s *Store) SetSong(song *types.Song) {
	s.mutate(func(st *State) {
		applyCurrentSongLocked(st, song)
		st.PlaybackMode = types.PlaybackModeSong
		st.CurrentMood = nil
		st.PlaylistInfo = nil
	})
}

// SetPlaylist replaces the playlist and points at the song at index.
// The new order is persisted.
func (s *Store) SetPlaylist(songs []*types.Song, index int) {
	s.setPlaylistContext(songs, index, types.PlaybackModePlaylist, nil, nil)
}

// SetPlaylistWithInfo is SetPlaylist carrying the source playlist metadata.
func (s *Store) SetPlaylistWithInfo(info *types.Playlist, songs []*types.Song, index int) {
	s.setPlaylistContext(songs, index, types.PlaybackModePlaylist, nil, info)
}

// SetMoodPlaylist is SetPlaylist for a mood-derived queue.
func (s *Store) SetMoodPlaylist(mood *types.Mood, songs []*types.Song, index int) {
	s.setPlaylistContext(songs, index, types.PlaybackModeMood, mood, nil)
}

func (s *Store) setPlaylistContext(songs []*types.Song, index int, mode types.PlaybackMode, mood *types.Mood, info *types.Playlist) {
	snapshot := s.manager.CreateSnapshot(songs, index)
	s.mutate(func(st *State) {
		st.Playlist = snapshot.Songs
		st.CurrentIndex = snapshot.CurrentIndex
		st.PlaybackMode = mode
		st.CurrentMood = mood
		st.PlaylistInfo = info
		if snapshot.CurrentIndex >= 0 {
			applyCurrentSongLocked(st, snapshot.Songs[snapshot.CurrentIndex])
		} else {
			applyCurrentSongLocked(st, nil)
		}
	})
}

// ReplacePlaylistAndPlay replaces the playlist and starts playback at index.
func (s *Store) ReplacePlaylistAndPlay(songs []*types.Song, index int) {
	snapshot := s.manager.CreateSnapshot(songs, index)
	s.mutate(func(st *State) {
		st.Playlist = snapshot.Songs
		st.CurrentIndex = snapshot.CurrentIndex
		st.PlaybackMode = types.PlaybackModePlaylist
		st.CurrentMood = nil
		st.PlaylistInfo = nil
		if snapshot.CurrentIndex >= 0 {
			applyCurrentSongLocked(st, snapshot.Songs[snapshot.CurrentIndex])
			st.IsPlaying = true
		} else {
			applyCurrentSongLocked(st, nil)
			st.IsPlaying = false
		}
	})
}

// Play requests playback. A play intent with no current song is ignored.
func (s *Store) Play() {
	s.mutate(func(st *State) {
		if st.CurrentSong != nil {
			st.IsPlaying = true
		}
	})
}

func (s *Store) Pause() {
	s.mutate(func(st *State) {
		st.IsPlaying = false
	})
}

func (s *Store) TogglePlay() {
	s.mutate(func(st *State) {
		if st.IsPlaying {
			st.IsPlaying = false
		} else if st.CurrentSong != nil {
			st.IsPlaying = true
		}
	})
}

// SetVolume clamps into [0, 1].
func (s *Store) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	s.mutate(func(st *State) {
		st.Volume = v
	})
}

// SeekTo requests a one-shot seek, clamped into the known duration.
func (s *Store) SeekTo(t float64) {
	s.mutate(func(st *State) {
		if t < 0 {
			t = 0
		}
		if st.Duration > 0 && t > st.Duration {
			t = st.Duration
		}
		st.CurrentTime = t
		seek := t
		st.ShouldSeek = &seek
	})
}

// TakeSeek consumes the pending seek request without notifying listeners.
// Safe to call from a listener.
func (s *Store) TakeSeek() *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seek := s.state.ShouldSeek
	s.state.ShouldSeek = nil
	return seek
}

// NextSong advances through the playlist. When nothing follows, playback
// stops and the current song stays loaded.
func (s *Store) NextSong() {
	st := s.GetState()
	song := s.manager.Next(st.ShuffleMode, st.RepeatMode)
	s.adoptNavigation(song)
}

// PreviousSong steps backward, wrapping to the end. Shuffle does not
// change backward order.
func (s *Store) PreviousSong() {
	song := s.manager.Previous()
	s.adoptNavigation(song)
}

// JumpToSong starts playing the given song if it is in the playlist.
func (s *Store) JumpToSong(songID string) {
	song := s.manager.JumpTo(songID)
	if song == nil {
		s.debugLog("Jump target not in playlist: %s", songID)
		return
	}
	s.adoptNavigation(song)
}

func (s *Store) adoptNavigation(song *types.Song) {
	current := s.manager.Current()
	s.mutate(func(st *State) {
		if song == nil {
			st.IsPlaying = false
			return
		}
		sameSong := st.CurrentSong != nil && st.CurrentSong.ID == song.ID
		applyCurrentSongLocked(st, song)
		if sameSong {
			// Same source stays loaded; restart it from the top.
			seek := 0.0
			st.ShouldSeek = &seek
		}
		st.IsPlaying = true
		if current != nil {
			st.Playlist = current.Songs
			st.CurrentIndex = current.CurrentIndex
		}
	})
}

// CanPlayNext reports whether NextSong would produce a song.
func (s *Store) CanPlayNext() bool {
	st := s.GetState()
	return s.manager.CanAdvance(st.ShuffleMode, st.RepeatMode)
}

// CanPlayPrevious reports whether PreviousSong would change position.
func (s *Store) CanPlayPrevious() bool {
	return s.manager.CanRetreat()
}

func (s *Store) ToggleRepeat() {
	s.mutate(func(st *State) {
		switch st.RepeatMode {
		case types.RepeatNone:
			st.RepeatMode = types.RepeatAll
		case types.RepeatAll:
			st.RepeatMode = types.RepeatOne
		default:
			st.RepeatMode = types.RepeatNone
		}
	})
}

func (s *Store) ToggleShuffle() {
	s.mutate(func(st *State) {
		st.ShuffleMode = !st.ShuffleMode
	})
}

// AddToPlaylist appends a song. Duplicates are allowed. Adding to an empty
// playlist makes the song current without starting playback.
func (s *Store) AddToPlaylist(song *types.Song) {
	st := s.GetState()
	songs := append(append([]*types.Song{}, st.Playlist...), song)

	index := st.CurrentIndex
	wasEmpty := len(st.Playlist) == 0
	if wasEmpty {
		index = 0
	}

	snapshot := s.manager.CreateSnapshot(songs, index)
	s.mutate(func(st *State) {
		st.Playlist = snapshot.Songs
		st.CurrentIndex = snapshot.CurrentIndex
		if wasEmpty && snapshot.CurrentIndex >= 0 {
			applyCurrentSongLocked(st, snapshot.Songs[snapshot.CurrentIndex])
		}
	})
}

// RemoveFromPlaylist removes the first occurrence of the song. Removing the
// current song re-derives the pointer; emptying the playlist clears
// everything and stops playback.
func (s *Store) RemoveFromPlaylist(songID string) {
	st := s.GetState()

	removed := -1
	for i, song := range st.Playlist {
		if song.ID == songID {
			removed = i
			break
		}
	}
	if removed == -1 {
		return
	}

	songs := append([]*types.Song{}, st.Playlist[:removed]...)
	songs = append(songs, st.Playlist[removed+1:]...)

	if len(songs) == 0 {
		s.ClearPlaylist()
		return
	}

	index := st.CurrentIndex
	removedCurrent := removed == index
	if removed < index {
		index--
	} else if removedCurrent && index > len(songs)-1 {
		index = len(songs) - 1
	}

	snapshot := s.manager.CreateSnapshot(songs, index)
	s.mutate(func(st *State) {
		st.Playlist = snapshot.Songs
		st.CurrentIndex = snapshot.CurrentIndex
		if removedCurrent && snapshot.CurrentIndex >= 0 {
			applyCurrentSongLocked(st, snapshot.Songs[snapshot.CurrentIndex])
		}
	})
}

// MoveSongInPlaylist moves the song at from to position to, keeping the
// playback pointer on the same song.
func (s *Store) MoveSongInPlaylist(from, to int) {
	st := s.GetState()
	n := len(st.Playlist)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return
	}

	songs := append([]*types.Song{}, st.Playlist...)
	song := songs[from]
	songs = append(songs[:from], songs[from+1:]...)
	songs = append(songs[:to], append([]*types.Song{song}, songs[to:]...)...)

	index := st.CurrentIndex
	switch {
	case from == index:
		index = to
	case from < index && to >= index:
		index--
	case from > index && to <= index:
		index++
	}

	snapshot := s.manager.CreateSnapshot(songs, index)
	s.mutate(func(st *State) {
		st.Playlist = snapshot.Songs
		st.CurrentIndex = snapshot.CurrentIndex
	})
}

// ClearPlaylist empties the playlist, stops playback, and drops the
// persisted snapshot.
func (s *Store) ClearPlaylist() {
	s.manager.Clear()
	s.mutate(func(st *State) {
		st.Playlist = nil
		st.CurrentIndex = -1
		st.IsPlaying = false
		applyCurrentSongLocked(st, nil)
		st.CurrentMood = nil
		st.PlaylistInfo = nil
	})
}

// ShufflePlaylist randomizes the order, keeps the current song current,
// and turns shuffle mode on.
func (s *Store) ShufflePlaylist() {
	snapshot := s.manager.ShuffleOrder()
	s.mutate(func(st *State) {
		if snapshot != nil {
			st.Playlist = snapshot.Songs
			st.CurrentIndex = snapshot.CurrentIndex
		}
		st.ShuffleMode = true
	})
}

// History returns persisted playlist snapshots, newest first.
func (s *Store) History() ([]*types.SnapshotHistoryEntry, error) {
	return s.manager.History()
}

// InitializePlaylist restores the persisted playlist, or assembles a
// default from the catalog, or falls back to the bundled track. Nothing
// starts playing; the bootstrap is not persisted until the user acts on it.
func (s *Store) InitializePlaylist(ctx context.Context, fallbackURL string) {
	if snapshot := s.manager.Load(); snapshot != nil && len(snapshot.Songs) > 0 {
		s.debugLog("Restored playlist: %d songs, index %d", len(snapshot.Songs), snapshot.CurrentIndex)
		s.mutate(func(st *State) {
			st.Playlist = snapshot.Songs
			st.CurrentIndex = snapshot.CurrentIndex
			st.PlaybackMode = types.PlaybackModePlaylist
			if snapshot.CurrentIndex >= 0 && snapshot.CurrentIndex < len(snapshot.Songs) {
				applyCurrentSongLocked(st, snapshot.Songs[snapshot.CurrentIndex])
			}
			st.IsPlaying = false
		})
		return
	}

	songs := s.manager.BootstrapDefault(ctx)
	if len(songs) == 0 {
		songs = []*types.Song{playlist.FallbackSong(fallbackURL)}
		s.debugLog("Catalog unreachable, using bundled track")
	} else {
		s.debugLog("Bootstrapped playlist: %d songs", len(songs))
	}

	s.manager.AdoptTransient(songs, 0)
	s.mutate(func(st *State) {
		st.Playlist = songs
		st.CurrentIndex = 0
		st.PlaybackMode = types.PlaybackModePlaylist
		applyCurrentSongLocked(st, songs[0])
		st.IsPlaying = false
	})
}

// setDuration is pushed by the synchronizer once the real duration is known.
func (s *Store) setDuration(d float64) {
	s.mutate(func(st *State) {
		if d > 0 {
			st.Duration = d
			if st.CurrentTime > d {
				st.CurrentTime = d
			}
		}
	})
}

// setCurrentTime is pushed by the progress loop. It does not notify
// listeners through mutate to avoid re-entering the synchronizer on every
// frame; listeners poll position via GetState.
func (s *Store) setCurrentTime(t float64) {
	s.mu.Lock()
	if t >= 0 {
		if s.state.Duration > 0 && t > s.state.Duration {
			t = s.state.Duration
		}
		s.state.CurrentTime = t
	}
	s.mu.Unlock()
}

// pauseWithError stops playback and surfaces the error in one notification,
// so listeners never observe a playing state alongside a fatal error.
func (s *Store) pauseWithError(err error) {
	s.mutate(func(st *State) {
		st.IsPlaying = false
		st.LastError = err
	})
}
