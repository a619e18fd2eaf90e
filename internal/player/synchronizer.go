package player

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/selfmusic/player/internal/config"
	"github.com/selfmusic/player/internal/playlist"
	"github.com/selfmusic/player/pkg/types"
)

// Synchronizer reconciles store state with the audio output. It treats the
// store as the single source of truth: every state change is diffed against
// the output and only the differences are applied, so redundant
// notifications are harmless.
type Synchronizer struct {
	store    *Store
	out      types.Output
	recorder types.PlayRecorder
	tracker  *progressTracker

	// streamURL resolves a song to its playable URL.
	streamURL func(*types.Song) string

	ctx   context.Context
	debug bool

	mu            sync.Mutex
	currentSource string
	currentID     string
	loadedForID   string
	recordedForID string
	lastVolume    float64
}

func NewSynchronizer(store *Store, out types.Output, recorder types.PlayRecorder, streamURL func(*types.Song) string, cfg *config.Config) *Synchronizer {
	interval := 500 * time.Millisecond
	debug := false
	if cfg != nil {
		if cfg.Playback.ProgressIntervalMs > 0 {
			interval = time.Duration(cfg.Playback.ProgressIntervalMs) * time.Millisecond
		}
		debug = cfg.Debug
	}

	return &Synchronizer{
		store:      store,
		out:        out,
		recorder:   recorder,
		streamURL:  streamURL,
		tracker:    newProgressTracker(interval),
		debug:      debug,
		lastVolume: -1,
	}
}

func (s *Synchronizer) debugLog(format string, args ...interface{}) {
	if !s.debug {
		return
	}
	log.Printf("[SYNC] "+format, args...)
}

// Attach wires output callbacks and subscribes to the store. ctx bounds all
// playback and recording requests started by the synchronizer.
func (s *Synchronizer) Attach(ctx context.Context) {
	s.ctx = ctx

	s.out.OnLoaded(s.onLoaded)
	s.out.OnPlay(s.onPlay)
	s.out.OnEnded(s.onEnded)
	s.out.OnError(s.onError)

	s.store.OnChange(s.apply)
	s.apply(s.store.GetState())
}

// Close stops the progress loop and releases the output.
func (s *Synchronizer) Close() error {
	s.tracker.Stop()
	return s.out.Close()
}

// apply diffs the desired state against the output. It must not hold s.mu
// while calling store methods; those notify listeners, which re-enters
// apply.
func (s *Synchronizer) apply(st State) {
	if st.CurrentSong == nil {
		s.tracker.Stop()
		if s.out.Playing() {
			s.out.Pause()
		}
		s.mu.Lock()
		s.currentSource = ""
		s.currentID = ""
		s.mu.Unlock()
		return
	}

	url := s.streamURL(st.CurrentSong)

	s.mu.Lock()
	sourceChanged := url != s.currentSource
	if sourceChanged {
		s.currentSource = url
		s.currentID = st.CurrentSong.ID
		s.loadedForID = ""
		s.recordedForID = ""
	}
	volumeChanged := st.Volume != s.lastVolume
	if volumeChanged {
		s.lastVolume = st.Volume
	}
	s.mu.Unlock()

	if sourceChanged {
		s.debugLog("Source changed: %s (%s)", st.CurrentSong.Title, url)
		s.tracker.Stop()
		s.out.SetSource(url)
	} else if st.Duration == 0 {
		// Same source reloaded into a fresh state; push the known duration.
		if d := s.out.Duration(); d > 0 {
			s.store.setDuration(d)
		}
	}

	if volumeChanged {
		s.out.SetVolume(st.Volume)
	}

	if seek := s.store.TakeSeek(); seek != nil {
		if err := s.out.Seek(*seek); err != nil {
			s.debugLog("Seek to %.2fs failed: %v", *seek, err)
		}
	}

	if st.IsPlaying {
		if !s.out.Playing() {
			if err := s.out.Play(s.ctx); err != nil {
				s.debugLog("Play rejected: %v", err)
				s.store.pauseWithError(err)
				return
			}
		}
		s.startProgress()
	} else if s.out.Playing() {
		s.out.Pause()
		s.tracker.Stop()
	}
}

func (s *Synchronizer) startProgress() {
	s.tracker.Start(func() {
		if !s.out.Playing() || s.out.Ended() {
			return
		}
		s.store.setCurrentTime(s.out.Position())
	})
}

// onLoaded fires when the output knows the real duration. Only the first
// report per load wins; later metadata updates must not fight a seek.
func (s *Synchronizer) onLoaded(duration float64) {
	s.mu.Lock()
	first := s.loadedForID != s.currentID
	if first {
		s.loadedForID = s.currentID
	}
	s.mu.Unlock()

	if first && duration > 0 {
		s.debugLog("Loaded, duration %.2fs", duration)
		s.store.setDuration(duration)
	}
}

// onPlay records one play per loaded song. The bundled fallback track is
// never reported.
func (s *Synchronizer) onPlay() {
	s.mu.Lock()
	id := s.currentID
	record := id != "" && id != playlist.FallbackSongID && s.recordedForID != id
	if record {
		s.recordedForID = id
	}
	s.mu.Unlock()

	if !record || s.recorder == nil {
		return
	}

	go func() {
		if err := s.recorder.RecordPlay(s.ctx, id); err != nil {
			s.debugLog("Failed to record play for %s: %v", id, err)
		}
	}()
}

// onEnded handles track completion. Repeat-one restarts locally without
// touching the playlist pointer; everything else delegates to the store.
func (s *Synchronizer) onEnded() {
	st := s.store.GetState()

	if st.RepeatMode == types.RepeatOne {
		s.debugLog("Track ended, repeating")
		if err := s.out.Seek(0); err != nil {
			s.debugLog("Restart seek failed: %v", err)
		}
		if err := s.out.Play(s.ctx); err != nil {
			s.debugLog("Restart play failed: %v", err)
			s.store.pauseWithError(err)
		}
		return
	}

	s.debugLog("Track ended, advancing")
	s.tracker.Stop()
	s.store.NextSong()
}

func (s *Synchronizer) onError(err error) {
	s.debugLog("Output error: %v", err)
	s.tracker.Stop()
	s.store.pauseWithError(err)
}
