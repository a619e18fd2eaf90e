package types

import (
	"context"
)

// Catalog fetches song collections from the backend. Implementations return
// the decoded payload or an error; they never fall back silently.
type Catalog interface {
	GetSongs(ctx context.Context, page, limit int) (*SongListResponse, error)
	GetHotSongs(ctx context.Context, limit int) ([]*Song, error)
	GetTrendingSongs(ctx context.Context, limit int) ([]*Song, error)
	GetNewSongs(ctx context.Context, limit int) ([]*Song, error)
	GetMoodSongs(ctx context.Context, moodID string, limit int) ([]*Song, error)
}

// PlayRecorder reports completed play starts back to the backend.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, songID string) error
}

// SnapshotStore persists ordered playlist snapshots and keeps a bounded
// history of them.
type SnapshotStore interface {
	LoadCurrent() (*PlaylistSnapshot, error)
	SaveCurrent(snapshot *PlaylistSnapshot) error
	DeleteCurrent() error
	History() ([]*SnapshotHistoryEntry, error)
}

// Output is a playback backend. Loading is asynchronous: SetSource starts
// fetching and decoding, and OnLoaded fires once the real duration is known.
// All callbacks may be invoked from internal goroutines.
type Output interface {
	SetSource(url string)
	Source() string
	Play(ctx context.Context) error
	Pause()
	SetVolume(v float64)
	Seek(seconds float64) error
	Position() float64
	Duration() float64
	Playing() bool
	Ended() bool
	OnLoaded(fn func(duration float64))
	OnPlay(fn func())
	OnEnded(fn func())
	OnError(fn func(err error))
	Close() error
}
