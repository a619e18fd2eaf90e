package types

import (
	"strconv"
	"strings"
	"time"
)

type Artist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bio       *string   `json:"bio,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	CoverURL  *string   `json:"coverUrl,omitempty"`
	Followers int       `json:"followers"`
	SongCount int       `json:"songCount"`
	Genres    []string  `json:"genres,omitempty"`
	Verified  bool      `json:"verified"`
	IsPrimary bool      `json:"isPrimary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Album struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      *Artist   `json:"artist,omitempty"`
	Artists     []*Artist `json:"artists,omitempty"`
	CoverURL    *string   `json:"coverUrl,omitempty"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	SongCount   int       `json:"songCount"`
	Duration    float64   `json:"duration"`
	Genre       *string   `json:"genre,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    *Artist   `json:"artist,omitempty"`
	Artists   []*Artist `json:"artists,omitempty"`
	Album     *Album    `json:"album,omitempty"`
	Duration  float64   `json:"duration"`
	AudioURL  *string   `json:"audioUrl,omitempty"`
	CoverURL  *string   `json:"coverUrl,omitempty"`
	Lyrics    *string   `json:"lyrics,omitempty"`
	Moods     []*Mood   `json:"moods,omitempty"`
	PlayCount int       `json:"playCount"`
	Liked     bool      `json:"liked"`
	Genre     *string   `json:"genre,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Mood struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	CoverURL    *string   `json:"coverUrl,omitempty"`
	SongCount   int       `json:"songCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CoverURL    *string   `json:"coverUrl,omitempty"`
	Songs       []*Song   `json:"songs,omitempty"`
	SongCount   int       `json:"songCount"`
	PlayCount   int       `json:"playCount"`
	Duration    float64   `json:"duration"`
	Creator     string    `json:"creator,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PlaylistSnapshot is the unit of durable persistence: the full song order
// plus the playback pointer at a point in time. Snapshots are written whole
// and never mutated in place.
type PlaylistSnapshot struct {
	Songs         []*Song   `json:"songs"`
	CurrentIndex  int       `json:"currentIndex"`
	CurrentSongID *string   `json:"currentSongId"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// SnapshotHistoryEntry is one record in the bounded snapshot history log.
type SnapshotHistoryEntry struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"savedAt"`
	PlaylistSnapshot
}

type SongListResponse struct {
	Data       []*Song `json:"data"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// RepeatMode controls what happens when a track or the playlist ends.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "none"
	}
}

// PlaybackMode describes which kind of context the current song came from.
type PlaybackMode int

const (
	PlaybackModeSong PlaybackMode = iota
	PlaybackModePlaylist
	PlaybackModeMood
)

func (m PlaybackMode) String() string {
	switch m {
	case PlaybackModePlaylist:
		return "playlist"
	case PlaybackModeMood:
		return "mood"
	default:
		return "song"
	}
}

// PrimaryArtist returns the canonical artist for display. Older payloads
// carry a single artist field, newer ones a list with an isPrimary marker;
// both shapes resolve here.
func (s *Song) PrimaryArtist() *Artist {
	if len(s.Artists) > 0 {
		for _, a := range s.Artists {
			if a != nil && a.IsPrimary {
				return a
			}
		}
		return s.Artists[0]
	}
	return s.Artist
}

// ArtistNames joins artist names for display, collapsing everything past
// max into a count. max <= 0 means no limit.
func (s *Song) ArtistNames(max int) string {
	artists := s.Artists
	if len(artists) == 0 && s.Artist != nil {
		artists = []*Artist{s.Artist}
	}
	if len(artists) == 0 {
		return "Unknown Artist"
	}

	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a != nil {
			names = append(names, a.Name)
		}
	}
	if max <= 0 || len(names) <= max {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:max], ", ") + " & " + strconv.Itoa(len(names)-max) + " more"
}
