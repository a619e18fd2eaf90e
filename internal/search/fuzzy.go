package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/selfmusic/player/pkg/types"
)

type scoredSong struct {
	song  *types.Song
	score float64
}

// RankSongs scores songs against the query and returns matches best first,
// capped at limit. limit <= 0 means no cap.
func RankSongs(songs []*types.Song, query string, limit int) []*types.Song {
	if query == "" {
		return nil
	}

	queryLower := strings.ToLower(query)
	var scored []scoredSong

	for _, song := range songs {
		if song == nil {
			continue
		}
		score := scoreSong(song, queryLower)
		if score > 0 {
			scored = append(scored, scoredSong{song: song, score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	result := make([]*types.Song, 0, len(scored))
	for _, s := range scored {
		result = append(result, s.song)
	}

	return result
}

func scoreSong(song *types.Song, queryLower string) float64 {
	score := 0.0

	title := strings.ToLower(song.Title)
	if strings.Contains(title, queryLower) {
		score += 10.0
	}

	distance := fuzzy.LevenshteinDistance(queryLower, title)
	if distance <= len(queryLower)/2 {
		score += float64(len(queryLower) - distance)
	}

	if song.Album != nil {
		if strings.Contains(strings.ToLower(song.Album.Title), queryLower) {
			score += 5.0
		}
	}

	artists := song.Artists
	if len(artists) == 0 && song.Artist != nil {
		artists = []*types.Artist{song.Artist}
	}
	for _, artist := range artists {
		if artist != nil && strings.Contains(strings.ToLower(artist.Name), queryLower) {
			score += 7.0
		}
	}

	return score
}
