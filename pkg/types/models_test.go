package types

import "testing"

func TestPrimaryArtist(t *testing.T) {
	legacy := &Song{Artist: &Artist{ID: "a1", Name: "Solo"}}
	if got := legacy.PrimaryArtist(); got == nil || got.Name != "Solo" {
		t.Errorf("legacy artist = %v", got)
	}

	marked := &Song{Artists: []*Artist{
		{ID: "a1", Name: "Feature"},
		{ID: "a2", Name: "Lead", IsPrimary: true},
	}}
	if got := marked.PrimaryArtist(); got == nil || got.Name != "Lead" {
		t.Errorf("marked primary = %v", got)
	}

	unmarked := &Song{Artists: []*Artist{
		{ID: "a1", Name: "First"},
		{ID: "a2", Name: "Second"},
	}}
	if got := unmarked.PrimaryArtist(); got == nil || got.Name != "First" {
		t.Errorf("unmarked primary = %v", got)
	}

	empty := &Song{}
	if got := empty.PrimaryArtist(); got != nil {
		t.Errorf("empty song artist = %v", got)
	}
}

func TestArtistNames(t *testing.T) {
	song := &Song{Artists: []*Artist{
		{Name: "One"}, {Name: "Two"}, {Name: "Three"}, {Name: "Four"},
	}}

	if got := song.ArtistNames(0); got != "One, Two, Three, Four" {
		t.Errorf("unlimited = %q", got)
	}
	if got := song.ArtistNames(2); got != "One, Two & 2 more" {
		t.Errorf("capped = %q", got)
	}

	legacy := &Song{Artist: &Artist{Name: "Solo"}}
	if got := legacy.ArtistNames(3); got != "Solo" {
		t.Errorf("legacy = %q", got)
	}

	empty := &Song{}
	if got := empty.ArtistNames(0); got != "Unknown Artist" {
		t.Errorf("empty = %q", got)
	}
}

func TestRepeatModeString(t *testing.T) {
	cases := map[RepeatMode]string{
		RepeatNone: "none",
		RepeatAll:  "all",
		RepeatOne:  "one",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", mode, got, want)
		}
	}
}
