package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/tunebox/internal/domain/song"
)

func TestPlaylist_IsSingle(t *testing.T) {
	tests := []struct {
		name     string
		playlist *Playlist
		expected bool
	}{
		{name: "single match", playlist: Single(song.Song{Title: "X"}), expected: true},
		{name: "titled playlist of one", playlist: &Playlist{Title: "mix", Songs: []song.Song{{Title: "X"}}}, expected: false},
		{name: "two songs", playlist: &Playlist{Songs: []song.Song{{Title: "X"}, {Title: "Y"}}}, expected: false},
		{name: "empty", playlist: &Playlist{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.playlist.IsSingle())
		})
	}
}

func TestPlaylist_Truncate(t *testing.T) {
	songs := make([]song.Song, 60)
	for i := range songs {
		songs[i] = song.Song{Duration: i}
	}

	p := &Playlist{Songs: songs}
	p.Truncate(50)
	assert.Len(t, p.Songs, 50)
	assert.Equal(t, 49, p.Songs[49].Duration)

	p.Truncate(0)
	assert.Len(t, p.Songs, 50, "non-positive limit leaves the playlist alone")
}

func TestPlaylist_TotalDuration(t *testing.T) {
	tests := []struct {
		name     string
		songs    []song.Song
		expected int64
	}{
		{name: "empty playlist", songs: []song.Song{}, expected: 0},
		{name: "single song", songs: []song.Song{{Duration: 180}}, expected: 180},
		{
			name:     "unknown durations ignored",
			songs:    []song.Song{{Duration: 120}, {Duration: 0}, {Duration: 240}},
			expected: 360,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Playlist{Songs: tt.songs}
			assert.Equal(t, tt.expected, p.TotalDuration())
		})
	}
}
