// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/tunebox/internal/domain/song"

// Playlist is the ordered result of resolving one query.
// A single match is a Playlist with one song and no Title.
type Playlist struct {
	Title string      // Playlist title (empty for a single match)
	URL   string      // Source URL
	Songs []song.Song // Songs in play order
}

// Single wraps one song as a Playlist.
func Single(s song.Song) *Playlist {
	return &Playlist{Songs: []song.Song{s}}
}

// IsSingle reports whether the result is a single match rather than a list.
func (p *Playlist) IsSingle() bool {
	return p.Title == "" && len(p.Songs) == 1
}

// Truncate caps the playlist to at most n songs.
func (p *Playlist) Truncate(n int) {
	if n > 0 && len(p.Songs) > n {
		p.Songs = p.Songs[:n]
	}
}

// TotalDuration returns the summed duration in seconds.
// Songs with unknown duration count as zero.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, s := range p.Songs {
		if s.Duration > 0 {
			total += int64(s.Duration)
		}
	}
	return total
}
