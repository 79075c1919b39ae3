package ytdlp

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
)

// info is the subset of the yt-dlp JSON dump we read. Flat playlist entries
// use the same shape with "url" pointing at the entry page.
type info struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []thumbnail `json:"thumbnails"`
	Uploader   string      `json:"uploader"`
	Channel    string      `json:"channel"`
	Entries    []info      `json:"entries"`

	ExtractorKey string `json:"extractor_key"`
}

type thumbnail struct {
	URL string `json:"url"`
}

func parseInfo(data []byte, limit int) (*playlist.Playlist, error) {
	var root info
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode yt-dlp output")
	}

	if root.Type != "playlist" && root.Type != "multi_video" {
		s, ok := root.song()
		if !ok {
			return nil, nil
		}
		return playlist.Single(s), nil
	}

	var songs []song.Song
	for _, e := range root.Entries {
		if s, ok := e.song(); ok {
			songs = append(songs, s)
		}
	}
	if len(songs) == 0 {
		return nil, nil
	}

	pl := &playlist.Playlist{
		Title: root.Title,
		URL:   root.WebpageURL,
		Songs: songs,
	}
	// Search results come back as a playlist; one hit is a single match.
	if isSearch(root) {
		pl.Title = ""
		pl.URL = ""
	}
	pl.Truncate(limit)
	return pl, nil
}

func isSearch(root info) bool {
	return strings.HasSuffix(root.ExtractorKey, "Search") || strings.Contains(root.WebpageURL, "search:")
}

func (i info) song() (song.Song, bool) {
	page := i.WebpageURL
	if page == "" {
		page = i.URL
	}
	if page == "" {
		return song.Song{}, false
	}

	title := i.Title
	if title == "" {
		title = page
	}
	uploader := i.Uploader
	if uploader == "" {
		uploader = i.Channel
	}
	thumb := i.Thumbnail
	if thumb == "" && len(i.Thumbnails) > 0 {
		thumb = i.Thumbnails[len(i.Thumbnails)-1].URL
	}

	return song.Song{
		Title:      title,
		StreamURL:  page,
		WebpageURL: page,
		Duration:   int(math.Round(i.Duration)),
		Thumbnail:  thumb,
		Uploader:   uploader,
	}, true
}
