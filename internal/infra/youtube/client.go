// Package youtube resolves YouTube links through the YouTube web API without external binaries.
package youtube

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kkdai/youtube/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/resolve"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
)

// Config represents YouTube client configuration.
type Config struct {
	Proxy         string // Optional http(s):// or socks5:// proxy URL
	PlaylistLimit int    // Entries read from a playlist
}

// api is the part of youtube.Client we use.
type api interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// Client resolves and locates YouTube videos and playlists.
type Client struct {
	api   api
	limit int
}

var (
	_ resolve.Source  = (*Client)(nil)
	_ resolve.Locator = (*Client)(nil)
)

// New creates a new YouTube client.
func New(cfg Config) (*Client, error) {
	httpClient, err := newHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if cfg.Proxy != "" {
		zlog.Info().Msgf("youtube: using proxy %s", redactProxy(cfg.Proxy))
	}

	limit := cfg.PlaylistLimit
	if limit <= 0 {
		limit = 50
	}
	return &Client{
		api:   &youtube.Client{HTTPClient: httpClient},
		limit: limit,
	}, nil
}

// Name returns the source name.
func (c *Client) Name() string { return "youtube" }

// Match reports whether query is a YouTube video or playlist link.
func (c *Client) Match(query string) bool {
	_, ok := classifyURL(query)
	return ok
}

// Resolve returns the video or the playlist behind a YouTube link.
func (c *Client) Resolve(ctx context.Context, query string) (*playlist.Playlist, error) {
	kind, ok := classifyURL(query)
	if !ok {
		return nil, resolve.Permanent(errors.Newf("not a youtube link: %q", query))
	}

	if kind == linkPlaylist {
		return c.resolvePlaylist(ctx, query)
	}

	v, err := c.api.GetVideoContext(ctx, query)
	if err != nil {
		return nil, classifyError(err, "failed to get video")
	}
	return playlist.Single(videoSong(v)), nil
}

func (c *Client) resolvePlaylist(ctx context.Context, query string) (*playlist.Playlist, error) {
	p, err := c.api.GetPlaylistContext(ctx, query)
	if err != nil {
		return nil, classifyError(err, "failed to get playlist")
	}

	songs := make([]song.Song, 0, len(p.Videos))
	for _, e := range p.Videos {
		if e == nil || e.ID == "" {
			continue
		}
		songs = append(songs, entrySong(e))
		if len(songs) == c.limit {
			break
		}
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &playlist.Playlist{
		Title: p.Title,
		URL:   query,
		Songs: songs,
	}, nil
}

// Locate returns a direct URL of the best audio-only format.
func (c *Client) Locate(ctx context.Context, ref string) (string, error) {
	v, err := c.api.GetVideoContext(ctx, ref)
	if err != nil {
		return "", classifyError(err, "failed to get video")
	}

	f := bestAudio(v.Formats)
	if f == nil {
		return "", resolve.Permanent(errors.Newf("no audio formats for %s", v.ID))
	}

	u, err := c.api.GetStreamURLContext(ctx, v, f)
	if err != nil {
		return "", classifyError(err, "failed to get stream url")
	}
	return u, nil
}

// bestAudio prefers audio-only formats and picks the highest bitrate.
func bestAudio(formats youtube.FormatList) *youtube.Format {
	candidates := formats.Type("audio")
	if len(candidates) == 0 {
		candidates = formats.WithAudioChannels()
	}
	var best *youtube.Format
	for i := range candidates {
		if best == nil || candidates[i].Bitrate > best.Bitrate {
			best = &candidates[i]
		}
	}
	return best
}

func classifyError(err error, msg string) error {
	wrapped := errors.Wrap(err, msg)
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.Is(err, youtube.ErrInvalidPlaylist):
		return resolve.Permanent(wrapped)
	}
	return wrapped
}

func videoSong(v *youtube.Video) song.Song {
	page := "https://www.youtube.com/watch?v=" + v.ID
	return song.Song{
		Title:      v.Title,
		StreamURL:  page,
		WebpageURL: page,
		Duration:   int(v.Duration.Seconds()),
		Thumbnail:  largestThumbnail(v.Thumbnails),
		Uploader:   v.Author,
	}
}

func entrySong(e *youtube.PlaylistEntry) song.Song {
	page := "https://www.youtube.com/watch?v=" + e.ID
	return song.Song{
		Title:      e.Title,
		StreamURL:  page,
		WebpageURL: page,
		Duration:   int(e.Duration.Seconds()),
		Thumbnail:  largestThumbnail(e.Thumbnails),
		Uploader:   e.Author,
	}
}

func largestThumbnail(thumbs youtube.Thumbnails) string {
	var best string
	var bestWidth uint
	for _, t := range thumbs {
		if best == "" || t.Width > bestWidth {
			best, bestWidth = t.URL, t.Width
		}
	}
	return best
}

type linkKind int

const (
	linkVideo linkKind = iota
	linkPlaylist
)

// classifyURL recognises youtube.com, music.youtube.com and youtu.be links.
func classifyURL(raw string) (linkKind, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0, false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "youtu.be":
		if strings.Trim(u.Path, "/") == "" {
			return 0, false
		}
		return linkVideo, true
	case "youtube.com", "music.youtube.com":
	default:
		return 0, false
	}

	switch {
	case u.Path == "/playlist" && u.Query().Get("list") != "":
		return linkPlaylist, true
	case u.Path == "/watch" && u.Query().Get("v") != "":
		return linkVideo, true
	case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/live/"):
		return linkVideo, true
	}
	return 0, false
}
