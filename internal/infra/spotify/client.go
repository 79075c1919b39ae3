// Package spotify resolves Spotify links into songs playable through a YouTube search.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/tunebox/internal/app/resolve"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
)

// pageLimit is the Spotify API maximum per playlist page.
const pageLimit = 100

// Client is a Spotify API client.
type Client struct {
	client       *spotify.Client
	market       string
	searchPrefix string
	maxSongs     int
	maxRetries   int
	retryDelay   time.Duration
}

var _ resolve.Source = (*Client)(nil)

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
	SearchPrefix string // yt-dlp search used to find the audio, e.g. "ytsearch1"
	MaxSongs     int    // Cap on songs read from a playlist or album
}

// New creates a new Spotify client authenticated with the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	// Fetch one token up front so bad credentials fail at startup.
	if _, err := cc.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to get spotify token")
	}

	return newClient(spotify.New(cc.Client(ctx)), cfg), nil
}

func newClient(api *spotify.Client, cfg Config) *Client {
	market := cfg.Market
	if market == "" {
		market = "US"
	}
	prefix := cfg.SearchPrefix
	if prefix == "" {
		prefix = "ytsearch1"
	}
	maxSongs := cfg.MaxSongs
	if maxSongs <= 0 {
		maxSongs = 50
	}
	return &Client{
		client:       api,
		market:       market,
		searchPrefix: prefix,
		maxSongs:     maxSongs,
		maxRetries:   3,
		retryDelay:   time.Second,
	}
}

// Name returns the source name.
func (c *Client) Name() string { return "spotify" }

// Match reports whether query is a Spotify track, playlist, or album link.
func (c *Client) Match(query string) bool {
	kind, id := parseLink(query)
	return kind != "" && id != ""
}

// Resolve returns the songs behind a Spotify link.
// Errors are final for the resolver chain; retries already happened here.
func (c *Client) Resolve(ctx context.Context, query string) (*playlist.Playlist, error) {
	kind, id := parseLink(query)

	var pl *playlist.Playlist
	var err error
	switch kind {
	case "track":
		pl, err = c.getTrack(ctx, id)
	case "playlist":
		pl, err = c.getPlaylist(ctx, id)
	case "album":
		pl, err = c.getAlbum(ctx, id)
	default:
		return nil, resolve.Permanent(errors.Newf("not a spotify link: %q", query))
	}
	if err != nil {
		return nil, resolve.Permanent(err)
	}
	if pl != nil {
		pl.URL = strings.TrimSpace(query)
	}
	return pl, nil
}

func (c *Client) getTrack(ctx context.Context, id string) (*playlist.Playlist, error) {
	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}
	return playlist.Single(c.convertTrack(result)), nil
}

func (c *Client) getPlaylist(ctx context.Context, id string) (*playlist.Playlist, error) {
	var title string
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("name"))
		if err != nil {
			return err
		}
		title = p.Name
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	var songs []song.Song
	offset := 0
	for len(songs) < c.maxSongs {
		limit := min(pageLimit, c.maxSongs-len(songs))

		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only tracks; podcast episodes are skipped.
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				songs = append(songs, c.convertTrack(item.Track.Track))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	if len(songs) == 0 {
		return nil, nil
	}
	if title == "" {
		title = "Spotify playlist"
	}
	zlog.Debug().Msgf("spotify: playlist %s: %d track(s)", id, len(songs))
	return &playlist.Playlist{Title: title, Songs: songs}, nil
}

func (c *Client) getAlbum(ctx context.Context, id string) (*playlist.Playlist, error) {
	var album *spotify.FullAlbum
	err := c.retry(ctx, func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	var art string
	if len(album.Images) > 0 {
		art = album.Images[0].URL
	}

	var songs []song.Song
	for _, t := range album.Tracks.Tracks {
		s := c.songFor(string(t.ID), t.Name, t.Artists, int(t.Duration))
		s.Thumbnail = art
		songs = append(songs, s)
		if len(songs) == c.maxSongs {
			break
		}
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &playlist.Playlist{Title: album.Name, Songs: songs}, nil
}

// convertTrack converts a Spotify FullTrack to a Song.
func (c *Client) convertTrack(t *spotify.FullTrack) song.Song {
	s := c.songFor(string(t.ID), t.Name, t.Artists, int(t.Duration))
	if len(t.Album.Images) > 0 {
		s.Thumbnail = t.Album.Images[0].URL
	}
	return s
}

// songFor builds a song whose stream reference is a YouTube search for "artists - title".
func (c *Client) songFor(id, name string, artists []spotify.SimpleArtist, durationMs int) song.Song {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	artist := strings.Join(names, ", ")

	term := name
	if artist != "" {
		term = artist + " - " + name
	}

	return song.Song{
		Title:      name,
		StreamURL:  fmt.Sprintf("%s:%s", c.searchPrefix, term),
		WebpageURL: GetTrackURL(id),
		Duration:   durationMs / 1000,
		Uploader:   artist,
	}
}

// GetTrackURL returns the Spotify URL for a track.
func GetTrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Warn().Msgf("spotify: request failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
			select {
			case <-ctx.Done():
				return errors.Wrapf(lastErr, "%v", ctx.Err())
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// parseLink returns the entity kind ("track", "playlist", "album") and ID of a
// Spotify URL or URI. kind is empty for anything else.
func parseLink(input string) (kind, id string) {
	input = strings.TrimSpace(input)

	// Spotify URI format: spotify:track:ID
	if rest, ok := strings.CutPrefix(input, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) == 2 && isKind(parts[0]) {
			return parts[0], parts[1]
		}
		return "", ""
	}

	// URL format: https://open.spotify.com/track/ID or https://open.spotify.com/intl-XX/track/ID
	u, err := url.Parse(input)
	if err != nil || u.Host != "open.spotify.com" {
		return "", ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) > 0 && strings.HasPrefix(segs[0], "intl-") {
		segs = segs[1:]
	}
	if len(segs) != 2 || !isKind(segs[0]) {
		return "", ""
	}
	return segs[0], segs[1]
}

func isKind(s string) bool {
	return s == "track" || s == "playlist" || s == "album"
}
