// Package ytdlp resolves queries and stream references by running the yt-dlp binary.
package ytdlp

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/resolve"
	"github.com/osa030/tunebox/internal/domain/playlist"
)

// Config represents yt-dlp configuration.
type Config struct {
	Path          string // Binary path, "yt-dlp" when empty
	SearchPrefix  string // Default search for plain text, e.g. "ytsearch"
	PlaylistLimit int    // Entries read from a playlist
}

// runFunc executes the binary and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client wraps the yt-dlp command line.
// It serves both as the fallback resolve.Source and resolve.Locator.
type Client struct {
	cfg Config
	run runFunc
}

var (
	_ resolve.Source  = (*Client)(nil)
	_ resolve.Locator = (*Client)(nil)
)

// New creates a new yt-dlp client.
func New(cfg Config) *Client {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.SearchPrefix == "" {
		cfg.SearchPrefix = "ytsearch"
	}
	if cfg.PlaylistLimit <= 0 {
		cfg.PlaylistLimit = 50
	}
	return &Client{cfg: cfg, run: runCommand}
}

// Name returns the source name.
func (c *Client) Name() string { return "ytdlp" }

// Match accepts everything; yt-dlp is the catch-all backend.
func (c *Client) Match(string) bool { return true }

// Resolve returns the video, playlist, or first search hit for query.
func (c *Client) Resolve(ctx context.Context, query string) (*playlist.Playlist, error) {
	out, err := c.run(ctx, c.cfg.Path,
		"-J",
		"--flat-playlist",
		"--no-warnings",
		"--playlist-end", strconv.Itoa(c.cfg.PlaylistLimit),
		"--default-search", c.cfg.SearchPrefix,
		"--", query,
	)
	if err != nil {
		return nil, err
	}
	return parseInfo(out, c.cfg.PlaylistLimit)
}

// Locate returns the direct media URL of the best audio format for ref.
func (c *Client) Locate(ctx context.Context, ref string) (string, error) {
	out, err := c.run(ctx, c.cfg.Path,
		"-f", "bestaudio/best",
		"-g",
		"--no-playlist",
		"--no-warnings",
		"--default-search", c.cfg.SearchPrefix,
		"--", ref,
	)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", errors.Newf("yt-dlp printed no url for %q", ref)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	zlog.Debug().Msgf("ytdlp: running %s %s", name, strings.Join(args, " "))
	out, err := cmd.Output()
	if err != nil {
		return nil, classify(err, stderr.String())
	}
	return out, nil
}

// permanentMarkers are yt-dlp error texts that retrying will not change.
var permanentMarkers = []string{
	"Unsupported URL",
	"Video unavailable",
	"Private video",
	"This video is not available",
	"is not a valid URL",
	"Sign in to confirm your age",
	"members-only",
}

// classify turns an exec failure into an error, marking the ones not worth retrying.
func classify(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return resolve.Permanent(errors.Wrap(err, "yt-dlp binary not found"))
	}
	msg := lastErrorLine(stderr)
	if msg == "" {
		return errors.Wrap(err, "yt-dlp failed")
	}
	wrapped := errors.Wrapf(err, "yt-dlp: %s", msg)
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return resolve.Permanent(wrapped)
		}
	}
	return wrapped
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); strings.HasPrefix(l, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(l, "ERROR:"))
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}
