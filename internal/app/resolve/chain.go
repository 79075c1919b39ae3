package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/tunebox/internal/domain/playlist"
)

// Options configures a Chain.
type Options struct {
	RatePerSecond float64       // Backend calls per second, 0 disables limiting
	Burst         int           // Limiter burst
	Timeout       time.Duration // Per-query deadline including retries, 0 for none
	MaxSongs      int           // Cap on songs per result, 0 for none
	Retry         RetryConfig
}

// Chain routes a query to the sources that match it, in order, and then to the fallback.
// A failing source hands over to the next candidate.
type Chain struct {
	sources  []Source
	fallback Source
	limiter  *rate.Limiter
	opts     Options
}

// NewChain creates a resolver chain. fallback may be nil.
func NewChain(opts Options, fallback Source, sources ...Source) *Chain {
	var lim *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Chain{
		sources:  sources,
		fallback: fallback,
		limiter:  lim,
		opts:     opts,
	}
}

// candidates returns the sources to try for query, fallback last.
func (c *Chain) candidates(query string) []Source {
	var out []Source
	for _, s := range c.sources {
		if s.Match(query) {
			out = append(out, s)
		}
	}
	if c.fallback != nil {
		out = append(out, c.fallback)
	}
	return out
}

// Resolve implements playback.Resolver.
func (c *Chain) Resolve(ctx context.Context, query string) (*playlist.Playlist, error) {
	query = strings.TrimSpace(query)
	candidates := c.candidates(query)
	if len(candidates) == 0 {
		return nil, errors.Newf("no source can handle %q", query)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	var lastErr error
	for i, src := range candidates {
		zlog.Debug().Msgf("resolve: trying source: index=%d total=%d name=%s", i+1, len(candidates), src.Name())

		var pl *playlist.Playlist
		err := withRetry(ctx, c.limiter, c.opts.Retry, src.Name(), func(ctx context.Context) error {
			var err error
			pl, err = src.Resolve(ctx, query)
			return err
		})
		if err != nil {
			lastErr = errors.Wrapf(err, "source %s", src.Name())
			if ctx.Err() != nil {
				break
			}
			zlog.Warn().Msgf("resolve: source failed, trying next: source=%s error=%v", src.Name(), err)
			continue
		}

		pl = c.finish(pl)
		if pl == nil {
			zlog.Debug().Msgf("resolve: source returned nothing: source=%s", src.Name())
			continue
		}
		zlog.Info().Msgf("resolve: source=%s title=%q songs=%d", src.Name(), pl.Title, len(pl.Songs))
		return pl, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// finish drops unplayable entries and applies the size cap. Empty results become nil.
func (c *Chain) finish(pl *playlist.Playlist) *playlist.Playlist {
	if pl == nil {
		return nil
	}
	songs := pl.Songs[:0:0]
	for _, s := range pl.Songs {
		if s.StreamURL != "" {
			songs = append(songs, s)
		}
	}
	if len(songs) == 0 {
		return nil
	}
	out := *pl
	out.Songs = songs
	if c.opts.MaxSongs > 0 {
		out.Truncate(c.opts.MaxSongs)
	}
	return &out
}
