package resolve

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent marks err so that it is returned without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrPermanent)
}

// RetryConfig configures retry behaviour for backend calls.
type RetryConfig struct {
	MaxAttempts  int           // Attempts including the first one
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound for the backoff delay
	Multiplier   float64       // Backoff growth factor
	Jitter       bool          // Add up to 25% random delay
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	return c
}

// withRetry runs fn until it succeeds, fails permanently, or attempts run out.
// Every attempt first waits for the limiter when one is given.
func withRetry(ctx context.Context, lim *rate.Limiter, cfg RetryConfig, op string, fn func(context.Context) error) error {
	cfg = cfg.normalized()
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return errors.Wrapf(err, "%s: waiting for rate limiter", op)
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				zlog.Debug().Msgf("resolve: %s succeeded after %d attempts", op, attempt)
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = addJitter(wait)
		}
		zlog.Warn().Msgf("resolve: %s failed (attempt %d/%d): %v, retrying in %v", op, attempt, cfg.MaxAttempts, err, wait)

		select {
		case <-ctx.Done():
			return errors.Wrapf(lastErr, "%s: %v", op, ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return errors.Wrapf(lastErr, "%s: giving up after %d attempts", op, cfg.MaxAttempts)
}

func addJitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + time.Duration(rand.Int64N(int64(d/4)))
}
