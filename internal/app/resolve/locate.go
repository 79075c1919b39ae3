package resolve

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// LocatorChain picks the first matching locator for a stream reference,
// falling back to the default locator when a specialised one fails.
type LocatorChain struct {
	locators []Locator
	fallback Locator
	retry    RetryConfig
}

// NewLocatorChain creates a locator chain. fallback may be nil, in which case
// unmatched references are returned unchanged.
func NewLocatorChain(retry RetryConfig, fallback Locator, locators ...Locator) *LocatorChain {
	return &LocatorChain{
		locators: locators,
		fallback: fallback,
		retry:    retry,
	}
}

// Locate returns a media URL for ref.
func (c *LocatorChain) Locate(ctx context.Context, ref string) (string, error) {
	var candidates []Locator
	for _, l := range c.locators {
		if l.Match(ref) {
			candidates = append(candidates, l)
		}
	}
	if c.fallback != nil {
		candidates = append(candidates, c.fallback)
	}
	if len(candidates) == 0 {
		return ref, nil
	}

	var lastErr error
	for _, l := range candidates {
		var url string
		err := withRetry(ctx, nil, c.retry, l.Name(), func(ctx context.Context) error {
			var err error
			url, err = l.Locate(ctx, ref)
			return err
		})
		if err == nil && url != "" {
			return url, nil
		}
		if err == nil {
			err = errors.Newf("%s returned no media url", l.Name())
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		zlog.Warn().Msgf("resolve: locator failed, trying next: locator=%s error=%v", l.Name(), err)
	}
	return "", errors.Wrapf(lastErr, "failed to locate stream for %q", ref)
}
