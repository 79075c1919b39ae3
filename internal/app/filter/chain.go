package filter

import (
	"context"

	"github.com/osa030/tunebox/internal/domain/song"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the song.
func (c *Chain) Execute(ctx context.Context, req Request, s song.Song) Result {
	if c == nil {
		return Accept()
	}
	for _, f := range c.filters {
		result := f.Check(ctx, req, s)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Partition splits songs into accepted ones (in order) and the codes of the rejected ones.
func (c *Chain) Partition(ctx context.Context, req Request, songs []song.Song) ([]song.Song, []string) {
	accepted := make([]song.Song, 0, len(songs))
	var codes []string
	for _, s := range songs {
		result := c.Execute(ctx, req, s)
		if result.Accepted {
			accepted = append(accepted, s)
			continue
		}
		codes = append(codes, result.Code)
	}
	return accepted, codes
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	if c == nil {
		return nil
	}
	return c.filters
}
