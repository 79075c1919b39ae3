// Package resolve routes play queries and stream references to the backends that understand them.
package resolve

import (
	"context"

	"github.com/osa030/tunebox/internal/domain/playlist"
)

// Source is a metadata backend that turns queries into songs.
type Source interface {
	// Name returns the source name used in logs.
	Name() string
	// Match reports whether the source understands query.
	Match(query string) bool
	// Resolve returns the songs for query. A nil playlist means nothing was found.
	Resolve(ctx context.Context, query string) (*playlist.Playlist, error)
}

// Locator turns a song's stream reference into a URL the audio pipeline can open.
type Locator interface {
	Name() string
	Match(ref string) bool
	Locate(ctx context.Context, ref string) (string, error)
}
