// Package song provides the Song value type.
package song

import (
	"fmt"
	"strings"
)

// UnknownDuration is returned by FormatDuration when the length is not known.
const UnknownDuration = "Unknown"

// Song represents one playable track as returned by a resolver.
// Songs are plain values: two entries with the same fields are still two queue entries.
type Song struct {
	Title      string // Display title
	StreamURL  string // Reference handed to the voice transport (page URL, media URL, or search ref)
	WebpageURL string // Link shown to users (may be empty)
	Duration   int    // Length in whole seconds, 0 when unknown
	Thumbnail  string // Thumbnail URL (optional)
	Uploader   string // Uploader or artist display name
}

// FormatDuration returns the duration as zero-padded MM:SS.
// Minutes are not folded into hours, so a 62 minute track is "62:05".
func (s Song) FormatDuration() string {
	return FormatSeconds(s.Duration)
}

// FormatSeconds formats a length in seconds the way FormatDuration does.
func FormatSeconds(seconds int) string {
	if seconds <= 0 {
		return UnknownDuration
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Link returns the best URL to show for the song, or "" when the song has
// only a search reference.
func (s Song) Link() string {
	if s.WebpageURL != "" {
		return s.WebpageURL
	}
	if strings.HasPrefix(s.StreamURL, "https://") || strings.HasPrefix(s.StreamURL, "http://") {
		return s.StreamURL
	}
	return ""
}
