package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/tunebox/internal/domain/song"
)

// DuplicateTrackFilter rejects songs that are already playing or pending in the guild.
// Detects:
// - Same stream reference
// - Same normalized title from the same uploader (remasters, "official video" uploads)
// Cover songs (same title, different uploader) are allowed.
type DuplicateTrackFilter struct {
	queues QueueLookup
}

// QueueLookup gives read access to a guild's queued songs.
type QueueLookup interface {
	// Songs returns the current song followed by the pending ones.
	Songs(guildID string) []song.Song
}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter(queues QueueLookup) *DuplicateTrackFilter {
	return &DuplicateTrackFilter{
		queues: queues,
	}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects songs already in the guild queue (remasters and re-uploads included); covers are allowed"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(config map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the song is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request, requested song.Song) Result {
	if f.queues == nil {
		return Accept()
	}

	for _, queued := range f.queues.Songs(req.GuildID) {
		if queued.StreamURL != "" && queued.StreamURL == requested.StreamURL {
			return Reject("duplicate_track")
		}
		if isSameSong(queued, requested) {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

// isSameSong reports whether two songs share a normalized title and uploader.
func isSameSong(s1, s2 song.Song) bool {
	if normalizeTitle(s1.Title) != normalizeTitle(s2.Title) {
		return false
	}
	return isSameUploader(s1, s2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	uploadPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]\s*official\s+(music\s+)?(video|audio|lyric video)\s*[\)\]]`), // "(Official Video)"
		regexp.MustCompile(`\s*[\(\[]\s*(lyrics?|audio|hd|hq|4k)\s*[\)\]]`),                        // "[Lyrics]", "(HD)"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTitle strips remaster, upload and version decorations from a title.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range uploadPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameUploader compares uploaders case-insensitively, ignoring a " - Topic" suffix.
func isSameUploader(s1, s2 song.Song) bool {
	u1 := strings.TrimSuffix(strings.TrimSpace(s1.Uploader), " - Topic")
	u2 := strings.TrimSuffix(strings.TrimSpace(s2.Uploader), " - Topic")
	if u1 == "" || u2 == "" {
		return false
	}
	return strings.EqualFold(u1, u2)
}

func init() {
	// Queue lookup is injected by the session manager; the registered instance only describes the filter.
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter(nil)
	})
}
