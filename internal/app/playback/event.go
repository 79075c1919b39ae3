package playback

import "github.com/osa030/tunebox/internal/domain/song"

// EventType represents a playback event type.
type EventType int

const (
	EventConnected      EventType = iota // Voice session established
	EventTrackStarted                    // Song started streaming
	EventTrackEnded                      // Stream for a song finished (naturally, skipped or stopped)
	EventStreamFailed                    // Song could not be started and was dropped
	EventStateChanged                    // Pause or resume
	EventQueueEmpty                      // Nothing left to play, idle check scheduled
	EventIdleDisconnect                  // Session closed after the idle timeout
	EventDisconnected                    // Session closed on request
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventStreamFailed:
		return "stream_failed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventIdleDisconnect:
		return "idle_disconnect"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event represents a playback event for one guild.
type Event struct {
	Type    EventType
	GuildID string
	Song    *song.Song // Song concerned (nil for some events)
	State   State      // Guild state after the event
	Err     error      // Set for EventStreamFailed and errored stream ends
}
