// Package playback provides per-guild playback control on top of the queue and voice registries.
package playback

// State represents the playback state of one guild.
type State int32

const (
	StateIdle           State = iota // No voice session
	StateConnectedEmpty              // Session exists, nothing streaming, queue empty
	StateStreaming                   // Session exists, current song set, audio flowing
	StatePaused                      // Session exists, current song set, audio suspended
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnectedEmpty:
		return "connected_empty"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// HasStream reports whether a stream is active (streaming or paused).
func (s State) HasStream() bool {
	return s == StateStreaming || s == StatePaused
}
