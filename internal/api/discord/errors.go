package discord

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/app/playback"
)

// sentinelCodes maps controller sentinels to message codes.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{playback.ErrNotInVoiceChannel, "not_in_voice_channel"},
	{playback.ErrEmptyQuery, "empty_query"},
	{playback.ErrNotConnected, "not_connected"},
	{playback.ErrNotStreaming, "not_streaming"},
	{playback.ErrNoActiveStream, "no_active_stream"},
	{playback.ErrNotPaused, "not_paused"},
	{playback.ErrVolumeOutOfRange, "volume_out_of_range"},
	{playback.ErrQueueEmpty, "queue_empty"},
	{playback.ErrNoResults, "no_results"},
}

// messageCode returns the message code for a controller error.
func messageCode(err error) string {
	var rejected *playback.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Code
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}

	switch playback.KindOf(err) {
	case playback.KindResolution:
		return "resolution_failed"
	case playback.KindConnect:
		return "connect_failed"
	default:
		return "default_error"
	}
}
