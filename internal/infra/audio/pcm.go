// Package audio turns media URLs into Opus packets: ffmpeg decodes to PCM,
// a gain stage applies the volume, and gopus frames the result.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960 // samples per channel in 20ms at 48kHz

	frameSamples = FrameSize * Channels
	frameBytes   = frameSamples * 2
)

// decodeFrame converts little-endian s16 PCM bytes into samples.
func decodeFrame(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
	}
}

// applyGain scales samples in place, clipping to the int16 range.
func applyGain(samples []int16, gain float64) {
	if gain >= 1 {
		return
	}
	if gain <= 0 {
		clear(samples)
		return
	}
	for i, s := range samples {
		v := math.Round(float64(s) * gain)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}
}
