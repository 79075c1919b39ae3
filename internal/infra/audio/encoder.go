package audio

import (
	"github.com/cockroachdb/errors"
	"layeh.com/gopus"
)

// DefaultBitrate is the Opus bitrate used when none is configured.
const DefaultBitrate = 128000

// Encoder turns one PCM frame into one Opus packet.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// EncoderFactory creates a fresh encoder for each stream.
type EncoderFactory func() (Encoder, error)

// OpusEncoder encodes 20ms stereo frames with libopus.
type OpusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder creates an Opus encoder tuned for music.
func NewOpusEncoder(bitrate int) (*OpusEncoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus encoder")
	}
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	enc.SetBitrate(bitrate)
	return &OpusEncoder{enc: enc}, nil
}

// OpusFactory returns an EncoderFactory producing OpusEncoders.
func OpusFactory(bitrate int) EncoderFactory {
	return func() (Encoder, error) {
		return NewOpusEncoder(bitrate)
	}
}

// Encode implements Encoder.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	packet, err := e.enc.Encode(pcm, FrameSize, frameBytes)
	if err != nil {
		return nil, errors.Wrap(err, "opus encode")
	}
	return packet, nil
}
