package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

// voiceConn adapts a discordgo voice connection.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (c voiceConn) Speaking(on bool) error  { return c.vc.Speaking(on) }
func (c voiceConn) Disconnect() error       { return c.vc.Disconnect() }
func (c voiceConn) OpusSend() chan<- []byte { return c.vc.OpusSend }

// discordDialer joins voice channels deafened, since the bot never listens.
func discordDialer(dg *discordgo.Session) dialFunc {
	return func(ctx context.Context, guildID, channelID string) (conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vc, err := dg.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			// A failed join can leave a half-open connection registered on the session.
			if vc != nil {
				_ = vc.Disconnect()
			}
			return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
		}
		return voiceConn{vc: vc}, nil
	}
}
