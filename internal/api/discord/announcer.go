package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
)

type messageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type textChannels interface {
	TextChannel(guildID string) (string, bool)
}

// announcer posts playback notifications to the text channel of the guild's latest play request.
type announcer struct {
	sender   messageSender
	channels textChannels
}

var _ notification.Stream = (*announcer)(nil)

func newAnnouncer(sender messageSender, channels textChannels) *announcer {
	return &announcer{sender: sender, channels: channels}
}

// Send implements notification.Stream.
func (a *announcer) Send(n *notification.Notification) error {
	embed := announcement(n.Event)
	if embed == nil {
		return nil
	}
	channelID, ok := a.channels.TextChannel(n.Event.GuildID)
	if !ok {
		return nil
	}
	if _, err := a.sender.ChannelMessageSendEmbed(channelID, embed); err != nil {
		return errors.Wrapf(err, "failed to announce %s in channel %s", n.Event.Type, channelID)
	}
	return nil
}

// announcement returns the message for an event, or nil for events that stay silent.
func announcement(e playback.Event) *discordgo.MessageEmbed {
	switch e.Type {
	case playback.EventTrackStarted:
		if e.Song == nil {
			return nil
		}
		return nowPlayingEmbed(*e.Song)
	case playback.EventStreamFailed:
		title := "the next song"
		if e.Song != nil {
			title = "**" + e.Song.Title + "**"
		}
		return errorEmbed(fmt.Sprintf("Could not play %s, skipping.", title))
	case playback.EventIdleDisconnect:
		return infoEmbed("👋 Left", "Left the voice channel after being idle.")
	default:
		return nil
	}
}
