package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
)

// request is one command invocation.
type request struct {
	GuildID        string
	ChannelID      string
	UserID         string
	VoiceChannelID string // requester's voice channel, resolved for play only
	Command        command
}

// dispatch runs a command and returns the reply.
func (b *Bot) dispatch(ctx context.Context, req request) *discordgo.MessageEmbed {
	timeout := commandTimeout
	if req.Command.Name == cmdPlay {
		timeout += b.config.ResolveTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	guildID := req.GuildID
	switch req.Command.Name {
	case cmdPlay:
		res, err := b.player.Play(ctx, guildID, req.ChannelID, req.VoiceChannelID, req.Command.Args)
		if err != nil {
			return b.failure(req, err)
		}
		return addedEmbed(res)

	case cmdPause:
		if err := b.player.Pause(ctx, guildID); err != nil {
			return b.failure(req, err)
		}
		return infoEmbed("⏸️ Paused", "Playback has been paused.")

	case cmdResume:
		if err := b.player.Resume(ctx, guildID); err != nil {
			return b.failure(req, err)
		}
		return successEmbed("▶️ Resumed", "Playback has been resumed.")

	case cmdSkip:
		skipped, err := b.player.Skip(ctx, guildID)
		if err != nil {
			return b.failure(req, err)
		}
		return infoEmbed("⏭️ Skipped", fmt.Sprintf("Skipped **%s**.", skipped.Title))

	case cmdStop:
		if err := b.player.Stop(ctx, guildID); err != nil {
			return b.failure(req, err)
		}
		return infoEmbed("⏹️ Stopped", "Playback stopped and queue cleared.")

	case cmdQueue:
		if cur, ok := b.player.NowPlaying(guildID); ok {
			return queueEmbed(&cur, b.player.Pending(guildID), b.config.Messages.QueuePageSize)
		}
		return queueEmbed(nil, b.player.Pending(guildID), b.config.Messages.QueuePageSize)

	case cmdNowPlaying:
		cur, ok := b.player.NowPlaying(guildID)
		if !ok {
			return errorEmbed(b.config.GetMessage("not_streaming"))
		}
		return nowPlayingEmbed(cur)

	case cmdVolume:
		if req.Command.Args == "" {
			return infoEmbed("🔊 Volume", fmt.Sprintf("Volume is %d%%. Use `%svolume <1-100>` to change it.",
				b.player.Volume(guildID), b.config.Discord.Prefix))
		}
		percent, err := strconv.Atoi(req.Command.Args)
		if err != nil {
			return errorEmbed(b.config.GetMessage("volume_out_of_range"))
		}
		if err := b.player.SetVolume(ctx, guildID, percent); err != nil {
			return b.failure(req, err)
		}
		return successEmbed("🔊 Volume Set", fmt.Sprintf("Volume set to %d%%", percent))

	case cmdShuffle:
		n, err := b.player.Shuffle(ctx, guildID)
		if err != nil {
			return b.failure(req, err)
		}
		return successEmbed("🔀 Queue Shuffled", fmt.Sprintf("Shuffled %d songs.", n))

	case cmdDisconnect:
		if err := b.player.Disconnect(ctx, guildID); err != nil {
			return b.failure(req, err)
		}
		return infoEmbed("👋 Disconnected", "Disconnected from voice channel and cleared queue.")

	case cmdHelp:
		return helpEmbed(b.config.Discord.Prefix)

	default:
		return errorEmbed(fmt.Sprintf("Unknown command `%s`. Use `%shelp` to see available commands.",
			req.Command.Word, b.config.Discord.Prefix))
	}
}

// failure renders a controller error as user text. Unexpected kinds are logged.
func (b *Bot) failure(req request, err error) *discordgo.MessageEmbed {
	code := messageCode(err)
	switch playback.KindOf(err) {
	case playback.KindPrecondition:
		zlog.Debug().Msgf("bot: guild %s: %s rejected: %v", req.GuildID, req.Command.Name, err)
	default:
		zlog.Warn().Msgf("bot: guild %s: %s failed: %+v", req.GuildID, req.Command.Name, err)
	}
	return errorEmbed(b.config.GetMessage(code))
}
