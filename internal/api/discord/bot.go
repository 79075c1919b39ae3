package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/song"
	"github.com/osa030/tunebox/internal/infra/config"
)

// Intents are the gateway intents the bot needs.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsMessageContent

// commandTimeout bounds every command except play, which also waits for resolution.
const commandTimeout = 10 * time.Second

// Player is the playback surface the commands drive.
type Player interface {
	Play(ctx context.Context, guildID, textChannelID, voiceChannelID, query string) (*playback.PlayResult, error)
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Skip(ctx context.Context, guildID string) (song.Song, error)
	Stop(ctx context.Context, guildID string) error
	Disconnect(ctx context.Context, guildID string) error
	SetVolume(ctx context.Context, guildID string, percent int) error
	Shuffle(ctx context.Context, guildID string) (int, error)
	NowPlaying(guildID string) (song.Song, bool)
	Pending(guildID string) []song.Song
	Volume(guildID string) int
	IsConnected(guildID string) bool
	TextChannel(guildID string) (string, bool)
}

// Bot routes Discord gateway events to the player.
type Bot struct {
	dg            *discordgo.Session
	player        Player
	config        *config.Config
	notifications *notification.Manager

	subscriptionID string
	removeHandlers []func()
}

// NewBot creates a new Bot.
func NewBot(dg *discordgo.Session, player Player, notifications *notification.Manager, cfg *config.Config) *Bot {
	return &Bot{
		dg:            dg,
		player:        player,
		config:        cfg,
		notifications: notifications,
	}
}

// Start registers the gateway handlers and the now-playing announcer, then opens the gateway.
func (b *Bot) Start() error {
	b.dg.Identify.Intents = Intents
	b.removeHandlers = append(b.removeHandlers,
		b.dg.AddHandler(b.onReady),
		b.dg.AddHandler(b.onMessageCreate),
		b.dg.AddHandler(b.onVoiceStateUpdate),
	)
	b.subscriptionID = b.notifications.Subscribe(newAnnouncer(b.dg, b.player))

	if err := b.dg.Open(); err != nil {
		b.Stop()
		return errors.Wrap(err, "failed to open discord session")
	}
	return nil
}

// Stop removes the handlers and closes the gateway.
func (b *Bot) Stop() {
	for _, remove := range b.removeHandlers {
		remove()
	}
	b.removeHandlers = nil
	if b.subscriptionID != "" {
		b.notifications.Unsubscribe(b.subscriptionID)
		b.subscriptionID = ""
	}
	if err := b.dg.Close(); err != nil {
		zlog.Warn().Msgf("bot: failed to close discord session: %v", err)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Msgf("bot: logged in as %s, %d guild(s), prefix %q", r.User.String(), len(r.Guilds), b.config.Discord.Prefix)
	if err := s.UpdateListeningStatus(b.config.StatusText()); err != nil {
		zlog.Warn().Msgf("bot: failed to set status: %v", err)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	cmd, ok := parseCommand(b.config.Discord.Prefix, m.Content)
	if !ok {
		return
	}
	zlog.Debug().Msgf("bot: guild %s: %s ran %q", m.GuildID, m.Author.Username, cmd.Word)

	req := request{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Command:   cmd,
	}
	if cmd.Name == cmdPlay {
		req.VoiceChannelID = voiceChannel(s, m.GuildID, m.Author.ID)
		if cmd.Args != "" && req.VoiceChannelID != "" {
			b.searchThenReply(s, req)
			return
		}
	}

	b.reply(s, m.ChannelID, b.dispatch(context.Background(), req))
}

// searchThenReply posts a placeholder while the query resolves and edits it with the outcome.
func (b *Bot) searchThenReply(s *discordgo.Session, req request) {
	placeholder, err := s.ChannelMessageSendEmbed(req.ChannelID,
		infoEmbed("🔍 Searching...", "Searching for: `"+req.Command.Args+"`"))
	reply := b.dispatch(context.Background(), req)
	if err != nil {
		b.reply(s, req.ChannelID, reply)
		return
	}
	if _, err := s.ChannelMessageEditEmbed(req.ChannelID, placeholder.ID, reply); err != nil {
		zlog.Warn().Msgf("bot: channel %s: failed to edit reply: %v", req.ChannelID, err)
	}
}

func (b *Bot) reply(s *discordgo.Session, channelID string, embed *discordgo.MessageEmbed) {
	if embed == nil {
		return
	}
	if _, err := s.ChannelMessageSendEmbed(channelID, embed); err != nil {
		zlog.Warn().Msgf("bot: channel %s: failed to send reply: %v", channelID, err)
	}
}

// onVoiceStateUpdate tears the guild down when the bot is moved out of voice by someone else.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}
	if !b.player.IsConnected(v.GuildID) {
		return
	}
	zlog.Info().Msgf("bot: guild %s: removed from voice channel", v.GuildID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.player.Disconnect(ctx, v.GuildID); err != nil && !errors.Is(err, playback.ErrNotConnected) {
		zlog.Warn().Msgf("bot: guild %s: cleanup after removal failed: %v", v.GuildID, err)
	}
}

// voiceChannel returns the voice channel the user is in, or "".
func voiceChannel(s *discordgo.Session, guildID, userID string) string {
	if s.State == nil {
		return ""
	}
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}
