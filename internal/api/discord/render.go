package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
)

// Embed colors.
const (
	colorInfo    = 0x3498db
	colorSuccess = 0x2ecc71
	colorError   = 0xe74c3c
)

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorInfo}
}

func successEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: colorSuccess}
}

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ Error", Description: description, Color: colorError}
}

func thumbnail(s song.Song) *discordgo.MessageEmbedThumbnail {
	if s.Thumbnail == "" {
		return nil
	}
	return &discordgo.MessageEmbedThumbnail{URL: s.Thumbnail}
}

// songLine renders one queue entry.
func songLine(n int, s song.Song) string {
	return fmt.Sprintf("`%d.` **%s** - %s", n, s.Title, s.FormatDuration())
}

func uploader(s song.Song) string {
	if s.Uploader == "" {
		return "Unknown"
	}
	return s.Uploader
}

// addedEmbed confirms what a play request enqueued.
func addedEmbed(res *playback.PlayResult) *discordgo.MessageEmbed {
	if len(res.Accepted) == 1 && (res.Playlist == nil || res.Playlist.IsSingle()) {
		s := res.Accepted[0]
		e := successEmbed("✅ Added to Queue", fmt.Sprintf("**%s**\nBy: %s", s.Title, uploader(s)))
		e.URL = s.Link()
		e.Thumbnail = thumbnail(s)
		position := "Now playing"
		if res.Position > 0 {
			position = fmt.Sprint(res.Position)
		}
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: s.FormatDuration(), Inline: true},
			{Name: "Position in Queue", Value: position, Inline: true},
		}
		return e
	}

	desc := fmt.Sprintf("Added **%d** songs to the queue", len(res.Accepted))
	if res.Playlist != nil && res.Playlist.Title != "" {
		desc = fmt.Sprintf("Added **%d** songs from **%s** to the queue", len(res.Accepted), res.Playlist.Title)
	}
	if n := len(res.Rejected); n > 0 {
		desc += fmt.Sprintf("\nSkipped %d song(s) rejected by filters", n)
	}
	e := successEmbed("✅ Playlist Added to Queue", desc)
	enqueued := &playlist.Playlist{Songs: res.Accepted}
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "Total Duration", Value: song.FormatSeconds(int(enqueued.TotalDuration())), Inline: true},
	}
	return e
}

// queueEmbed shows the current song and the first pageSize pending songs.
func queueEmbed(current *song.Song, pending []song.Song, pageSize int) *discordgo.MessageEmbed {
	if current == nil && len(pending) == 0 {
		return infoEmbed("📝 Queue is Empty", "Add some songs with the play command!")
	}

	e := infoEmbed("📝 Music Queue", "")
	if current != nil {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "🎵 Now Playing",
			Value: fmt.Sprintf("**%s**\nBy: %s", current.Title, uploader(*current)),
		})
	}

	if len(pending) > 0 {
		shown := pending
		if pageSize > 0 && len(shown) > pageSize {
			shown = shown[:pageSize]
		}
		lines := make([]string, len(shown))
		for i, s := range shown {
			lines[i] = songLine(i+1, s)
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "⏭️ Up Next",
			Value: strings.Join(lines, "\n"),
		})
		if rest := len(pending) - len(shown); rest > 0 {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
				Name:  "➕ More",
				Value: fmt.Sprintf("And %d more songs...", rest),
			})
		}
	}
	return e
}

func nowPlayingEmbed(s song.Song) *discordgo.MessageEmbed {
	e := successEmbed("🎵 Now Playing", fmt.Sprintf("**%s**", s.Title))
	e.URL = s.Link()
	e.Thumbnail = thumbnail(s)
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "👤 Uploader", Value: uploader(s), Inline: true},
		{Name: "⏱️ Duration", Value: s.FormatDuration(), Inline: true},
	}
	return e
}

func helpEmbed(prefix string) *discordgo.MessageEmbed {
	lines := make([]string, len(helpLines))
	for i, l := range helpLines {
		lines[i] = fmt.Sprintf("`%s%s` - %s", prefix, l.usage, l.text)
	}
	e := infoEmbed("🎵 Music Bot Commands", "Here are all available commands:")
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "🎵 Music Commands", Value: strings.Join(lines, "\n")},
	}
	return e
}
