package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// RouteLogs sends discordgo's internal log lines through zerolog.
func RouteLogs(dg *discordgo.Session, level zerolog.Level) {
	switch {
	case level <= zerolog.DebugLevel:
		dg.LogLevel = discordgo.LogDebug
	case level <= zerolog.InfoLevel:
		dg.LogLevel = discordgo.LogInformational
	default:
		dg.LogLevel = discordgo.LogWarning
	}

	discordgo.Logger = func(msgL, _ int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogError:
			zlog.Error().Msgf("discordgo: %s", msg)
		case discordgo.LogWarning:
			zlog.Warn().Msgf("discordgo: %s", msg)
		case discordgo.LogInformational:
			zlog.Info().Msgf("discordgo: %s", msg)
		default:
			zlog.Debug().Msgf("discordgo: %s", msg)
		}
	}
}
