// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	apidiscord "github.com/osa030/tunebox/internal/api/discord"
	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/resolve"
	"github.com/osa030/tunebox/internal/app/session"
	"github.com/osa030/tunebox/internal/infra/audio"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/discord"
	"github.com/osa030/tunebox/internal/infra/logger"
	"github.com/osa030/tunebox/internal/infra/spotify"
	"github.com/osa030/tunebox/internal/infra/youtube"
	"github.com/osa030/tunebox/internal/infra/ytdlp"
)

var (
	app        = kingpin.New("tunebox", "tunebox Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to JSON log file (default: console on stderr)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	loggerConfig.File = *logfile
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	exitCode := 0
	zlog.Info().Msgf("Loading config from %s", *configPath)
	if cfg, err := config.Load(*configPath); err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		exitCode = 1
	} else if err := run(cfg, logger.ParseLevel(loggerConfig.Level)); err != nil {
		zlog.Error().Msgf("Bot error: %+v", err)
		exitCode = 1
	}

	_ = closer.Close()
	os.Exit(exitCode)
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, level zerolog.Level) error {
	ctx := context.Background()

	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return errors.Wrap(err, "failed to create discord session")
	}
	discord.RouteLogs(dg, level)

	resolver, locator, err := newResolver(ctx, cfg)
	if err != nil {
		return err
	}

	transport := discord.NewTransport(dg,
		&audio.FFmpeg{Path: cfg.Audio.FFmpegPath},
		audio.OpusFactory(cfg.Audio.Bitrate))

	sessionMgr := session.NewManager(cfg, resolver, locator, transport)
	sessionMgr.Start()

	bot := apidiscord.NewBot(dg, sessionMgr, sessionMgr.GetNotificationManager(), cfg)
	if err := bot.Start(); err != nil {
		sessionMgr.Close()
		return err
	}
	zlog.Info().Msg("Bot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msgf("Received shutdown signal, leaving %d voice channel(s)...", sessionMgr.ActiveSessions())

	// Leave voice channels while the gateway is still open.
	sessionMgr.Close()
	transport.Close()
	bot.Stop()

	zlog.Info().Msg("Bot stopped")
	return nil
}

// newResolver builds the source chain used for play requests and the locator
// chain used when a stream starts. yt-dlp is the fallback for both.
func newResolver(ctx context.Context, cfg *config.Config) (*resolve.Chain, *resolve.LocatorChain, error) {
	rc := cfg.Resolver
	ytdlpClient := ytdlp.New(ytdlp.Config{
		Path:          rc.YtdlpPath,
		SearchPrefix:  rc.SearchPrefix,
		PlaylistLimit: cfg.Playback.MaxPlaylistSize,
	})

	var (
		sources  []resolve.Source
		locators []resolve.Locator
	)

	if cfg.SpotifyEnabled() {
		spotifyClient, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
			SearchPrefix: rc.SearchPrefix + "1",
			MaxSongs:     cfg.Playback.MaxPlaylistSize,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create Spotify client")
		}
		sources = append(sources, spotifyClient)
		zlog.Info().Msg("Spotify links enabled")
	}

	if cfg.YouTubeEnabled() {
		youtubeClient, err := youtube.New(youtube.Config{
			Proxy:         cfg.YouTube.Proxy,
			PlaylistLimit: cfg.Playback.MaxPlaylistSize,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create YouTube client")
		}
		sources = append(sources, youtubeClient)
		locators = append(locators, youtubeClient)
		zlog.Info().Msg("Built-in YouTube client enabled")
	}

	retry := resolve.DefaultRetryConfig()
	retry.MaxAttempts = rc.MaxRetries

	chain := resolve.NewChain(resolve.Options{
		RatePerSecond: rc.RatePerSec,
		Burst:         rc.Burst,
		Timeout:       cfg.ResolveTimeout(),
		MaxSongs:      cfg.Playback.MaxPlaylistSize,
		Retry:         retry,
	}, ytdlpClient, sources...)

	return chain, resolve.NewLocatorChain(retry, ytdlpClient, locators...), nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			return errors.Newf("unknown filter %q", filterName)
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}
