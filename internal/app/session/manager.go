// Package session provides the session manager that ties playback, filters, and notifications together.
package session

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/app/session/registry"
	"github.com/osa030/tunebox/internal/domain/song"
	"github.com/osa030/tunebox/internal/infra/config"
)

// Manager owns the playback controller for all guilds and fans its events out
// to notification subscribers.
type Manager struct {
	config *config.Config

	// Components
	playback     *playback.Controller
	filterChain  *filter.Chain
	notification *notification.Manager
	voices       *registry.VoiceRegistry

	mu           sync.RWMutex
	textChannels map[string]string // guild ID -> channel of the latest play request

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
}

// NewManager creates a new session manager. locator may be nil.
func NewManager(cfg *config.Config, resolver playback.Resolver, locator playback.Locator, transport playback.Transport) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config:       cfg,
		filterChain:  filter.NewChain(),
		notification: notification.NewManager(notification.DefaultSendTimeout),
		voices:       registry.NewVoiceRegistry(),
		textChannels: make(map[string]string),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	m.playback = playback.NewController(playback.Config{
		IdleTimeout:     cfg.IdleTimeout(),
		MaxPlaylistSize: cfg.Playback.MaxPlaylistSize,
		DefaultVolume:   cfg.Playback.DefaultVolume,
		LocateTimeout:   cfg.ResolveTimeout(),
	}, resolver, locator, transport, queue.NewRegistry(), m.voices, m.filterChain)

	// Setup filters
	m.setupFilters()

	return m
}

// setupFilters initializes the filter chain from configuration.
func (m *Manager) setupFilters() {
	cfg := m.config

	// DuplicateTrackFilter
	if cfg.IsFilterEnabled("duplicate_track_filter") {
		m.filterChain.Add(filter.NewDuplicateTrackFilter(m.playback))
	}

	// DurationLimitFilter
	if cfg.IsFilterEnabled("duration_limit_filter") {
		f := filter.NewDurationLimitFilter()
		if err := f.ValidateConfig(cfg.FilterSettings("duration_limit_filter")); err != nil {
			zlog.Error().Msgf("session: failed to validate duration limit filter config: %v", err)
		} else {
			m.filterChain.Add(f)
		}
	}

	for _, f := range m.filterChain.Filters() {
		zlog.Info().Msgf("session: filter enabled: %s", f.Name())
	}
}

// Start begins forwarding playback events. Calling it again has no effect.
func (m *Manager) Start() {
	m.start.Do(func() {
		go func() {
			defer close(m.done)
			m.playbackLoop()
		}()
	})
}

// playbackLoop handles playback events.
func (m *Manager) playbackLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.playback.Events():
			m.safeHandle(event)
		}
	}
}

// safeHandle keeps one bad event from stopping the loop.
func (m *Manager) safeHandle(event playback.Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("session: playback event handler panicked: %v", r)
		}
	}()
	m.handlePlaybackEvent(event)
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("session: playback event: type=%s guild=%s state=%s", event.Type, event.GuildID, event.State)

	m.notification.Broadcast(event)

	switch event.Type {
	case playback.EventDisconnected, playback.EventIdleDisconnect:
		m.mu.Lock()
		delete(m.textChannels, event.GuildID)
		m.mu.Unlock()
	}
}

// TextChannel returns the channel where the guild's latest play request was made.
func (m *Manager) TextChannel(guildID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.textChannels[guildID]
	return ch, ok
}

// Play resolves and enqueues query. Announcements for the guild go to textChannelID.
func (m *Manager) Play(ctx context.Context, guildID, textChannelID, voiceChannelID, query string) (*playback.PlayResult, error) {
	if textChannelID != "" {
		m.mu.Lock()
		m.textChannels[guildID] = textChannelID
		m.mu.Unlock()
	}
	return m.playback.RequestPlay(ctx, guildID, query, voiceChannelID)
}

// Pause pauses the guild's stream.
func (m *Manager) Pause(ctx context.Context, guildID string) error {
	return m.playback.Pause(ctx, guildID)
}

// Resume resumes the guild's stream.
func (m *Manager) Resume(ctx context.Context, guildID string) error {
	return m.playback.Resume(ctx, guildID)
}

// Skip skips the current song and returns it.
func (m *Manager) Skip(ctx context.Context, guildID string) (song.Song, error) {
	return m.playback.Skip(ctx, guildID)
}

// Stop clears the queue and stops the stream.
func (m *Manager) Stop(ctx context.Context, guildID string) error {
	return m.playback.Stop(ctx, guildID)
}

// Disconnect leaves the guild's voice channel.
func (m *Manager) Disconnect(ctx context.Context, guildID string) error {
	return m.playback.Disconnect(ctx, guildID)
}

// SetVolume sets the guild's volume percent.
func (m *Manager) SetVolume(ctx context.Context, guildID string, percent int) error {
	return m.playback.SetVolume(ctx, guildID, percent)
}

// Shuffle shuffles the pending songs and returns how many there are.
func (m *Manager) Shuffle(ctx context.Context, guildID string) (int, error) {
	return m.playback.Shuffle(ctx, guildID)
}

// NowPlaying returns the current song.
func (m *Manager) NowPlaying(guildID string) (song.Song, bool) {
	return m.playback.NowPlaying(guildID)
}

// Pending returns the songs waiting after the current one.
func (m *Manager) Pending(guildID string) []song.Song {
	return m.playback.Pending(guildID)
}

// State returns the guild's playback state.
func (m *Manager) State(guildID string) playback.State {
	return m.playback.State(guildID)
}

// Volume returns the guild's volume percent.
func (m *Manager) Volume(guildID string) int {
	return m.playback.Volume(guildID)
}

// IsConnected reports whether the guild has a voice session.
func (m *Manager) IsConnected(guildID string) bool {
	_, ok := m.voices.Get(guildID)
	return ok
}

// ActiveSessions returns the number of connected guilds.
func (m *Manager) ActiveSessions() int {
	return m.voices.Count()
}

// Filters returns the enabled filters.
func (m *Manager) Filters() []filter.Filter {
	return m.filterChain.Filters()
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Close disconnects every guild and stops event forwarding.
func (m *Manager) Close() {
	m.playback.Close()
	m.cancel()
	m.start.Do(func() { close(m.done) })
	<-m.done
	m.notification.Close()
}
