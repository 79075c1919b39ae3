package playback

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/app/session/registry"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
	"github.com/osa030/tunebox/internal/domain/voice"
)

// Resolver turns a free-text query or URL into songs.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*playlist.Playlist, error)
}

// Locator turns a song's stream reference into a URL the transport can open.
// Lookups may hit the network, so they run off the guild loop.
type Locator interface {
	Locate(ctx context.Context, ref string) (string, error)
}

// Transport is the voice connection and audio delivery layer.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID string) (voice.Session, error)
	Disconnect(s voice.Session) error
	// StartStream begins playback of mediaURL. onComplete is called exactly once
	// when the stream ends for any reason, from the transport's own goroutine.
	// It is not called when StartStream returns an error.
	StartStream(ctx context.Context, s voice.Session, mediaURL string, onComplete func(error)) error
	// Stop ends the active stream; its onComplete fires.
	Stop(s voice.Session)
	Pause(s voice.Session)
	Resume(s voice.Session)
	IsStreaming(s voice.Session) bool
	IsPaused(s voice.Session) bool
	// SetGain sets the live stream gain, 0.0 to 1.0.
	SetGain(s voice.Session, gain float64)
}

// Config holds controller configuration.
type Config struct {
	IdleTimeout     time.Duration // Delay before an idle session is disconnected
	MaxPlaylistSize int           // Cap on songs taken from one resolved playlist
	DefaultVolume   int           // Volume percent for guilds that never set one
	LocateTimeout   time.Duration // Deadline for one media URL lookup
}

// PlayResult describes what a play request enqueued.
type PlayResult struct {
	Playlist *playlist.Playlist
	Accepted []song.Song // Songs actually enqueued, in order
	Rejected []string    // Filter codes of dropped songs
	Position int         // 1-based queue position of the first accepted song (0 if it started right away)
	Started  bool        // Playback was started by this request
}

// Controller orchestrates queues, voice sessions and the transport for all guilds.
type Controller struct {
	config    Config
	resolver  Resolver
	locator   Locator
	transport Transport
	queues    *queue.Registry
	sessions  *registry.VoiceRegistry
	filters   *filter.Chain

	mu     sync.Mutex
	guilds map[string]*guild

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new playback controller.
// locator and filters may be nil; without a locator stream references are
// handed to the transport unchanged.
func NewController(
	config Config,
	resolver Resolver,
	locator Locator,
	transport Transport,
	queues *queue.Registry,
	sessions *registry.VoiceRegistry,
	filters *filter.Chain,
) *Controller {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 300 * time.Second
	}
	if config.MaxPlaylistSize <= 0 {
		config.MaxPlaylistSize = 50
	}
	if config.DefaultVolume < 1 || config.DefaultVolume > 100 {
		config.DefaultVolume = 100
	}
	if config.LocateTimeout <= 0 {
		config.LocateTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config:    config,
		resolver:  resolver,
		locator:   locator,
		transport: transport,
		queues:    queues,
		sessions:  sessions,
		filters:   filters,
		guilds:    make(map[string]*guild),
		eventCh:   make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// guild returns the serialized context for guildID, starting its loop on first use.
func (c *Controller) guild(guildID string) (*guild, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}
	g, ok := c.guilds[guildID]
	if !ok {
		g = newGuild(guildID, c.config.DefaultVolume, c.ctx.Done())
		c.guilds[guildID] = g
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			g.run()
		}()
	}
	return g, nil
}

// RequestPlay resolves query and enqueues the result, connecting to
// voiceChannelID first when the guild has no session.
func (c *Controller) RequestPlay(ctx context.Context, guildID, query, voiceChannelID string) (*PlayResult, error) {
	if voiceChannelID == "" {
		return nil, ErrNotInVoiceChannel
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	g, err := c.guild(guildID)
	if err != nil {
		return nil, err
	}

	// One resolve-then-enqueue at a time per guild, so playlists never interleave.
	g.requestMu.Lock()
	defer g.requestMu.Unlock()

	var connErr error
	if err := g.do(ctx, func() {
		connErr = c.ensureSessionLocked(ctx, g, voiceChannelID)
	}); err != nil {
		return nil, err
	}
	if connErr != nil {
		return nil, connErr
	}

	// Resolution runs off the loop so completions keep flowing meanwhile.
	zlog.Info().Msgf("playback: guild %s: resolving %q", guildID, query)
	pl, err := c.resolve(ctx, query)
	if err != nil {
		zlog.Warn().Msgf("playback: guild %s: resolution failed: %v", guildID, err)
		g.post(func() { c.scheduleIdleIfEmptyLocked(g) })
		return nil, err
	}
	pl.Truncate(c.config.MaxPlaylistSize)

	accepted, codes := c.filters.Partition(ctx, filter.Request{GuildID: guildID, Query: query}, pl.Songs)
	if len(accepted) == 0 {
		g.post(func() { c.scheduleIdleIfEmptyLocked(g) })
		return nil, rejected(codes[0])
	}

	result := &PlayResult{
		Playlist: pl,
		Accepted: accepted,
		Rejected: codes,
	}

	var enqueueErr error
	if err := g.do(ctx, func() {
		// The session may have been torn down while resolving.
		if enqueueErr = c.ensureSessionLocked(ctx, g, voiceChannelID); enqueueErr != nil {
			return
		}
		q := c.queues.GetOrCreate(guildID)
		q.EnqueueAll(accepted)
		result.Position = q.Len() - len(accepted) + 1
		zlog.Info().Msgf("playback: guild %s: enqueued %d song(s), pending=%d", guildID, len(accepted), q.Len())

		if !g.getState().HasStream() {
			c.continueLocked(g)
			if g.getState() == StateStreaming {
				result.Started = true
				result.Position = 0
			}
		}
	}); err != nil {
		return nil, err
	}
	if enqueueErr != nil {
		return nil, enqueueErr
	}
	return result, nil
}

func (c *Controller) resolve(ctx context.Context, query string) (*playlist.Playlist, error) {
	pl, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		if KindOf(err) == KindResolution {
			return nil, err
		}
		return nil, newError(KindResolution, errors.Wrapf(err, "failed to resolve %q", query))
	}
	if pl == nil || len(pl.Songs) == 0 {
		return nil, ErrNoResults
	}
	return pl, nil
}

// ensureSessionLocked connects to channelID if the guild has no session.
func (c *Controller) ensureSessionLocked(ctx context.Context, g *guild, channelID string) error {
	if _, ok := c.sessions.Get(g.id); ok {
		return nil
	}

	sess, err := c.transport.Connect(ctx, g.id, channelID)
	if err != nil {
		return newError(KindConnect, errors.Wrapf(err, "failed to join voice channel %s", channelID))
	}
	c.sessions.Set(g.id, sess)
	g.setState(StateConnectedEmpty)
	zlog.Info().Msgf("playback: guild %s: connected to channel %s (session %s)", g.id, channelID, sess.ID())
	c.emit(Event{Type: EventConnected, GuildID: g.id, State: StateConnectedEmpty})
	// A request abandoned before it enqueues must not leave the session behind.
	c.scheduleIdleCheckLocked(g, sess)
	return nil
}

// ContinuePlayback starts the next pending song if nothing is streaming.
func (c *Controller) ContinuePlayback(ctx context.Context, guildID string) error {
	g, err := c.guild(guildID)
	if err != nil {
		return err
	}

	var opErr error
	if err := g.do(ctx, func() {
		if _, ok := c.sessions.Get(guildID); !ok {
			opErr = ErrNotConnected
			return
		}
		if g.getState().HasStream() {
			return
		}
		c.continueLocked(g)
	}); err != nil {
		return err
	}
	return opErr
}

// continueLocked advances the queue and starts the next song.
// Songs that fail to start are logged and skipped. Runs on the guild loop.
func (c *Controller) continueLocked(g *guild) {
	sess, ok := c.sessions.Get(g.id)
	if !ok {
		g.setState(StateIdle)
		return
	}
	q := c.queues.GetOrCreate(g.id)

	for {
		next, ok := q.Advance()
		if !ok {
			g.setState(StateConnectedEmpty)
			zlog.Debug().Msgf("playback: guild %s: queue empty, idle check in %v", g.id, c.config.IdleTimeout)
			c.emit(Event{Type: EventQueueEmpty, GuildID: g.id, State: StateConnectedEmpty})
			c.scheduleIdleCheckLocked(g, sess)
			return
		}

		g.gen++
		g.cancelIdleLocked()
		if c.locator != nil {
			// The song is current from here on; audio begins once the lookup returns.
			g.locating = true
			if g.getState() != StatePaused {
				g.setState(StateStreaming)
			}
			go c.locate(g, sess, g.gen, next)
			return
		}
		if c.startLocked(g, sess, next, next.StreamURL) {
			return
		}
	}
}

// locate looks up the media URL of s off the loop and posts the result back.
func (c *Controller) locate(g *guild, sess voice.Session, gen uint64, s song.Song) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.LocateTimeout)
	defer cancel()

	mediaURL, err := c.locator.Locate(ctx, s.StreamURL)
	g.post(func() { c.onLocatedLocked(g, sess, gen, s, mediaURL, err) })
}

// onLocatedLocked starts a located song. Lookups superseded by a skip, stop
// or disconnect are dropped.
func (c *Controller) onLocatedLocked(g *guild, sess voice.Session, gen uint64, s song.Song, mediaURL string, err error) {
	if gen != g.gen {
		zlog.Debug().Msgf("playback: guild %s: dropping stale lookup for %q", g.id, s.Title)
		return
	}
	g.locating = false

	if err != nil {
		c.streamFailedLocked(g, s, err)
		c.continueLocked(g)
		return
	}
	if !c.startLocked(g, sess, s, mediaURL) {
		c.continueLocked(g)
	}
}

// startLocked hands mediaURL to the transport. It reports false when the
// stream could not start; the failure has already been announced.
func (c *Controller) startLocked(g *guild, sess voice.Session, s song.Song, mediaURL string) bool {
	gen := g.gen
	err := c.transport.StartStream(c.ctx, sess, mediaURL, func(err error) {
		g.post(func() { c.onStreamEndLocked(g, gen, err) })
	})
	if err != nil {
		c.streamFailedLocked(g, s, err)
		return false
	}

	c.transport.SetGain(sess, float64(g.getVolume())/100)
	state := g.getState()
	if state == StatePaused {
		c.transport.Pause(sess)
	} else {
		state = StateStreaming
		g.setState(state)
	}
	zlog.Info().Msgf("playback: guild %s: now playing %q [%s]", g.id, s.Title, s.FormatDuration())
	c.emit(Event{Type: EventTrackStarted, GuildID: g.id, Song: &s, State: state})
	return true
}

func (c *Controller) streamFailedLocked(g *guild, s song.Song, err error) {
	err = newError(KindStreamStart, errors.Wrapf(err, "failed to start %q", s.Title))
	zlog.Error().Msgf("playback: guild %s: %v", g.id, err)
	c.emit(Event{Type: EventStreamFailed, GuildID: g.id, Song: &s, State: g.getState(), Err: err})
}

// onStreamEndLocked handles a transport completion. Completions of streams that
// are no longer live are dropped, so each stream advances the queue at most once.
func (c *Controller) onStreamEndLocked(g *guild, gen uint64, streamErr error) {
	if gen != g.gen {
		zlog.Debug().Msgf("playback: guild %s: ignoring stale completion (gen %d, live %d)", g.id, gen, g.gen)
		return
	}
	// Invalidate the generation so a duplicate completion is dropped too.
	g.gen++

	if streamErr != nil {
		zlog.Warn().Msgf("playback: guild %s: stream ended with error: %v", g.id, streamErr)
	}
	ended := Event{Type: EventTrackEnded, GuildID: g.id, Err: streamErr}
	if cur, ok := c.queues.GetOrCreate(g.id).Current(); ok {
		ended.Song = &cur
	}

	if _, ok := c.sessions.Get(g.id); !ok {
		g.setState(StateIdle)
		ended.State = StateIdle
		c.emit(ended)
		return
	}
	g.setState(StateConnectedEmpty)
	ended.State = StateConnectedEmpty
	c.emit(ended)

	c.continueLocked(g)
}

// scheduleIdleCheckLocked arms a deferred disconnect. Only the most recently
// armed check may act, and it re-reads the guild state when it fires.
func (c *Controller) scheduleIdleCheckLocked(g *guild, sess voice.Session) {
	g.idleToken++
	g.idleArmed = true
	token := g.idleToken
	time.AfterFunc(c.config.IdleTimeout, func() {
		g.post(func() { c.idleCheckLocked(g, sess, token) })
	})
}

// scheduleIdleIfEmptyLocked arms an idle check for an empty session unless
// one is already pending, so the idle window is never extended.
func (c *Controller) scheduleIdleIfEmptyLocked(g *guild) {
	if g.idleArmed || g.getState() != StateConnectedEmpty {
		return
	}
	sess, ok := c.sessions.Get(g.id)
	if !ok {
		return
	}
	q := c.queues.GetOrCreate(g.id)
	if _, playing := q.Current(); playing || !q.IsEmpty() {
		return
	}
	c.scheduleIdleCheckLocked(g, sess)
}

func (c *Controller) idleCheckLocked(g *guild, sess voice.Session, token uint64) {
	if token != g.idleToken {
		return
	}
	g.idleArmed = false
	if g.getState() != StateConnectedEmpty {
		return
	}
	live, ok := c.sessions.Get(g.id)
	if !ok || live.ID() != sess.ID() {
		return
	}
	q := c.queues.GetOrCreate(g.id)
	if _, playing := q.Current(); playing || !q.IsEmpty() {
		return
	}

	zlog.Info().Msgf("playback: guild %s: idle for %v, disconnecting", g.id, c.config.IdleTimeout)
	c.disconnectLocked(g, EventIdleDisconnect)
}

// disconnectLocked tears down the guild's session. The registry entry is
// removed before the transport is told to disconnect.
func (c *Controller) disconnectLocked(g *guild, eventType EventType) bool {
	sess, ok := c.sessions.Remove(g.id)
	if !ok {
		return false
	}

	// Completions and lookups of the torn-down stream must not advance anything.
	g.gen++
	g.locating = false
	g.cancelIdleLocked()
	if g.getState().HasStream() {
		c.transport.Stop(sess)
	}
	c.queues.GetOrCreate(g.id).Clear()
	g.setState(StateIdle)

	if err := c.transport.Disconnect(sess); err != nil {
		zlog.Warn().Msgf("playback: guild %s: disconnect failed: %v", g.id, err)
	}
	c.emit(Event{Type: eventType, GuildID: g.id, State: StateIdle})
	return true
}

// Pause suspends the active stream.
func (c *Controller) Pause(ctx context.Context, guildID string) error {
	return c.withSession(ctx, guildID, func(g *guild, sess voice.Session) error {
		if g.getState() != StateStreaming {
			return ErrNotStreaming
		}
		c.transport.Pause(sess)
		g.setState(StatePaused)
		c.emitCurrent(g, EventStateChanged)
		return nil
	})
}

// Resume continues a paused stream.
func (c *Controller) Resume(ctx context.Context, guildID string) error {
	return c.withSession(ctx, guildID, func(g *guild, sess voice.Session) error {
		if g.getState() != StatePaused {
			return ErrNotPaused
		}
		c.transport.Resume(sess)
		g.setState(StateStreaming)
		c.emitCurrent(g, EventStateChanged)
		return nil
	})
}

// Skip stops the current song. The transport's completion advances the queue;
// a song still waiting for its media URL is dropped and the queue advances at once.
func (c *Controller) Skip(ctx context.Context, guildID string) (song.Song, error) {
	var skipped song.Song
	err := c.withSession(ctx, guildID, func(g *guild, sess voice.Session) error {
		if g.getState() != StateStreaming {
			return ErrNotStreaming
		}
		skipped, _ = c.queues.GetOrCreate(guildID).Current()
		zlog.Info().Msgf("playback: guild %s: skipping %q", guildID, skipped.Title)
		if !g.locating {
			c.transport.Stop(sess)
			return nil
		}
		g.gen++
		g.locating = false
		c.emit(Event{Type: EventTrackEnded, GuildID: guildID, Song: &skipped, State: StateStreaming})
		c.continueLocked(g)
		return nil
	})
	return skipped, err
}

// Stop clears the queue and stops the active stream. The session stays
// connected and falls into the idle timeout; an idle check that is already
// pending keeps its deadline.
func (c *Controller) Stop(ctx context.Context, guildID string) error {
	return c.withSession(ctx, guildID, func(g *guild, sess voice.Session) error {
		c.queues.GetOrCreate(guildID).Clear()
		if !g.getState().HasStream() {
			c.scheduleIdleIfEmptyLocked(g)
			return nil
		}
		zlog.Info().Msgf("playback: guild %s: stopped, queue cleared", guildID)
		// The stopped stream's completion and any pending lookup are dropped.
		g.gen++
		if !g.locating {
			c.transport.Stop(sess)
		}
		g.locating = false
		g.setState(StateConnectedEmpty)
		c.emit(Event{Type: EventQueueEmpty, GuildID: guildID, State: StateConnectedEmpty})
		c.scheduleIdleCheckLocked(g, sess)
		return nil
	})
}

// Disconnect stops playback, leaves the voice channel and clears the queue.
// Without a session it reports ErrNotConnected and changes nothing.
func (c *Controller) Disconnect(ctx context.Context, guildID string) error {
	g, err := c.guild(guildID)
	if err != nil {
		return err
	}

	var opErr error
	if err := g.do(ctx, func() {
		if !c.disconnectLocked(g, EventDisconnected) {
			opErr = ErrNotConnected
		}
	}); err != nil {
		return err
	}
	return opErr
}

// SetVolume sets the live stream volume in percent (1 to 100).
// The value is kept for songs started later in the same guild.
func (c *Controller) SetVolume(ctx context.Context, guildID string, percent int) error {
	if percent < 1 || percent > 100 {
		return ErrVolumeOutOfRange
	}
	return c.withSession(ctx, guildID, func(g *guild, sess voice.Session) error {
		if !g.getState().HasStream() {
			return ErrNoActiveStream
		}
		c.transport.SetGain(sess, float64(percent)/100)
		g.volume.Store(int32(percent))
		zlog.Debug().Msgf("playback: guild %s: volume %d%%", guildID, percent)
		return nil
	})
}

// Shuffle randomizes the pending songs and returns how many were shuffled.
func (c *Controller) Shuffle(ctx context.Context, guildID string) (int, error) {
	g, err := c.guild(guildID)
	if err != nil {
		return 0, err
	}

	var n int
	var opErr error
	if err := g.do(ctx, func() {
		q := c.queues.GetOrCreate(guildID)
		if q.IsEmpty() {
			opErr = ErrQueueEmpty
			return
		}
		q.Shuffle()
		n = q.Len()
	}); err != nil {
		return 0, err
	}
	return n, opErr
}

// withSession runs fn on the guild loop with the live session, or reports ErrNotConnected.
func (c *Controller) withSession(ctx context.Context, guildID string, fn func(g *guild, sess voice.Session) error) error {
	g, err := c.guild(guildID)
	if err != nil {
		return err
	}

	var opErr error
	if err := g.do(ctx, func() {
		sess, ok := c.sessions.Get(guildID)
		if !ok {
			opErr = ErrNotConnected
			return
		}
		opErr = fn(g, sess)
	}); err != nil {
		return err
	}
	return opErr
}

// NowPlaying returns the song currently streaming or paused.
func (c *Controller) NowPlaying(guildID string) (song.Song, bool) {
	return c.queues.GetOrCreate(guildID).Current()
}

// Pending returns the songs waiting to be played.
func (c *Controller) Pending(guildID string) []song.Song {
	return c.queues.GetOrCreate(guildID).Pending()
}

// QueueLength returns the number of pending songs.
func (c *Controller) QueueLength(guildID string) int {
	return c.queues.GetOrCreate(guildID).Len()
}

// Songs returns the current song followed by the pending ones.
func (c *Controller) Songs(guildID string) []song.Song {
	q := c.queues.GetOrCreate(guildID)
	pending := q.Pending()
	cur, ok := q.Current()
	if !ok {
		return pending
	}
	return append([]song.Song{cur}, pending...)
}

// State returns the playback state of a guild.
func (c *Controller) State(guildID string) State {
	c.mu.Lock()
	g, ok := c.guilds[guildID]
	c.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return g.getState()
}

// Volume returns the volume percent used for a guild.
func (c *Controller) Volume(guildID string) int {
	c.mu.Lock()
	g, ok := c.guilds[guildID]
	c.mu.Unlock()
	if !ok {
		return c.config.DefaultVolume
	}
	return g.getVolume()
}

// Close stops all guild loops and disconnects every session.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()

	for _, sess := range c.sessions.All() {
		if _, ok := c.sessions.Remove(sess.GuildID()); !ok {
			continue
		}
		if c.transport.IsStreaming(sess) || c.transport.IsPaused(sess) {
			c.transport.Stop(sess)
		}
		if err := c.transport.Disconnect(sess); err != nil {
			zlog.Warn().Msgf("playback: guild %s: disconnect on close failed: %v", sess.GuildID(), err)
		}
		c.queues.GetOrCreate(sess.GuildID()).Clear()
	}
	zlog.Info().Msg("playback: controller closed")
}

func (c *Controller) emitCurrent(g *guild, eventType EventType) {
	e := Event{Type: eventType, GuildID: g.id, State: g.getState()}
	if cur, ok := c.queues.GetOrCreate(g.id).Current(); ok {
		e.Song = &cur
	}
	c.emit(e)
}

// emit sends an event without blocking the guild loop.
func (c *Controller) emit(e Event) {
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s for guild %s", e.Type, e.GuildID)
	}
}
