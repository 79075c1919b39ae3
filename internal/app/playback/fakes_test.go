package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osa030/tunebox/internal/app/filter"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/app/session/registry"
	"github.com/osa030/tunebox/internal/domain/playlist"
	"github.com/osa030/tunebox/internal/domain/song"
	"github.com/osa030/tunebox/internal/domain/voice"
)

type fakeSession struct {
	id, guild, channel string
}

func (s *fakeSession) ID() string        { return s.id }
func (s *fakeSession) GuildID() string   { return s.guild }
func (s *fakeSession) ChannelID() string { return s.channel }

type fakeStream struct {
	url        string
	onComplete func(error)
	paused     bool
}

type fakeTransport struct {
	mu           sync.Mutex
	nextID       int
	connectErr   error
	startErr     map[string]error
	streams      map[string]*fakeStream
	started      []string
	stops        int
	disconnected []string
	gains        map[string]float64
	connects     int

	// startGate, when set, holds every StartStream until it is closed.
	startGate <-chan struct{}
	starts    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		startErr: make(map[string]error),
		streams:  make(map[string]*fakeStream),
		gains:    make(map[string]float64),
	}
}

func (f *fakeTransport) Connect(_ context.Context, guildID, channelID string) (voice.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.nextID++
	return &fakeSession{id: fmt.Sprintf("session-%d", f.nextID), guild: guildID, channel: channelID}, nil
}

func (f *fakeTransport) Disconnect(s voice.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, s.ID())
	delete(f.streams, s.ID())
	return nil
}

func (f *fakeTransport) StartStream(_ context.Context, s voice.Session, streamURL string, onComplete func(error)) error {
	f.mu.Lock()
	f.starts++
	gate := f.startGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.startErr[streamURL]; err != nil {
		return err
	}
	f.streams[s.ID()] = &fakeStream{url: streamURL, onComplete: onComplete}
	f.started = append(f.started, streamURL)
	if _, ok := f.gains[s.ID()]; !ok {
		f.gains[s.ID()] = 1.0
	}
	return nil
}

// Stop ends the stream and fires its completion from another goroutine, like a real transport.
func (f *fakeTransport) Stop(s voice.Session) {
	f.mu.Lock()
	st := f.streams[s.ID()]
	delete(f.streams, s.ID())
	f.stops++
	f.mu.Unlock()
	if st != nil {
		go st.onComplete(nil)
	}
}

func (f *fakeTransport) Pause(s voice.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.streams[s.ID()]; st != nil {
		st.paused = true
	}
}

func (f *fakeTransport) Resume(s voice.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.streams[s.ID()]; st != nil {
		st.paused = false
	}
}

func (f *fakeTransport) IsStreaming(s voice.Session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.streams[s.ID()]
	return st != nil && !st.paused
}

func (f *fakeTransport) IsPaused(s voice.Session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.streams[s.ID()]
	return st != nil && st.paused
}

func (f *fakeTransport) SetGain(s voice.Session, gain float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gains[s.ID()] = gain
}

// finish simulates the natural end of the live stream of a session.
func (f *fakeTransport) finish(sessionID string) {
	f.mu.Lock()
	st := f.streams[sessionID]
	delete(f.streams, sessionID)
	f.mu.Unlock()
	if st != nil {
		go st.onComplete(nil)
	}
}

// completion returns the completion callback of the live stream without ending it.
func (f *fakeTransport) completion(sessionID string) func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.streams[sessionID]; st != nil {
		return st.onComplete
	}
	return nil
}

func (f *fakeTransport) startedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *fakeTransport) liveURL(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.streams[sessionID]; st != nil {
		return st.url
	}
	return ""
}

func (f *fakeTransport) gain(sessionID string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gains[sessionID]
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disconnected)
}

func (f *fakeTransport) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeResolver struct {
	mu      sync.Mutex
	results map[string]*playlist.Playlist
	errs    map[string]error
	calls   []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		results: make(map[string]*playlist.Playlist),
		errs:    make(map[string]error),
	}
}

func (r *fakeResolver) add(query string, songs ...song.Song) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[query] = &playlist.Playlist{Songs: songs}
}

func (r *fakeResolver) Resolve(_ context.Context, query string) (*playlist.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, query)
	if err := r.errs[query]; err != nil {
		return nil, err
	}
	pl, ok := r.results[query]
	if !ok {
		return nil, nil
	}
	cp := *pl
	cp.Songs = append([]song.Song(nil), pl.Songs...)
	return &cp, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeLocator struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	errs  map[string]error
	refs  []string
}

func newFakeLocator() *fakeLocator {
	return &fakeLocator{
		gates: make(map[string]chan struct{}),
		errs:  make(map[string]error),
	}
}

// hold makes lookups of ref wait until the returned func is called.
func (l *fakeLocator) hold(ref string) func() {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gates[ref] = gate
	l.mu.Unlock()
	return sync.OnceFunc(func() { close(gate) })
}

func (l *fakeLocator) Locate(ctx context.Context, ref string) (string, error) {
	l.mu.Lock()
	l.refs = append(l.refs, ref)
	gate, err := l.gates[ref], l.errs[ref]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return mediaURL(ref), nil
}

func (l *fakeLocator) lookups() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.refs...)
}

func mediaURL(ref string) string { return ref + "?media" }

func mkSong(title string) song.Song {
	return song.Song{
		Title:     title,
		StreamURL: "https://media.example.com/" + title,
		Duration:  180,
		Uploader:  "uploader",
	}
}

type harness struct {
	c         *Controller
	transport *fakeTransport
	resolver  *fakeResolver
	locator   *fakeLocator
	queues    *queue.Registry
	sessions  *registry.VoiceRegistry
}

func newHarness(t *testing.T, config Config, filters *filter.Chain) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		resolver:  newFakeResolver(),
		queues:    queue.NewRegistry(),
		sessions:  registry.NewVoiceRegistry(),
	}
	h.c = NewController(config, h.resolver, nil, h.transport, h.queues, h.sessions, filters)
	t.Cleanup(h.c.Close)
	return h
}

// newLocatingHarness is newHarness with a locator between the queue and the transport.
func newLocatingHarness(t *testing.T, config Config) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		resolver:  newFakeResolver(),
		locator:   newFakeLocator(),
		queues:    queue.NewRegistry(),
		sessions:  registry.NewVoiceRegistry(),
	}
	h.c = NewController(config, h.resolver, h.locator, h.transport, h.queues, h.sessions, nil)
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) session(t *testing.T, guildID string) voice.Session {
	t.Helper()
	s, ok := h.sessions.Get(guildID)
	require.True(t, ok, "guild %s has no session", guildID)
	return s
}

// waitEvent reads events until one of the given type arrives for the guild.
func (h *harness) waitEvent(t *testing.T, guildID string, eventType EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.c.Events():
			if e.GuildID == guildID && e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on guild %s", eventType, guildID)
			return Event{}
		}
	}
}

// drainEvents collects the guild's events for d.
func (h *harness) drainEvents(guildID string, d time.Duration) []EventType {
	var got []EventType
	timeout := time.After(d)
	for {
		select {
		case e := <-h.c.Events():
			if e.GuildID == guildID {
				got = append(got, e.Type)
			}
		case <-timeout:
			return got
		}
	}
}
