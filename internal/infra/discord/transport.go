// Package discord implements the voice transport on top of discordgo.
package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/domain/voice"
	"github.com/osa030/tunebox/internal/infra/audio"
)

// conn is the part of a voice connection the transport drives.
type conn interface {
	Speaking(bool) error
	Disconnect() error
	OpusSend() chan<- []byte
}

type dialFunc func(ctx context.Context, guildID, channelID string) (conn, error)

// session is a live voice connection with at most one stream.
type session struct {
	id        string
	guildID   string
	channelID string
	conn      conn

	mu     sync.Mutex
	stream *audio.Stream
}

func (s *session) ID() string        { return s.id }
func (s *session) GuildID() string   { return s.guildID }
func (s *session) ChannelID() string { return s.channelID }

func (s *session) current() *audio.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Transport connects to voice channels and streams songs into them.
type Transport struct {
	dial     dialFunc
	source   audio.Source
	encoders audio.EncoderFactory

	mu       sync.Mutex
	sessions map[string]*session
}

var _ playback.Transport = (*Transport)(nil)

// NewTransport creates a transport that joins voice channels through dg.
func NewTransport(dg *discordgo.Session, source audio.Source, encoders audio.EncoderFactory) *Transport {
	return newTransport(discordDialer(dg), source, encoders)
}

func newTransport(dial dialFunc, source audio.Source, encoders audio.EncoderFactory) *Transport {
	return &Transport{
		dial:     dial,
		source:   source,
		encoders: encoders,
		sessions: make(map[string]*session),
	}
}

// Connect joins channelID and returns a new session handle.
func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (voice.Session, error) {
	c, err := t.dial(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}

	s := &session{
		id:        uuid.New().String(),
		guildID:   guildID,
		channelID: channelID,
		conn:      c,
	}
	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()

	zlog.Info().Msgf("voice: guild %s: joined channel %s (session %s)", guildID, channelID, s.id)
	return s, nil
}

// Disconnect stops any stream and leaves the voice channel.
func (t *Transport) Disconnect(vs voice.Session) error {
	t.mu.Lock()
	s, ok := t.sessions[vs.ID()]
	delete(t.sessions, vs.ID())
	t.mu.Unlock()
	if !ok {
		return nil
	}

	if st := s.current(); st != nil {
		st.Stop()
		// The pump must stop sending before the connection closes its channel.
		<-st.Done()
	}
	if err := s.conn.Disconnect(); err != nil {
		return errors.Wrapf(err, "failed to leave voice channel in guild %s", s.guildID)
	}
	zlog.Info().Msgf("voice: guild %s: left channel %s (session %s)", s.guildID, s.channelID, s.id)
	return nil
}

// StartStream opens the decoder on mediaURL and starts pumping Opus packets.
// ctx bounds the decoder process, so it must outlive the stream.
func (t *Transport) StartStream(ctx context.Context, vs voice.Session, mediaURL string, onComplete func(error)) error {
	s, err := t.lookup(vs)
	if err != nil {
		return err
	}
	if old := s.current(); old != nil {
		old.Stop()
	}

	enc, err := t.encoders()
	if err != nil {
		return err
	}
	src, err := t.source.Open(ctx, mediaURL)
	if err != nil {
		return err
	}

	if err := s.conn.Speaking(true); err != nil {
		zlog.Warn().Msgf("voice: guild %s: speaking on: %v", s.guildID, err)
	}

	var st *audio.Stream
	st = audio.NewStream(src, enc, s.conn.OpusSend(), func(streamErr error) {
		s.mu.Lock()
		if s.stream == st {
			s.stream = nil
		}
		s.mu.Unlock()
		_ = s.conn.Speaking(false)
		if streamErr != nil {
			zlog.Warn().Msgf("voice: guild %s: stream ended with error: %v", s.guildID, streamErr)
		}
		onComplete(streamErr)
	})

	s.mu.Lock()
	s.stream = st
	s.mu.Unlock()

	// A Disconnect that raced the start may have missed this stream; end it
	// at once so its completion still fires.
	if _, err := t.lookup(vs); err != nil {
		st.Stop()
	}

	go st.Run()
	return nil
}

// Stop ends the active stream, if any.
func (t *Transport) Stop(vs voice.Session) {
	if st := t.stream(vs); st != nil {
		st.Stop()
	}
}

// Pause holds the active stream.
func (t *Transport) Pause(vs voice.Session) {
	s, err := t.lookup(vs)
	if err != nil {
		return
	}
	if st := s.current(); st != nil {
		st.Pause()
		_ = s.conn.Speaking(false)
	}
}

// Resume continues a paused stream.
func (t *Transport) Resume(vs voice.Session) {
	s, err := t.lookup(vs)
	if err != nil {
		return
	}
	if st := s.current(); st != nil {
		_ = s.conn.Speaking(true)
		st.Resume()
	}
}

// IsStreaming reports whether a stream is live and not paused.
func (t *Transport) IsStreaming(vs voice.Session) bool {
	st := t.stream(vs)
	return st != nil && !st.Paused()
}

// IsPaused reports whether the live stream is paused.
func (t *Transport) IsPaused(vs voice.Session) bool {
	st := t.stream(vs)
	return st != nil && st.Paused()
}

// SetGain sets the live stream gain.
func (t *Transport) SetGain(vs voice.Session, gain float64) {
	if st := t.stream(vs); st != nil {
		st.SetGain(gain)
	}
}

// Close leaves every voice channel.
func (t *Transport) Close() {
	t.mu.Lock()
	all := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		all = append(all, s)
	}
	t.mu.Unlock()

	for _, s := range all {
		if err := t.Disconnect(s); err != nil {
			zlog.Warn().Msgf("voice: %v", err)
		}
	}
}

func (t *Transport) lookup(vs voice.Session) (*session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[vs.ID()]
	if !ok {
		return nil, errors.Newf("unknown voice session %s", vs.ID())
	}
	return s, nil
}

func (t *Transport) stream(vs voice.Session) *audio.Stream {
	s, err := t.lookup(vs)
	if err != nil {
		return nil
	}
	return s.current()
}
