// Package registry provides the process-wide voice session registry.
package registry

import (
	"sync"

	"github.com/osa030/tunebox/internal/domain/voice"
)

// VoiceRegistry maps guild IDs to their active voice session.
// A present entry means the bot believes it holds a live connection in that guild.
type VoiceRegistry struct {
	mu       sync.RWMutex
	sessions map[string]voice.Session
}

// NewVoiceRegistry creates an empty voice registry.
func NewVoiceRegistry() *VoiceRegistry {
	return &VoiceRegistry{
		sessions: make(map[string]voice.Session),
	}
}

// Get returns the live session for guildID.
func (r *VoiceRegistry) Get(guildID string) (voice.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Set records a new live session, replacing any previous one.
// The caller must have disconnected the previous session already.
func (r *VoiceRegistry) Set(guildID string, s voice.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[guildID] = s
}

// Remove drops the session for guildID and returns what was removed.
func (r *VoiceRegistry) Remove(guildID string) (voice.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	return s, ok
}

// All returns all live sessions.
func (r *VoiceRegistry) All() []voice.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]voice.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// Count returns the number of live sessions.
func (r *VoiceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
