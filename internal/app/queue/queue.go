// Package queue provides the per-guild playback queue and its registry.
package queue

import (
	"math/rand"
	"sync"

	"github.com/osa030/tunebox/internal/domain/song"
)

// Queue holds the pending songs for one guild plus the song currently streaming.
type Queue struct {
	mu      sync.Mutex
	pending []song.Song
	current *song.Song
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		pending: make([]song.Song, 0),
	}
}

// Enqueue appends a song to the end of the pending list.
func (q *Queue) Enqueue(s song.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, s)
}

// EnqueueAll appends songs in order under a single lock acquisition.
func (q *Queue) EnqueueAll(songs []song.Song) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, songs...)
}

// Advance pops the front of the pending list and makes it current.
// When nothing is pending, current is cleared and false is returned.
func (q *Queue) Advance() (song.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.current = nil
		return song.Song{}, false
	}

	next := q.pending[0]
	q.pending[0] = song.Song{}
	q.pending = q.pending[1:]
	q.current = &next
	return next, true
}

// IsEmpty reports whether nothing is pending. The current song is not considered.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}

// Clear empties the pending list and clears the current song together.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = make([]song.Song, 0)
	q.current = nil
}

// Shuffle randomly permutes the pending list in place.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.pending), func(i, j int) {
		q.pending[i], q.pending[j] = q.pending[j], q.pending[i]
	})
}

// Len returns the number of pending songs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Current returns the song currently streaming, if any.
func (q *Queue) Current() (song.Song, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return song.Song{}, false
	}
	return *q.current, true
}

// Pending returns a copy of the pending list in play order.
func (q *Queue) Pending() []song.Song {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]song.Song, len(q.pending))
	copy(result, q.pending)
	return result
}

