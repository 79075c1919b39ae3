package playback

import (
	"context"
	"sync"
	"sync/atomic"

	zlog "github.com/rs/zerolog/log"
)

const mailboxSize = 32

// guild is the serialized execution context for one guild.
// Every queue and session mutation for the guild runs as a closure on its loop.
type guild struct {
	id      string
	mailbox chan func()
	done    <-chan struct{}

	// requestMu serializes resolve-then-enqueue for play requests.
	requestMu sync.Mutex

	state  atomic.Int32
	volume atomic.Int32

	// Owned by the loop goroutine.
	gen       uint64 // generation of the live stream
	locating  bool   // the current song is waiting for its media URL
	idleToken uint64 // latest scheduled idle check
	idleArmed bool   // an idle check is pending for idleToken
}

func newGuild(id string, volume int, done <-chan struct{}) *guild {
	g := &guild{
		id:      id,
		mailbox: make(chan func(), mailboxSize),
		done:    done,
	}
	g.state.Store(int32(StateIdle))
	g.volume.Store(int32(volume))
	return g
}

func (g *guild) getState() State  { return State(g.state.Load()) }
func (g *guild) setState(s State) { g.state.Store(int32(s)) }
func (g *guild) getVolume() int   { return int(g.volume.Load()) }

// cancelIdleLocked invalidates the pending idle check, if any.
func (g *guild) cancelIdleLocked() {
	g.idleToken++
	g.idleArmed = false
}

// run consumes the mailbox until the controller is closed.
func (g *guild) run() {
	for {
		select {
		case <-g.done:
			return
		case fn := <-g.mailbox:
			g.exec(fn)
		}
	}
}

func (g *guild) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: guild %s: panic in loop (recovered): %v", g.id, r)
		}
	}()
	fn()
}

// do runs fn on the loop and waits for it to finish. If ctx ends before fn
// has started, fn is abandoned and ctx.Err() is returned; once fn has started
// do waits for it, so fn may write the caller's result variables.
func (g *guild) do(ctx context.Context, fn func()) error {
	var claimed atomic.Bool
	finished := make(chan struct{})
	wrapped := func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		defer close(finished)
		fn()
	}

	select {
	case g.mailbox <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-g.done:
		if claimed.CompareAndSwap(false, true) {
			return ErrClosed
		}
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
	}
	<-finished
	return nil
}

// post queues fn without waiting. Safe to call from transport and timer goroutines.
func (g *guild) post(fn func()) {
	select {
	case g.mailbox <- fn:
		return
	case <-g.done:
		return
	default:
	}
	go func() {
		select {
		case g.mailbox <- fn:
		case <-g.done:
		}
	}()
}
