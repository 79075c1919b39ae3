package playback

import "github.com/cockroachdb/errors"

// Kind is the stable failure category carried by every controller error.
type Kind string

const (
	KindNone         Kind = ""
	KindPrecondition Kind = "precondition"
	KindResolution   Kind = "resolution"
	KindStreamStart  Kind = "stream_start"
	KindConnect      Kind = "connect"
	KindInternal     Kind = "internal"
)

// Error is a controller failure tagged with its kind.
type Error struct {
	kind Kind
	err  error
}

func newError(kind Kind, err error) *Error {
	return &Error{kind: kind, err: err}
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// Kind returns the failure category.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind tag of err. Untagged errors report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// Precondition failures: reported to the caller, no state change.
var (
	ErrNotInVoiceChannel = newError(KindPrecondition, errors.New("requester is not in a voice channel"))
	ErrEmptyQuery        = newError(KindPrecondition, errors.New("query is empty"))
	ErrNotConnected      = newError(KindPrecondition, errors.New("not connected to a voice channel"))
	ErrNotStreaming      = newError(KindPrecondition, errors.New("nothing is streaming"))
	ErrNotPaused         = newError(KindPrecondition, errors.New("playback is not paused"))
	ErrNoActiveStream    = newError(KindPrecondition, errors.New("no active stream"))
	ErrVolumeOutOfRange  = newError(KindPrecondition, errors.New("volume must be between 1 and 100"))
	ErrQueueEmpty        = newError(KindPrecondition, errors.New("queue is empty"))
	ErrSongRejected      = newError(KindPrecondition, errors.New("all songs were rejected"))
)

// ErrNoResults is returned when the resolver found nothing for a query.
var ErrNoResults = newError(KindResolution, errors.New("no results"))

// ErrClosed is returned once the controller has been closed.
var ErrClosed = newError(KindInternal, errors.New("controller is closed"))

// RejectedError carries the filter code of a rejected request.
type RejectedError struct {
	Code string
}

func (e *RejectedError) Error() string { return "rejected by filter: " + e.Code }

func rejected(code string) error {
	return newError(KindPrecondition, errors.Mark(&RejectedError{Code: code}, ErrSongRejected))
}
