package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when no attempt matches the lookup.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrNotAllowed is returned when the caller is not on the quiz allow-list.
	ErrNotAllowed = errors.New("you are not allowed for this quiz")
	// ErrWrongRole is returned when the caller's role cannot perform the operation.
	ErrWrongRole = errors.New("you do not have permission")
	// ErrNotOwner is returned when the caller does not own the requested record.
	ErrNotOwner = errors.New("record belongs to another user")
	// ErrAlreadyCompleted rejects a start on a completed attempt.
	ErrAlreadyCompleted = errors.New("quiz already attempted")
	// ErrAlreadySubmitted rejects a second submit.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrTimeExpired is returned once the attempt's end time has passed.
	ErrTimeExpired = errors.New("time expired, quiz blocked")
	// ErrQuizClosed is returned when a new attempt is requested after the quiz deadline.
	ErrQuizClosed = errors.New("quiz deadline has passed")
	// ErrNotStarted rejects a submit without a prior start.
	ErrNotStarted = errors.New("quiz not started")

	// ErrAttemptExists is returned by stores when (student, quiz) already has an attempt.
	ErrAttemptExists = errors.New("attempt already exists")
	// ErrStaleAttempt is returned by stores when a conditional update lost to another writer.
	ErrStaleAttempt = errors.New("attempt changed concurrently")
)

// Kind is the stable, caller-visible error category.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindForbidden        Kind = "Forbidden"
	KindAlreadyCompleted Kind = "AlreadyCompleted"
	KindAlreadySubmitted Kind = "AlreadySubmitted"
	KindTimeExpired      Kind = "TimeExpired"
	KindNotStarted       Kind = "NotStarted"
	KindInternal         Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrQuizNotFound, KindNotFound},
	{ErrAttemptNotFound, KindNotFound},
	{ErrNotAllowed, KindForbidden},
	{ErrWrongRole, KindForbidden},
	{ErrNotOwner, KindForbidden},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
	{ErrAlreadySubmitted, KindAlreadySubmitted},
	{ErrTimeExpired, KindTimeExpired},
	{ErrQuizClosed, KindTimeExpired},
	{ErrNotStarted, KindNotStarted},
}

// KindOf classifies err; anything unrecognised is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
