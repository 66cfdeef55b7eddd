package channel

import (
	"errors"
	"fmt"
)

// Transport-level failures. These are retried by the Requester up to its
// attempt budget (malformed responses excepted).
var (
	ErrChannelTimeout    = errors.New("channel timeout")
	ErrChannelClosed     = errors.New("channel closed")
	ErrMalformedResponse = errors.New("malformed response")
)

// Application-level and input failures. Never retried.
var (
	ErrApplicationFailure = errors.New("application failure")
	ErrValidationFailure  = errors.New("validation failure")
)

// ApplicationError is a definite success:false answer from the background
// process.
type ApplicationError struct {
	Kind    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, ErrApplicationFailure)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ApplicationError) Unwrap() error { return ErrApplicationFailure }

// ValidationError rejects input before any request is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailure }

// AttemptError reports an exhausted retry budget. It unwraps to the last
// transport error.
type AttemptError struct {
	Kind     string
	Attempts int
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transport failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrChannelTimeout) || errors.Is(err, ErrChannelClosed)
}
