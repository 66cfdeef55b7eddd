// Package channel implements the request side of the popup's link to the
// background process: typed messages, per-attempt timeouts and a bounded
// retry policy that only retries transport failures.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/logging"
)

// Message is the envelope delivered to the background process.
type Message struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the background process's answer. Success=false is a definite
// application-level answer, not a transport failure.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode unmarshals Data into dest. An empty Data leaves dest untouched.
func (r Response) Decode(dest any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" || dest == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Transport performs exactly one delivery attempt and returns the raw
// response body. Implementations report unreachability as ErrChannelClosed
// and deadline expiry as ErrChannelTimeout or context.DeadlineExceeded.
type Transport interface {
	Deliver(ctx context.Context, msg Message) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, msg Message) ([]byte, error)

// Deliver calls f.
func (f TransportFunc) Deliver(ctx context.Context, msg Message) ([]byte, error) {
	return f(ctx, msg)
}

// Options bound a single Send call.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
}

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 3
)

// Critical is used for the first-paint state fetch: fail fast, one attempt.
var Critical = Options{Timeout: 1500 * time.Millisecond, MaxAttempts: 1}

// Background is used for refreshes and actions. The scheduler period acts as
// the backoff between exhausted budgets.
var Background = Options{Timeout: defaultTimeout, MaxAttempts: defaultMaxAttempts}

func (o Options) normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	return o
}

// Requester sends typed requests over a Transport.
type Requester struct {
	transport Transport
	logger    logging.Logger
}

// NewRequester builds a Requester. A nil logger discards output.
func NewRequester(transport Transport, logger logging.Logger) *Requester {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Requester{transport: transport, logger: logger.With(logging.F("component", "requester"))}
}

// Send delivers kind/payload and returns the decoded Response. Transport
// failures are retried up to opts.MaxAttempts; a success:false answer is
// returned together with an *ApplicationError and never retried.
func (r *Requester) Send(ctx context.Context, kind string, payload any, opts Options) (Response, error) {
	if r == nil || r.transport == nil {
		return Response{}, fmt.Errorf("%s: %w", kind, ErrChannelClosed)
	}
	if strings.TrimSpace(kind) == "" {
		return Response{}, &ValidationError{Field: "kind", Reason: "empty"}
	}
	msg := Message{Kind: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		msg.Payload = raw
	}

	opts = opts.normalized()
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, fmt.Errorf("%s: %w", kind, err)
		}
		resp, err := r.attempt(ctx, msg, opts.Timeout)
		if err == nil {
			if !resp.Success {
				return resp, &ApplicationError{Kind: kind, Message: resp.Error}
			}
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) {
			r.logger.Warn("request failed", logging.F("kind", kind), logging.F("attempt", attempt), logging.F("err", err))
			return Response{}, fmt.Errorf("%s: %w", kind, err)
		}
		r.logger.Debug("request attempt failed",
			logging.F("kind", kind),
			logging.F("attempt", attempt),
			logging.F("max_attempts", opts.MaxAttempts),
			logging.F("err", err),
		)
	}
	r.logger.Warn("request budget exhausted",
		logging.F("kind", kind),
		logging.F("attempts", opts.MaxAttempts),
		logging.F("err", lastErr),
	)
	return Response{}, &AttemptError{Kind: kind, Attempts: opts.MaxAttempts, Err: lastErr}
}

func (r *Requester) attempt(parent context.Context, msg Message, timeout time.Duration) (Response, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := r.transport.Deliver(ctx, msg)
		done <- result{body: body, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		// The transport may ignore ctx; never wait on it past the deadline.
		if parent.Err() != nil {
			return Response{}, parent.Err()
		}
		return Response{}, ErrChannelTimeout
	}

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && parent.Err() == nil {
			return Response{}, fmt.Errorf("%w: %v", ErrChannelTimeout, res.err)
		}
		return Response{}, res.err
	}
	var resp Response
	if err := json.Unmarshal(res.body, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp, nil
}
