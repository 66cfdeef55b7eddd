package tracker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/channel"
)

const (
	defaultAPIBind   = "127.0.0.1:7490"
	defaultUserAgent = "tabtime-popup/0.1"
	maxResponseBytes = 4 << 20
	streamBuffer     = 64
)

// PushStream is the push side of the link to the background process.
type PushStream interface {
	Stream(ctx context.Context) (<-chan PushEvent, func(), error)
	Ack(ctx context.Context, id string) error
}

// Ensure HTTPTransport implements both sides at compile time.
var (
	_ channel.Transport = (*HTTPTransport)(nil)
	_ PushStream        = (*HTTPTransport)(nil)
)

// HTTPTransport talks to the background process over its loopback HTTP API.
// One Deliver call is one attempt; retries belong to channel.Requester.
type HTTPTransport struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	userAgent string
}

// NewHTTPTransport builds a transport for the apiBind host:port value.
func NewHTTPTransport(apiBind string) (*HTTPTransport, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &HTTPTransport{
		baseURL: base,
		// Per-attempt deadlines come from the request context.
		http:      &http.Client{},
		stream:    &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the normalized API base URL.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL.String()
}

// Deliver posts msg to /api/message and returns the raw response body.
func (t *HTTPTransport) Deliver(ctx context.Context, msg channel.Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	resp, err := t.post(ctx, "/api/message", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: api /api/message returned status %d", channel.ErrChannelClosed, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(ctx, err)
	}
	return data, nil
}

// Ack acknowledges receipt of push event id.
func (t *HTTPTransport) Ack(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return fmt.Errorf("encode ack: %w", err)
	}
	resp, err := t.post(ctx, "/api/events/ack", body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: api /api/events/ack returned status %d", channel.ErrChannelClosed, resp.StatusCode)
	}
	return nil
}

// Stream opens the server-sent event stream at /api/events. The returned
// channel closes when the stream ends or stop is called.
func (t *HTTPTransport) Stream(ctx context.Context) (<-chan PushEvent, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	reqURL := t.baseURL.ResolveReference(&url.URL{Path: "/api/events"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.stream.Do(req)
	if err != nil {
		cancel()
		return nil, nil, classify(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: api /api/events returned status %d", channel.ErrChannelClosed, resp.StatusCode)
	}

	ch := make(chan PushEvent, streamBuffer)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var dataLines []string
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if len(dataLines) == 0 {
					continue
				}
				payload := strings.Join(dataLines, "\n")
				dataLines = dataLines[:0]
				var event PushEvent
				if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Kind == "" {
					continue
				}
				select {
				case ch <- event:
				case <-ctx.Done():
					return
				}
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			}
		}
	}()
	return ch, cancel, nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	reqURL := t.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return resp, nil
}

// classify maps net/http failures onto the channel taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", channel.ErrChannelTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", channel.ErrChannelTimeout, err)
	}
	return fmt.Errorf("%w: %v", channel.ErrChannelClosed, err)
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
