package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/tabtime/internal/channel"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAPIBind {
		t.Fatalf("host = %q, want %q", u.Host, defaultAPIBind)
	}

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *HTTPTransport) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport, err := NewHTTPTransport(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPTransport returned error: %v", err)
	}
	return NewClient(channel.NewRequester(transport, nil), channel.Options{Timeout: time.Second, MaxAttempts: 2}), transport
}

func TestClient_SendsKindsAndDecodesData(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		kinds []string
	)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/message" {
			http.NotFound(w, r)
			return
		}
		var msg struct {
			Kind    string          `json:"kind"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = json.NewDecoder(r.Body).Decode(&msg)
		mu.Lock()
		kinds = append(kinds, msg.Kind)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch msg.Kind {
		case KindGetCurrentState:
			_, _ = io.WriteString(w, `{"success":true,"data":{"focusMode":true,"isTracking":true,"currentDomain":"github.com"}}`)
		case KindGetRealtimeStats:
			_, _ = io.WriteString(w, `{"success":true,"data":{"totalTime":90000,"sitesVisited":4,"productivityScore":72}}`)
		case KindGetRealtimeTopSites:
			if string(msg.Payload) != `{"limit":5}` {
				_, _ = io.WriteString(w, `{"success":false,"error":"bad payload"}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":true,"data":{"sites":[{"domain":"github.com","timeSpent":60000,"visits":3}]}}`)
		case KindGetUserInfo:
			_, _ = io.WriteString(w, `{"success":true,"data":{"userId":"u1","displayName":"Ada","signedIn":true}}`)
		case KindAddBlockedSite:
			if string(msg.Payload) != `{"domain":"reddit.com"}` {
				_, _ = io.WriteString(w, `{"success":false,"error":"unexpected domain"}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":true}`)
		default:
			_, _ = io.WriteString(w, `{"success":false,"error":"unknown kind"}`)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	core, err := client.CurrentState(ctx, channel.Critical)
	if err != nil {
		t.Fatalf("CurrentState returned error: %v", err)
	}
	if !core.FocusMode || !core.IsTracking || core.CurrentDomain != "github.com" {
		t.Fatalf("CurrentState = %#v", core)
	}

	stats, err := client.RealtimeStats(ctx)
	if err != nil {
		t.Fatalf("RealtimeStats returned error: %v", err)
	}
	if stats.Total() != 90*time.Second || stats.SitesVisited != 4 {
		t.Fatalf("RealtimeStats = %#v", stats)
	}

	sites, err := client.TopSites(ctx, 5)
	if err != nil {
		t.Fatalf("TopSites returned error: %v", err)
	}
	if len(sites) != 1 || sites[0].Domain != "github.com" || sites[0].Duration() != time.Minute {
		t.Fatalf("TopSites = %#v", sites)
	}

	user, err := client.UserInfo(ctx)
	if err != nil {
		t.Fatalf("UserInfo returned error: %v", err)
	}
	if user.Label() != "Ada" {
		t.Fatalf("UserInfo label = %q, want Ada", user.Label())
	}

	domain, err := client.AddBlockedSite(ctx, " https://www.Reddit.com/r/golang ")
	if err != nil {
		t.Fatalf("AddBlockedSite returned error: %v", err)
	}
	if domain != "reddit.com" {
		t.Fatalf("AddBlockedSite domain = %q, want reddit.com", domain)
	}

	_, err = client.ExportData(ctx)
	if !errors.Is(err, channel.ErrApplicationFailure) {
		t.Fatalf("ExportData err = %v, want application failure", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{KindGetCurrentState, KindGetRealtimeStats, KindGetRealtimeTopSites, KindGetUserInfo, KindAddBlockedSite, KindExportData}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestClient_AddBlockedSiteRejectsEmptyWithoutRequest(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	_, err := client.AddBlockedSite(context.Background(), "   ")
	if !errors.Is(err, channel.ErrValidationFailure) {
		t.Fatalf("err = %v, want validation failure", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("server hit %d times, want 0", hits.Load())
	}
}

func TestTransport_ServerErrorIsClosedAndRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.RealtimeStats(context.Background())
	if !errors.Is(err, channel.ErrChannelClosed) {
		t.Fatalf("err = %v, want ErrChannelClosed", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hit %d times, want 2 attempts", hits.Load())
	}
}

func TestTransport_UnreachableIsClosed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	transport, err := NewHTTPTransport(addr)
	if err != nil {
		t.Fatalf("NewHTTPTransport returned error: %v", err)
	}
	_, err = transport.Deliver(context.Background(), channel.Message{Kind: KindGetCurrentState})
	if !errors.Is(err, channel.ErrChannelClosed) {
		t.Fatalf("err = %v, want ErrChannelClosed", err)
	}
}

func TestTransport_StreamParsesEventsAndAcks(t *testing.T) {
	t.Parallel()

	acked := make(chan string, 1)
	_, transport := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/events":
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, _ := w.(http.Flusher)
			_, _ = io.WriteString(w, ":\n\n")
			_, _ = io.WriteString(w, "data: not json\n\n")
			_, _ = io.WriteString(w, `data: {"id":"e1","kind":"FOCUS_STATE_CHANGED","payload":{"isActive":true}}`+"\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			<-r.Context().Done()
		case "/api/events/ack":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			acked <- body["id"]
			_, _ = io.WriteString(w, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	ch, stop, err := transport.Stream(ctx)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stop()

	select {
	case ev := <-ch:
		if ev.ID != "e1" || ev.Kind != PushFocusStateChanged {
			t.Fatalf("event = %+v", ev)
		}
		var change FocusChange
		if err := ev.DecodePayload(&change); err != nil || !change.IsActive {
			t.Fatalf("payload = %+v err=%v", change, err)
		}
		if err := transport.Ack(ctx, ev.ID); err != nil {
			t.Fatalf("Ack: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case id := <-acked:
		if id != "e1" {
			t.Fatalf("acked id = %q, want e1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("ack not received")
	}
}
