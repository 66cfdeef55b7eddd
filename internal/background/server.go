package background

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/channel"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/tracker"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server answers the popup's request channel and feeds its push stream.
type Server struct {
	state  *State
	hub    *hub
	logger logging.Logger
}

// NewServer returns a server over state.
func NewServer(state *State, logger logging.Logger) *Server {
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{state: state, hub: newHub(), logger: logger}
}

// State returns the authoritative state.
func (s *Server) State() *State { return s.state }

// Streams returns the number of connected push streams.
func (s *Server) Streams() int { return s.hub.Count() }

// Pending returns the number of pushes not yet acknowledged.
func (s *Server) Pending() int { return s.hub.Pending() }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", s.handleMessage)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/events/ack", s.handleAck)
	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("background listening", logging.F("addr", ln.Addr().String()))
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Publish broadcasts a push event to every connected stream.
func (s *Server) Publish(kind tracker.PushKind, payload any) {
	ev, err := s.hub.Broadcast(kind, payload)
	if err != nil {
		s.logger.Warn("push encode failed", logging.F("kind", kind), logging.F("error", err))
		return
	}
	s.logger.Debug("push sent", logging.F("kind", kind), logging.F("id", ev.ID), logging.F("streams", s.hub.Count()))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, channel.Response{Error: "read request"})
		return
	}
	var msg channel.Message
	if err := json.Unmarshal(body, &msg); err != nil || msg.Kind == "" {
		writeJSON(w, http.StatusBadRequest, channel.Response{Error: "malformed message"})
		return
	}

	data, err := s.dispatch(msg)
	if err != nil {
		s.logger.Debug("request rejected", logging.F("kind", msg.Kind), logging.F("error", err))
		writeJSON(w, http.StatusOK, channel.Response{Success: false, Error: err.Error()})
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, channel.Response{Error: "encode response"})
		return
	}
	writeJSON(w, http.StatusOK, channel.Response{Success: true, Data: raw})
}

// dispatch answers one request. Mutations also push the change to every
// connected surface.
func (s *Server) dispatch(msg channel.Message) (any, error) {
	st := s.state
	switch msg.Kind {
	case tracker.KindGetCurrentState:
		return st.Core(), nil
	case tracker.KindGetFocusState:
		return map[string]bool{"focusMode": st.Core().FocusMode}, nil
	case tracker.KindGetRealtimeStats:
		return st.Stats(), nil
	case tracker.KindGetRealtimeTopSites:
		var req struct {
			Limit int `json:"limit"`
		}
		if err := decodePayload(msg, &req); err != nil {
			return nil, err
		}
		return tracker.TopSites{Sites: st.TopSites(req.Limit)}, nil
	case tracker.KindGetUserInfo:
		return st.User(), nil
	case tracker.KindGetLocalDeepFocusTime:
		return st.DeepFocus(), nil
	case tracker.KindGetLocalOverrideTime:
		return tracker.OverrideTime{Minutes: st.OverrideMinutes()}, nil
	case tracker.KindGetBlockedSites:
		return tracker.BlockedSites{Sites: st.Blocked()}, nil
	case tracker.KindExportData:
		return st.Export(), nil

	case tracker.KindToggleFocusMode:
		on := st.ToggleFocus()
		s.Publish(tracker.PushFocusStateChanged, tracker.FocusChange{IsActive: on})
		return map[string]bool{"focusMode": on}, nil

	case tracker.KindBlockCurrentSite:
		domain := st.Core().CurrentDomain
		if domain == "" {
			return nil, errors.New("no active site")
		}
		if !st.Block(domain) {
			return nil, fmt.Errorf("%s is already blocked", domain)
		}
		s.Publish(tracker.PushStatsUpdated, st.Stats())
		return tracker.DomainRequest{Domain: domain}, nil

	case tracker.KindAddBlockedSite, tracker.KindRemoveBlockedSite:
		var req tracker.DomainRequest
		if err := decodePayload(msg, &req); err != nil {
			return nil, err
		}
		domain, err := tracker.NormalizeDomain(req.Domain)
		if err != nil {
			return nil, err
		}
		if msg.Kind == tracker.KindAddBlockedSite {
			if !st.Block(domain) {
				return nil, fmt.Errorf("%s is already blocked", domain)
			}
		} else if !st.Unblock(domain) {
			return nil, fmt.Errorf("%s is not blocked", domain)
		}
		s.Publish(tracker.PushStatsUpdated, st.Stats())
		return tracker.DomainRequest{Domain: domain}, nil
	}
	return nil, fmt.Errorf("unknown message kind %q", msg.Kind)
}

func decodePayload(msg channel.Message, dest any) error {
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, dest); err != nil {
		return fmt.Errorf("invalid %s payload", msg.Kind)
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	ch, cancel := s.hub.Add()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	_, _ = w.Write([]byte(":\n\n"))
	flusher.Flush()

	s.logger.Debug("push stream opened", logging.F("streams", s.hub.Count()))
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("push stream closed")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil || req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	known := s.hub.Ack(req.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"acked": known})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
