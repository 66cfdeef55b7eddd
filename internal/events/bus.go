package events

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/tracker"
)

const (
	busSuffix    = ".event"
	busRetention = 30 * time.Second
)

// BusWatcher delivers events published to a spool directory shared by
// every surface. Each surface reads every file; publishers prune expired
// files.
type BusWatcher struct {
	dir    string
	w      *fsnotify.Watcher
	sender Sender
	logger logging.Logger

	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// NewBusWatcher starts watching dir. Files already present are treated as
// history and skipped.
func NewBusWatcher(dir string, sender Sender, logger logging.Logger) (*BusWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create bus watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch bus dir: %w", err)
	}
	b := &BusWatcher{
		dir:     dir,
		w:       fw,
		sender:  sender,
		logger:  logger,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

// Close stops the watcher. It does not wait for the delivery goroutine: the
// sender may be the event loop that is calling Close, and a Send in flight
// only returns once that loop runs again. Nothing is delivered after Close
// returns except a Send already in progress. It is safe to call more than
// once.
func (b *BusWatcher) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.closing)
		err = b.w.Close()
	})
	return err
}

// Done is closed once the delivery goroutine has exited.
func (b *BusWatcher) Done() <-chan struct{} { return b.done }

func (b *BusWatcher) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.closing:
			return
		case event, ok := <-b.w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !strings.HasSuffix(event.Name, busSuffix) {
				continue
			}
			ev, err := readBusFile(event.Name)
			if err != nil {
				b.logger.Warn("bus event unreadable", logging.F("path", event.Name), logging.F("error", err))
				continue
			}
			select {
			case <-b.closing:
				return
			default:
			}
			b.sender.Send(PushMsg{Event: ev, Source: SourceBus})

		case err, ok := <-b.w.Errors:
			if !ok {
				return
			}
			b.logger.Warn("bus watcher error", logging.F("error", err))
		}
	}
}

func readBusFile(path string) (tracker.PushEvent, error) {
	var ev tracker.PushEvent
	data, err := os.ReadFile(path)
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	if ev.Kind == "" {
		return ev, fmt.Errorf("missing kind")
	}
	if ev.ID == "" {
		ev.ID = strings.TrimSuffix(filepath.Base(path), busSuffix)
	}
	return ev, nil
}

// Publish writes ev to the bus directory. The file appears atomically, so
// watchers never observe a partial write. Files older than the retention
// window are pruned first.
func Publish(dir string, ev tracker.PushEvent) (string, error) {
	if ev.Kind == "" {
		return "", fmt.Errorf("publish: missing kind")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bus dir: %w", err)
	}
	prune(dir, time.Now().Add(-busRetention))

	if ev.ID == "" {
		ev.ID = "bus-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.Itoa(os.Getpid())
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".publish-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp: %w", err)
	}
	final := filepath.Join(dir, sanitizeID(ev.ID)+busSuffix)
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish: %w", err)
	}
	return ev.ID, nil
}

func prune(dir string, before time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), busSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(before) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, entry.Name()))
	}
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
