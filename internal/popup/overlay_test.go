package popup

import (
	"context"
	"reflect"
	"testing"

	json "github.com/goccy/go-json"
	"pgregory.net/rapid"

	"github.com/five82/tabtime/internal/schedule"
	"github.com/five82/tabtime/internal/state"
	"github.com/five82/tabtime/internal/tracker"
)

// content is the part of a snapshot push handlers write to.
type content struct {
	Core     tracker.CoreState
	HasCore  bool
	Enhanced state.Enhanced
}

func contentOf(s *state.Store) content {
	snap := s.Snapshot()
	return content{Core: snap.Core, HasCore: snap.HasCore, Enhanced: snap.Enhanced}
}

func newOverlaySession(t *rapid.T) *Session {
	session := NewSession(context.Background(), SessionOptions{Schedule: schedule.Options{Tick: noTick}})
	s := &syncer{session: session, backend: &fakeBackend{}, logger: session.logger}
	s.register()

	store := session.Store()
	if rapid.Bool().Draw(t, "seedCore") {
		store.ApplyCore(store.Issue(), state.FullPatch(tracker.CoreState{
			FocusMode:     rapid.Bool().Draw(t, "seedFocus"),
			IsTracking:    rapid.Bool().Draw(t, "seedTracking"),
			CurrentDomain: rapid.SampledFrom([]string{"", "a.com", "b.com"}).Draw(t, "seedDomain"),
		}))
	}
	if rapid.Bool().Draw(t, "seedStats") {
		store.SetStats(store.Issue(), tracker.Stats{
			TotalTime:         rapid.Int64Range(0, 1_000_000).Draw(t, "seedTotal"),
			SitesVisited:      rapid.IntRange(0, 40).Draw(t, "seedVisited"),
			ProductivityScore: rapid.IntRange(0, 100).Draw(t, "seedScore"),
		})
	}
	if rapid.Bool().Draw(t, "seedUser") {
		store.SetUserInfo(store.Issue(), tracker.UserInfo{
			DisplayName: rapid.SampledFrom([]string{"", "Ada", "Grace"}).Draw(t, "seedName"),
			SignedIn:    rapid.Bool().Draw(t, "seedSignedIn"),
		})
	}
	store.TakeDirty()
	return session
}

// optional adds key to payload on a coin flip.
func optional[V any](t *rapid.T, payload map[string]any, key string, gen *rapid.Generator[V]) {
	if rapid.Bool().Draw(t, "has."+key) {
		payload[key] = gen.Draw(t, key)
	}
}

func pushEventGen(t *rapid.T) tracker.PushEvent {
	kind := rapid.SampledFrom([]tracker.PushKind{
		tracker.PushStatsUpdated,
		tracker.PushFocusStateChanged,
		tracker.PushUserInfoUpdated,
	}).Draw(t, "kind")

	payload := map[string]any{}
	switch kind {
	case tracker.PushStatsUpdated:
		optional(t, payload, "totalTime", rapid.Int64Range(0, 1_000_000))
		optional(t, payload, "sitesVisited", rapid.IntRange(0, 40))
		optional(t, payload, "productivityScore", rapid.IntRange(0, 100))
	case tracker.PushFocusStateChanged:
		optional(t, payload, "isActive", rapid.Bool())
	case tracker.PushUserInfoUpdated:
		optional(t, payload, "displayName", rapid.SampledFrom([]string{"", "Ada", "Grace"}))
		optional(t, payload, "email", rapid.SampledFrom([]string{"", "ada@example.com"}))
		optional(t, payload, "signedIn", rapid.Bool())
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return tracker.PushEvent{Kind: kind, Payload: data}
}

func TestOverlay_SamePushTwiceWithoutIDIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		session := newOverlaySession(t)
		defer session.Teardown()
		ev := pushEventGen(t)

		session.Events().Dispatch(ev)
		once := contentOf(session.Store())

		ack, _ := session.Events().Dispatch(ev)
		if ack.Duplicate {
			t.Fatalf("event without id reported as duplicate")
		}
		if twice := contentOf(session.Store()); !reflect.DeepEqual(once, twice) {
			t.Fatalf("second %s changed the store:\nonce  %+v\ntwice %+v", ev.Kind, once, twice)
		}
	})
}

func TestOverlay_RepeatedIDIsHandledOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		session := newOverlaySession(t)
		defer session.Teardown()
		ev := pushEventGen(t)
		ev.ID = rapid.StringMatching(`evt-[0-9]{1,4}`).Draw(t, "id")

		session.Events().Dispatch(ev)
		once := contentOf(session.Store())
		session.Store().TakeDirty()

		ack, _ := session.Events().Dispatch(ev)
		if !ack.Duplicate || !ack.Handled {
			t.Fatalf("ack = %+v, want handled duplicate", ack)
		}
		if dirty := session.Store().TakeDirty(); dirty != 0 {
			t.Fatalf("duplicate marked store dirty: %b", dirty)
		}
		if twice := contentOf(session.Store()); !reflect.DeepEqual(once, twice) {
			t.Fatalf("duplicate %s changed the store:\nonce  %+v\ntwice %+v", ev.Kind, once, twice)
		}
	})
}
