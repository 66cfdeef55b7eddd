package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/tabtime/internal/tracker"
)

func TestStore_ApplyCoreAndSnapshotClone(t *testing.T) {
	var s Store

	before := time.Now()
	if !s.ApplyCore(s.Issue(), FullPatch(tracker.CoreState{FocusMode: true, IsTracking: true, CurrentDomain: "example.com"})) {
		t.Fatal("ApplyCore() = false, want true")
	}
	stamp := s.Issue()
	s.SetTopSites(stamp, []tracker.SiteUsage{{Domain: "a.com", TimeSpent: 1000}, {Domain: "b.com"}})

	snap := s.Snapshot()
	if !snap.HasCore || !snap.Core.FocusMode || snap.Core.CurrentDomain != "example.com" {
		t.Fatalf("snapshot core = %#v, want loaded focus on example.com", snap.Core)
	}
	if len(snap.Enhanced.TopSites) != 2 || !snap.Enhanced.TopSitesLoaded {
		t.Fatalf("snapshot sites = %#v, want 2 loaded sites", snap.Enhanced.TopSites)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	snap.Enhanced.TopSites[0].Domain = "mutated"
	if got := s.Snapshot().Enhanced.TopSites[0].Domain; got != "a.com" {
		t.Fatalf("Snapshot should clone sites; got %q want a.com", got)
	}
}

func TestStore_FocusPatchLeavesOtherFields(t *testing.T) {
	var s Store
	s.ApplyCore(s.Issue(), FullPatch(tracker.CoreState{IsTracking: true, CurrentDomain: "news.site"}))

	s.ApplyCore(s.Issue(), FocusPatch(true))

	core, loaded := s.Core()
	want := tracker.CoreState{FocusMode: true, IsTracking: true, CurrentDomain: "news.site"}
	if !loaded || core != want {
		t.Fatalf("Core() = %#v, %v; want %#v, true", core, loaded, want)
	}
}

func TestStore_StaleResponseDoesNotOverwritePush(t *testing.T) {
	var s Store

	// Request sent, then a push arrives before the response.
	requestStamp := s.Issue()
	pushStamp := s.Issue()
	s.ApplyCore(pushStamp, FocusPatch(true))

	applied := s.ApplyCore(requestStamp, FullPatch(tracker.CoreState{FocusMode: false, IsTracking: true, CurrentDomain: "x.com"}))
	if !applied {
		t.Fatal("ApplyCore() = false, want true for fields the push did not touch")
	}
	core, _ := s.Core()
	if !core.FocusMode {
		t.Fatal("stale response overwrote FocusMode from newer push")
	}
	if !core.IsTracking || core.CurrentDomain != "x.com" {
		t.Fatalf("untouched fields not applied: %#v", core)
	}
}

func TestStore_StaleEnhancedRejected(t *testing.T) {
	var s Store
	older := s.Issue()
	newer := s.Issue()

	if !s.SetStats(newer, tracker.Stats{TotalTime: 2000}) {
		t.Fatal("SetStats(newer) = false")
	}
	if s.SetStats(older, tracker.Stats{TotalTime: 1000}) {
		t.Fatal("SetStats(older) = true, want rejection")
	}
	if got := s.Snapshot().Enhanced.TodayStats.TotalTime; got != 2000 {
		t.Fatalf("TotalTime = %d, want 2000", got)
	}
}

func TestStore_DirtyFlags(t *testing.T) {
	var s Store
	s.ApplyCore(s.Issue(), FocusPatch(true))
	s.SetUserInfo(s.Issue(), tracker.UserInfo{SignedIn: true})
	s.SetOverrideMinutes(s.Issue(), 5)

	d := s.TakeDirty()
	for _, flag := range []Dirty{DirtyCore, DirtyUser, DirtyOverride} {
		if !d.Has(flag) {
			t.Fatalf("dirty %b missing %b", d, flag)
		}
	}
	if d.Has(DirtyStats) || d.Has(DirtySites) {
		t.Fatalf("dirty %b has unexpected flags", d)
	}
	if s.TakeDirty() != 0 {
		t.Fatal("TakeDirty should clear flags")
	}
}

func TestStore_DiscardMakesMutationsNoOps(t *testing.T) {
	s := NewStore()
	s.ApplyCore(s.Issue(), FocusPatch(false))
	s.Discard()

	if s.ApplyCore(s.Issue(), FocusPatch(true)) {
		t.Fatal("ApplyCore after Discard = true")
	}
	if s.SetStats(s.Issue(), tracker.Stats{TotalTime: 1}) {
		t.Fatal("SetStats after Discard = true")
	}
	if s.SetDeepFocus(s.Issue(), tracker.FocusStats{Minutes: 1}) {
		t.Fatal("SetDeepFocus after Discard = true")
	}
	s.RecordFailure(errors.New("late"))
	snap := s.Snapshot()
	if snap.Core.FocusMode || snap.Enhanced.TodayStats != nil || snap.ConsecutiveFailures != 0 {
		t.Fatalf("discarded store mutated: %#v", snap)
	}
	if s.Alive() {
		t.Fatal("Alive() = true after Discard")
	}
}

func TestStore_FailureKeepsPreviousData(t *testing.T) {
	var s Store
	s.ApplyCore(s.Issue(), FullPatch(tracker.CoreState{IsTracking: true}))

	origErr := errors.New("boom")
	s.RecordFailure(origErr)

	snap := s.Snapshot()
	if !snap.HasCore || !snap.Core.IsTracking {
		t.Fatalf("core changed on error: %#v", snap.Core)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	if s.Snapshot().IsOffline() {
		t.Fatal("IsOffline() = true, want false with 0 failures")
	}

	s.RecordFailure(errors.New("fail 1"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordFailure(errors.New("fail 2"))
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.RecordSuccess()
	if snap := s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
}

func TestStore_NilSafe(t *testing.T) {
	var s *Store
	if s.Alive() {
		t.Fatal("nil store Alive() = true")
	}
	if s.ApplyCore(1, FocusPatch(true)) {
		t.Fatal("nil store ApplyCore() = true")
	}
	s.Discard()
	if s.TakeDirty() != 0 {
		t.Fatal("nil store TakeDirty() != 0")
	}
}
