package state

import (
	"errors"
	"slices"
	"time"

	"github.com/five82/tabtime/internal/tracker"
)

// Seq stamps a mutation with the moment its source was issued: when a
// request was sent, a push arrived, or a local optimistic change was made.
type Seq uint64

// Dirty flags name the concerns touched since the reconciler last drained
// them.
type Dirty uint8

const (
	DirtyCore Dirty = 1 << iota
	DirtyStats
	DirtyUser
	DirtyFocus
	DirtyOverride
	DirtySites
	DirtyBlocked
)

// Has reports whether d includes flag.
func (d Dirty) Has(flag Dirty) bool { return d&flag != 0 }

const (
	keyFocusMode     = "core.focusMode"
	keyIsTracking    = "core.isTracking"
	keyCurrentDomain = "core.currentDomain"
	keyStats         = "stats"
	keyUser          = "user"
	keyDeepFocus     = "deepFocus"
	keyOverride      = "override"
	keySites         = "topSites"
	keyBlocked       = "blocked"
)

// CorePatch overlays individual core fields. Nil fields are left untouched.
type CorePatch struct {
	FocusMode     *bool
	IsTracking    *bool
	CurrentDomain *string
}

// FullPatch overlays every core field from s.
func FullPatch(s tracker.CoreState) CorePatch {
	return CorePatch{
		FocusMode:     &s.FocusMode,
		IsTracking:    &s.IsTracking,
		CurrentDomain: &s.CurrentDomain,
	}
}

// FocusPatch overlays only the focus flag.
func FocusPatch(active bool) CorePatch {
	return CorePatch{FocusMode: &active}
}

// Enhanced is the best-effort partition. Each field loads independently;
// nil means not loaded yet.
type Enhanced struct {
	TodayStats      *tracker.Stats
	UserInfo        *tracker.UserInfo
	DeepFocus       *tracker.FocusStats
	OverrideMinutes *int
	TopSites        []tracker.SiteUsage
	TopSitesLoaded  bool
	BlockedSites    []string
	BlockedLoaded   bool
}

// Snapshot is a copy of the store content at a point in time.
type Snapshot struct {
	Core                tracker.CoreState
	HasCore             bool
	Enhanced            Enhanced
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the critical refresh failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store is the popup's ephemeral cache of background state. It is owned by
// a single surface and mutated only from its event loop, so it carries no
// lock. After Discard every mutation is a no-op.
type Store struct {
	core     tracker.CoreState
	hasCore  bool
	enhanced Enhanced

	seq     Seq
	applied map[string]Seq
	dirty   Dirty

	lastUpdated time.Time
	lastError   error
	failures    int

	discarded bool
	now       func() time.Time
}

// NewStore returns an empty store. The zero value is also ready to use.
func NewStore() *Store {
	return &Store{}
}

// Issue returns a new sequence stamp. Stamps increase monotonically for the
// store's lifetime.
func (s *Store) Issue() Seq {
	s.seq++
	return s.seq
}

// Alive reports whether the owning surface is still mounted.
func (s *Store) Alive() bool {
	return s != nil && !s.discarded
}

// Discard detaches the store from its surface. Late completions that still
// hold a reference can no longer mutate it.
func (s *Store) Discard() {
	if s == nil {
		return
	}
	s.discarded = true
	s.dirty = 0
}

// ApplyCore overlays patch onto the core partition. Fields whose last
// applied stamp is newer than stamp are skipped. It reports whether any
// field was applied.
func (s *Store) ApplyCore(stamp Seq, patch CorePatch) bool {
	if !s.Alive() {
		return false
	}
	applied := false
	if patch.FocusMode != nil && s.accept(keyFocusMode, stamp) {
		s.core.FocusMode = *patch.FocusMode
		applied = true
	}
	if patch.IsTracking != nil && s.accept(keyIsTracking, stamp) {
		s.core.IsTracking = *patch.IsTracking
		applied = true
	}
	if patch.CurrentDomain != nil && s.accept(keyCurrentDomain, stamp) {
		s.core.CurrentDomain = *patch.CurrentDomain
		applied = true
	}
	if applied {
		s.hasCore = true
		s.touch(DirtyCore)
	}
	return applied
}

// SetStats replaces today's statistics.
func (s *Store) SetStats(stamp Seq, stats tracker.Stats) bool {
	if !s.Alive() || !s.accept(keyStats, stamp) {
		return false
	}
	stats.Sites = slices.Clone(stats.Sites)
	s.enhanced.TodayStats = &stats
	s.touch(DirtyStats)
	return true
}

// SetUserInfo replaces the user info.
func (s *Store) SetUserInfo(stamp Seq, info tracker.UserInfo) bool {
	if !s.Alive() || !s.accept(keyUser, stamp) {
		return false
	}
	s.enhanced.UserInfo = &info
	s.touch(DirtyUser)
	return true
}

// SetDeepFocus replaces the deep focus totals.
func (s *Store) SetDeepFocus(stamp Seq, stats tracker.FocusStats) bool {
	if !s.Alive() || !s.accept(keyDeepFocus, stamp) {
		return false
	}
	s.enhanced.DeepFocus = &stats
	s.touch(DirtyFocus)
	return true
}

// SetOverrideMinutes replaces the derived override time.
func (s *Store) SetOverrideMinutes(stamp Seq, minutes int) bool {
	if !s.Alive() || !s.accept(keyOverride, stamp) {
		return false
	}
	s.enhanced.OverrideMinutes = &minutes
	s.touch(DirtyOverride)
	return true
}

// SetTopSites replaces the per-site usage list.
func (s *Store) SetTopSites(stamp Seq, sites []tracker.SiteUsage) bool {
	if !s.Alive() || !s.accept(keySites, stamp) {
		return false
	}
	s.enhanced.TopSites = slices.Clone(sites)
	s.enhanced.TopSitesLoaded = true
	s.touch(DirtySites)
	return true
}

// SetBlockedSites replaces the blocked domain list.
func (s *Store) SetBlockedSites(stamp Seq, sites []string) bool {
	if !s.Alive() || !s.accept(keyBlocked, stamp) {
		return false
	}
	s.enhanced.BlockedSites = slices.Clone(sites)
	s.enhanced.BlockedLoaded = true
	s.touch(DirtyBlocked)
	return true
}

// RecordFailure notes a failed critical refresh. Cached data is kept.
func (s *Store) RecordFailure(err error) {
	if !s.Alive() || err == nil {
		return
	}
	s.lastError = err
	s.lastUpdated = s.clock()
	s.failures++
}

// RecordSuccess resets the failure streak.
func (s *Store) RecordSuccess() {
	if !s.Alive() {
		return
	}
	s.lastError = nil
	s.lastUpdated = s.clock()
	s.failures = 0
}

// TakeDirty returns and clears the accumulated dirty flags.
func (s *Store) TakeDirty() Dirty {
	if s == nil {
		return 0
	}
	d := s.dirty
	s.dirty = 0
	return d
}

// Core returns the cached core state and whether any of it has loaded.
func (s *Store) Core() (tracker.CoreState, bool) {
	if s == nil {
		return tracker.CoreState{}, false
	}
	return s.core, s.hasCore
}

// Snapshot returns a copy of the store content.
func (s *Store) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Core:                s.core,
		HasCore:             s.hasCore,
		Enhanced:            cloneEnhanced(s.enhanced),
		LastUpdated:         s.lastUpdated,
		LastError:           cloneError(s.lastError),
		ConsecutiveFailures: s.failures,
	}
	return snap
}

func (s *Store) accept(key string, stamp Seq) bool {
	if s.applied == nil {
		s.applied = make(map[string]Seq)
	}
	if stamp < s.applied[key] {
		return false
	}
	s.applied[key] = stamp
	if stamp > s.seq {
		s.seq = stamp
	}
	return true
}

func (s *Store) touch(flag Dirty) {
	s.dirty |= flag
	s.lastUpdated = s.clock()
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func cloneEnhanced(e Enhanced) Enhanced {
	out := e
	if e.TodayStats != nil {
		stats := *e.TodayStats
		stats.Sites = slices.Clone(stats.Sites)
		out.TodayStats = &stats
	}
	if e.UserInfo != nil {
		info := *e.UserInfo
		out.UserInfo = &info
	}
	if e.DeepFocus != nil {
		focus := *e.DeepFocus
		out.DeepFocus = &focus
	}
	if e.OverrideMinutes != nil {
		minutes := *e.OverrideMinutes
		out.OverrideMinutes = &minutes
	}
	out.TopSites = slices.Clone(e.TopSites)
	out.BlockedSites = slices.Clone(e.BlockedSites)
	return out
}

func cloneError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(err.Error())
}
