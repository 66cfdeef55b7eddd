package background

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/five82/tabtime/internal/tracker"
)

// State is the authoritative tracking state held by the background process.
type State struct {
	mu sync.Mutex

	focus    bool
	tracking bool
	current  string

	sites    map[string]*tracker.SiteUsage
	user     tracker.UserInfo
	deep     tracker.FocusStats
	override time.Duration
	blocked  []string

	deepSince time.Time
	now       func() time.Time
}

// NewState returns an empty state that is tracking with focus mode off.
func NewState() *State {
	return &State{
		tracking: true,
		sites:    make(map[string]*tracker.SiteUsage),
		user:     tracker.UserInfo{SignedIn: false},
		now:      time.Now,
	}
}

// Core returns the core projection.
func (s *State) Core() tracker.CoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tracker.CoreState{FocusMode: s.focus, IsTracking: s.tracking, CurrentDomain: s.current}
}

// ToggleFocus flips focus mode and returns the new value. Each on/off cycle
// counts as one deep focus session.
func (s *State) ToggleFocus() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = !s.focus
	if s.focus {
		s.deepSince = s.now()
		s.deep.Sessions++
	} else if !s.deepSince.IsZero() {
		s.deep.Minutes += int(s.now().Sub(s.deepSince) / time.Minute)
		s.deepSince = time.Time{}
	}
	return s.focus
}

// SetTracking pauses or resumes tracking.
func (s *State) SetTracking(on bool) {
	s.mu.Lock()
	s.tracking = on
	s.mu.Unlock()
}

// Visit makes domain the active tab and credits it with d of browsing time.
// It reports whether the visit landed on a blocked domain.
func (s *State) Visit(domain string, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if domain != s.current {
		s.current = domain
		if domain != "" && s.tracking {
			s.site(domain).Visits++
		}
	}
	if domain == "" || !s.tracking {
		return false
	}
	s.site(domain).TimeSpent += d.Milliseconds()
	if s.isBlocked(domain) {
		s.override += d
		return true
	}
	return false
}

func (s *State) site(domain string) *tracker.SiteUsage {
	u, ok := s.sites[domain]
	if !ok {
		u = &tracker.SiteUsage{Domain: domain}
		s.sites[domain] = u
	}
	return u
}

// Stats returns today's aggregate statistics. Productivity is the share of
// time not spent on blocked domains.
func (s *State) Stats() tracker.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total, blocked int64
	for _, u := range s.sites {
		total += u.TimeSpent
		if s.isBlocked(u.Domain) {
			blocked += u.TimeSpent
		}
	}
	score := 100
	if total > 0 {
		score = int((total - blocked) * 100 / total)
	}
	return tracker.Stats{
		TotalTime:         total,
		SitesVisited:      len(s.sites),
		ProductivityScore: score,
	}
}

// TopSites returns up to limit sites by time spent, most first. limit <= 0
// returns every site.
func (s *State) TopSites(limit int) []tracker.SiteUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tracker.SiteUsage, 0, len(s.sites))
	for _, u := range s.sites {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSpent != out[j].TimeSpent {
			return out[i].TimeSpent > out[j].TimeSpent
		}
		return out[i].Domain < out[j].Domain
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// User returns the signed-in user.
func (s *State) User() tracker.UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser replaces the signed-in user.
func (s *State) SetUser(info tracker.UserInfo) {
	s.mu.Lock()
	s.user = info
	s.mu.Unlock()
}

// DeepFocus returns today's deep focus totals, including a session in
// progress.
func (s *State) DeepFocus() tracker.FocusStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.deep
	if s.focus && !s.deepSince.IsZero() {
		out.Minutes += int(s.now().Sub(s.deepSince) / time.Minute)
	}
	return out
}

// OverrideMinutes returns minutes spent on blocked domains today.
func (s *State) OverrideMinutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.override / time.Minute)
}

// Block adds domain to the block list. It reports false when it was
// already blocked.
func (s *State) Block(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isBlocked(domain) {
		return false
	}
	s.blocked = append(s.blocked, domain)
	slices.Sort(s.blocked)
	return true
}

// Unblock removes domain from the block list. It reports false when it was
// not blocked.
func (s *State) Unblock(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.blocked, domain)
	if i < 0 {
		return false
	}
	s.blocked = slices.Delete(s.blocked, i, i+1)
	return true
}

// Blocked returns the sorted block list.
func (s *State) Blocked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.blocked)
}

func (s *State) isBlocked(domain string) bool {
	_, found := slices.BinarySearch(s.blocked, domain)
	return found
}

// Export is the EXPORT_DATA document.
type Export struct {
	ExportedAt   time.Time           `json:"exportedAt"`
	User         tracker.UserInfo    `json:"user"`
	Stats        tracker.Stats       `json:"stats"`
	Sites        []tracker.SiteUsage `json:"sites"`
	DeepFocus    tracker.FocusStats  `json:"deepFocus"`
	Override     int                 `json:"overrideMinutes"`
	BlockedSites []string            `json:"blockedSites"`
}

// Export snapshots everything the background process knows.
func (s *State) Export() Export {
	stats := s.Stats()
	return Export{
		ExportedAt:   s.now().UTC(),
		User:         s.User(),
		Stats:        stats,
		Sites:        s.TopSites(0),
		DeepFocus:    s.DeepFocus(),
		Override:     s.OverrideMinutes(),
		BlockedSites: s.Blocked(),
	}
}
