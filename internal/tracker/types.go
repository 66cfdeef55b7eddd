package tracker

import (
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/channel"
)

// Kind names a request understood by the background process.
type Kind = string

const (
	KindGetCurrentState       Kind = "GET_CURRENT_STATE"
	KindGetRealtimeStats      Kind = "GET_REALTIME_STATS"
	KindGetUserInfo           Kind = "GET_USER_INFO"
	KindGetFocusState         Kind = "GET_FOCUS_STATE"
	KindGetLocalDeepFocusTime Kind = "GET_LOCAL_DEEP_FOCUS_TIME"
	KindGetLocalOverrideTime  Kind = "GET_LOCAL_OVERRIDE_TIME"
	KindGetRealtimeTopSites   Kind = "GET_REALTIME_TOP_SITES"
	KindToggleFocusMode       Kind = "TOGGLE_FOCUS_MODE"
	KindBlockCurrentSite      Kind = "BLOCK_CURRENT_SITE"
	KindAddBlockedSite        Kind = "ADD_BLOCKED_SITE"
	KindRemoveBlockedSite     Kind = "REMOVE_BLOCKED_SITE"
	KindGetBlockedSites       Kind = "GET_BLOCKED_SITES"
	KindExportData            Kind = "EXPORT_DATA"
)

// PushKind names an unsolicited notification from the background process or
// the cross-surface event bus.
type PushKind string

const (
	PushStatsUpdated        PushKind = "STATS_UPDATED"
	PushFocusStateChanged   PushKind = "FOCUS_STATE_CHANGED"
	PushUserInfoUpdated     PushKind = "USER_INFO_UPDATED"
	PushOverrideDataUpdated PushKind = "OVERRIDE_DATA_UPDATED"
	PushForceStateRefresh   PushKind = "FORCE_STATE_REFRESH"
)

// PushKinds lists every push kind the popup understands.
var PushKinds = []PushKind{
	PushStatsUpdated,
	PushFocusStateChanged,
	PushUserInfoUpdated,
	PushOverrideDataUpdated,
	PushForceStateRefresh,
}

// PushEvent is a transient push message. ID is used only for acknowledgement.
type PushEvent struct {
	ID      string          `json:"id,omitempty"`
	Kind    PushKind        `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the event payload into dest.
func (e PushEvent) DecodePayload(dest any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return &channel.ValidationError{Field: string(e.Kind) + " payload", Reason: err.Error()}
	}
	return nil
}

// CoreState is the latency-sensitive projection of tracking state.
type CoreState struct {
	FocusMode     bool   `json:"focusMode"`
	IsTracking    bool   `json:"isTracking"`
	CurrentDomain string `json:"currentDomain,omitempty"`
}

// FocusChange is the FOCUS_STATE_CHANGED payload.
type FocusChange struct {
	IsActive bool `json:"isActive"`
}

// SiteUsage is one row of per-site usage for today.
type SiteUsage struct {
	Domain    string `json:"domain"`
	TimeSpent int64  `json:"timeSpent"` // milliseconds
	Visits    int    `json:"visits"`
}

// Duration returns TimeSpent as a time.Duration.
func (s SiteUsage) Duration() time.Duration {
	return time.Duration(s.TimeSpent) * time.Millisecond
}

// Stats aggregates today's browsing time.
type Stats struct {
	TotalTime         int64       `json:"totalTime"` // milliseconds
	SitesVisited      int         `json:"sitesVisited"`
	ProductivityScore int         `json:"productivityScore"`
	Sites             []SiteUsage `json:"sites,omitempty"`
}

// Total returns TotalTime as a time.Duration.
func (s Stats) Total() time.Duration {
	return time.Duration(s.TotalTime) * time.Millisecond
}

// TopSites wraps GET_REALTIME_TOP_SITES data.
type TopSites struct {
	Sites []SiteUsage `json:"sites"`
}

// UserInfo describes the signed-in user.
type UserInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	SignedIn    bool   `json:"signedIn"`
}

// Label returns the best display name for the user.
func (u UserInfo) Label() string {
	if !u.SignedIn {
		return "Guest"
	}
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if email := strings.TrimSpace(u.Email); email != "" {
		return email
	}
	return "Signed in"
}

// FocusStats reports today's deep focus totals.
type FocusStats struct {
	Minutes  int `json:"minutes"`
	Sessions int `json:"sessions"`
}

// OverrideTime reports minutes spent on blocked sites via overrides today.
type OverrideTime struct {
	Minutes int `json:"minutes"`
}

// BlockedSites wraps the blocked domain list.
type BlockedSites struct {
	Sites []string `json:"sites"`
}

// DomainRequest is the payload for add/remove blocked site.
type DomainRequest struct {
	Domain string `json:"domain"`
}

// NormalizeDomain reduces user input ("https://www.Example.com/path") to a
// bare host ("example.com"). Empty or malformed input yields a
// *channel.ValidationError.
func NormalizeDomain(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", &channel.ValidationError{Field: "domain", Reason: "empty"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", &channel.ValidationError{Field: "domain", Reason: "not a host name"}
	}
	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	if !validHost(host) {
		return "", &channel.ValidationError{Field: "domain", Reason: "not a host name"}
	}
	return host, nil
}

func validHost(host string) bool {
	if len(host) == 0 || len(host) > 253 || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}
