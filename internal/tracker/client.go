package tracker

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/channel"
)

// Sender is the request primitive the Client is built on. *channel.Requester
// implements it.
type Sender interface {
	Send(ctx context.Context, kind string, payload any, opts channel.Options) (channel.Response, error)
}

// Ensure Requester satisfies Sender at compile time.
var _ Sender = (*channel.Requester)(nil)

// Client issues typed requests to the background process.
type Client struct {
	sender     Sender
	background channel.Options
}

// NewClient wraps sender. background bounds every request that does not take
// explicit options; the zero value uses channel.Background.
func NewClient(sender Sender, background channel.Options) *Client {
	if background.Timeout <= 0 && background.MaxAttempts <= 0 {
		background = channel.Background
	}
	return &Client{sender: sender, background: background}
}

// CurrentState fetches the core state. The caller chooses the options so the
// first-paint fetch can use a short, single-attempt budget.
func (c *Client) CurrentState(ctx context.Context, opts channel.Options) (CoreState, error) {
	var out CoreState
	err := c.call(ctx, KindGetCurrentState, nil, opts, &out)
	return out, err
}

// RealtimeStats fetches today's statistics.
func (c *Client) RealtimeStats(ctx context.Context) (Stats, error) {
	var out Stats
	err := c.call(ctx, KindGetRealtimeStats, nil, c.background, &out)
	return out, err
}

// TopSites fetches today's most visited sites.
func (c *Client) TopSites(ctx context.Context, limit int) ([]SiteUsage, error) {
	var payload any
	if limit > 0 {
		payload = map[string]int{"limit": limit}
	}
	var out TopSites
	err := c.call(ctx, KindGetRealtimeTopSites, payload, c.background, &out)
	return out.Sites, err
}

// UserInfo fetches the signed-in user.
func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	var out UserInfo
	err := c.call(ctx, KindGetUserInfo, nil, c.background, &out)
	return out, err
}

// DeepFocusTime fetches today's deep focus totals.
func (c *Client) DeepFocusTime(ctx context.Context) (FocusStats, error) {
	var out FocusStats
	err := c.call(ctx, KindGetLocalDeepFocusTime, nil, c.background, &out)
	return out, err
}

// OverrideTime fetches today's override minutes.
func (c *Client) OverrideTime(ctx context.Context) (int, error) {
	var out OverrideTime
	err := c.call(ctx, KindGetLocalOverrideTime, nil, c.background, &out)
	return out.Minutes, err
}

// ToggleFocusMode flips focus mode and returns the authoritative new value.
func (c *Client) ToggleFocusMode(ctx context.Context) (bool, error) {
	var out struct {
		FocusMode bool `json:"focusMode"`
	}
	err := c.call(ctx, KindToggleFocusMode, nil, c.background, &out)
	return out.FocusMode, err
}

// BlockCurrentSite blocks the domain of the active tab and returns it.
func (c *Client) BlockCurrentSite(ctx context.Context) (string, error) {
	var out DomainRequest
	err := c.call(ctx, KindBlockCurrentSite, nil, c.background, &out)
	return out.Domain, err
}

// AddBlockedSite validates and blocks domain. Invalid input is rejected
// before any request is sent.
func (c *Client) AddBlockedSite(ctx context.Context, domain string) (string, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	return normalized, c.call(ctx, KindAddBlockedSite, DomainRequest{Domain: normalized}, c.background, nil)
}

// RemoveBlockedSite validates and unblocks domain.
func (c *Client) RemoveBlockedSite(ctx context.Context, domain string) (string, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return "", err
	}
	return normalized, c.call(ctx, KindRemoveBlockedSite, DomainRequest{Domain: normalized}, c.background, nil)
}

// BlockedSites lists blocked domains.
func (c *Client) BlockedSites(ctx context.Context) ([]string, error) {
	var out BlockedSites
	err := c.call(ctx, KindGetBlockedSites, nil, c.background, &out)
	return out.Sites, err
}

// ExportData returns the background process's export document verbatim.
func (c *Client) ExportData(ctx context.Context) ([]byte, error) {
	var out json.RawMessage
	if err := c.call(ctx, KindExportData, nil, c.background, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, kind Kind, payload any, opts channel.Options, dest any) error {
	if c == nil || c.sender == nil {
		return fmt.Errorf("%s: %w", kind, channel.ErrChannelClosed)
	}
	resp, err := c.sender.Send(ctx, kind, payload, opts)
	if err != nil {
		return err
	}
	if err := resp.Decode(dest); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return nil
}
