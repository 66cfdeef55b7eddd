// Package icons resolves a small display icon for a site domain.
//
// Resolution tries a remote favicon lookup first and accepts the result
// only when it decodes to an image larger than 16x16. Otherwise a static
// domain table supplies a glyph, and finally a generic glyph is used.
// Failures are silent: every domain always resolves to something.
package icons

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/five82/tabtime/internal/logging"
)

const (
	DefaultLookup  = "https://www.google.com/s2/favicons?domain=%s&sz=64"
	DefaultTimeout = 2 * time.Second

	minDimension  = 16
	maxIconBytes  = 512 << 10
	prefetchLimit = 4
	userAgent     = "tabtime-popup/0.1"
)

// Source records which resolution step produced a Ref.
type Source int

const (
	SourceGeneric Source = iota
	SourceTable
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceTable:
		return "table"
	default:
		return "generic"
	}
}

// Ref is a resolved icon.
type Ref struct {
	Domain string
	Glyph  string
	URL    string
	Format string
	Width  int
	Height int
	Source Source
}

// Options configure a Resolver.
type Options struct {
	// Lookup is a URL template with one %s for the domain. Empty disables
	// remote lookups.
	Lookup  string
	Timeout time.Duration
	Client  *http.Client
	Logger  logging.Logger
}

// Resolver caches icons for the lifetime of one surface.
type Resolver struct {
	lookup  string
	timeout time.Duration
	client  *http.Client
	logger  logging.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]Ref
}

// NewResolver returns a resolver with an empty cache.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		lookup:  opts.Lookup,
		timeout: opts.Timeout,
		client:  opts.Client,
		logger:  opts.Logger,
		cache:   make(map[string]Ref),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	return r
}

// Cached returns a previously resolved icon.
func (r *Resolver) Cached(domain string) (Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.cache[domain]
	return ref, ok
}

// Resolve returns the icon for domain. Concurrent calls for the same domain
// share one lookup.
func (r *Resolver) Resolve(ctx context.Context, domain string) Ref {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if ref, ok := r.Cached(domain); ok {
		return ref
	}
	v, _, _ := r.group.Do(domain, func() (any, error) {
		if ref, ok := r.Cached(domain); ok {
			return ref, nil
		}
		ref, err := r.fetch(ctx, domain)
		if err != nil {
			r.logger.Debug("icon lookup failed", logging.F("domain", domain), logging.F("error", err))
			ref = Fallback(domain)
		}
		if ctx.Err() == nil {
			r.mu.Lock()
			r.cache[domain] = ref
			r.mu.Unlock()
		}
		return ref, nil
	})
	return v.(Ref)
}

// Prefetch resolves domains concurrently with a bounded number of lookups
// in flight.
func (r *Resolver) Prefetch(ctx context.Context, domains []string) map[string]Ref {
	out := make(map[string]Ref, len(domains))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		g.Go(func() error {
			ref := r.Resolve(gctx, domain)
			mu.Lock()
			out[domain] = ref
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) fetch(ctx context.Context, domain string) (Ref, error) {
	if r.lookup == "" || domain == "" {
		return Ref{}, fmt.Errorf("remote lookup disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	iconURL := fmt.Sprintf(r.lookup, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return Ref{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return Ref{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Ref{}, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return Ref{}, fmt.Errorf("read: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Ref{}, fmt.Errorf("decode: %w", err)
	}
	if cfg.Width <= minDimension || cfg.Height <= minDimension {
		return Ref{}, fmt.Errorf("icon too small: %dx%d", cfg.Width, cfg.Height)
	}

	return Ref{
		Domain: domain,
		Glyph:  monogram(domain),
		URL:    iconURL,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Source: SourceRemote,
	}, nil
}
