// Package loader fetches remote audio assets over HTTP.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ingyamilmolinar/sono/internal/config"
	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

var (
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("loader: unexpected status")
	// ErrTooLarge is returned when a body exceeds the configured limit.
	ErrTooLarge = errors.New("loader: asset too large")
)

// Fetcher downloads assets as raw bytes. Requests are paced by a token
// bucket and batches are bounded in concurrency.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	base        *url.URL
	maxBytes    int64
	concurrency int
	logger      *sono_log.Logger
}

// New builds a Fetcher. client may be nil to use a client with the
// configured timeout.
func New(cfg config.Loader, client *http.Client, logger *sono_log.Logger) (*Fetcher, error) {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Timeout)}
	}
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("loader: base url: %w", err)
		}
		base = u
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	conc := cfg.Concurrency
	if conc < 1 {
		conc = 1
	}
	return &Fetcher{
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		base:        base,
		maxBytes:    cfg.MaxBytes,
		concurrency: conc,
		logger:      logger.Named("loader"),
	}, nil
}

func (f *Fetcher) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("loader: parse %q: %w", raw, err)
	}
	if f.base != nil && !u.IsAbs() {
		u = f.base.ResolveReference(u)
	}
	return u.String(), nil
}

// Fetch downloads one asset.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := f.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", target, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", target, err)
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loader: get %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrStatus, target, resp.Status)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", target, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, target, humanize.Bytes(uint64(f.maxBytes)))
	}
	f.logger.Debugf("fetched %s (%s) in %v", target, humanize.Bytes(uint64(len(data))), time.Since(start))
	return data, nil
}

// FetchAll downloads every url, returning bodies in the same order. The
// first failure cancels the remaining requests and is returned.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([][]byte, error) {
	out := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			data, err := f.Fetch(gctx, u)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var total int
	for _, d := range out {
		total += len(d)
	}
	f.logger.Infof("loaded %d assets (%s)", len(urls), humanize.Bytes(uint64(total)))
	return out, nil
}
