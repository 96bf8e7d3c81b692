package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"picharvest/pkg/config"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
	"picharvest/pkg/ratelimit"
)

// Provider issues one image search and returns referrer page URLs in result order
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]string, error)
}

// New builds the provider selected by cfg, paced by cfg.RequestsPerMinute.
// token authenticates against SearXNG and may be empty.
func New(cfg config.SearchConfig, r Renderer, token string, l logger.Logger) (Provider, error) {
	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case "", "google":
		if r == nil {
			return nil, errs.NewSearch("google provider needs a browser", nil)
		}
		p = NewGoogleProvider(r, cfg.ScrollRounds, l)
	case "searxng":
		sp, err := NewSearxngProvider(cfg.SearxngURL, token, cfg.UserAgent, l)
		if err != nil {
			return nil, err
		}
		p = sp
	default:
		return nil, errs.NewSearch(fmt.Sprintf("unknown provider %q", cfg.Provider), nil)
	}
	return NewRateLimited(p, ratelimit.PerMinute(cfg.RequestsPerMinute), l), nil
}

// RateLimited paces every search of the wrapped provider through a limiter
type RateLimited struct {
	inner   Provider
	limiter ratelimit.Limiter
	logger  logger.Logger
}

func NewRateLimited(p Provider, lim ratelimit.Limiter, l logger.Logger) *RateLimited {
	if l == nil {
		l = logger.GetLogger()
	}
	return &RateLimited{inner: p, limiter: lim, logger: l}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Search(ctx context.Context, query string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errs.NewSearch("waiting for search slot", err)
	}
	start := time.Now()
	urls, err := r.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	logger.LogSearch(r.logger, r.inner.Name(), query, len(urls), time.Since(start))
	return urls, nil
}

// FilterReferrers keeps http(s) URLs whose host matches none of skip,
// dropping repeats and fragments while preserving order
func FilterReferrers(urls []string, skip []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if skipped(host, skip) {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func skipped(host string, skip []string) bool {
	for _, token := range skip {
		token = strings.ToLower(token)
		if token == "" {
			continue
		}
		if strings.HasPrefix(host, token) || strings.Contains(host, "."+token) {
			return true
		}
	}
	return false
}
