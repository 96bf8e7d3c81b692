package extract

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
)

// RobotsGuard answers whether a page may be fetched according to its host's
// robots.txt. Each host's rules are fetched once per run; hosts whose
// robots.txt cannot be read are treated as allowing everything.
type RobotsGuard struct {
	client    *http.Client
	userAgent string
	logger    logger.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobotsGuard(userAgent string, l logger.Logger) *RobotsGuard {
	if l == nil {
		l = logger.GetLogger()
	}
	return &RobotsGuard{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		logger:    l,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether pageURL may be visited
func (g *RobotsGuard) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false
	}
	group := g.group(ctx, u)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (g *RobotsGuard) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	grp, ok := g.groups[key]
	g.mu.Unlock()
	if ok {
		return grp
	}

	grp = g.fetch(ctx, key)

	g.mu.Lock()
	g.groups[key] = grp
	g.mu.Unlock()
	return grp
}

func (g *RobotsGuard) fetch(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).WithField("origin", origin).Debug("robots.txt unavailable")
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.WithError(err).WithField("origin", origin).Debug("robots.txt unreadable")
		return nil
	}
	return data.FindGroup(g.userAgent)
}

// Guarded runs an Extractor only on pages robots.txt allows
type Guarded struct {
	inner Extractor
	guard *RobotsGuard
}

func NewGuarded(inner Extractor, guard *RobotsGuard) *Guarded {
	return &Guarded{inner: inner, guard: guard}
}

func (g *Guarded) Extract(ctx context.Context, pageURL string, settle time.Duration) ([]string, error) {
	if !g.guard.Allowed(ctx, pageURL) {
		return nil, errs.NewValidation("disallowed by robots.txt", nil)
	}
	return g.inner.Extract(ctx, pageURL, settle)
}
