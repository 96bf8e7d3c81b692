package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// PageOptions tune a single page render
type PageOptions struct {
	// Settle is how long to wait after load before reading the DOM
	Settle time.Duration
	// ScrollRounds scrolls to the bottom this many times to trigger lazy loading
	ScrollRounds int
	// Block lists resource types that are never fetched (font, media, stylesheet, image)
	Block []string
}

// DefaultBlock keeps page visits light without hiding image URLs
var DefaultBlock = []string{"font", "media"}

// RenderHTML opens a stealth tab, loads pageURL and returns the rendered outer HTML
func (m *Manager) RenderHTML(ctx context.Context, pageURL string, opts PageOptions) (string, error) {
	b, err := m.Browser(ctx)
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(opts.Block) > 0 {
		router := blockResources(page, opts.Block)
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		m.logger.WithError(err).WithField("url", pageURL).Debug("Wait for load timed out")
	}

	for i := 0; i < opts.ScrollRounds; i++ {
		if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			break
		}
		if err := sleep(navCtx, 500*time.Millisecond); err != nil {
			return "", err
		}
	}
	if err := sleep(navCtx, opts.Settle); err != nil {
		return "", err
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: read DOM: %w", err)
	}
	return res.Value.Str(), nil
}

func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	block := make(map[string]bool, len(types))
	for _, t := range types {
		block[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(block, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func shouldBlock(block map[string]bool, resourceType string) bool {
	return block[strings.ToLower(resourceType)]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
