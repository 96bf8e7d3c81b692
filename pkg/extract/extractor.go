package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"picharvest/pkg/browser"
	"picharvest/pkg/config"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
)

const maxPageBytes = 8 << 20

// Extractor returns the candidate image URLs of one referrer page.
// settle is how long a rendered page is given before it is read.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, settle time.Duration) ([]string, error)
}

// Renderer returns the rendered HTML of a page
type Renderer interface {
	RenderHTML(ctx context.Context, pageURL string, opts browser.PageOptions) (string, error)
}

// New builds the extractor selected by cfg. The browser renderer is only
// needed in browser mode.
func New(cfg config.ExtractConfig, userAgent string, r Renderer, l logger.Logger) (Extractor, error) {
	var ex Extractor
	switch strings.ToLower(cfg.Mode) {
	case "", "browser":
		if r == nil {
			return nil, fmt.Errorf("browser extractor needs a renderer")
		}
		ex = NewBrowserExtractor(r, cfg.MaxImagesPerPage, l)
	case "static":
		ex = NewStaticExtractor(userAgent, cfg.PageTimeout, cfg.MaxImagesPerPage, l)
	default:
		return nil, fmt.Errorf("unknown extract mode %q", cfg.Mode)
	}
	if cfg.RespectRobots {
		ex = NewGuarded(ex, NewRobotsGuard(userAgent, l))
	}
	return ex, nil
}

// BrowserExtractor renders each page in headless Chrome so script-inserted
// and lazy-loaded images are seen
type BrowserExtractor struct {
	renderer  Renderer
	maxImages int
	logger    logger.Logger
}

func NewBrowserExtractor(r Renderer, maxImages int, l logger.Logger) *BrowserExtractor {
	if l == nil {
		l = logger.GetLogger()
	}
	return &BrowserExtractor{renderer: r, maxImages: maxImages, logger: l}
}

func (b *BrowserExtractor) Extract(ctx context.Context, pageURL string, settle time.Duration) ([]string, error) {
	html, err := b.renderer.RenderHTML(ctx, pageURL, browser.PageOptions{
		Settle:       settle,
		ScrollRounds: 1,
		Block:        browser.DefaultBlock,
	})
	if err != nil {
		return nil, errs.NewNetwork("rendering page", 0, err)
	}
	return ParseImageURLs(html, pageURL, b.maxImages)
}

// StaticExtractor fetches the raw HTML over plain HTTP
type StaticExtractor struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxImages int
	logger    logger.Logger
}

func NewStaticExtractor(userAgent string, timeout time.Duration, maxImages int, l logger.Logger) *StaticExtractor {
	if l == nil {
		l = logger.GetLogger()
	}
	return &StaticExtractor{
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
		maxImages: maxImages,
		logger:    l,
	}
}

// Extract ignores settle; nothing runs on a static page
func (s *StaticExtractor) Extract(ctx context.Context, pageURL string, _ time.Duration) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errs.NewValidation("bad page url", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.NewNetwork("page request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewNetwork(fmt.Sprintf("unexpected status %s", resp.Status), resp.StatusCode, nil)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errs.NewValidation("unknown page charset", err)
	}
	html, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.NewNetwork("reading page body", 0, err)
	}
	return ParseImageURLs(string(html), resp.Request.URL.String(), s.maxImages)
}
