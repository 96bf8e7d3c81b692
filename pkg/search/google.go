package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"picharvest/pkg/browser"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
)

// Renderer returns the rendered HTML of a page
type Renderer interface {
	RenderHTML(ctx context.Context, pageURL string, opts browser.PageOptions) (string, error)
}

// GoogleProvider scrapes Google Images through a headless browser
type GoogleProvider struct {
	renderer     Renderer
	scrollRounds int
	baseURL      string
	logger       logger.Logger
}

func NewGoogleProvider(r Renderer, scrollRounds int, l logger.Logger) *GoogleProvider {
	if l == nil {
		l = logger.GetLogger()
	}
	return &GoogleProvider{
		renderer:     r,
		scrollRounds: scrollRounds,
		baseURL:      "https://www.google.com/search",
		logger:       l.WithField("provider", "google"),
	}
}

func (g *GoogleProvider) Name() string { return "google" }

// SearchURL is the image-search page for query
func (g *GoogleProvider) SearchURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("tbm", "isch")
	v.Set("hl", "en")
	return g.baseURL + "?" + v.Encode()
}

func (g *GoogleProvider) Search(ctx context.Context, query string) ([]string, error) {
	html, err := g.renderer.RenderHTML(ctx, g.SearchURL(query), browser.PageOptions{
		Settle:       0,
		ScrollRounds: g.scrollRounds,
		Block:        browser.DefaultBlock,
	})
	if err != nil {
		return nil, errs.NewSearch("rendering google results", err)
	}
	urls, err := ParseGoogleResults(html)
	if err != nil {
		return nil, errs.NewSearch("parsing google results", err)
	}
	g.logger.WithFields(map[string]interface{}{
		"search":  query,
		"results": len(urls),
	}).Debug("Parsed result page")
	return urls, nil
}

// imgrefurlPattern finds referrer URLs inside escaped script data
var imgrefurlPattern = regexp.MustCompile(`imgrefurl=(https?[^&"'\\\s]+)`)

// ParseGoogleResults pulls referrer page URLs out of an image-results page:
// /imgres?imgrefurl= links, /url?q= redirects and direct outbound anchors.
func ParseGoogleResults(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		if raw == "" || seen[raw] || isGoogleHost(raw) {
			return
		}
		seen[raw] = true
		out = append(out, raw)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(referrerFromHref(href))
	})

	for _, m := range imgrefurlPattern.FindAllStringSubmatch(html, -1) {
		if u, err := url.QueryUnescape(m[1]); err == nil {
			add(u)
		}
	}
	return out, nil
}

func referrerFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	switch {
	case u.Path == "/imgres":
		return u.Query().Get("imgrefurl")
	case u.Path == "/url":
		if q := u.Query().Get("q"); strings.HasPrefix(q, "http") {
			return q
		}
		return u.Query().Get("url")
	case u.Scheme == "http" || u.Scheme == "https":
		return href
	}
	return ""
}

func isGoogleHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	h := strings.ToLower(u.Hostname())
	return h == "" || strings.Contains(h, "google.") || strings.HasSuffix(h, ".gstatic.com") ||
		strings.HasSuffix(h, "googleusercontent.com")
}
