package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// lazyAttrs hold the real image URL on pages that lazy-load
var lazyAttrs = []string{"data-src", "data-lazy-src", "data-original", "data-lazy", "data-full-src"}

// ParseImageURLs returns the absolute image URLs referenced by an HTML
// page in document order, without repeats. max <= 0 means no cap.
func ParseImageURLs(html, pageURL string, max int) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil {
			base = b
		}
	}

	c := &collector{base: base, max: max, seen: make(map[string]bool)}

	doc.Find(`meta[property="og:image"], meta[name="twitter:image"]`).Each(func(_ int, s *goquery.Selection) {
		c.add(s.AttrOr("content", ""))
	})
	doc.Find(`link[rel="image_src"]`).Each(func(_ int, s *goquery.Selection) {
		c.add(s.AttrOr("href", ""))
	})
	doc.Find("img, picture source").Each(func(_ int, s *goquery.Selection) {
		if set, ok := s.Attr("srcset"); ok {
			c.add(largestFromSrcset(set))
		}
		if set, ok := s.Attr("data-srcset"); ok {
			c.add(largestFromSrcset(set))
		}
		for _, a := range lazyAttrs {
			if v, ok := s.Attr(a); ok {
				c.add(v)
			}
		}
		if v, ok := s.Attr("src"); ok {
			c.add(v)
		}
	})

	return c.out, nil
}

type collector struct {
	base *url.URL
	max  int
	seen map[string]bool
	out  []string
}

func (c *collector) add(raw string) {
	if c.max > 0 && len(c.out) >= c.max {
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "blob:") {
		return
	}
	u, err := c.base.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return
	}
	u.Fragment = ""
	s := u.String()
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	c.out = append(c.out, s)
}

// largestFromSrcset picks the candidate with the biggest width or density descriptor
func largestFromSrcset(set string) string {
	var best string
	var bestSize float64 = -1
	for _, part := range strings.Split(set, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 {
			continue
		}
		size := 1.0
		if len(fields) > 1 {
			d := fields[1]
			if n, err := strconv.ParseFloat(d[:len(d)-1], 64); err == nil && len(d) > 1 {
				size = n
			}
		}
		if size > bestSize {
			best, bestSize = fields[0], size
		}
	}
	return best
}
