package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
	"picharvest/pkg/retry"
)

const searxngTimeout = 15 * time.Second

// SearxngProvider queries the JSON API of a SearXNG instance
type SearxngProvider struct {
	endpoint  string
	token     string
	userAgent string
	client    *http.Client
	retrier   *retry.Retrier
	logger    logger.Logger
}

type searxngResponse struct {
	Results []struct {
		URL    string `json:"url"`
		ImgSrc string `json:"img_src"`
		Title  string `json:"title"`
	} `json:"results"`
}

// NewSearxngProvider points at a SearXNG base URL such as https://searx.example.org
func NewSearxngProvider(baseURL, token, userAgent string, l logger.Logger) (*SearxngProvider, error) {
	if l == nil {
		l = logger.GetLogger()
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" {
		return nil, errs.NewSearch(fmt.Sprintf("invalid searxng url %q", baseURL), err)
	}
	return &SearxngProvider{
		endpoint:  u.String() + "/search",
		token:     token,
		userAgent: userAgent,
		client:    &http.Client{Timeout: searxngTimeout},
		retrier:   retry.NewHTTPRetrier(3, time.Second, l),
		logger:    l.WithField("provider", "searxng"),
	}, nil
}

func (s *SearxngProvider) Name() string { return "searxng" }

// WithHTTPClient swaps the HTTP client; tests point it at httptest servers
func (s *SearxngProvider) WithHTTPClient(c *http.Client) *SearxngProvider {
	s.client = c
	return s
}

// WithRetry replaces the retry policy for transient failures
func (s *SearxngProvider) WithRetry(attempts int, base time.Duration) *SearxngProvider {
	s.retrier = retry.NewHTTPRetrier(attempts, base, s.logger)
	return s
}

func (s *SearxngProvider) Search(ctx context.Context, query string) ([]string, error) {
	var resp searxngResponse
	err := s.retrier.WithContext(ctx).Do(func() error {
		var err error
		resp, err = s.query(ctx, query)
		return err
	})
	if err != nil {
		return nil, errs.NewSearch("searxng query failed", err)
	}

	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

func (s *SearxngProvider) query(ctx context.Context, query string) (searxngResponse, error) {
	var out searxngResponse

	v := url.Values{}
	v.Set("q", query)
	v.Set("format", "json")
	v.Set("categories", "images")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return out, errs.NewValidation("building searxng request", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return out, errs.NewNetwork("searxng request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, errs.NewNetwork(fmt.Sprintf("searxng returned %s", resp.Status), resp.StatusCode, nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, errs.NewValidation("decoding searxng response", err)
	}
	return out, nil
}
