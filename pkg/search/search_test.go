package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picharvest/pkg/browser"
	"picharvest/pkg/config"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
	"picharvest/pkg/ratelimit"
)

type fakeRenderer struct {
	html    string
	err     error
	lastURL string
	opts    browser.PageOptions
}

func (f *fakeRenderer) RenderHTML(_ context.Context, pageURL string, opts browser.PageOptions) (string, error) {
	f.lastURL = pageURL
	f.opts = opts
	return f.html, f.err
}

const googlePage = `<html><body>
<a href="/imgres?imgurl=https%3A%2F%2Fcdn.example.org%2Fa.jpg&amp;imgrefurl=https%3A%2F%2Fnews.example.org%2Fstory">r1</a>
<a href="/url?q=https://fans.example.net/gallery&amp;sa=U">r2</a>
<a href="https://www.google.com/preferences">prefs</a>
<a href="https://blog.example.com/post">r3</a>
<a href="/search?q=more">more</a>
<a href="https://news.example.org/story">dup</a>
<script>var d="imgrefurl=https%3A%2F%2Fwiki.example.org%2FPerson&x=1";</script>
</body></html>`

func TestParseGoogleResults(t *testing.T) {
	urls, err := ParseGoogleResults(googlePage)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://news.example.org/story",
		"https://fans.example.net/gallery",
		"https://blog.example.com/post",
		"https://wiki.example.org/Person",
	}, urls)
}

func TestGoogleProviderSearch(t *testing.T) {
	r := &fakeRenderer{html: googlePage}
	g := NewGoogleProvider(r, 2, logger.NewNopLogger())

	urls, err := g.Search(context.Background(), "ada lovelace")
	require.NoError(t, err)
	assert.Len(t, urls, 4)
	assert.Contains(t, r.lastURL, "tbm=isch")
	assert.Contains(t, r.lastURL, "q=ada+lovelace")
	assert.Equal(t, 2, r.opts.ScrollRounds)

	r.err = errors.New("navigation timeout")
	_, err = g.Search(context.Background(), "x")
	assert.True(t, errs.IsType(err, errs.ErrorTypeSearch))
}

func searxngServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearxngProviderSearch(t *testing.T) {
	var gotAuth, gotFormat, gotCategory string
	srv := searxngServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFormat = r.URL.Query().Get("format")
		gotCategory = r.URL.Query().Get("categories")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"url": "https://a.example.org/page", "img_src": "https://a.example.org/i.jpg"},
				{"url": "", "img_src": "https://b.example.org/i.jpg"},
				{"url": "https://c.example.org/page"},
			},
		})
	})

	p, err := NewSearxngProvider(srv.URL+"/", "sekret", "picharvest-test", logger.NewNopLogger())
	require.NoError(t, err)
	p = p.WithHTTPClient(srv.Client())

	urls, err := p.Search(context.Background(), "ada lovelace")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.org/page", "https://c.example.org/page"}, urls)
	assert.Equal(t, "Bearer sekret", gotAuth)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "images", gotCategory)
}

func TestSearxngProviderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := searxngServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"url":"https://a.example.org/"}]}`))
	})

	p, err := NewSearxngProvider(srv.URL, "", "", logger.NewNopLogger())
	require.NoError(t, err)
	p.WithRetry(3, time.Millisecond)

	urls, err := p.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearxngProviderDoesNotRetryForbidden(t *testing.T) {
	var calls int32
	srv := searxngServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	})

	p, err := NewSearxngProvider(srv.URL, "", "", logger.NewNopLogger())
	require.NoError(t, err)
	p.WithRetry(3, time.Millisecond)

	_, err = p.Search(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeSearch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewSearxngProviderRejectsBadURL(t *testing.T) {
	_, err := NewSearxngProvider("not a url", "", "", nil)
	assert.Error(t, err)
}

func TestFilterReferrers(t *testing.T) {
	got := FilterReferrers([]string{
		"https://news.example.org/story#top",
		"https://news.example.org/story",
		"https://www.google.com/imgres",
		"https://m.youtube.com/watch?v=1",
		"https://instagram.com/p/1",
		"https://static.wikia.nocookie.net/a.jpg",
		"ftp://files.example.org/",
		"not a url",
		"https://notgoogle.example.org/",
		"http://fans.example.net/",
	}, config.DefaultSkipDomains)

	assert.Equal(t, []string{
		"https://news.example.org/story",
		"https://notgoogle.example.org/",
		"http://fans.example.net/",
	}, got)
}

type countingProvider struct{ calls int }

func (c *countingProvider) Name() string { return "counting" }
func (c *countingProvider) Search(context.Context, string) ([]string, error) {
	c.calls++
	return []string{"https://a.example.org/"}, nil
}

func TestRateLimitedWaitsForSlot(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimited(inner, ratelimit.NewSlidingWindow(1, time.Hour), logger.NewNopLogger())

	_, err := p.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Search(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", p.Name())
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig().Search

	p, err := New(cfg, &fakeRenderer{}, "", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())

	_, err = New(cfg, nil, "", logger.NewNopLogger())
	assert.Error(t, err)

	cfg.Provider = "searxng"
	cfg.SearxngURL = "https://searx.example.org"
	p, err = New(cfg, nil, "", logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "searxng", p.Name())

	cfg.Provider = "bing"
	_, err = New(cfg, nil, "", logger.NewNopLogger())
	assert.Error(t, err)
}
