package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"picharvest/pkg/config"
	errs "picharvest/pkg/errors"
	"picharvest/pkg/logger"
	"picharvest/pkg/retry"
)

const maxRedirects = 5

// Client downloads image bytes. Each attempt carries its own timeout;
// transport failures and retryable statuses are tried again.
type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	maxBytes  int64
	retrier   *retry.Retrier
	logger    logger.Logger
}

// NewClient builds a Client from the download settings
func NewClient(cfg config.DownloadConfig, userAgent string, l logger.Logger) *Client {
	if l == nil {
		l = logger.GetLogger()
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		http: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		retrier:   retry.NewHTTPRetrier(attempts, cfg.RetryDelay, l),
		logger:    l,
	}
}

// Fetch returns the body of imageURL
func (c *Client) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	var data []byte
	err := c.retrier.WithContext(ctx).Do(func() error {
		var err error
		data, err = c.fetchOnce(ctx, imageURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) fetchOnce(ctx context.Context, imageURL string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errs.NewValidation("bad image url", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,image/*;q=0.8,*/*;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.NewNetwork("image request timed out", 0, err)
		}
		return nil, errs.NewNetwork("image request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewNetwork(fmt.Sprintf("unexpected status %s", resp.Status), resp.StatusCode, nil)
	}

	if ct := resp.Header.Get("Content-Type"); !acceptableContentType(ct) {
		return nil, errs.NewValidation("not an image: "+ct, nil)
	}

	limit := c.maxBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, errs.NewNetwork("reading image body", 0, err)
	}
	if int64(len(data)) > limit {
		return nil, errs.NewValidation(fmt.Sprintf("image larger than %d bytes", limit), nil)
	}
	return data, nil
}

// acceptableContentType lets through image types and the generic types
// some CDNs send for images; the decoder has the final word.
func acceptableContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	mt = strings.ToLower(mt)
	return strings.HasPrefix(mt, "image/") ||
		mt == "application/octet-stream" ||
		mt == "binary/octet-stream"
}
