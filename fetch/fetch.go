// Package fetch downloads upstream source archives and translation exports.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRetries = 3
	defaultChunks  = 8
	userAgent      = "tweekit/1.0"
)

// Client fetches files over HTTP with bounded retries.
type Client struct {
	HTTP *http.Client
	// Retries is the number of attempts per request (default 3).
	Retries int
	// Chunks is the number of byte ranges fetched concurrently (default 8).
	Chunks int
	// Backoff is the pause between attempts.
	Backoff time.Duration
	// Progress receives a progress bar when set.
	Progress io.Writer
}

// NewClient returns a Client with a 60 second request timeout.
func NewClient() *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Retries: defaultRetries,
		Chunks:  defaultChunks,
		Backoff: time.Second,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// retry calls fn until it succeeds, ctx is done, or the attempts run out.
func (c *Client) retry(ctx context.Context, what string, fn func() error) error {
	attempts := c.Retries
	if attempts <= 0 {
		attempts = defaultRetries
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && c.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", what, attempts, err)
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range header {
		req.Header[k] = v
	}
	return c.httpClient().Do(req)
}

// LatestVersion reads the version tag published at url.
func (c *Client) LatestVersion(ctx context.Context, url string) (string, error) {
	var version string
	err := c.retry(ctx, url, func() error {
		resp, err := c.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		version = strings.TrimSpace(string(body))
		return nil
	})
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", fmt.Errorf("%s: empty version", url)
	}
	return version, nil
}

// contentLength asks the server for the size of url.
func (c *Client) contentLength(ctx context.Context, url string) (int64, error) {
	var size int64
	err := c.retry(ctx, url, func() error {
		resp, err := c.do(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		if resp.ContentLength <= 0 {
			return fmt.Errorf("server did not report a content length")
		}
		size = resp.ContentLength
		return nil
	})
	return size, err
}

// Range is an inclusive byte range.
type Range struct {
	Start, End int64
}

// SplitRanges divides size bytes into at most n contiguous ranges.
func SplitRanges(size int64, n int) []Range {
	if size <= 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if int64(n) > size {
		n = int(size)
	}
	step := size / int64(n)
	ranges := make([]Range, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * step
		end := start + step - 1
		if i == n-1 {
			end = size - 1
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// Download fetches url into dest using concurrent ranged requests. dest is
// only complete when Download returns nil.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	size, err := c.contentLength(ctx, url)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if c.Progress != nil {
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionSetWriter(c.Progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
		)
		defer bar.Finish()
	}

	chunks := c.Chunks
	if chunks <= 0 {
		chunks = defaultChunks
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range SplitRanges(size, chunks) {
		g.Go(func() error {
			what := fmt.Sprintf("%s [%d-%d]", url, r.Start, r.End)
			return c.retry(gctx, what, func() error {
				data, err := c.fetchRange(gctx, url, r)
				if err != nil {
					return err
				}
				if _, err := f.WriteAt(data, r.Start); err != nil {
					return err
				}
				if bar != nil {
					bar.Add(len(data))
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return f.Close()
}

func (c *Client) fetchRange(ctx context.Context, url string, r Range) ([]byte, error) {
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.Start, r.End))
	resp, err := c.do(ctx, http.MethodGet, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("range request returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if want := r.End - r.Start + 1; int64(len(data)) != want {
		return nil, fmt.Errorf("short range: got %d of %d bytes", len(data), want)
	}
	return data, nil
}
