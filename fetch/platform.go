package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultPlatformURL is the public API of the translation platform.
const DefaultPlatformURL = "https://paratranz.cn/api"

// Platform talks to the collaborative translation platform that hosts the
// dictionaries.
type Platform struct {
	Client    *Client
	BaseURL   string
	ProjectID int
	Token     string
}

func (p *Platform) url(suffix string) string {
	base := p.BaseURL
	if base == "" {
		base = DefaultPlatformURL
	}
	return fmt.Sprintf("%s/projects/%d/%s", base, p.ProjectID, suffix)
}

func (p *Platform) client() *Client {
	if p.Client != nil {
		return p.Client
	}
	return NewClient()
}

func (p *Platform) header() http.Header {
	h := http.Header{}
	if p.Token != "" {
		h.Set("Authorization", p.Token)
	}
	return h
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// TriggerExport asks the platform to rebuild the export artifact. The
// platform may keep the request open while it works, so a timeout counts
// as accepted.
func (p *Platform) TriggerExport(ctx context.Context) error {
	if p.Token == "" {
		return fmt.Errorf("platform token not set")
	}
	resp, err := p.client().do(ctx, http.MethodPost, p.url("artifacts"), p.header())
	if err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("export trigger returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// DownloadExport saves the latest export artifact to dest.
func (p *Platform) DownloadExport(ctx context.Context, dest string) error {
	if p.Token == "" {
		return fmt.Errorf("platform token not set")
	}
	c := p.client()
	return c.retry(ctx, "export download", func() error {
		resp, err := c.do(ctx, http.MethodGet, p.url("artifacts/download"), p.header())
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("export download returned %d", resp.StatusCode)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
