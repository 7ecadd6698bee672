package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSplitRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size int64
		n    int
		want []Range
	}{
		{10, 3, []Range{{0, 2}, {3, 5}, {6, 9}}},
		{2, 8, []Range{{0, 0}, {1, 1}}},
		{5, 0, []Range{{0, 4}}},
		{0, 4, nil},
	}
	for _, tc := range tests {
		if got := SplitRanges(tc.size, tc.n); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitRanges(%d, %d) = %v, want %v", tc.size, tc.n, got, tc.want)
		}
	}
}

func TestLatestVersion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0.4.1.7\n"))
	}))
	defer srv.Close()

	got, err := (&Client{}).LatestVersion(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0.4.1.7" {
		t.Fatalf("LatestVersion = %q", got)
	}
}

func serveContent(data []byte, failures *int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && atomic.AddInt64(failures, -1) >= 0 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		http.ServeContent(w, r, "repo.zip", time.Time{}, bytes.NewReader(data))
	})
}

func TestDownloadRangesWithRetry(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("0123456789abcdef", 1000))
	failures := int64(2)
	srv := httptest.NewServer(serveContent(data, &failures))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "tmp", "repo.zip")
	c := &Client{Retries: 3, Chunks: 4}
	if err := c.Download(context.Background(), srv.URL, dest); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("downloaded %d bytes, content differs", len(got))
	}
}

func TestDownloadGivesUp(t *testing.T) {
	t.Parallel()

	failures := int64(1 << 20)
	srv := httptest.NewServer(serveContent([]byte("payload"), &failures))
	defer srv.Close()

	c := &Client{Retries: 2, Chunks: 1}
	err := c.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.zip"))
	if err == nil || !strings.Contains(err.Error(), "giving up after 2 attempts") {
		t.Fatalf("err = %v, want exhausted retries", err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestUnzip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "export.zip")
	writeZip(t, archive, map[string]string{
		"utf8/town/school.csv": "1|,Hello,你好\r\n",
		"utf8/js/setup.js.csv": "1|,a\r\n",
	})

	dest := filepath.Join(tmp, "out")
	n, err := Unzip(archive, dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("Unzip wrote %d files, want 2", n)
	}
	got, err := os.ReadFile(filepath.Join(dest, "utf8", "town", "school.csv"))
	if err != nil || string(got) != "1|,Hello,你好\r\n" {
		t.Fatalf("school.csv = %q, %v", got, err)
	}
}

func TestUnzipRejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	writeZip(t, archive, map[string]string{"../evil.txt": "x"})

	if _, err := Unzip(archive, filepath.Join(tmp, "out")); err == nil {
		t.Fatal("expected error for path outside destination")
	}
	if _, err := os.Stat(filepath.Join(tmp, "evil.txt")); err == nil {
		t.Fatal("escaping entry was written")
	}
}

func TestPlatform(t *testing.T) {
	t.Parallel()

	var triggered int64
	mux := http.NewServeMux()
	mux.HandleFunc("/projects/4780/artifacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Authorization") != "secret" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		atomic.AddInt64(&triggered, 1)
	})
	mux.HandleFunc("/projects/4780/artifacts/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "secret" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		http.Redirect(w, r, "/files/export.zip", http.StatusFound)
	})
	mux.HandleFunc("/files/export.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &Platform{Client: &Client{}, BaseURL: srv.URL, ProjectID: 4780, Token: "secret"}
	if err := p.TriggerExport(context.Background()); err != nil {
		t.Fatal(err)
	}
	if triggered != 1 {
		t.Fatalf("triggered = %d, want 1", triggered)
	}

	dest := filepath.Join(t.TempDir(), "paratranz.zip")
	if err := p.DownloadExport(context.Background(), dest); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(dest); string(got) != "PK" {
		t.Fatalf("export = %q", got)
	}

	bad := &Platform{Client: &Client{Retries: 1}, BaseURL: srv.URL, ProjectID: 4780, Token: "wrong"}
	if err := bad.TriggerExport(context.Background()); err == nil {
		t.Fatal("expected error with wrong token")
	}
	if err := (&Platform{}).DownloadExport(context.Background(), dest); err == nil {
		t.Fatal("expected error without token")
	}
}
