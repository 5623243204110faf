package poster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func posterServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()

	d := NewDownloader(t.TempDir(), 5*time.Second)
	d.now = fixedClock

	return d
}

func TestDownload_SavesUnderMonthDir(t *testing.T) {
	server := posterServer(t, "image/jpeg", []byte("jpeg-bytes"))
	defer server.Close()

	d := newTestDownloader(t)

	got, err := d.Download(context.Background(), "The Example: Part 2", server.URL+"/posters/ex.jpg")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	want := filepath.Join(d.baseDir, "2024_03", "the-example-part-2.jpg")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("reading saved poster: %v", err)
	}

	if string(data) != "jpeg-bytes" {
		t.Errorf("saved bytes = %q", data)
	}
}

func TestDownload_CollidingTitlesGetSuffix(t *testing.T) {
	server := posterServer(t, "image/png", []byte("png"))
	defer server.Close()

	d := newTestDownloader(t)

	first, err := d.Download(context.Background(), "Dune", server.URL+"/a.png")
	if err != nil {
		t.Fatalf("first download: %v", err)
	}

	second, err := d.Download(context.Background(), "DUNE!", server.URL+"/b.png")
	if err != nil {
		t.Fatalf("second download: %v", err)
	}

	if filepath.Base(first) != "dune.png" {
		t.Errorf("first = %q", filepath.Base(first))
	}

	if filepath.Base(second) != "dune-2.png" {
		t.Errorf("second = %q, want suffix from 2", filepath.Base(second))
	}
}

func TestDownload_EmptyURL(t *testing.T) {
	d := newTestDownloader(t)

	if _, err := d.Download(context.Background(), "X", ""); !errors.Is(err, ErrNoPosterURL) {
		t.Errorf("expected ErrNoPosterURL, got %v", err)
	}
}

func TestDownload_NonImageContentType(t *testing.T) {
	server := posterServer(t, "text/html", []byte("<html>blocked</html>"))
	defer server.Close()

	d := newTestDownloader(t)

	_, err := d.Download(context.Background(), "X", server.URL+"/x.jpg")
	if !errors.Is(err, ErrUnexpectedImageType) {
		t.Errorf("expected ErrUnexpectedImageType, got %v", err)
	}
}

func TestDownload_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := newTestDownloader(t)

	if _, err := d.Download(context.Background(), "X", server.URL+"/gone.jpg"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Example", "the-example"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Fast & Furious 10", "fast-furious-10"},
		{"!!!", ""},
		{"Already-Slugged", "already-slugged"},
	}

	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtensionOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://x.com/p/a.png", ".png"},
		{"https://x.com/p/a.JPG", ".jpg"},
		{"https://x.com/p/a.webp", ".webp"},
		{"https://x.com/p/a.aspx", ".jpg"},
		{"https://x.com/p/noext", ".jpg"},
	}

	for _, tt := range tests {
		if got := extensionOf(tt.in); got != tt.want {
			t.Errorf("extensionOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDownload_EmptySlugFallsBack(t *testing.T) {
	server := posterServer(t, "image/jpeg", []byte("j"))
	defer server.Close()

	d := newTestDownloader(t)

	got, err := d.Download(context.Background(), "!!!", server.URL+"/p.jpg")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if filepath.Base(got) != "poster.jpg" {
		t.Errorf("filename = %q, want poster.jpg", filepath.Base(got))
	}
}
