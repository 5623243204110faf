// Package poster downloads movie poster images to local disk. Failures here
// are non-fatal to the run: a record is simply written without a local path.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Downloader errors.
var (
	ErrNoPosterURL         = errors.New("no poster URL")
	ErrUnexpectedImageType = errors.New("response is not an image")
)

// maxPosterBytes bounds how large a poster download may be.
const maxPosterBytes = 10 << 20

// Downloader saves posters under <baseDir>/<YYYY_MM>/. Filenames derive from
// the movie title; a collision within a run gets a stable numeric suffix in
// first-use order, so repeated runs over the same listing produce the same
// paths.
type Downloader struct {
	client  *http.Client
	baseDir string
	now     func() time.Time

	mu   sync.Mutex
	used map[string]int
}

// NewDownloader creates a downloader writing under baseDir.
func NewDownloader(baseDir string, timeout time.Duration) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		baseDir: baseDir,
		now:     time.Now,
		used:    make(map[string]int),
	}
}

// Download fetches the poster and writes it to disk, returning the local path.
func (d *Downloader) Download(ctx context.Context, title, posterURL string) (string, error) {
	if posterURL == "" {
		return "", ErrNoPosterURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poster download returned status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnexpectedImageType, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read poster body: %w", err)
	}

	dir := filepath.Join(d.baseDir, d.now().Format("2006_01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create poster directory: %w", err)
	}

	fullPath := filepath.Join(dir, d.filename(title, posterURL))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write poster file: %w", err)
	}

	return fullPath, nil
}

// filename derives a deterministic name from the movie title plus the URL's
// extension. Two titles mapping to the same slug are disambiguated with a
// suffix counting up from 2.
func (d *Downloader) filename(title, posterURL string) string {
	stem := slugify(title)
	if stem == "" {
		stem = "poster"
	}

	ext := extensionOf(posterURL)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.used[stem]++
	if n := d.used[stem]; n > 1 {
		return fmt.Sprintf("%s-%d%s", stem, n, ext)
	}

	return stem + ext
}

// slugify reduces a title to lowercase ASCII words joined by dashes.
func slugify(title string) string {
	var b strings.Builder

	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	return strings.Trim(b.String(), "-")
}

func extensionOf(posterURL string) string {
	u, err := url.Parse(posterURL)
	if err != nil {
		return ".jpg"
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}

	return ".jpg"
}
