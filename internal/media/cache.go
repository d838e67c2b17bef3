// Package media caches remote images and videos on local disk, addressed by
// a hash of their URL.
package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

var knownExtensions = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".png":  ".png",
	".gif":  ".gif",
	".webp": ".webp",
	".avif": ".avif",
	".svg":  ".svg",
	".mp4":  ".mp4",
	".webm": ".webm",
}

type Config struct {
	Dir          string
	PublicPrefix string
	Timeout      time.Duration
	MaxBytes     int64
	UserAgent    string
}

// Cache downloads each distinct URL at most once. A zero Dir disables it.
type Cache struct {
	dir          string
	publicPrefix string
	maxBytes     int64
	userAgent    string
	httpClient   *http.Client
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Cache {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 25 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "TimelineSync/1.0"
	}
	return &Cache{
		dir:          cfg.Dir,
		publicPrefix: strings.TrimRight(cfg.PublicPrefix, "/"),
		maxBytes:     cfg.MaxBytes,
		userAgent:    cfg.UserAgent,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger.With("component", "media"),
	}
}

// Key is the file name a URL is cached under: the BLAKE3 digest of the URL
// string plus an extension sniffed from it.
func Key(remoteURL string) string {
	sum := blake3.Sum256([]byte(remoteURL))
	return hex.EncodeToString(sum[:]) + Extension(remoteURL)
}

// Extension guesses a file extension from the URL path. Bluesky CDN URLs end
// in "@jpeg" instead of a dotted suffix.
func Extension(remoteURL string) string {
	p := remoteURL
	if u, err := url.Parse(remoteURL); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)

	if at := strings.LastIndex(p, "@"); at >= 0 && at > strings.LastIndex(p, "/") {
		if ext, ok := knownExtensions["."+p[at+1:]]; ok {
			return ext
		}
	}
	if ext, ok := knownExtensions[path.Ext(p)]; ok {
		return ext
	}
	return ""
}

// Cache returns the local reference for remoteURL, downloading it on first
// use. Any failure yields remoteURL unchanged.
func (c *Cache) Cache(ctx context.Context, remoteURL string) string {
	if c.dir == "" || !isHTTP(remoteURL) {
		return remoteURL
	}

	key := Key(remoteURL)
	target := filepath.Join(c.dir, key)
	ref := c.publicPrefix + "/" + key

	if _, err := os.Stat(target); err == nil {
		return ref
	}

	if err := c.download(ctx, remoteURL, target); err != nil {
		c.logger.Warn("media download failed, keeping remote url",
			"url", remoteURL,
			"error", err,
		)
		return remoteURL
	}

	c.logger.Debug("cached media", "url", remoteURL, "key", key)
	return ref
}

func (c *Cache) download(ctx context.Context, remoteURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, c.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if n > c.maxBytes {
		return fmt.Errorf("body exceeds %d bytes", c.maxBytes)
	}

	// Concurrent downloads of the same URL write identical bytes; the last
	// rename wins.
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

func isHTTP(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
