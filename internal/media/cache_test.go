package media

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestKey_StableAndExtension(t *testing.T) {
	a := Key("https://cdn.example.com/img/photo.JPEG?w=200")
	b := Key("https://cdn.example.com/img/photo.JPEG?w=200")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64+len(".jpg"))
	assert.Equal(t, ".jpg", filepath.Ext(a))
	assert.NotEqual(t, a, Key("https://cdn.example.com/img/photo.JPEG?w=400"))
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"https://a.io/x.png":   ".png",
		"https://a.io/x.webp":  ".webp",
		"https://a.io/clip.mp4": ".mp4",
		"https://cdn.bsky.app/img/feed_fullsize/plain/did:plc:abc/bafkrei@jpeg": ".jpg",
		"https://a.io/noext":     "",
		"https://a.io/file.exe":  "",
		"https://a.io/x@y/z.gif": ".gif",
	}
	for in, want := range tests {
		assert.Equal(t, want, Extension(in), in)
	}
}

func TestCache_DownloadsOnceThenHits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := New(Config{Dir: dir, PublicPrefix: "/media/"}, testLogger())
	remote := srv.URL + "/a.png"

	ref := cache.Cache(context.Background(), remote)
	again := cache.Cache(context.Background(), remote)

	assert.Equal(t, "/media/"+Key(remote), ref)
	assert.Equal(t, ref, again)
	assert.Equal(t, int32(1), hits.Load())

	data, err := os.ReadFile(filepath.Join(dir, Key(remote)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestCache_FallsBackOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	cache := New(Config{Dir: dir, PublicPrefix: "/media"}, testLogger())
	remote := srv.URL + "/missing.jpg"

	assert.Equal(t, remote, cache.Cache(context.Background(), remote))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCache_FallsBackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cache := New(Config{Dir: t.TempDir(), Timeout: 20 * time.Millisecond}, testLogger())
	remote := srv.URL + "/slow.jpg"

	assert.Equal(t, remote, cache.Cache(context.Background(), remote))
}

func TestCache_FallsBackOnOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	cache := New(Config{Dir: t.TempDir(), MaxBytes: 16}, testLogger())
	remote := srv.URL + "/big.jpg"

	assert.Equal(t, remote, cache.Cache(context.Background(), remote))
}

func TestCache_DisabledAndNonHTTP(t *testing.T) {
	disabled := New(Config{}, testLogger())
	assert.Equal(t, "https://a.io/x.png", disabled.Cache(context.Background(), "https://a.io/x.png"))

	enabled := New(Config{Dir: t.TempDir()}, testLogger())
	assert.Equal(t, "data:image/png;base64,AA==", enabled.Cache(context.Background(), "data:image/png;base64,AA=="))
}

func TestCache_ConcurrentSameURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("same"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := New(Config{Dir: dir, PublicPrefix: "/media"}, testLogger())
	remote := srv.URL + "/c.gif"

	var wg sync.WaitGroup
	refs := make([]string, 8)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i] = cache.Cache(context.Background(), remote)
		}(i)
	}
	wg.Wait()

	for _, ref := range refs {
		assert.Equal(t, "/media/"+Key(remote), ref)
	}
	data, err := os.ReadFile(filepath.Join(dir, Key(remote)))
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))
}
