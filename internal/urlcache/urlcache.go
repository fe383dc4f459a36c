// Package urlcache implements spec §4.2: on-demand download of
// http(s)-valued data-node paths to a deterministic local cache file, so
// a pipeline step never sees a URL, only a filesystem path.
//
// No teacher or pack file implements this; it's new domain surface built
// around the pack's house HTTP client (go-resty/resty/v2, as dagu's
// go.mod lists it) rather than raw net/http, for its timeout/redirect
// handling and its SetOutput streaming-to-file convenience.
package urlcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrDownload wraps any failure to populate the cache from the network.
var ErrDownload = errors.New("url cache: download failed")

// DefaultDirName is the cache directory name created beside a pipeline
// file, unless a caller overrides it.
const DefaultDirName = ".loom-url-cache"

// Cache downloads and memoizes URL-valued data-node content under dir.
type Cache struct {
	dir    string
	client *resty.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-URL lock, so concurrent fetches of the same URL serialize instead of racing on the temp file
}

// New creates (if needed) dir and returns a Cache backed by it.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("url cache: create dir %s: %w", dir, err)
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &Cache{dir: dir, client: client, locks: map[string]*sync.Mutex{}}, nil
}

// Fetch returns the local path of url's cached content. If the file is
// already cached and force is false, no network request is made.
// Otherwise the body streams to a temp file which is renamed into place
// on success — the rename makes a concurrent reader either see the old
// cache miss or the fully-written new file, never a partial one.
func (c *Cache) Fetch(url string, force bool) (string, error) {
	dest := filepath.Join(c.dir, cacheKey(url))

	lock := c.lockFor(url)
	lock.Lock()
	defer lock.Unlock()

	if !force {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}

	tmp := fmt.Sprintf("%s.tmp-%d", dest, time.Now().UnixNano())
	resp, err := c.client.R().SetOutput(tmp).Get(url)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}
	if resp.IsError() {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: status %d", ErrDownload, url, resp.StatusCode())
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}
	return dest, nil
}

func (c *Cache) lockFor(url string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[url]
	if !ok {
		l = &sync.Mutex{}
		c.locks[url] = l
	}
	return l
}

// cacheKey derives a stable filename from url: the first 16 hex
// characters of its sha256 digest, prefixed onto the URL's base name so
// cached files stay recognizable in a directory listing.
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	hash := hex.EncodeToString(sum[:])[:16]

	base := url
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	if base == "" {
		base = "download"
	}
	return hash + "_" + base
}
