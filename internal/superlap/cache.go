package superlap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// cacheSuffix is appended to superlap ids to form cache filenames.
const cacheSuffix = ".msgpack.zst"

// Compile-time interface check.
var _ domain.SuperlapSource = (*CachedSource)(nil)

// CachedOption configures the caching source.
type CachedOption func(*CachedSource)

// WithCacheMaxAge sets how old a cached lap may be and still serve as a
// fallback when the inner source fails.
func WithCacheMaxAge(d time.Duration) CachedOption {
	return func(c *CachedSource) {
		c.maxAge = d
	}
}

// CachedSource wraps another superlap source with an on-disk cache:
// successful fetches are stored, and a stored lap serves as fallback when
// the inner source fails. Cache files are msgpack encoded and zstd
// compressed, one file per superlap id.
type CachedSource struct {
	inner  domain.SuperlapSource
	dir    string
	maxAge time.Duration
	log    *logger.Logger
}

// NewCachedSource creates a caching wrapper storing lap files under dir.
func NewCachedSource(inner domain.SuperlapSource, dir string, log *logger.Logger, opts ...CachedOption) *CachedSource {
	c := &CachedSource{
		inner:  inner,
		dir:    dir,
		maxAge: 30 * 24 * time.Hour,
		log:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch tries the inner source first and falls back to the disk cache when
// it fails. Fresh fetches are stored best-effort; a store failure never
// fails the fetch.
func (c *CachedSource) Fetch(ctx context.Context, superlapID string) ([]domain.SuperlapPoint, string, error) {
	points, msg, err := c.inner.Fetch(ctx, superlapID)
	if err == nil {
		if serr := c.store(superlapID, points); serr != nil {
			c.log.Warn("superlap cache store failed for %s: %v", superlapID, serr)
		}
		return points, msg, nil
	}

	cached, age, cerr := c.retrieve(superlapID)
	if cerr != nil || len(cached) == 0 {
		return nil, msg, err
	}
	if age > c.maxAge {
		c.log.Debug("superlap cache for %s too old (%s), ignoring", superlapID, age)
		return nil, msg, err
	}

	c.log.Info("superlap source failed (%v), serving %s from cache (age %s)", err, superlapID, age.Round(time.Minute))
	return cached, fmt.Sprintf("retrieved %d telemetry points (cached)", len(cached)), nil
}

// store writes the points for a superlap to the cache directory.
func (c *CachedSource) store(superlapID string, points []domain.SuperlapPoint) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(c.cachePath(superlapID))
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}

	if err := msgpack.NewEncoder(zw).Encode(points); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// retrieve reads a cached superlap and reports its age.
func (c *CachedSource) retrieve(superlapID string) ([]domain.SuperlapPoint, time.Duration, error) {
	f, err := os.Open(c.cachePath(superlapID))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, 0, err
	}
	defer zr.Close()

	var points []domain.SuperlapPoint
	if err := msgpack.NewDecoder(zr).Decode(&points); err != nil {
		return nil, 0, err
	}
	return points, time.Since(fi.ModTime()), nil
}

// Cull removes cached laps, oldest first, until the cache directory is
// under maxBytes.
func (c *CachedSource) Cull(maxBytes int64) error {
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil // nothing to cull
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var totalSize int64

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(path, cacheSuffix) {
			files = append(files, fileInfo{path: path, size: info.Size(), modTime: info.ModTime()})
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortFunc(files, func(a, b fileInfo) int {
		return a.modTime.Compare(b.modTime)
	})

	for len(files) > 0 && totalSize > maxBytes {
		f := files[0]
		if err := os.Remove(f.path); err == nil {
			c.log.Debug("culled superlap cache file %s (%d bytes)", filepath.Base(f.path), f.size)
			totalSize -= f.size
		}
		files = files[1:]
	}
	return nil
}

func (c *CachedSource) cachePath(superlapID string) string {
	// Keep ids filesystem-safe; uuids pass through unchanged.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, superlapID)
	return filepath.Join(c.dir, safe+cacheSuffix)
}
