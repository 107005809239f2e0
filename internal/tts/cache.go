package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

const (
	// memCacheSize bounds the in-memory tier. Coaching lines repeat a lot
	// within a session ("brake earlier", "more throttle"), so a small LRU
	// absorbs most of the synthesis traffic.
	memCacheSize = 128
	memCacheTTL  = time.Hour
)

// Cache is a thread-safe two-tier store (in-memory LRU + filesystem) for
// synthesized audio. The cache key is sha256(voice + ":" + text) so a
// voice change automatically causes misses until the voice is switched
// back.
//
// Disk behaviour is controlled by diskWrite:
//
//	diskWrite=true  -> reads from mem, then disk; writes to both.
//	diskWrite=false -> reads from mem, then disk; writes to mem only.
//
// The on-disk tier is always consulted, even when writes are disabled,
// giving the user a warm start from previous runs.
type Cache struct {
	mem       *expirable.LRU[string, []byte]
	log       *logger.Logger
	voice     string // included in every cache key
	cacheDir  string // filesystem cache directory (empty = no disk layer)
	diskWrite bool

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewCache creates an audio cache.
//
//   - voice:     the TTS voice ID baked into every cache key.
//   - cacheDir:  path to the on-disk cache directory. If empty, the disk
//     layer is disabled entirely (pure in-memory).
//   - diskWrite: when true, new entries are written to cacheDir. When
//     false, existing files are still read but nothing new is persisted.
func NewCache(voice, cacheDir string, diskWrite bool, log *logger.Logger) *Cache {
	c := &Cache{
		mem:       expirable.NewLRU[string, []byte](memCacheSize, nil, memCacheTTL),
		log:       log,
		voice:     voice,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}

	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("tts cache: failed to create cache dir %s: %v", cacheDir, err)
		}
	}

	return c
}

// Get returns cached audio for the given text and true, or nil and false.
// The in-memory tier is checked first, then the disk tier.
func (c *Cache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	if data, ok := c.mem.Get(key); ok {
		c.count(true)
		c.log.Debug("tts cache hit (mem): %s (%d bytes)", truncateForLog(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if data, ok := c.readDisk(key); ok {
			// Promote to memory for faster subsequent hits.
			c.mem.Add(key, data)
			c.count(true)
			c.log.Debug("tts cache hit (disk): %s (%d bytes)", truncateForLog(text, 40), len(data))
			return data, true
		}
	}

	c.count(false)
	return nil, false
}

// Put stores audio for the given text. Always writes to memory; writes to
// disk only when diskWrite is enabled.
func (c *Cache) Put(text string, audio []byte) {
	key := c.hashKey(text)
	c.mem.Add(key, audio)
	c.log.Debug("tts cache store (mem): %s (%d bytes, %d entries)",
		truncateForLog(text, 40), len(audio), c.mem.Len())

	if c.cacheDir != "" && c.diskWrite {
		c.writeDisk(key, audio)
	}
}

// Has reports whether audio for the text is cached in either tier.
func (c *Cache) Has(text string) bool {
	key := c.hashKey(text)
	if c.mem.Contains(key) {
		return true
	}
	if c.cacheDir != "" {
		_, err := os.Stat(c.diskPath(key))
		return err == nil
	}
	return false
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear empties the in-memory tier. The disk tier is NOT cleared.
func (c *Cache) Clear() {
	c.mem.Purge()
	c.mu.Lock()
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
	c.log.Debug("tts cache cleared (mem)")
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// hashKey returns a hex-encoded SHA-256 of voice + ":" + text.
func (c *Cache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".mp3")
}

func (c *Cache) readDisk(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cache) writeDisk(key string, audio []byte) {
	path := c.diskPath(key)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		c.log.Error("tts cache: disk write failed for %s: %v", path, err)
	} else {
		c.log.Debug("tts cache store (disk): %s (%d bytes)", key[:12], len(audio))
	}
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
