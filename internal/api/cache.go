package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
)

// Cache stores GET response bodies by ETag for conditional requests.
type Cache struct {
	dir string
}

type cacheEntry struct {
	ETag string          `json:"etag"`
	Body json.RawMessage `json:"body"`
}

// NewCache creates a cache rooted at dir. An empty dir disables caching.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives a cache key from the request URL, backend origin and token,
// so cached bodies never cross identities.
func (c *Cache) Key(url, origin, token string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + origin + "\x00" + token))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, "http", key+".json")
}

func (c *Cache) load(key string) *cacheEntry {
	if c == nil || c.dir == "" {
		return nil
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil
	}
	var e cacheEntry
	if json.Unmarshal(data, &e) != nil {
		return nil
	}
	return &e
}

// GetETag returns the stored ETag for key, or "".
func (c *Cache) GetETag(key string) string {
	if e := c.load(key); e != nil {
		return e.ETag
	}
	return ""
}

// GetBody returns the stored body for key, or nil.
func (c *Cache) GetBody(key string) []byte {
	if e := c.load(key); e != nil {
		return e.Body
	}
	return nil
}

// Set stores body under key.
func (c *Cache) Set(key string, body []byte, etag string) error {
	if c == nil || c.dir == "" {
		return nil
	}
	if !json.Valid(body) {
		return nil
	}
	data, err := json.Marshal(cacheEntry{ETag: etag, Body: body})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path(key)), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path(key)), key+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}
