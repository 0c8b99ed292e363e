package db

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dgraph-io/ristretto"
)

// ReportCache memoizes parsed snapshot files. Entries are keyed by path and
// modification time, so a file rewritten by a later run is reloaded.
type ReportCache struct {
	cache *ristretto.Cache
}

func NewReportCache() (*ReportCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     1000,
		BufferItems: 64, // number of keys per Get buffer
		// Each entry costs 1, so MaxCost is an entry count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize report cache: %w", err)
	}
	return &ReportCache{cache: cache}, nil
}

// Load returns the cached value for path or calls load and caches its result.
// Errors are never cached.
func (c *ReportCache) Load(path string, load func() (any, error)) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return load()
		}
		return nil, err
	}

	key := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v, 1)
	c.cache.Wait()
	return v, nil
}

func (c *ReportCache) Clear() {
	c.cache.Clear()
}

func (c *ReportCache) Close() {
	c.cache.Close()
}
