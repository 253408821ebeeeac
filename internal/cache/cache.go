// Package cache provides process-lifetime caching for loaded tables and
// query results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	TableEntries int
	QuerySizeMB  int
	QueryTTL     time.Duration
}

// Manager manages the table and query caches. Tables are memoized joined
// datasets keyed by (path, file signature, selection); queries are
// serialized response payloads keyed by filter/summary parameters.
type Manager struct {
	tableCache *lru.Cache[string, any]
	queryCache *bigcache.BigCache
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	tableCache, err := lru.New[string, any](cfg.TableEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create table cache: %w", err)
	}

	queryCacheConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.QueryTTL,
		CleanWindow:        cfg.QueryTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       1024 * 1024, // 1MB per serialized result
		HardMaxCacheSize:   cfg.QuerySizeMB,
		Verbose:            false,
	}

	queryCache, err := bigcache.New(context.Background(), queryCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		tableCache: tableCache,
		queryCache: queryCache,
	}, nil
}

// GetTable retrieves a memoized table from cache.
func (m *Manager) GetTable(key string) (any, bool) {
	return m.tableCache.Get(key)
}

// SetTable stores a memoized table in cache.
func (m *Manager) SetTable(key string, table any) {
	m.tableCache.Add(key, table)
}

// GetQuery retrieves a serialized query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	data, err := m.queryCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetQuery stores a serialized query result in cache.
func (m *Manager) SetQuery(key string, data []byte) error {
	return m.queryCache.Set(key, data)
}

// FileSignature returns a modification signature for a file, folded into
// cache keys so a changed file never hits a stale entry. An unreadable
// file yields an empty signature, which callers treat as uncacheable.
func FileSignature(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
}

// TableKey generates a cache key for a loaded table. The selection is
// sorted so column order never splits the cache.
func TableKey(path, sig string, cols []string) string {
	base := fmt.Sprintf("table:%s:%s", path, sig)
	if len(cols) == 0 {
		return base
	}

	sorted := make([]string, len(cols))
	copy(sorted, cols)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	return base + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// SummaryKey generates a cache key for a grouped summary result. Gene
// order is part of the key: the request's gene order is the result's
// display order, so reordered selections never share an entry.
func SummaryKey(dataset, filterHash, groupBy string, genes []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(genes, "\x00")))
	return fmt.Sprintf("summary:%s:%s:%s:%s", dataset, groupBy, filterHash,
		hex.EncodeToString(h.Sum(nil))[:16])
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"table_cache_len": m.tableCache.Len(),
		"query_cache_len": m.queryCache.Len(),
		"query_cache_cap": m.queryCache.Capacity(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.queryCache.Close()
}
