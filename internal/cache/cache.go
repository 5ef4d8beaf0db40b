// Package cache is a small file cache for slow-moving API responses such as
// agent and canned-message lists.
//
// Each key maps to one JSON file scoped by resource, server URL, and agent,
// so profiles never see each other's data. Entries expire after DefaultTTL.
// Set BRANCH_NO_CACHE=1 to bypass entirely.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = 5 * time.Minute

// serverHashLen is the hex length of the base-URL hash in filenames.
const serverHashLen = 12

type envelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Items    json.RawMessage `json:"items"`
}

// Store reads and writes one cache file.
type Store struct {
	path string
	ttl  time.Duration
}

// NewStore returns a Store for key scoped to baseURL and agentID, using
// DefaultTTL. dir usually comes from DefaultDir.
func NewStore(dir, key, baseURL string, agentID int) *Store {
	return NewStoreWithTTL(dir, key, baseURL, agentID, DefaultTTL)
}

// NewStoreWithTTL is NewStore with an explicit TTL.
func NewStoreWithTTL(dir, key, baseURL string, agentID int, ttl time.Duration) *Store {
	return &Store{
		path: filepath.Join(dir, cacheFilename(key, baseURL, agentID)),
		ttl:  ttl,
	}
}

func cacheFilename(key, baseURL string, agentID int) string {
	sum := sha1.Sum([]byte(baseURL))
	return fmt.Sprintf("%s_%s_%d.json", sanitizeKey(key), hex.EncodeToString(sum[:serverHashLen/2]), agentID)
}

// Get unmarshals the cached value into dst and reports whether it was a
// fresh hit. Any failure (missing file, bad JSON, expired, disabled) is a
// miss; the caller falls through to the API.
func (s *Store) Get(dst any) bool {
	if disabled() {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	if time.Since(env.CachedAt) > s.ttl {
		return false
	}
	return json.Unmarshal(env.Items, dst) == nil
}

// Put stores items. Errors are swallowed: the cache is best-effort and must
// never fail a command.
func (s *Store) Put(items any) {
	if disabled() {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	data, err := json.Marshal(envelope{CachedAt: time.Now(), Items: raw})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}

	// Write-then-rename so readers never observe a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return
	}
	_ = os.Rename(tmp, s.path)
}

// Clear deletes this store's file.
func (s *Store) Clear() {
	_ = os.Remove(s.path)
}

// ClearAll deletes every file in dir matching the cache filename scheme.
// Files that don't match are left alone in case the directory is shared.
func ClearAll(dir string) {
	listing, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, f := range listing {
		if !f.IsDir() && isCacheFilename(f.Name()) {
			_ = os.Remove(filepath.Join(dir, f.Name()))
		}
	}
}

// DefaultDir returns "$XDG_CACHE_HOME/branch-cli" or the platform equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "branch-cli"), nil
}

func disabled() bool {
	return os.Getenv("BRANCH_NO_CACHE") != ""
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-")
	return replacer.Replace(key)
}

// isCacheFilename matches "<key>_<hash>_<agent>.json" as produced by
// cacheFilename.
func isCacheFilename(name string) bool {
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return false
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] == "" {
		return false
	}
	if len(parts[1]) != serverHashLen {
		return false
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return false
	}
	_, err := strconv.Atoi(parts[2])
	return err == nil
}
