package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blogarchive/pkg/logger"
)

// Entry records one completed image download. LocalPath is the
// storage-root-relative path that gets persisted with the post.
type Entry struct {
	URL          string    `json:"url"`
	LocalPath    string    `json:"local_path"`
	MemberID     int       `json:"member_id"`
	PostID       int       `json:"post_id"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Size         int64     `json:"size"`
}

// Index is the persistent download dedupe index. Entries are keyed by a
// hash of the image URL plus the member and post it was fetched for, so
// the same remote image referenced from two posts is stored as two
// independent, post-scoped entries. The on-disk file is rewritten
// wholesale on Flush with a temp-then-rename swap.
type Index struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	dirty   bool
	logger  logger.Logger
}

// Key derives the cache key for an image URL in its member/post context.
// When no context is known (both ids zero) the key degrades to a hash of
// the URL alone.
func Key(url string, memberID, postID int) string {
	keyed := url
	if memberID != 0 || postID != 0 {
		keyed = fmt.Sprintf("%s|%d|%d", url, memberID, postID)
	}
	sum := sha256.Sum256([]byte(keyed))
	return hex.EncodeToString(sum[:16])
}

// Load reads the index file at path, creating an empty index when the file
// does not exist yet.
func Load(path string, log logger.Logger) (*Index, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	idx := &Index{
		path:    path,
		entries: make(map[string]Entry),
		logger:  log,
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&idx.entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache index %s: %w", path, err)
	}

	log.DebugWithFields("Image cache index loaded", map[string]interface{}{
		"path":    path,
		"entries": len(idx.entries),
	})

	return idx, nil
}

// Lookup returns the cached entry for an image URL in its member/post
// context. Callers verify the stored file still exists before trusting
// the hit; a stale entry is removed with Evict.
func (idx *Index) Lookup(url string, memberID, postID int) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.entries[Key(url, memberID, postID)]
	return entry, ok
}

// Evict drops the entry for an image URL in its member/post context,
// typically because its stored file has gone missing.
func (idx *Index) Evict(url string, memberID, postID int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := Key(url, memberID, postID)
	if _, ok := idx.entries[key]; !ok {
		return
	}
	delete(idx.entries, key)
	idx.dirty = true
	idx.logger.WarnWithFields("Cache entry evicted", map[string]interface{}{
		"url": url,
	})
}

// Record stores a completed download in the index.
func (idx *Index) Record(entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[Key(entry.URL, entry.MemberID, entry.PostID)] = entry
	idx.dirty = true
}

// Len returns the number of cached entries.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// Flush writes the whole index to disk atomically. A clean index is a
// no-op so interrupt handlers can call Flush unconditionally.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.dirty {
		return nil
	}

	if dir := filepath.Dir(idx.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache index directory: %w", err)
		}
	}

	tempPath := idx.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary cache index: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(idx.entries); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode cache index: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync cache index: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cache index: %w", err)
	}

	if err := os.Rename(tempPath, idx.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace cache index: %w", err)
	}

	idx.dirty = false

	idx.logger.DebugWithFields("Image cache index flushed", map[string]interface{}{
		"path":    idx.path,
		"entries": len(idx.entries),
	})

	return nil
}
