package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// CacheEntry is what the agent remembers about one uploaded file. The cheap
// (mtime, size) pair filters most events; the hash catches touch-without-edit.
type CacheEntry struct {
	MTimeUnixNano int64  `json:"mtime_unix_nano"`
	Size          int64  `json:"size"`
	SHA256        string `json:"sha256"`
}

// DedupCache is the on-device upload dedup cache, keyed by absolute path.
// It survives agent restarts so a reboot does not re-upload the whole tree.
type DedupCache struct {
	db *badger.DB
}

// OpenDedupCache opens (or creates) the cache under dir.
func OpenDedupCache(dir string) (*DedupCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening dedup cache: %w", err)
	}
	return &DedupCache{db: db}, nil
}

// Close releases the underlying database.
func (c *DedupCache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached entry for path, or found=false.
func (c *DedupCache) Lookup(path string) (entry CacheEntry, found bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("corrupt cache entry for %s: %w", path, err)
			}
			found = true
			return nil
		})
	})
	return entry, found, err
}

// Remember stores the entry for path.
func (c *DedupCache) Remember(path string, entry CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), data)
	})
}

// Forget drops the entry for path. Missing keys are not an error.
func (c *DedupCache) Forget(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
}

// Changed decides whether the file content behind path needs uploading.
//
// The (mtime, size) pair short-circuits without reading the file. When it
// differs the content hash arbitrates: editors and sync tools rewrite files
// without changing bytes, and those must not burn server quota.
func (c *DedupCache) Changed(path string, mtime time.Time, size int64, content []byte) (bool, error) {
	cached, found, err := c.Lookup(path)
	if err != nil {
		return false, err
	}
	if found && cached.MTimeUnixNano == mtime.UnixNano() && cached.Size == size {
		return false, nil
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	entry := CacheEntry{
		MTimeUnixNano: mtime.UnixNano(),
		Size:          size,
		SHA256:        hash,
	}
	if err := c.Remember(path, entry); err != nil {
		return false, err
	}

	if found && cached.SHA256 == hash {
		return false, nil
	}
	return true, nil
}
