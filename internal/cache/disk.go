package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketEntries = []byte("entries")
	bucketByFile  = []byte("by_file")
	bucketMeta    = []byte("meta")
)

// DiskEntry is what DiskLayer persists per fingerprint: the opaque cached
// value plus enough metadata to answer stats/list queries without
// deserializing the value itself.
type DiskEntry struct {
	Value             []byte    `json:"value"`
	Method            string    `json:"method"`
	FilePath          string    `json:"file_path"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	SizeBytes         int       `json:"size_bytes"`
	TTL               time.Duration `json:"ttl"`
	WorkspaceRevision string    `json:"workspace_revision"`
	Line              int       `json:"line"`
	Column            int       `json:"column"`
}

// DiskLayer is the persistent, per-workspace disk cache tier: one bbolt
// database with three buckets — entries (fingerprint -> DiskEntry),
// by_file (workspace-relative path -> set of fingerprints touching it,
// for file-scoped invalidation), and meta (small workspace-level facts
// like the last compaction time).
type DiskLayer struct {
	db   *bolt.DB
	path string

	stopSync chan struct{}
}

// DiskLayerConfig tunes DiskLayer's durability/throughput trade-off.
type DiskLayerConfig struct {
	// NoSync relaxes bbolt's per-transaction fsync, trading durability
	// for write latency; SyncInterval then drives an explicit periodic
	// sync instead. Leave false for bbolt's default full durability.
	NoSync       bool
	SyncInterval time.Duration
}

// OpenDiskLayer opens (creating if necessary) the bbolt database at path.
func OpenDiskLayer(path string, cfg DiskLayerConfig) (*DiskLayer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
		NoSync:  cfg.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("open disk layer %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketByFile, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	d := &DiskLayer{db: db, path: path}
	if cfg.NoSync && cfg.SyncInterval > 0 {
		d.stopSync = make(chan struct{})
		go d.periodicSync(cfg.SyncInterval)
	}
	return d, nil
}

func (d *DiskLayer) periodicSync(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.db.Sync()
		case <-d.stopSync:
			return
		}
	}
}

// Get returns the stored DiskEntry for a fingerprint's storage key.
func (d *DiskLayer) Get(key string) (*DiskEntry, bool, error) {
	var entry *DiskEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(key))
		if data == nil {
			return nil
		}
		var e DiskEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, entry != nil, nil
}

// Put stores entry under key, and records key against entry.FilePath in
// by_file. Writes by_file before entries within the same transaction:
// bbolt already commits both atomically, but the ordering documents which
// side a partially-applied write (under a storage engine without single-
// transaction atomicity) would be allowed to lag, tolerating by_file
// holding a fingerprint that entries doesn't have yet.
func (d *DiskLayer) Put(key string, entry DiskEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		if err := addToFileSet(tx, entry.FilePath, key); err != nil {
			return err
		}
		return tx.Bucket(bucketEntries).Put([]byte(key), data)
	})
}

// InvalidateFile removes every entry recorded against filePath in
// by_file, and the file-set entry itself. Removes entries before by_file,
// the mirror image of Put's ordering, so a crash leaves by_file holding
// at most a harmless superset of still-valid fingerprints.
func (d *DiskLayer) InvalidateFile(filePath string) (int, error) {
	removed := 0
	err := d.db.Update(func(tx *bolt.Tx) error {
		keys, err := fileSet(tx, filePath)
		if err != nil {
			return err
		}
		eb := tx.Bucket(bucketEntries)
		for _, k := range keys {
			if eb.Get([]byte(k)) != nil {
				if err := eb.Delete([]byte(k)); err != nil {
					return err
				}
				removed++
			}
		}
		return tx.Bucket(bucketByFile).Delete([]byte(filePath))
	})
	return removed, err
}

// removeKeys deletes a batch of entries keys directly, without touching
// by_file — used by ClearSymbol, which recomputes its own targeted set of
// keys up front rather than going through InvalidateFile's whole-file
// sweep.
func (d *DiskLayer) removeKeys(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		for _, k := range keys {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClearWorkspace removes every entry in the entries and by_file buckets,
// leaving the meta bucket as it is and the database still open.
func (d *DiskLayer) ClearWorkspace() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketByFile} {
			if err := tx.DeleteBucket(bucket); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// IterForStats walks every entry, calling fn with its key and metadata
// (not its value) for aggregate stats and diagnostic listings.
func (d *DiskLayer) IterForStats(fn func(key string, entry DiskEntry) bool) error {
	return d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e DiskEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			if !fn(string(k), e) {
				break
			}
		}
		return nil
	})
}

// Compact rewrites the database into a fresh file via bbolt's Tx.CopyFile,
// then atomically replaces the original, reclaiming space left by deleted
// pages.
func (d *DiskLayer) Compact() error {
	tmp := d.path + ".compact"
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(tmp, 0600)
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, d.path)
}

// Close flushes and closes the underlying database.
func (d *DiskLayer) Close() error {
	if d.stopSync != nil {
		close(d.stopSync)
	}
	return d.db.Close()
}

func addToFileSet(tx *bolt.Tx, filePath, key string) error {
	bucket := tx.Bucket(bucketByFile)
	set, err := decodeFileSet(bucket.Get([]byte(filePath)))
	if err != nil {
		return err
	}
	set[key] = struct{}{}
	data, err := encodeFileSet(set)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(filePath), data)
}

func fileSet(tx *bolt.Tx, filePath string) ([]string, error) {
	set, err := decodeFileSet(tx.Bucket(bucketByFile).Get([]byte(filePath)))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys, nil
}

func decodeFileSet(data []byte) (map[string]struct{}, error) {
	if data == nil {
		return map[string]struct{}{}, nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func encodeFileSet(set map[string]struct{}) ([]byte, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return json.Marshal(keys)
}
