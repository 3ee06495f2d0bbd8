package local

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/snehjoshi/replayconsole/internal/storage"
	"github.com/snehjoshi/replayconsole/internal/types"
)

const archiveFileName = "archive.db"

var (
	bucketSessions = []byte("sessions") // session id → encoded SessionMeta
	journalPrefix  = "journal/"         // one bucket per session: seq → JSON action
)

// ─── Local Archive Config ─────────────────────────────────────────────────────

// FsyncPolicy controls whether bbolt flushes to disk on every commit.
// Values mirror Config.Storage.Fsync so the server can pass them straight
// through.
type FsyncPolicy string

const (
	FsyncAlways FsyncPolicy = "always" // fsync every commit (safest)
	FsyncNever  FsyncPolicy = "never"  // leave flushing to the OS (fastest, risks the tail of the journal)
)

// Config holds options that tune Archive behaviour.
// All zero-values are safe: DefaultConfig() fills in sensible defaults.
type Config struct {
	Fsync FsyncPolicy
	// OpenTimeout bounds how long Open waits for the file lock held by
	// another process. Zero waits forever.
	OpenTimeout time.Duration
}

// DefaultConfig returns a Config with production-safe defaults.
func DefaultConfig() Config {
	return Config{
		Fsync:       FsyncAlways,
		OpenTimeout: time.Second,
	}
}

// ─── Archive ──────────────────────────────────────────────────────────────────

// Archive is the bbolt-backed implementation of storage.Archive. Everything
// lives in a single archive.db file inside the data directory.
//
// All methods are safe for concurrent use.
type Archive struct {
	db  *bbolt.DB
	dir string
}

// Ensure Archive satisfies the interface at compile time.
var _ storage.Archive = (*Archive)(nil)

// Open creates (or reopens) the archive in dir.
func Open(dir string, cfgs ...Config) (*Archive, error) {
	cfg := DefaultConfig()
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Fsync != "" {
			cfg.Fsync = c.Fsync
		}
		if c.OpenTimeout > 0 {
			cfg.OpenTimeout = c.OpenTimeout
		}
	}
	switch cfg.Fsync {
	case FsyncAlways, FsyncNever:
	default:
		return nil, fmt.Errorf("archive: unknown fsync policy %q", cfg.Fsync)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("archive: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, archiveFileName)
	db, err := bbolt.Open(path, 0o640, &bbolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	db.NoSync = cfg.Fsync == FsyncNever

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: init bucket: %w", err)
	}
	return &Archive{db: db, dir: dir}, nil
}

// Dir returns the directory the archive file lives in.
func (a *Archive) Dir() string { return a.dir }

func journalBucket(sessionID string) []byte {
	return []byte(journalPrefix + sessionID)
}

// CreateSession registers meta and creates its journal bucket.
func (a *Archive) CreateSession(meta storage.SessionMeta) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Get([]byte(meta.ID)) != nil {
			return fmt.Errorf("archive: session %s: %w", meta.ID, storage.ErrExists)
		}
		if _, err := tx.CreateBucketIfNotExists(journalBucket(meta.ID)); err != nil {
			return fmt.Errorf("archive: create journal %s: %w", meta.ID, err)
		}
		return sessions.Put([]byte(meta.ID), marshalMeta(meta))
	})
}

// ListSessions returns every session ordered by id. ULID ids make that
// creation order.
func (a *Archive) ListSessions() ([]storage.SessionMeta, error) {
	var out []storage.SessionMeta
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			meta, err := unmarshalMeta(string(k), v)
			if err != nil {
				return err
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteSession drops a session and its journal in one transaction.
func (a *Archive) DeleteSession(id string) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Get([]byte(id)) == nil {
			return fmt.Errorf("archive: session %s: %w", id, storage.ErrNotFound)
		}
		if err := tx.DeleteBucket(journalBucket(id)); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("archive: delete journal %s: %w", id, err)
		}
		return sessions.Delete([]byte(id))
	})
}

// Append writes act under the journal's next sequence number.
func (a *Archive) Append(sessionID string, act types.Action) (uint64, error) {
	val, err := json.Marshal(act)
	if err != nil {
		return 0, fmt.Errorf("archive: marshal action: %w", err)
	}
	var seq uint64
	err = a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalBucket(sessionID))
		if b == nil {
			return fmt.Errorf("archive: session %s: %w", sessionID, storage.ErrNotFound)
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), val)
	})
	return seq, err
}

// ForEach replays the journal in sequence order. Big-endian keys make bbolt's
// byte order the numeric order.
func (a *Archive) ForEach(sessionID string, fn func(seq uint64, act types.Action) error) error {
	return a.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalBucket(sessionID))
		if b == nil {
			return fmt.Errorf("archive: session %s: %w", sessionID, storage.ErrNotFound)
		}
		return b.ForEach(func(k, v []byte) error {
			seq := binary.BigEndian.Uint64(k)
			var act types.Action
			if err := json.Unmarshal(v, &act); err != nil {
				return fmt.Errorf("archive: decode entry %d of %s: %w", seq, sessionID, err)
			}
			return fn(seq, act)
		})
	})
}

// Compact deletes entries below before that keep rejects.
func (a *Archive) Compact(sessionID string, before uint64, keep func(types.Action) bool) (int, error) {
	removed := 0
	err := a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalBucket(sessionID))
		if b == nil {
			return fmt.Errorf("archive: session %s: %w", sessionID, storage.ErrNotFound)
		}

		// Collect first: deleting under a live cursor skips entries.
		var doomed [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil && binary.BigEndian.Uint64(k) < before; k, v = c.Next() {
			if keep != nil {
				var act types.Action
				if err := json.Unmarshal(v, &act); err != nil {
					return fmt.Errorf("archive: decode entry %d of %s: %w", binary.BigEndian.Uint64(k), sessionID, err)
				}
				if keep(act) {
					continue
				}
			}
			doomed = append(doomed, append([]byte(nil), k...))
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(doomed)
		return nil
	})
	return removed, err
}

// Close closes the underlying bbolt database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ---- serialisation helpers -------------------------------------------------
// SessionMeta is serialised as a compact binary structure:
//
//	[createdAt : 8 bytes, int64  ]
//	[labelLen  : 2 bytes, uint16 ]
//	[label     : labelLen bytes  ]
//
// The id is the bucket key and is not repeated in the value.

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func marshalMeta(m storage.SessionMeta) []byte {
	label := []byte(m.Label)
	if len(label) > 0xFFFF {
		label = label[:0xFFFF]
	}
	buf := make([]byte, 8+2+len(label))
	binary.BigEndian.PutUint64(buf[0:], uint64(m.CreatedAt))
	binary.BigEndian.PutUint16(buf[8:], uint16(len(label)))
	copy(buf[10:], label)
	return buf
}

func unmarshalMeta(id string, buf []byte) (storage.SessionMeta, error) {
	if len(buf) < 10 {
		return storage.SessionMeta{}, fmt.Errorf("archive: meta for %s too short (%d bytes)", id, len(buf))
	}
	labelLen := int(binary.BigEndian.Uint16(buf[8:]))
	if labelLen > len(buf)-10 {
		return storage.SessionMeta{}, fmt.Errorf("archive: label length %d exceeds buffer", labelLen)
	}
	return storage.SessionMeta{
		ID:        id,
		CreatedAt: int64(binary.BigEndian.Uint64(buf[0:])),
		Label:     string(buf[10 : 10+labelLen]),
	}, nil
}
