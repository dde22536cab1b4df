package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/kilnhq/kiln/internal/ir"
)

// Bucket names in bbolt
var (
	bucketSnapshots = []byte("snapshots")
	bucketMeta      = []byte("meta")
)

var keyLineage = []byte("lineage")

// staleLockAge is how old a lock file must be before a new run may
// break it.
const staleLockAge = 10 * time.Minute

// boltStore keeps snapshots in a local bbolt database, one key per
// resource id. A lineage id is written on first open so state files
// can be told apart even after every snapshot has been deleted.
type boltStore struct {
	db   *bbolt.DB
	path string
}

func openBolt(path string) (*boltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshots, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyLineage) == nil {
			return meta.Put(keyLineage, []byte(uuid.NewString()))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}

	return &boltStore{db: db, path: path}, nil
}

func (s *boltStore) Get(id string) (*ir.Snapshot, error) {
	var snap *ir.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get([]byte(id))
		if raw == nil {
			return nil
		}
		snap = &ir.Snapshot{}
		return json.Unmarshal(raw, snap)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", id, err)
	}
	return snap, nil
}

func (s *boltStore) Put(id string, snap *ir.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		raw, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot %q: %w", id, err)
		}
		return tx.Bucket(bucketSnapshots).Put([]byte(id), raw)
	})
}

func (s *boltStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(id))
	})
}

func (s *boltStore) All() (map[string]*ir.Snapshot, error) {
	out := make(map[string]*ir.Snapshot)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			snap := &ir.Snapshot{}
			if err := json.Unmarshal(v, snap); err != nil {
				return fmt.Errorf("failed to decode snapshot %q: %w", string(k), err)
			}
			out[string(k)] = snap
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lineage returns the identity written when the database was created.
func (s *boltStore) Lineage() (string, error) {
	var lineage string
	err := s.db.View(func(tx *bbolt.Tx) error {
		lineage = string(tx.Bucket(bucketMeta).Get(keyLineage))
		return nil
	})
	return lineage, err
}

// Lock acquires a lease file next to the database so two runs cannot
// mutate the same state concurrently.
func (s *boltStore) Lock() error {
	lockPath := s.lockPath()

	if info, err := os.Stat(lockPath); err == nil {
		// A leftover lock from a crashed run eventually goes stale.
		if time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
		}
	}

	// O_EXCL makes acquisition atomic: whichever process creates the
	// file first holds the lease.
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("state is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", lockPath)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return nil
}

func (s *boltStore) Unlock() error {
	if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (s *boltStore) lockPath() string {
	return s.path + ".lock"
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
