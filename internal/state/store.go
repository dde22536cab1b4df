package state

import (
	"strings"

	"github.com/kilnhq/kiln/internal/ir"
)

// Store persists resource snapshots between runs. Implementations must
// make Put and Delete atomic with respect to concurrent readers, and
// Lock must grant exclusive access for the duration of a run.
//
// Get returns (nil, nil) for an id with no snapshot.
type Store interface {
	Get(id string) (*ir.Snapshot, error)
	Put(id string, snap *ir.Snapshot) error
	Delete(id string) error
	All() (map[string]*ir.Snapshot, error)

	Lock() error
	Unlock() error

	Close() error
}

// Open returns a store for the given location. Paths of the form
// s3://bucket/key?region=...&lock_table=... select the S3 backend;
// anything else is treated as a local database file.
func Open(path string) (Store, error) {
	if strings.HasPrefix(path, "s3://") {
		return openS3(path)
	}
	return openBolt(path)
}
