package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kiln/internal/ir"
)

func tempStore(t *testing.T) (*boltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiln.db")
	store, err := openBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestBoltStorePutGet(t *testing.T) {
	store, _ := tempStore(t)

	snap := &ir.Snapshot{
		Type:         ir.TypeVPC,
		Region:       "us-east-1",
		ConfigHash:   "abc123",
		ExternalID:   "vpc-0a1b2c",
		Dependencies: []string{"igw-main"},
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Put("vpc-main", snap))

	got, err := store.Get("vpc-main")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap.ExternalID, got.ExternalID)
	assert.Equal(t, snap.ConfigHash, got.ConfigHash)
	assert.Equal(t, snap.Dependencies, got.Dependencies)
}

func TestBoltStoreGetMissing(t *testing.T) {
	store, _ := tempStore(t)

	got, err := store.Get("never-written")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBoltStoreDelete(t *testing.T) {
	store, _ := tempStore(t)

	require.NoError(t, store.Put("db-main", &ir.Snapshot{Type: ir.TypeRDSInstance, ExternalID: "db-1"}))
	require.NoError(t, store.Delete("db-main"))

	got, err := store.Get("db-main")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent id is not an error.
	assert.NoError(t, store.Delete("db-main"))
}

func TestBoltStoreAll(t *testing.T) {
	store, _ := tempStore(t)

	require.NoError(t, store.Put("vpc-main", &ir.Snapshot{Type: ir.TypeVPC, ExternalID: "vpc-1"}))
	require.NoError(t, store.Put("sub-a", &ir.Snapshot{Type: ir.TypeSubnet, ExternalID: "subnet-1"}))

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "vpc-main")
	assert.Contains(t, all, "sub-a")
}

func TestBoltStoreLineageSurvivesReopen(t *testing.T) {
	store, path := tempStore(t)

	first, err := store.Lineage()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.NoError(t, store.Close())

	reopened, err := openBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	second, err := reopened.Lineage()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBoltStoreLockConflict(t *testing.T) {
	store, _ := tempStore(t)

	require.NoError(t, store.Lock())
	err := store.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another process")

	require.NoError(t, store.Unlock())
	assert.NoError(t, store.Lock())
	require.NoError(t, store.Unlock())
}

func TestBoltStoreLockRespectsForeignLease(t *testing.T) {
	store, path := tempStore(t)

	// A fresh lock file written by another process must block
	// acquisition even though this store never locked.
	require.NoError(t, os.WriteFile(path+".lock", []byte("pid=999\n"), 0644))

	err := store.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another process")
}

func TestBoltStoreLockBreaksStaleLease(t *testing.T) {
	store, path := tempStore(t)

	lockPath := path + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("pid=1\n"), 0644))
	old := time.Now().Add(-11 * time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	assert.NoError(t, store.Lock())
	require.NoError(t, store.Unlock())
}

func TestParseS3Location(t *testing.T) {
	st, err := parseS3Location("s3://infra-state/prod/kiln.json?region=eu-west-1&lock_table=kiln-locks")
	require.NoError(t, err)
	assert.Equal(t, "infra-state", st.bucket)
	assert.Equal(t, "prod/kiln.json", st.key)
	assert.Equal(t, "eu-west-1", st.region)
	assert.Equal(t, "kiln-locks", st.lockTable)
}

func TestParseS3LocationDefaults(t *testing.T) {
	st, err := parseS3Location("s3://infra-state")
	require.NoError(t, err)
	assert.Equal(t, "kiln/state.json", st.key)
	assert.Equal(t, "us-east-1", st.region)
	assert.Empty(t, st.lockTable)
}

func TestParseS3LocationMissingBucket(t *testing.T) {
	_, err := parseS3Location("s3://")
	assert.Error(t, err)
}

func TestOpenDispatchesLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*boltStore)
	assert.True(t, ok)
}
