package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-certoverride/internal/certs/common/clock"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "overrides.db")
}

func openStore(t *testing.T, path string, clk clock.Clock) overrides.Store {
	t.Helper()
	st, err := New(path, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sample(host string, port int, fp string) domain.Override {
	return domain.Override{
		Host:        host,
		Port:        port,
		Algorithm:   domain.FingerprintAlgSHA256,
		Fingerprint: fp,
		Bits:        domain.BitUntrusted | domain.BitMismatch,
		DBKey:       "db",
		AddedAt:     time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBoltStore_PutGetDelete(t *testing.T) {
	clk := &clock.MockClock{CurrentTime: time.Unix(1_700_000_000, 0)}
	st := openStore(t, tempDB(t), clk)

	_, ok, err := st.Get("a.test:443")
	require.NoError(t, err)
	assert.False(t, ok)

	o := sample("a.test", 443, "AA:01")
	require.NoError(t, st.Put(o))

	got, ok, err := st.Get("a.test:443")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o, got)

	stats := st.Stats()
	assert.EqualValues(t, 1, stats.Overrides)
	assert.EqualValues(t, 1, stats.Version)
	assert.EqualValues(t, 1_700_000_000, stats.UpdatedUnix)

	clk.Advance(time.Minute)
	require.NoError(t, st.Delete("a.test:443"))
	_, ok, err = st.Get("a.test:443")
	require.NoError(t, err)
	assert.False(t, ok)

	stats = st.Stats()
	assert.EqualValues(t, 0, stats.Overrides)
	assert.EqualValues(t, 2, stats.Version)
	assert.EqualValues(t, 1_700_000_060, stats.UpdatedUnix)

	// deleting a missing key is not a write
	require.NoError(t, st.Delete("a.test:443"))
	assert.EqualValues(t, 2, st.Stats().Version)
}

func TestBoltStore_RejectsTemporaryAndInvalid(t *testing.T) {
	st := openStore(t, tempDB(t), nil)

	tmp := sample("a.test", 443, "AA")
	tmp.Temporary = true
	assert.Error(t, st.Put(tmp))

	bad := sample("a.test", 443, "AA")
	bad.Bits = 0
	assert.Error(t, st.Put(bad))
	assert.EqualValues(t, 0, st.Stats().Overrides)
}

func TestBoltStore_VisitInKeyOrder(t *testing.T) {
	st := openStore(t, tempDB(t), nil)
	require.NoError(t, st.Put(sample("c.test", 443, "CC")))
	require.NoError(t, st.Put(sample("a.test", 8443, "AA")))
	require.NoError(t, st.Put(sample("b.test", 443, "BB")))

	var keys []string
	require.NoError(t, st.Visit(func(o domain.Override) bool {
		keys = append(keys, o.Key())
		return true
	}))
	assert.Equal(t, []string{"a.test:8443", "b.test:443", "c.test:443"}, keys)

	keys = nil
	require.NoError(t, st.Visit(func(o domain.Override) bool {
		keys = append(keys, o.Key())
		return false
	}))
	assert.Len(t, keys, 1)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := tempDB(t)
	st, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Put(sample("a.test", 443, "AA")))
	require.NoError(t, st.Close())

	st = openStore(t, path, nil)
	_, ok, err := st.Get("a.test:443")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBoltStore_CorruptRecord(t *testing.T) {
	path := tempDB(t)
	st, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOverrides).Put([]byte("x.test:443"), []byte("{not json"))
	}))
	require.NoError(t, db.Close())

	st = openStore(t, path, nil)
	_, _, err = st.Get("x.test:443")
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.ErrorIs(t, st.Visit(func(domain.Override) bool { return true }), ErrCorruptRecord)
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), nil)
	assert.Error(t, err)
}
