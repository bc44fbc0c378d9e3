package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-certoverride/internal/certs/common/clock"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/repos/overrides"
)

var (
	bucketOverrides = []byte("overrides")
	bucketMeta      = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// ErrCorruptRecord is returned when a stored value cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt override record")

// boltStore implements overrides.Store using bbolt.
type boltStore struct {
	db    *bbolt.DB
	clock clock.Clock
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string, clk clock.Clock) (overrides.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketOverrides, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &boltStore{db: db, clock: clk}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Put(o domain.Override) error {
	if o.Temporary {
		return fmt.Errorf("temporary override for %s cannot be persisted", o.Key())
	}
	if err := o.Validate(); err != nil {
		return err
	}
	v, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketOverrides).Put([]byte(o.Key()), v); err != nil {
			return err
		}
		return s.touch(tx)
	})
}

func (s *boltStore) Get(key string) (domain.Override, bool, error) {
	var (
		o     domain.Override
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketOverrides).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return decode(key, v, &o)
	})
	if err != nil {
		return domain.Override{}, false, err
	}
	return o, found, nil
}

func (s *boltStore) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOverrides)
		if b.Get([]byte(key)) == nil {
			return nil
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		return s.touch(tx)
	})
}

func (s *boltStore) Visit(fn func(o domain.Override) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOverrides).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var o domain.Override
			if err := decode(string(k), v, &o); err != nil {
				return err
			}
			if !fn(o) {
				return nil
			}
		}
		return nil
	})
}

func (s *boltStore) Stats() overrides.StoreStats {
	st := overrides.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		st.Overrides = uint64(tx.Bucket(bucketOverrides).Stats().KeyN)
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyVersion); len(v) == 8 {
			st.Version = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keyUpdated); len(v) == 8 {
			st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return st
}

// touch bumps the version counter and records the write time.
func (s *boltStore) touch(tx *bbolt.Tx) error {
	meta := tx.Bucket(bucketMeta)
	var version uint64
	if v := meta.Get(keyVersion); len(v) == 8 {
		version = binary.BigEndian.Uint64(v)
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version+1)
	binary.BigEndian.PutUint64(ubuf, uint64(s.clock.Now().Unix()))
	if err := meta.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return meta.Put(keyUpdated, ubuf)
}

func decode(key string, v []byte, o *domain.Override) error {
	if err := json.Unmarshal(v, o); err != nil {
		return fmt.Errorf("%w %q: %v", ErrCorruptRecord, key, err)
	}
	return nil
}

var _ overrides.Store = (*boltStore)(nil)
