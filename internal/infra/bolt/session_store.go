package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
	"go.etcd.io/bbolt"
)

var (
	sessionsBucket   = []byte("Sessions")
	rememberedBucket = []byte("Remembered")
)

// SessionStore keeps sessions in a local bbolt file so they survive a
// restart of a single-instance deployment.
type SessionStore struct {
	db    *bbolt.DB
	clock func() time.Time
}

type record struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (r record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Open opens (or creates) the store file and its buckets.
func Open(path string) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session file %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{sessionsBucket, rememberedBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SessionStore{db: db, clock: time.Now}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) put(bucket []byte, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	rec := record{Value: raw}
	if ttl > 0 {
		rec.ExpiresAt = s.clock().Add(ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// get decodes a live record into out. Expired records are removed.
func (s *SessionStore) get(bucket []byte, key string, out any) (bool, error) {
	var rec record
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil || !found {
		return false, err
	}
	if rec.expired(s.clock()) {
		return false, s.delete(bucket, key)
	}
	return true, json.Unmarshal(rec.Value, out)
}

// Sweep drops expired and unreadable records from both buckets and
// returns how many were removed.
func (s *SessionStore) Sweep() (int, error) {
	now := s.clock()
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n = 0
		for _, name := range [][]byte{sessionsBucket, rememberedBucket} {
			b := tx.Bucket(name)
			var stale [][]byte
			err := b.ForEach(func(k, v []byte) error {
				var rec record
				if err := json.Unmarshal(v, &rec); err != nil || rec.expired(now) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SessionStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

func (s *SessionStore) Save(_ context.Context, session app.Session, ttl time.Duration) error {
	return s.put(sessionsBucket, session.ID, session, ttl)
}

func (s *SessionStore) Get(_ context.Context, id string) (app.Session, error) {
	var session app.Session
	ok, err := s.get(sessionsBucket, id, &session)
	if err != nil {
		return app.Session{}, err
	}
	if !ok {
		return app.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	return s.delete(sessionsBucket, id)
}

func (s *SessionStore) Remember(_ context.Context, deviceID, email string, ttl time.Duration) error {
	return s.put(rememberedBucket, deviceID, email, ttl)
}

func (s *SessionStore) Remembered(_ context.Context, deviceID string) (string, error) {
	var email string
	ok, err := s.get(rememberedBucket, deviceID, &email)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return email, nil
}

func (s *SessionStore) Forget(_ context.Context, deviceID string) error {
	return s.delete(rememberedBucket, deviceID)
}
