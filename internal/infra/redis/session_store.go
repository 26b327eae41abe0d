package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"einstein-dashboard/internal/app"
	"einstein-dashboard/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps dashboard sessions in Redis so any instance can serve
// a signed-in browser. Keys expire with the session.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Save(ctx context.Context, session app.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(session.ID), data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (app.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return app.Session{}, err
	}
	var session app.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return app.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) Remember(ctx context.Context, deviceID, email string, ttl time.Duration) error {
	return s.client.Set(ctx, s.rememberKey(deviceID), email, ttl).Err()
}

func (s *SessionStore) Remembered(ctx context.Context, deviceID string) (string, error) {
	email, err := s.client.Get(ctx, s.rememberKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	return email, err
}

func (s *SessionStore) Forget(ctx context.Context, deviceID string) error {
	return s.client.Del(ctx, s.rememberKey(deviceID)).Err()
}

func (s *SessionStore) key(id string) string {
	return "dashboard:session:" + id
}

func (s *SessionStore) rememberKey(deviceID string) string {
	return "dashboard:remember:" + deviceID
}
