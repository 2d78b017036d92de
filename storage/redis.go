// Redis session storage.
//
// Information Hiding:
// - Key layout and JSON encoding hidden behind interface
// - Per-user index maintenance hidden

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "datagent:"

// RedisStore implements SessionStore on Redis. Each session is one JSON value
// under datagent:session:<id>; a set per app and user indexes the IDs.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps sessions forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// OpenRedis connects to the server at a redis:// or rediss:// URL and checks it responds.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, 0), nil
}

func sessionKey(appName, userID, id string) string {
	return redisKeyPrefix + "session:" + appName + ":" + userID + ":" + id
}

func indexKey(appName, userID string) string {
	return redisKeyPrefix + "sessions:" + appName + ":" + userID
}

// Create stores a new session, failing if the ID is taken.
func (s *RedisStore) Create(ctx context.Context, appName, userID, id string, state map[string]any) (*Session, error) {
	session := NewSession(appName, userID, id, state)

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	// Indexing an ID that already exists is a no-op, so both commands run together.
	key := sessionKey(appName, userID, session.ID)
	pipe := s.client.TxPipeline()
	created := pipe.SetNX(ctx, key, data, s.ttl)
	pipe.SAdd(ctx, indexKey(appName, userID), session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		// MULTI does not roll back, so drop a session that could not be indexed.
		if created.Val() {
			_ = s.client.Del(context.WithoutCancel(ctx), key).Err()
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if !created.Val() {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}
	return session, nil
}

// Get loads a session.
func (s *RedisStore) Get(ctx context.Context, appName, userID, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(appName, userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if !session.owned(appName, userID) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Save overwrites an existing session.
func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	if _, err := s.Get(ctx, session.AppName, session.UserID, session.ID); err != nil {
		return err
	}

	saved := session.Clone()
	saved.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// XX: only overwrite a key that still exists.
	if err := s.client.SetArgs(ctx, sessionKey(session.AppName, session.UserID, session.ID), data, redis.SetArgs{Mode: "XX", TTL: s.ttl}).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	session.UpdatedAt = saved.UpdatedAt
	return nil
}

// Delete removes a session and its index entry.
func (s *RedisStore) Delete(ctx context.Context, appName, userID, id string) error {
	if _, err := s.Get(ctx, appName, userID, id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(appName, userID, id))
	pipe.SRem(ctx, indexKey(appName, userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns the user's sessions, oldest first. Index entries whose session
// expired are pruned.
func (s *RedisStore) List(ctx context.Context, appName, userID string) ([]*Session, error) {
	index := indexKey(appName, userID)
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []*Session{}
	if len(ids) == 0 {
		return sessions, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(appName, userID, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, index, stale...).Err() // best-effort cleanup
	}

	sortSessions(sessions)
	return sessions, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.State == nil {
		session.State = map[string]any{}
	}
	if session.Events == nil {
		session.Events = []Event{}
	}
	return &session, nil
}

// Verify RedisStore implements SessionStore
var _ SessionStore = (*RedisStore)(nil)
