package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProvisionalTTL bounds how long a key stays locked while its request runs.
const ProvisionalTTL = 60 * time.Second

var (
	ErrNotFound = errors.New("idempotency key not found")
	// ErrLockLost means the key no longer holds the caller's token.
	ErrLockLost = errors.New("idempotency lock lost")
)

// Entry is what is remembered for one idempotency key.
type Entry struct {
	// Token identifies the request holding the provisional lock.
	Token       string    `json:"token,omitempty"`
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	// Reserve stores entry only when key is unused and reports whether it did.
	Reserve(ctx context.Context, key string, entry Entry) (bool, error)
	Load(ctx context.Context, key string) (Entry, error)
	// Save replaces the entry only while key still holds entry.Token.
	Save(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	// Release deletes key only while it still holds token.
	Release(ctx context.Context, key, token string) error
}

type RedisStore struct {
	rdb *redis.Client
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, entry Entry) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, ProvisionalTTL).Result()
}

func (s *RedisStore) Load(ctx context.Context, key string) (Entry, error) {
	return load(ctx, s.rdb, key)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (Entry, error) {
	var e Entry
	v, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return e, ErrNotFound
		}
		return e, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.withToken(ctx, key, entry.Token, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, key, payload, ttl)
	})
}

func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	return s.withToken(ctx, key, token, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
	})
}

// withToken runs write in a MULTI block guarded by WATCH on key, after
// checking that the stored entry carries token.
func (s *RedisStore) withToken(ctx context.Context, key, token string, write func(redis.Pipeliner)) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := load(ctx, tx, key)
		if errors.Is(err, ErrNotFound) {
			return ErrLockLost
		}
		if err != nil {
			return err
		}
		if cur.Token != token {
			return ErrLockLost
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrLockLost
	}
	return err
}
