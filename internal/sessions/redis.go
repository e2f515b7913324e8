package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attendx:upload:"

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// RedisStore keeps sessions in Redis with a key expiry equal to the session TTL
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:6379"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Address, err)
	}

	return &RedisStore{
		client: client,
		now:    time.Now,
		logger: logger.With(slog.String("component", "redis_session_store")),
	}, nil
}

// Save stores the session until its expiry time
func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	if session.Info.ID == "" {
		return fmt.Errorf("session has no id")
	}
	ttl := time.Duration(0)
	if !session.Info.ExpiresAt.IsZero() {
		ttl = session.Info.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("session %s already expired", session.Info.ID)
		}
	}

	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.Info.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session %s: %w", session.Info.ID, err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.Info.ID)
	}

	s.logger.DebugContext(ctx, "Upload session stored",
		slog.String("upload_id", session.Info.ID),
		slog.Int("bytes", len(data)),
		slog.Duration("ttl", ttl))
	return nil
}

// Get retrieves a session by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeSession(data)
}

// Delete removes a session
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count scans the session keys. Redis drops expired keys itself, so every
// key found is a live session.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func encodeSession(session *Session) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", session.Info.ID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
