package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/biruktk/LifeTraker/internal/models"
)

const defaultPrefix = "refresh:"

type redisSession struct {
	UserID     uuid.UUID  `json:"user_id"`
	TokenHash  string     `json:"token_hash"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty"`
}

// RedisStore хранит refresh-сессии в Redis; ключ живет до истечения токена.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore подключается к Redis по URL и проверяет соединение.
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *RedisStore) Create(ctx context.Context, token models.RefreshToken) error {
	ttl, data, err := s.encodeNew(token)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(token.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	stored, err := s.load(ctx, s.client, id)
	if err != nil {
		return models.RefreshToken{}, err
	}
	return toModel(id, stored), nil
}

func (s *RedisStore) Rotate(ctx context.Context, oldID uuid.UUID, next models.RefreshToken) error {
	ttl, nextData, err := s.encodeNew(next)
	if err != nil {
		return err
	}

	oldKey := s.key(oldID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := s.load(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if old.RevokedAt != nil {
			return ErrNotFound
		}

		revokedAt := s.now().UTC()
		old.RevokedAt = &revokedAt
		old.ReplacedBy = &next.ID
		oldData, err := json.Marshal(old)
		if err != nil {
			return fmt.Errorf("marshal refresh session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(next.ID), nextData, ttl)
			pipe.Set(ctx, oldKey, oldData, redis.KeepTTL)
			return nil
		})
		return err
	}, oldKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("rotate refresh session: %w", err)
	}

	return nil
}

func (s *RedisStore) Revoke(ctx context.Context, id uuid.UUID) error {
	key := s.key(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if stored.RevokedAt != nil {
			return ErrNotFound
		}

		revokedAt := s.now().UTC()
		stored.RevokedAt = &revokedAt
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal refresh session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("revoke refresh session: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) encodeNew(token models.RefreshToken) (time.Duration, []byte, error) {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return 0, nil, fmt.Errorf("refresh session %s already expired", token.ID)
	}

	data, err := json.Marshal(redisSession{
		UserID:    token.UserID,
		TokenHash: token.TokenHash,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: createdAt,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal refresh session: %w", err)
	}

	return ttl, data, nil
}

func (s *RedisStore) load(ctx context.Context, cmd redis.Cmdable, id uuid.UUID) (redisSession, error) {
	raw, err := cmd.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisSession{}, ErrNotFound
	}
	if err != nil {
		return redisSession{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	var stored redisSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return redisSession{}, fmt.Errorf("unmarshal refresh session: %w", err)
	}
	return stored, nil
}

func toModel(id uuid.UUID, stored redisSession) models.RefreshToken {
	return models.RefreshToken{
		ID:         id,
		UserID:     stored.UserID,
		TokenHash:  stored.TokenHash,
		ExpiresAt:  stored.ExpiresAt,
		CreatedAt:  stored.CreatedAt,
		RevokedAt:  stored.RevokedAt,
		ReplacedBy: stored.ReplacedBy,
	}
}
