// Package session хранит refresh-сессии: в PostgreSQL или в Redis.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/biruktk/LifeTraker/internal/models"
	"github.com/biruktk/LifeTraker/internal/repository"
)

// ErrNotFound возвращается для отсутствующей, истекшей или уже отозванной сессии.
var ErrNotFound = repository.ErrNotFound

type Store interface {
	Create(ctx context.Context, token models.RefreshToken) error
	Get(ctx context.Context, id uuid.UUID) (models.RefreshToken, error)
	// Rotate атомарно создает новую сессию и отзывает старую.
	Rotate(ctx context.Context, oldID uuid.UUID, next models.RefreshToken) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*repository.RefreshTokenRepository)(nil)
)
