package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biruktk/LifeTraker/internal/models"
)

const insertSessionSQL = `
	INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
	VALUES (@id, @user_id, @token_hash, @expires_at)`

// RefreshTokenRepository хранит refresh-сессии в Postgres. Используется,
// когда REDIS_URL не задан.
type RefreshTokenRepository struct {
	db *pgxpool.Pool
}

func NewRefreshTokenRepository(db *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func sessionArgs(token models.RefreshToken) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":         token.ID,
		"user_id":    token.UserID,
		"token_hash": token.TokenHash,
		"expires_at": token.ExpiresAt.UTC(),
	}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	if _, err := r.db.Exec(ctx, insertSessionSQL, sessionArgs(token)); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrNotFound
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Get(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by
		 FROM refresh_tokens
		 WHERE id = @id`,
		pgx.NamedArgs{"id": id},
	)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("get session: %w", err)
	}

	token, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[models.RefreshToken])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("get session: %w", err)
	}
	return token, nil
}

// Revoke отзывает активную сессию; для уже отозванной возвращает ErrNotFound.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	return revokeSession(ctx, r.db, id, nil)
}

// Rotate выпускает next и отзывает oldID одной транзакцией. Если oldID уже
// отозван параллельным запросом, новая сессия не сохраняется.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, next models.RefreshToken) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertSessionSQL, sessionArgs(next)); err != nil {
			return fmt.Errorf("rotate session: %w", err)
		}
		return revokeSession(ctx, tx, oldID, &next.ID)
	})
}

// PurgeExpired удаляет сессии, истекшие или отозванные до cutoff.
func (r *RefreshTokenRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM refresh_tokens
		 WHERE expires_at < @cutoff OR revoked_at < @cutoff`,
		pgx.NamedArgs{"cutoff": cutoff.UTC()},
	)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return cmd.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func revokeSession(ctx context.Context, db execer, id uuid.UUID, replacedBy *uuid.UUID) error {
	cmd, err := db.Exec(ctx,
		`UPDATE refresh_tokens
		 SET revoked_at = NOW(), replaced_by = COALESCE(@replaced_by, replaced_by)
		 WHERE id = @id AND revoked_at IS NULL`,
		pgx.NamedArgs{"id": id, "replaced_by": replacedBy},
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
