package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biruktk/LifeTraker/internal/models"
)

// Порядок колонок совпадает с полями models.User.
const userColumns = `id, email, password_hash, name, created_at, updated_at`

const (
	insertUser = `INSERT INTO users (email, password_hash, name)
		VALUES (@email, @password_hash, @name)
		RETURNING ` + userColumns

	insertStarterDocument = `INSERT INTO user_documents (user_id, data) VALUES (@user_id, @data)`
)

type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository создает репозиторий пользователей.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithDocument создает пользователя и его стартовый документ в одной транзакции.
// Занятый email дает ErrConflict.
func (r *UserRepository) CreateWithDocument(ctx context.Context, email, passwordHash string, name *string, document json.RawMessage) (models.User, error) {
	var user models.User

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, insertUser, pgx.NamedArgs{
			"email":         email,
			"password_hash": passwordHash,
			"name":          name,
		})
		if err != nil {
			return err
		}

		user, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[models.User])
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, insertStarterDocument, pgx.NamedArgs{
			"user_id": user.ID,
			"data":    []byte(document),
		})
		if err != nil {
			return fmt.Errorf("insert user document: %w", err)
		}
		return nil
	})
	switch {
	case err == nil:
		return user, nil
	case isPgError(err, pgUniqueViolation):
		return models.User{}, ErrConflict
	default:
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

// findOne ищет пользователя по уникальной колонке; column задается только кодом пакета.
func (r *UserRepository) findOne(ctx context.Context, column string, value any) (models.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = @value`,
		pgx.NamedArgs{"value": value},
	)
	if err != nil {
		return models.User{}, err
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[models.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return user, err
}
