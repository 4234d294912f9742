package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biruktk/LifeTraker/internal/models"
)

// DocumentRepository хранит документ пользователя целиком в JSONB;
// updated_at выставляется сервером при каждой записи.
type DocumentRepository struct {
	db *pgxpool.Pool
}

type DocumentSummary struct {
	UserID    uuid.UUID
	Email     string
	Name      *string
	SizeBytes int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDocumentRepository создает репозиторий документов.
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get возвращает документ пользователя или ErrNotFound.
func (r *DocumentRepository) Get(ctx context.Context, userID uuid.UUID) (models.StoredDocument, error) {
	stored := models.StoredDocument{UserID: userID}
	var data []byte

	err := r.db.QueryRow(ctx,
		`SELECT data, created_at, updated_at
		 FROM user_documents
		 WHERE user_id = $1`,
		userID,
	).Scan(&data, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stored, ErrNotFound
		}
		return stored, fmt.Errorf("get document: %w", err)
	}

	stored.Data = data
	return stored, nil
}

// Upsert заменяет документ целиком; последняя запись побеждает.
func (r *DocumentRepository) Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error) {
	var updatedAt time.Time

	err := r.db.QueryRow(ctx,
		`INSERT INTO user_documents (user_id, data)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = NOW()
		 RETURNING updated_at`,
		userID, []byte(data),
	).Scan(&updatedAt)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return updatedAt, ErrNotFound
		}
		return updatedAt, fmt.Errorf("upsert document: %w", err)
	}

	return updatedAt, nil
}

// Update перезаписывает существующий документ; ErrNotFound, если его нет.
func (r *DocumentRepository) Update(ctx context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error) {
	var updatedAt time.Time

	err := r.db.QueryRow(ctx,
		`UPDATE user_documents
		 SET data = $2, updated_at = NOW()
		 WHERE user_id = $1
		 RETURNING updated_at`,
		userID, []byte(data),
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return updatedAt, ErrNotFound
		}
		return updatedAt, fmt.Errorf("update document: %w", err)
	}

	return updatedAt, nil
}

// Delete удаляет документ; при следующей загрузке пользователь получит шаблон.
func (r *DocumentRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM user_documents WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListAll возвращает сводку документов для администратора.
func (r *DocumentRepository) ListAll(ctx context.Context, limit, offset int) ([]DocumentSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.user_id, u.email, u.name, octet_length(d.data::text), d.created_at, d.updated_at
		 FROM user_documents d
		 JOIN users u ON u.id = d.user_id
		 ORDER BY d.updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentSummary, 0)
	for rows.Next() {
		var summary DocumentSummary
		if err := rows.Scan(&summary.UserID, &summary.Email, &summary.Name, &summary.SizeBytes, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, err
		}
		documents = append(documents, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return documents, nil
}

// Count возвращает количество сохраненных документов.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_documents`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
