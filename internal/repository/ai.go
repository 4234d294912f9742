package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AIRequestRepository ведет журнал обращений к AI-провайдеру.
type AIRequestRepository struct {
	db *pgxpool.Pool
}

// AIRequestLog описывает одну запись журнала. ResponsePayload пишется как JSONB и
// должен быть JSON-объектом либо пустым.
type AIRequestLog struct {
	UserID          uuid.UUID
	RequestType     string
	Provider        string
	Model           string
	Prompt          string
	ResponsePayload []byte
	RawResponse     string
	Success         bool
	ErrorCategory   *string
	ErrorMessage    *string
	Latency         time.Duration
}

const insertAIRequest = `
INSERT INTO ai_requests (
	user_id, request_type, provider, model, prompt,
	response_payload, raw_response, success, error_category, error_message, latency_ms
) VALUES (
	@user_id, @request_type, @provider, @model, @prompt,
	NULLIF(@response_payload, '')::jsonb, NULLIF(@raw_response, ''), @success, @error_category, @error_message, @latency_ms
)`

func NewAIRequestRepository(db *pgxpool.Pool) *AIRequestRepository {
	return &AIRequestRepository{db: db}
}

// LogRequest добавляет запись в журнал.
func (r *AIRequestRepository) LogRequest(ctx context.Context, entry AIRequestLog) error {
	_, err := r.db.Exec(ctx, insertAIRequest, pgx.NamedArgs{
		"user_id":          entry.UserID,
		"request_type":     entry.RequestType,
		"provider":         entry.Provider,
		"model":            entry.Model,
		"prompt":           entry.Prompt,
		"response_payload": string(entry.ResponsePayload),
		"raw_response":     entry.RawResponse,
		"success":          entry.Success,
		"error_category":   entry.ErrorCategory,
		"error_message":    entry.ErrorMessage,
		"latency_ms":       entry.Latency.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("log ai request: %w", err)
	}
	return nil
}

// PruneBefore удаляет записи журнала старше cutoff и возвращает их число.
func (r *AIRequestRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM ai_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ai requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
