package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminRepository выполняет агрегирующие запросы для админки.
type AdminRepository struct {
	db *pgxpool.Pool
}

// AIRequestFilter задает необязательные условия выборки журнала. Since включительно,
// Until исключительно.
type AIRequestFilter struct {
	UserID        *uuid.UUID
	Success       *bool
	RequestType   *string
	ErrorCategory *string
	Since         *time.Time
	Until         *time.Time
}

type AIRequestRecord struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	RequestType     string
	Provider        string
	Model           string
	Prompt          *string
	ResponsePayload []byte
	RawResponse     *string
	Success         bool
	ErrorCategory   *string
	ErrorMessage    *string
	LatencyMS       int64
	CreatedAt       time.Time
}

type DailyCount struct {
	Day    time.Time
	Count  int
	Failed int
}

// ContentTotals хранит сумму элементов по всем документам пользователей.
type ContentTotals struct {
	Todos          int
	CompletedTodos int
	Habits         int
	JournalEntries int
	Expenses       int
	VisionImages   int
}

type UsageStats struct {
	Users            int
	Documents        int
	ActiveDocuments  int
	Content          ContentTotals
	AIRequests       int
	AISuccess        int
	AIFail           int
	AIAvgLatencyMS   int64
	AIRequestsByDay  []DailyCount
	AIRequestsByType map[string]int
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

const (
	aiRequestColumns = "id, user_id, request_type, provider, model, success, error_category, error_message, latency_ms, created_at"
	aiPayloadColumns = "prompt, response_payload, raw_response"
)

// ListAIRequests возвращает журнал AI-запросов, новые сверху. Тексты промптов
// и ответов читаются только при includePayloads.
func (r *AdminRepository) ListAIRequests(ctx context.Context, filter AIRequestFilter, limit, offset int, includePayloads bool) ([]AIRequestRecord, error) {
	where, args := buildAIRequestWhere(filter)
	args["limit"] = limit
	args["offset"] = offset

	columns := aiRequestColumns
	if includePayloads {
		columns += ", " + aiPayloadColumns
	}

	query := "SELECT " + columns + " FROM ai_requests" + where + " ORDER BY created_at DESC LIMIT @limit OFFSET @offset"
	rows, err := r.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("list ai requests: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AIRequestRecord, error) {
		var record AIRequestRecord
		dest := []any{
			&record.ID, &record.UserID, &record.RequestType, &record.Provider, &record.Model,
			&record.Success, &record.ErrorCategory, &record.ErrorMessage, &record.LatencyMS, &record.CreatedAt,
		}
		if includePayloads {
			dest = append(dest, &record.Prompt, &record.ResponsePayload, &record.RawResponse)
		}
		return record, row.Scan(dest...)
	})
}

func (r *AdminRepository) CountAIRequests(ctx context.Context, filter AIRequestFilter) (int, error) {
	where, args := buildAIRequestWhere(filter)

	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM ai_requests"+where, args).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ai requests: %w", err)
	}
	return count, nil
}

// UsageStats собирает статистику: итоговые счетчики за все время, а
// активные документы и разбивки по дням и типам за последние days дней.
func (r *AdminRepository) UsageStats(ctx context.Context, days int) (UsageStats, error) {
	if days <= 0 {
		return UsageStats{}, ErrInvalid
	}

	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -days+1)
	args := pgx.NamedArgs{"since": since}
	stats := UsageStats{AIRequestsByType: map[string]int{}}

	err := r.db.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM users),
		        COUNT(*),
		        COUNT(*) FILTER (WHERE updated_at >= @since),
		        COALESCE(SUM(jsonb_array_length(data->'todos')), 0),
		        COALESCE(SUM((SELECT COUNT(*) FROM jsonb_array_elements(data->'todos') t WHERE (t->>'completed')::boolean)), 0),
		        COALESCE(SUM(jsonb_array_length(data->'habits')), 0),
		        COALESCE(SUM(jsonb_array_length(data->'journal')), 0),
		        COALESCE(SUM(jsonb_array_length(data->'expenses')), 0),
		        COALESCE(SUM(jsonb_array_length(data->'visionBoard')), 0)
		 FROM user_documents`,
		args,
	).Scan(
		&stats.Users, &stats.Documents, &stats.ActiveDocuments,
		&stats.Content.Todos, &stats.Content.CompletedTodos, &stats.Content.Habits,
		&stats.Content.JournalEntries, &stats.Content.Expenses, &stats.Content.VisionImages,
	)
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage documents: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE success),
		        COUNT(*) FILTER (WHERE NOT success),
		        COALESCE(AVG(latency_ms) FILTER (WHERE created_at >= @since), 0)::bigint
		 FROM ai_requests`,
		args,
	).Scan(&stats.AIRequests, &stats.AISuccess, &stats.AIFail, &stats.AIAvgLatencyMS)
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage ai totals: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT date_trunc('day', created_at)::date AS day,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE NOT success)
		 FROM ai_requests
		 WHERE created_at >= @since
		 GROUP BY day
		 ORDER BY day DESC`,
		args,
	)
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage ai by day: %w", err)
	}
	stats.AIRequestsByDay, err = pgx.CollectRows(rows, pgx.RowToStructByPos[DailyCount])
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage ai by day: %w", err)
	}

	rows, err = r.db.Query(ctx,
		`SELECT request_type, COUNT(*) FROM ai_requests WHERE created_at >= @since GROUP BY request_type`,
		args,
	)
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage ai by type: %w", err)
	}
	var (
		requestType string
		count       int
	)
	_, err = pgx.ForEachRow(rows, []any{&requestType, &count}, func() error {
		stats.AIRequestsByType[requestType] = count
		return nil
	})
	if err != nil {
		return UsageStats{}, fmt.Errorf("usage ai by type: %w", err)
	}

	return stats, nil
}

// buildAIRequestWhere строит WHERE в фиксированном порядке полей фильтра.
func buildAIRequestWhere(filter AIRequestFilter) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{}
	var clauses []string

	add := func(clause, name string, value any) {
		clauses = append(clauses, clause)
		args[name] = value
	}

	if filter.UserID != nil {
		add("user_id = @user_id", "user_id", *filter.UserID)
	}
	if filter.Success != nil {
		add("success = @success", "success", *filter.Success)
	}
	if filter.RequestType != nil {
		add("request_type = @request_type", "request_type", *filter.RequestType)
	}
	if filter.ErrorCategory != nil {
		add("error_category = @error_category", "error_category", *filter.ErrorCategory)
	}
	if filter.Since != nil {
		add("created_at >= @since", "since", filter.Since.UTC())
	}
	if filter.Until != nil {
		add("created_at < @until", "until", filter.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
