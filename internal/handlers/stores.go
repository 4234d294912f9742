package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/models"
	"github.com/biruktk/LifeTraker/internal/repository"
	"github.com/biruktk/LifeTraker/internal/upload"
)

type UserStore interface {
	CreateWithDocument(ctx context.Context, email, passwordHash string, name *string, document json.RawMessage) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type DocumentStore interface {
	Get(ctx context.Context, userID uuid.UUID) (models.StoredDocument, error)
	Upsert(ctx context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error)
}

type AdminDocumentStore interface {
	ListAll(ctx context.Context, limit, offset int) ([]repository.DocumentSummary, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, userID uuid.UUID, data json.RawMessage) (time.Time, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type AdminStore interface {
	ListAIRequests(ctx context.Context, filter repository.AIRequestFilter, limit, offset int, includePayloads bool) ([]repository.AIRequestRecord, error)
	CountAIRequests(ctx context.Context, filter repository.AIRequestFilter) (int, error)
	UsageStats(ctx context.Context, days int) (repository.UsageStats, error)
}

type AIRequestLogger interface {
	LogRequest(ctx context.Context, log repository.AIRequestLog) error
}

// ImageReconciler переносит Base64-изображения документа в объектное хранилище.
type ImageReconciler interface {
	ReconcileDocument(ctx context.Context, doc document.UserDocument, ownerID string) (document.UserDocument, error)
}

var (
	_ UserStore          = (*repository.UserRepository)(nil)
	_ DocumentStore      = (*repository.DocumentRepository)(nil)
	_ AdminDocumentStore = (*repository.DocumentRepository)(nil)
	_ AdminStore         = (*repository.AdminRepository)(nil)
	_ AIRequestLogger    = (*repository.AIRequestRepository)(nil)
	_ ImageReconciler    = (*upload.Gateway)(nil)
	_ Uploader           = (*upload.Gateway)(nil)
)
