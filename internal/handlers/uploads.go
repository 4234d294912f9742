package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/upload"
)

type Uploader interface {
	Upload(ctx context.Context, blob upload.Blob, ownerID, bucket string) (string, error)
}

type UploadHandler struct {
	Uploader Uploader
	MaxBytes int64
	Logger   *slog.Logger
}

// NewUploadHandler создает обработчик загрузки изображений.
func NewUploadHandler(uploader Uploader, maxBytes int64, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{Uploader: uploader, MaxBytes: maxBytes, Logger: logger}
}

type DataURLRequest struct {
	DataURL string `json:"data_url" validate:"required"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Create принимает multipart-поле file или JSON {"data_url": ...} и возвращает публичный URL.
func (h *UploadHandler) Create(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	blob, err := h.readBlob(c)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
		}
		return badRequest(c, "invalid image")
	}

	url, err := h.Uploader.Upload(c.Request().Context(), blob, userID.String(), "")
	if err != nil {
		var policyErr *upload.AccessPolicyError
		if errors.As(err, &policyErr) {
			h.Logger.Warn("upload denied by storage policy",
				slog.String("user_id", userID.String()),
				slog.String("bucket", policyErr.Bucket),
				slog.String("error", err.Error()),
			)
			return c.JSON(http.StatusForbidden, map[string]string{"error": policyErr.Remediation()})
		}

		h.Logger.Error("upload failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upload failed"})
	}

	return c.JSON(http.StatusCreated, UploadResponse{URL: url})
}

var errTooLarge = errors.New("payload too large")

func (h *UploadHandler) readBlob(c echo.Context) (upload.Blob, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		header, err := c.FormFile("file")
		if err != nil {
			return upload.Blob{}, err
		}
		if h.MaxBytes > 0 && header.Size > h.MaxBytes {
			return upload.Blob{}, errTooLarge
		}

		file, err := header.Open()
		if err != nil {
			return upload.Blob{}, err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return upload.Blob{}, err
		}

		contentType := header.Header.Get(echo.HeaderContentType)
		if contentType == "" || contentType == echo.MIMEOctetStream {
			contentType = http.DetectContentType(data)
		}
		return upload.Blob{Data: data, ContentType: contentType}, nil
	}

	var req DataURLRequest
	if err := c.Bind(&req); err != nil {
		return upload.Blob{}, err
	}
	if err := c.Validate(&req); err != nil {
		return upload.Blob{}, err
	}

	blob, err := upload.BlobFromDataURL(strings.TrimSpace(req.DataURL))
	if err != nil {
		return upload.Blob{}, err
	}
	if h.MaxBytes > 0 && int64(len(blob.Data)) > h.MaxBytes {
		return upload.Blob{}, errTooLarge
	}
	return blob, nil
}
