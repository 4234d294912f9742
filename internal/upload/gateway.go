// Package upload превращает локальные изображения (байты или Base64 data URL)
// в публичные URL объектного хранилища.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/biruktk/LifeTraker/internal/document"
)

const (
	DefaultBucket    = "images"
	defaultExtension = "jpeg"
)

var ErrInvalidDataURL = errors.New("invalid data url")

// ObjectStore: бэкенд объектного хранилища. Put перезаписывает объект, если он существует.
type ObjectStore interface {
	Put(ctx context.Context, bucket, objectPath, contentType string, r io.Reader, size int64) error
	PublicURL(bucket, objectPath string) string
}

type Blob struct {
	Data        []byte
	ContentType string
}

// BlobFromDataURL разбирает data:<mime>;base64,<payload>.
func BlobFromDataURL(dataURL string) (Blob, error) {
	if !IsDataURL(dataURL) {
		return Blob{}, ErrInvalidDataURL
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !ok {
		return Blob{}, ErrInvalidDataURL
	}

	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return Blob{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return Blob{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
	}

	contentType := ""
	if len(params) > 1 {
		contentType = params[0]
	}

	return Blob{Data: data, ContentType: contentType}, nil
}

func IsDataURL(value string) bool {
	return strings.HasPrefix(value, "data:")
}

type Gateway struct {
	store  ObjectStore
	bucket string
	now    func() time.Time
	suffix func() string
}

// NewGateway создает шлюз загрузки поверх хранилища; bucket задает бакет по умолчанию.
func NewGateway(store ObjectStore, bucket string) *Gateway {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Gateway{
		store:  store,
		bucket: bucket,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Upload сохраняет blob в <ownerID>/<unix-ms>-<suffix>.<ext> и возвращает публичный URL.
// Пустой bucket означает бакет по умолчанию.
func (g *Gateway) Upload(ctx context.Context, blob Blob, ownerID, bucket string) (string, error) {
	if bucket == "" {
		bucket = g.bucket
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", &UploadError{Bucket: bucket, Err: errors.New("owner id is required")}
	}

	objectPath := g.objectPath(ownerID, blob.ContentType)
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "image/" + defaultExtension
	}

	if err := g.store.Put(ctx, bucket, objectPath, contentType, bytes.NewReader(blob.Data), int64(len(blob.Data))); err != nil {
		return "", classify(bucket, objectPath, err)
	}

	return g.store.PublicURL(bucket, objectPath), nil
}

func (g *Gateway) objectPath(ownerID, contentType string) string {
	return fmt.Sprintf("%s/%d-%s.%s", ownerID, g.now().UnixMilli(), g.suffix(), Extension(contentType))
}

// Extension выводит расширение файла из MIME-типа: image/png -> png, image/svg+xml -> svg.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return defaultExtension
	}

	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return defaultExtension
	}
	subtype, _, _ = strings.Cut(subtype, "+")

	var ext strings.Builder
	for _, r := range subtype {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			ext.WriteRune(r)
		}
	}

	switch ext.String() {
	case "":
		return defaultExtension
	case "jpg", "pjpeg":
		return "jpeg"
	default:
		return ext.String()
	}
}

// ReconcileVisionBoard загружает все изображения доски, хранящиеся как data URL,
// и заменяет src на URL. Порядок и остальные поля сохраняются. Изображение,
// которое не удалось загрузить, остается в Base64; возвращается первая ошибка.
func (g *Gateway) ReconcileVisionBoard(ctx context.Context, images []document.VisionImage, ownerID string) ([]document.VisionImage, error) {
	out := make([]document.VisionImage, len(images))
	copy(out, images)

	var firstErr error
	for i, image := range out {
		url, err := g.uploadDataURL(ctx, image.Src, ownerID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i].Src = url
	}

	return out, firstErr
}

// ReconcileDocument переносит в хранилище все Base64-изображения документа:
// фото профиля, доску визуализации и картинки постов.
func (g *Gateway) ReconcileDocument(ctx context.Context, doc document.UserDocument, ownerID string) (document.UserDocument, error) {
	out := doc.Clone()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if out.User.ProfileImage != "" {
		url, err := g.uploadDataURL(ctx, out.User.ProfileImage, ownerID)
		if err == nil {
			out.User.ProfileImage = url
		}
		keep(err)
	}

	board, err := g.ReconcileVisionBoard(ctx, out.VisionBoard, ownerID)
	out.VisionBoard = board
	keep(err)

	for i, post := range out.SocialQueue {
		if post.Image == nil {
			continue
		}
		url, err := g.uploadDataURL(ctx, *post.Image, ownerID)
		if err == nil {
			out.SocialQueue[i].Image = &url
		}
		keep(err)
	}

	return out, firstErr
}

// uploadDataURL возвращает value без изменений, если это уже не data URL.
func (g *Gateway) uploadDataURL(ctx context.Context, value, ownerID string) (string, error) {
	if !IsDataURL(value) {
		return value, nil
	}

	blob, err := BlobFromDataURL(value)
	if err != nil {
		return value, &UploadError{Bucket: g.bucket, Err: err}
	}

	url, err := g.Upload(ctx, blob, ownerID, "")
	if err != nil {
		return value, err
	}
	return url, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
