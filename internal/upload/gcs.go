package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStore пишет объекты в Google Cloud Storage.
type GCSStore struct {
	client        *storage.Client
	publicBaseURL string
}

// NewGCSStore создает клиента GCS. Без файла ключа используются Application Default Credentials.
func NewGCSStore(ctx context.Context, credentialsFile, publicBaseURL string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = gcsPublicHost
	}

	return &GCSStore{client: client, publicBaseURL: base}, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, objectPath, contentType string, r io.Reader, _ int64) error {
	w := s.client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	// небольшие файлы уходят одним запросом
	w.ChunkSize = 0

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return gcsError(err)
	}
	if err := w.Close(); err != nil {
		return gcsError(err)
	}
	return nil
}

func (s *GCSStore) PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, objectPath)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func gcsError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		code := ""
		if len(apiErr.Errors) > 0 {
			code = apiErr.Errors[0].Reason
		}
		return &BackendError{StatusCode: apiErr.Code, Code: code, Message: apiErr.Message, Err: err}
	}
	return err
}
