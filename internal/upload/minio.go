package upload

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

// MinioStore пишет объекты в S3-совместимое хранилище.
type MinioStore struct {
	client        *minio.Client
	publicBaseURL string
}

// NewMinioStore создает клиента S3-совместимого хранилища.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/")
	}

	return &MinioStore{client: client, publicBaseURL: base}, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, objectPath, contentType string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode != 0 || resp.Code != "" {
			return &BackendError{StatusCode: resp.StatusCode, Code: resp.Code, Message: resp.Message, Err: err}
		}
		return err
	}
	return nil
}

func (s *MinioStore) PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, objectPath)
}
