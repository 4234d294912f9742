package upload

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AccessPolicyError: хранилище отклонило запись по правам или политике
// бакета. Вызывающий может показать пользователю, что нужно настроить.
type AccessPolicyError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *AccessPolicyError) Error() string {
	return fmt.Sprintf("upload %s/%s rejected by storage policy: %v", e.Bucket, e.Path, e.Err)
}

func (e *AccessPolicyError) Unwrap() error {
	return e.Err
}

// Remediation возвращает подсказку для пользователя.
func (e *AccessPolicyError) Remediation() string {
	return fmt.Sprintf("storage bucket %q does not allow uploads for this account; allow authenticated writes to the bucket and public reads of its objects", e.Bucket)
}

type UploadError struct {
	Bucket string
	Path   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s/%s failed: %v", e.Bucket, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// BackendError описывает ответ хранилища с HTTP-статусом и кодом ошибки провайдера.
type BackendError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storage backend: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("storage backend: %d %s: %v", e.StatusCode, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

var policyMarkers = []string{"policy", "permission", "row-level security", "unauthorized"}

var policyCodes = map[string]bool{
	"AccessDenied":          true,
	"AllAccessDisabled":     true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
}

// isPolicyRejection распознает отказ по правам: по статусу, коду или тексту ошибки.
func isPolicyRejection(err error) bool {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		if backendErr.StatusCode == http.StatusUnauthorized || backendErr.StatusCode == http.StatusForbidden {
			return true
		}
		if policyCodes[backendErr.Code] {
			return true
		}
	}

	message := strings.ToLower(err.Error())
	for _, marker := range policyMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func classify(bucket, path string, err error) error {
	if isPolicyRejection(err) {
		return &AccessPolicyError{Bucket: bucket, Path: path, Err: err}
	}
	return &UploadError{Bucket: bucket, Path: path, Err: err}
}
