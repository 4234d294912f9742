package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/biruktk/LifeTraker/internal/document"
)

type putCall struct {
	bucket      string
	path        string
	contentType string
	data        []byte
}

type fakeObjectStore struct {
	calls []putCall
	err   func(path string) error
}

func (s *fakeObjectStore) Put(_ context.Context, bucket, objectPath, contentType string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	s.calls = append(s.calls, putCall{bucket: bucket, path: objectPath, contentType: contentType, data: data})
	if s.err != nil {
		return s.err(objectPath)
	}
	return nil
}

func (s *fakeObjectStore) PublicURL(bucket, objectPath string) string {
	return "https://cdn.example.com/" + bucket + "/" + objectPath
}

func newTestGateway(store ObjectStore) *Gateway {
	gateway := NewGateway(store, "")
	gateway.now = func() time.Time { return time.UnixMilli(1717236000000) }
	gateway.suffix = func() string { return "abc123" }
	return gateway
}

func pngDataURL(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

// TestUploadBuildsOwnerScopedPath проверяет путь объекта и возвращаемый URL.
func TestUploadBuildsOwnerScopedPath(t *testing.T) {
	store := &fakeObjectStore{}
	gateway := newTestGateway(store)

	url, err := gateway.Upload(context.Background(), Blob{Data: []byte("png"), ContentType: "image/png"}, "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := "https://cdn.example.com/images/user-1/1717236000000-abc123.png"
	if url != want {
		t.Fatalf("expected %s, got %s", want, url)
	}
	if store.calls[0].contentType != "image/png" || string(store.calls[0].data) != "png" {
		t.Fatalf("unexpected put call %+v", store.calls[0])
	}
}

// TestUploadDefaultsToJPEG проверяет расширение по умолчанию.
func TestUploadDefaultsToJPEG(t *testing.T) {
	store := &fakeObjectStore{}
	gateway := newTestGateway(store)

	url, err := gateway.Upload(context.Background(), Blob{Data: []byte("x")}, "user-1", "avatars")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasSuffix(url, "/avatars/user-1/1717236000000-abc123.jpeg") {
		t.Fatalf("unexpected url %s", url)
	}
	if store.calls[0].contentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg content type, got %s", store.calls[0].contentType)
	}
}

// TestExtension проверяет вывод расширения из MIME-типа.
func TestExtension(t *testing.T) {
	cases := map[string]string{
		"image/png":                "png",
		"image/webp":               "webp",
		"image/gif":                "gif",
		"image/jpg":                "jpeg",
		"image/svg+xml":            "svg",
		"image/png; charset=utf-8": "png",
		"":                         "jpeg",
		"garbage":                  "jpeg",
	}
	for contentType, want := range cases {
		if got := Extension(contentType); got != want {
			t.Fatalf("%q: expected %s, got %s", contentType, want, got)
		}
	}
}

// TestUploadPolicyDenied проверяет классификацию отказа по политике.
func TestUploadPolicyDenied(t *testing.T) {
	cases := map[string]error{
		"status":  &BackendError{StatusCode: http.StatusForbidden, Code: "Forbidden"},
		"code":    &BackendError{StatusCode: http.StatusBadRequest, Code: "AllAccessDisabled"},
		"message": errors.New("new row violates row-level security policy for table objects"),
	}

	for name, cause := range cases {
		store := &fakeObjectStore{err: func(string) error { return cause }}
		gateway := newTestGateway(store)

		_, err := gateway.Upload(context.Background(), Blob{Data: []byte("x"), ContentType: "image/png"}, "user-1", "")

		var policyErr *AccessPolicyError
		if !errors.As(err, &policyErr) {
			t.Fatalf("%s: expected AccessPolicyError, got %T %v", name, err, err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("%s: expected cause to be wrapped", name)
		}
		if !strings.Contains(policyErr.Remediation(), "images") {
			t.Fatalf("%s: expected remediation to name the bucket", name)
		}
	}
}

// TestUploadGenericFailure проверяет, что прочие ошибки не считаются отказом по политике.
func TestUploadGenericFailure(t *testing.T) {
	store := &fakeObjectStore{err: func(string) error {
		return &BackendError{StatusCode: http.StatusServiceUnavailable, Code: "SlowDown", Message: "try later"}
	}}
	gateway := newTestGateway(store)

	_, err := gateway.Upload(context.Background(), Blob{Data: []byte("x")}, "user-1", "")

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %T %v", err, err)
	}
	var policyErr *AccessPolicyError
	if errors.As(err, &policyErr) {
		t.Fatal("expected generic failure, not policy error")
	}
}

// TestUploadRequiresOwner проверяет отказ без владельца.
func TestUploadRequiresOwner(t *testing.T) {
	gateway := newTestGateway(&fakeObjectStore{})

	_, err := gateway.Upload(context.Background(), Blob{Data: []byte("x")}, " ", "")
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
}

// TestBlobFromDataURL проверяет разбор Base64 data URL.
func TestBlobFromDataURL(t *testing.T) {
	blob, err := BlobFromDataURL(pngDataURL("hello"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if blob.ContentType != "image/png" || string(blob.Data) != "hello" {
		t.Fatalf("unexpected blob %+v", blob)
	}

	for _, bad := range []string{"https://cdn/x.png", "data:image/png,raw", "data:image/png;base64", "data:image/png;base64,!!!"} {
		if _, err := BlobFromDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Fatalf("%q: expected ErrInvalidDataURL, got %v", bad, err)
		}
	}
}

// TestReconcileVisionBoard проверяет замену Base64 на URL с сохранением порядка.
func TestReconcileVisionBoard(t *testing.T) {
	attempt := 0
	store := &fakeObjectStore{err: func(string) error {
		attempt++
		if attempt == 2 {
			return errors.New("connection reset")
		}
		return nil
	}}
	gateway := newTestGateway(store)

	images := []document.VisionImage{
		{ID: 1, Src: pngDataURL("one"), Area: 0.25, AspectRatio: 1.5},
		{ID: 2, Src: "https://cdn.example.com/images/user-1/existing.png", Area: 0.5},
		{ID: 3, Src: pngDataURL("three"), Area: 0.75},
		{ID: 4, Src: pngDataURL("four"), Area: 1},
	}

	got, err := gateway.ReconcileVisionBoard(context.Background(), images, "user-1")

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected first failure to be returned, got %v", err)
	}
	if len(store.calls) != 3 {
		t.Fatalf("expected 3 uploads, got %d", len(store.calls))
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 images, got %d", len(got))
	}
	if IsDataURL(got[0].Src) || got[0].ID != 1 || got[0].Area != 0.25 || got[0].AspectRatio != 1.5 {
		t.Fatalf("expected first image uploaded with fields kept, got %+v", got[0])
	}
	if got[1].Src != images[1].Src {
		t.Fatalf("expected existing url untouched, got %s", got[1].Src)
	}
	if got[2].Src != images[2].Src {
		t.Fatal("expected failed image to stay as data url")
	}
	if IsDataURL(got[3].Src) {
		t.Fatal("expected later image to be uploaded after a failure")
	}
	if !IsDataURL(images[0].Src) {
		t.Fatal("expected input slice to stay unchanged")
	}
}

// TestReconcileDocument проверяет загрузку фото профиля и картинок постов.
func TestReconcileDocument(t *testing.T) {
	store := &fakeObjectStore{}
	gateway := newTestGateway(store)

	doc := document.Template("Ava")
	doc.User.ProfileImage = pngDataURL("me")
	image := pngDataURL("post")
	doc.SocialQueue = []document.SocialPost{{ID: "p1", Content: "Hi", Image: &image, Platforms: []string{"x"}, Status: document.PostStatusQueued}}

	got, err := gateway.ReconcileDocument(context.Background(), doc, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if IsDataURL(got.User.ProfileImage) || IsDataURL(*got.SocialQueue[0].Image) {
		t.Fatalf("expected images replaced by urls, got %+v", got)
	}
	if !IsDataURL(doc.User.ProfileImage) || !IsDataURL(*doc.SocialQueue[0].Image) {
		t.Fatal("expected source document unchanged")
	}
	if len(store.calls) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(store.calls))
	}
}
