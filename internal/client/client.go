// Package client реализует типизированный HTTP-клиент API трекера. Клиент
// удовлетворяет tracker.Store, поэтому менеджер документа может сохранять через сервер.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/biruktk/LifeTraker/internal/document"
	"github.com/biruktk/LifeTraker/internal/tracker"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second

	headerClientSession = "X-Client-Session"
)

var ErrNotLoggedIn = errors.New("not logged in")

// APIError описывает ответ сервера со статусом вне 2xx.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name,omitempty"`
}

// DisplayName возвращает имя пользователя или пустую строку.
func (u User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type saveResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type mutationResponse struct {
	Document  document.UserDocument `json:"document"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type Task struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type ChatReply struct {
	Text      string     `json:"text"`
	Tasks     []Task     `json:"tasks"`
	Applied   int        `json:"applied"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// New создает клиента; session попадает в X-Client-Session и позволяет
// отличить свои события document_saved от чужих.
func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: uuid.NewString(),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Session возвращает идентификатор клиентской сессии.
func (c *Client) Session() string {
	return c.session
}

// Login получает пару токенов и возвращает пользователя.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]string{"email": email, "password": password}

	var response authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", body, &response, false); err != nil {
		return User{}, err
	}

	c.setTokens(response.AccessToken, response.RefreshToken)
	return response.User, nil
}

// Refresh ротирует refresh-токен.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	var response authResponse
	body := map[string]string{"refresh_token": refresh}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/refresh", body, &response, false); err != nil {
		return err
	}

	c.setTokens(response.AccessToken, response.RefreshToken)
	return nil
}

// GetDocument загружает документ текущего пользователя. identityID должен
// совпадать с владельцем токена: сервер отдает документ только ему.
func (c *Client) GetDocument(ctx context.Context, _ string) (json.RawMessage, error) {
	request, err := c.newRequest(ctx, http.MethodGet, "/api/v1/document", nil)
	if err != nil {
		return nil, err
	}

	body, _, err := c.send(request, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, tracker.ErrNotFound
		}
		return nil, err
	}

	return json.RawMessage(body), nil
}

// UpsertDocument заменяет документ целиком.
func (c *Client) UpsertDocument(ctx context.Context, _ string, data json.RawMessage) error {
	request, err := c.newRequest(ctx, http.MethodPut, "/api/v1/document", bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	_, _, err = c.send(request, true)
	return err
}

// Mutate применяет мутацию на сервере и возвращает сохраненный документ.
func (c *Client) Mutate(ctx context.Context, mutation document.Mutation) (document.UserDocument, error) {
	payload, err := document.EncodeMutation(mutation)
	if err != nil {
		return document.UserDocument{}, err
	}

	request, err := c.newRequest(ctx, http.MethodPost, "/api/v1/document/mutations", bytes.NewReader(payload))
	if err != nil {
		return document.UserDocument{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	body, _, err := c.send(request, true)
	if err != nil {
		return document.UserDocument{}, err
	}

	var response mutationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return document.UserDocument{}, fmt.Errorf("decode mutation response: %w", err)
	}
	return response.Document, nil
}

// Export скачивает резервную копию и возвращает ее вместе с именем файла.
func (c *Client) Export(ctx context.Context) ([]byte, string, error) {
	request, err := c.newRequest(ctx, http.MethodGet, "/api/v1/document/export", nil)
	if err != nil {
		return nil, "", err
	}

	body, header, err := c.send(request, true)
	if err != nil {
		return nil, "", err
	}

	filename := ""
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	if filename == "" {
		filename = document.BackupFilename(time.Now())
	}

	return body, filename, nil
}

// Import загружает резервную копию и заменяет ею документ.
func (c *Client) Import(ctx context.Context, data []byte) (time.Time, error) {
	request, err := c.newRequest(ctx, http.MethodPost, "/api/v1/document/import", bytes.NewReader(data))
	if err != nil {
		return time.Time{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	body, _, err := c.send(request, true)
	if err != nil {
		return time.Time{}, err
	}

	var response saveResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return time.Time{}, fmt.Errorf("decode import response: %w", err)
	}
	return response.UpdatedAt, nil
}

// Chat отправляет сообщение ассистенту; apply добавляет найденные задачи в документ.
func (c *Client) Chat(ctx context.Context, message, date string, apply bool) (ChatReply, error) {
	path := "/api/v1/ai/chat"
	if apply {
		path += "?apply=true"
	}

	body := map[string]string{"message": message}
	if date != "" {
		body["date"] = date
	}

	var reply ChatReply
	if err := c.doJSON(ctx, http.MethodPost, path, body, &reply, true); err != nil {
		return ChatReply{}, err
	}
	return reply, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, authorized bool) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	request, err := c.newRequest(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	body, _, err := c.send(request, authorized)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set(headerClientSession, c.session)
	return request, nil
}

// send выполняет запрос; при 401 один раз обновляет токены и повторяет.
func (c *Client) send(request *http.Request, authorized bool) ([]byte, http.Header, error) {
	var payload []byte
	if request.Body != nil {
		data, err := io.ReadAll(request.Body)
		if err != nil {
			return nil, nil, err
		}
		payload = data
	}

	body, header, err := c.attempt(request, payload, authorized)
	var apiErr *APIError
	if !authorized || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return body, header, err
	}

	if refreshErr := c.Refresh(request.Context()); refreshErr != nil {
		return nil, nil, err
	}
	return c.attempt(request, payload, authorized)
}

func (c *Client) attempt(request *http.Request, payload []byte, authorized bool) ([]byte, http.Header, error) {
	request = request.Clone(request.Context())
	if payload != nil {
		request.Body = io.NopCloser(bytes.NewReader(payload))
		request.ContentLength = int64(len(payload))
	}

	if authorized {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		if token == "" {
			return nil, nil, ErrNotLoggedIn
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: response.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
		return nil, nil, apiErr
	}

	return body, response.Header, nil
}

func (c *Client) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

var _ tracker.Store = (*Client)(nil)
