package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/biruktk/LifeTraker/internal/auth"
	"github.com/biruktk/LifeTraker/internal/notifications"
)

const (
	defaultKeepAlive = 25 * time.Second
	// подсказка EventSource, через сколько переподключаться
	reconnectDelayMS = 3000
)

type NotificationHandler struct {
	Hub       *notifications.Hub
	KeepAlive time.Duration
}

// NewNotificationHandler создает SSE-обработчик событий документа.
func NewNotificationHandler(hub *notifications.Hub) *NotificationHandler {
	return &NotificationHandler{Hub: hub, KeepAlive: defaultKeepAlive}
}

// Stream отдает события document_saved пользователя. EventSource не умеет
// ставить заголовки, поэтому своя сессия передается в ?session=; события,
// сохраненные этой же сессией, не отправляются.
func (h *NotificationHandler) Stream(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return serverError(c)
	}

	// поток живет дольше WriteTimeout сервера
	_ = http.NewResponseController(c.Response().Writer).SetWriteDeadline(time.Time{})

	ownSession := c.QueryParam("session")
	if ownSession == "" {
		ownSession = clientSession(c)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	events, unsubscribe := h.Hub.Subscribe(userID)
	defer unsubscribe()

	stream := sseWriter{w: c.Response()}
	fmt.Fprintf(c.Response(), "retry: %d\n\n", reconnectDelayMS)
	if err := stream.send(notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"user_id": userID.String()},
	}); err != nil {
		return nil
	}
	flusher.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.WriteString(c.Response(), ": ping\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if fromSession(event, ownSession) {
				continue
			}
			if err := stream.send(event); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

// fromSession сообщает, что событие document_saved вызвано сессией session.
func fromSession(event notifications.Event, session string) bool {
	if session == "" || event.Type != notifications.EventDocumentSaved {
		return false
	}
	saved, ok := event.Data.(notifications.DocumentSaved)
	return ok && saved.Origin == session
}

// sseWriter нумерует события, чтобы клиент мог передать Last-Event-ID.
type sseWriter struct {
	w    io.Writer
	next int
}

func (s *sseWriter) send(event notifications.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.next++
	_, err = fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.next, event.Type, payload)
	return err
}
