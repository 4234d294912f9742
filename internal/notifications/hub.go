// Package notifications рассылает события документа открытым SSE-сессиям пользователя.
package notifications

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	EventConnected     = "connected"
	EventDocumentSaved = "document_saved"
)

// subscriberBuffer: сколько событий может ждать медленный подписчик; лишние теряются.
const subscriberBuffer = 10

type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// DocumentSaved содержит данные события document_saved. Origin совпадает с
// заголовком X-Client-Session сохранившего клиента, чтобы тот мог пропустить свое событие.
type DocumentSaved struct {
	UpdatedAt time.Time `json:"updated_at"`
	Origin    string    `json:"origin,omitempty"`
}

type subscription struct {
	events chan Event
	once   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub хранит подписки по пользователям. После Close новые подписки сразу
// получают закрытый канал.
type Hub struct {
	mu      sync.RWMutex
	byUser  map[uuid.UUID]map[*subscription]struct{}
	closed  bool
	dropped atomic.Int64
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		byUser: make(map[uuid.UUID]map[*subscription]struct{}),
		now:    time.Now,
	}
}

// Subscribe возвращает канал событий пользователя и функцию отписки;
// функцию можно вызывать повторно.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	sub := &subscription{events: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub.events, func() {}
	}

	subs := h.byUser[userID]
	if subs == nil {
		subs = make(map[*subscription]struct{})
		h.byUser[userID] = subs
	}
	subs[sub] = struct{}{}

	return sub.events, func() { h.unsubscribe(userID, sub) }
}

func (h *Hub) unsubscribe(userID uuid.UUID, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.byUser[userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.byUser, userID)
		}
	}
	sub.close()
}

// Publish ставит время события и отправляет его всем подписчикам
// пользователя без блокировки.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	if h == nil {
		return
	}
	event.Timestamp = h.now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.byUser[userID] {
		select {
		case sub.events <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// PublishDocumentSaved сообщает остальным сессиям пользователя о новой версии документа.
func (h *Hub) PublishDocumentSaved(userID uuid.UUID, updatedAt time.Time, origin string) {
	h.Publish(userID, Event{
		Type: EventDocumentSaved,
		Data: DocumentSaved{UpdatedAt: updatedAt.UTC(), Origin: origin},
	})
}

// Subscribers возвращает число открытых подписок пользователя.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Dropped возвращает число событий, не доставленных из-за полного буфера.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close закрывает все подписки, чтобы SSE-потоки завершились до остановки сервера.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, subs := range h.byUser {
		for sub := range subs {
			sub.close()
		}
		delete(h.byUser, userID)
	}
}
