package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/biruktk/LifeTraker/internal/document"
)

const (
	DefaultDebounce       = 1500 * time.Millisecond
	DefaultPersistTimeout = 10 * time.Second
)

type SyncStatus string

const (
	StatusSaved  SyncStatus = "SAVED"
	StatusSaving SyncStatus = "SAVING"
	StatusError  SyncStatus = "ERROR"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("document not found")
	ErrNotLoaded        = errors.New("document not loaded")
	ErrClosed           = errors.New("session closed")
)

// Store: удаленное хранилище документа с ключом по идентификатору пользователя.
// GetDocument возвращает ErrNotFound, если документа еще нет.
type Store interface {
	GetDocument(ctx context.Context, identityID string) (json.RawMessage, error)
	UpsertDocument(ctx context.Context, identityID string, data json.RawMessage) error
}

type Identity struct {
	ID   string
	Name string
}

type Options struct {
	Debounce       time.Duration
	PersistTimeout time.Duration
	Clock          Clock
	Logger         *slog.Logger
}

// Manager владеет документом активной сессии: применяет мутации в памяти
// и откладывает сохранение целого документа до паузы в изменениях.
type Manager struct {
	store          Store
	clock          Clock
	debounce       time.Duration
	persistTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	identity Identity
	doc      document.UserDocument
	loaded   bool
	closed   bool
	status   SyncStatus
	lastErr  error

	// timer: единственный слот отложенного сохранения; armed меняется при
	// каждом взводе, чтобы сработавший после Stop таймер распознал себя устаревшим.
	timer   Timer
	armed   uint64
	pending bool

	// issued хранит номер последнего отправленного upsert, applied последнего
	// ответа, изменившего статус.
	issued  uint64
	applied uint64

	// inflight считает отправленные upsert; idle закрывается, когда счетчик
	// возвращается к нулю.
	inflight    int
	idle        chan struct{}
	subscribers map[chan SyncStatus]struct{}
}

// NewManager создает менеджер документа поверх хранилища.
func NewManager(store Store, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		store:          store,
		clock:          opts.Clock,
		debounce:       opts.Debounce,
		persistTimeout: opts.PersistTimeout,
		logger:         opts.Logger,
		status:         StatusSaved,
		subscribers:    make(map[chan SyncStatus]struct{}),
	}
}

// Load загружает документ пользователя. Если документа нет, возвращается
// шаблон с именем пользователя; отсутствующие поля дополняются из шаблона.
// Отложенное сохранение предыдущего документа отправляется до загрузки.
func (m *Manager) Load(ctx context.Context, identity *Identity) (document.UserDocument, error) {
	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		return document.UserDocument{}, ErrNotAuthenticated
	}

	m.firePending()

	doc, err := m.fetch(ctx, *identity)
	if err != nil {
		return document.UserDocument{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return document.UserDocument{}, ErrClosed
	}

	m.stopTimerLocked()
	m.identity = *identity
	m.doc = doc
	m.loaded = true
	m.lastErr = nil
	m.applied = m.issued
	m.setStatusLocked(StatusSaved)

	return doc.Clone(), nil
}

func (m *Manager) fetch(ctx context.Context, identity Identity) (document.UserDocument, error) {
	raw, err := m.store.GetDocument(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return document.Template(identity.Name), nil
		}
		return document.UserDocument{}, fmt.Errorf("load document: %w", err)
	}

	doc, err := document.Decode(raw, identity.Name)
	if err != nil {
		return document.UserDocument{}, fmt.Errorf("load document: %w", err)
	}

	return doc, nil
}

// Apply применяет мутацию к документу в памяти и планирует сохранение.
func (m *Manager) Apply(mutation document.Mutation) (document.UserDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return document.UserDocument{}, ErrClosed
	}
	if !m.loaded {
		return document.UserDocument{}, ErrNotLoaded
	}

	m.doc = document.Apply(m.doc, mutation)
	m.scheduleLocked()

	return m.doc.Clone(), nil
}

// SchedulePersist заменяет документ целиком (например, после импорта)
// и планирует его сохранение.
func (m *Manager) SchedulePersist(doc document.UserDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.loaded {
		return ErrNotLoaded
	}

	m.doc = doc.Clone()
	m.scheduleLocked()
	return nil
}

func (m *Manager) scheduleLocked() {
	m.stopTimerLocked()

	m.armed++
	slot := m.armed
	m.pending = true
	m.timer = m.clock.AfterFunc(m.debounce, func() {
		m.fire(slot)
	})

	m.setStatusLocked(StatusSaving)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = false
}

// fire отправляет снимок документа, актуальный на момент срабатывания слота.
func (m *Manager) fire(slot uint64) {
	m.mu.Lock()
	if m.closed || !m.pending || slot != m.armed {
		m.mu.Unlock()
		return
	}

	m.timer = nil
	m.pending = false
	m.issued++
	seq := m.issued
	identityID := m.identity.ID
	snapshot := m.doc.Clone()
	if m.inflight == 0 {
		m.idle = make(chan struct{})
	}
	m.inflight++
	m.mu.Unlock()

	err := m.persist(identityID, snapshot)
	m.complete(seq, err)
}

// firePending синхронно отправляет взведенный слот, не дожидаясь таймера.
func (m *Manager) firePending() {
	m.mu.Lock()
	slot := m.armed
	pending := m.pending
	if pending && m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	if pending {
		m.fire(slot)
	}
}

func (m *Manager) persist(identityID string, doc document.UserDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()

	return m.store.UpsertDocument(ctx, identityID, payload)
}

// complete применяет результат upsert к статусу. Ответ учитывается, только
// если он относится к последнему отправленному запросу и новый слот не взведен.
func (m *Manager) complete(seq uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		m.inflight--
		if m.inflight == 0 {
			close(m.idle)
		}
	}()

	if err != nil {
		m.logger.Error("document persist failed",
			slog.String("user_id", m.identity.ID),
			slog.Uint64("seq", seq),
			slog.String("error", err.Error()),
		)
	}

	if m.closed || seq <= m.applied || seq != m.issued || m.pending {
		return
	}

	m.applied = seq
	if err != nil {
		m.lastErr = err
		m.setStatusLocked(StatusError)
		return
	}

	m.lastErr = nil
	m.setStatusLocked(StatusSaved)
}

// Flush немедленно отправляет отложенное сохранение и ждет завершения
// всех запросов. Возвращает ошибку последнего сохранения, если статус ERROR.
func (m *Manager) Flush(ctx context.Context) error {
	m.firePending()

	m.mu.Lock()
	idle := m.idle
	busy := m.inflight > 0
	m.mu.Unlock()

	if busy {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusError {
		return m.lastErr
	}
	return nil
}

// Status возвращает текущий статус синхронизации.
func (m *Manager) Status() SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError возвращает ошибку последнего учтенного сохранения.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Document возвращает копию документа только для чтения.
func (m *Manager) Document() document.UserDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Subscribe подписывает на изменения статуса. Медленный подписчик
// пропускает промежуточные значения.
func (m *Manager) Subscribe() (<-chan SyncStatus, func()) {
	ch := make(chan SyncStatus, 4)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subscribers[ch]; ok {
				delete(m.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Close завершает сессию: отменяет отложенное сохранение и закрывает подписки.
// Запросы, уже отправленные в хранилище, не прерываются.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	for ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = map[chan SyncStatus]struct{}{}
}

func (m *Manager) setStatusLocked(status SyncStatus) {
	if m.status == status {
		return
	}
	m.status = status
	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}
