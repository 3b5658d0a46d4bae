package service

import (
	"sync"

	"github.com/wrongjunior/adminnotify/internal/domain"
	"log/slog"
)

// Виды кадров живой ленты.
const (
	FeedEntry   = "entry"
	FeedState   = "state"
	FeedCleared = "cleared"
)

// FeedMessage описывает кадр живой ленты для слоя представления.
type FeedMessage struct {
	Kind  string                  `json:"kind"`
	Entry *domain.LogEntry        `json:"entry,omitempty"`
	State *domain.ConnectionState `json:"state,omitempty"`
}

// Notifier определяет интерфейс для уведомления подписчика (например, через WebSocket).
type Notifier interface {
	Notify(msg FeedMessage)
}

// Client представляет абстрактного подписчика (обёртка над Notifier).
type Client struct {
	Notifier Notifier
}

// EventService рассылает изменения журнала и состояния соединения подписчикам
// слоя представления. Реализует Publisher.
type EventService struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewEventService создаёт новый экземпляр сервиса.
func NewEventService(logger *slog.Logger) *EventService {
	return &EventService{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register добавляет подписчика.
func (s *EventService) Register(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = struct{}{}
	s.logger.Info("Feed client registered", "clients", len(s.clients))
}

// Unregister удаляет подписчика.
func (s *EventService) Unregister(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	s.logger.Info("Feed client unregistered", "clients", len(s.clients))
}

// Broadcast рассылает кадр всем зарегистрированным подписчикам.
func (s *EventService) Broadcast(msg FeedMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		client.Notifier.Notify(msg)
	}
	s.logger.Debug("Feed message broadcast", "kind", msg.Kind, "clients", len(s.clients))
}

func (s *EventService) PublishEntry(entry domain.LogEntry) {
	s.Broadcast(FeedMessage{Kind: FeedEntry, Entry: &entry})
}

func (s *EventService) PublishState(state domain.ConnectionState) {
	s.Broadcast(FeedMessage{Kind: FeedState, State: &state})
}

func (s *EventService) PublishCleared() {
	s.Broadcast(FeedMessage{Kind: FeedCleared})
}
