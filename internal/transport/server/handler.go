package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/wrongjunior/adminnotify/internal/domain"
	"github.com/wrongjunior/adminnotify/internal/repository"
	eservice "github.com/wrongjunior/adminnotify/internal/service"
	"github.com/wrongjunior/adminnotify/internal/taxonomy"
	"log/slog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	feedBuffer = 64
)

// NotificationReader описывает то, что слою представления нужно от хранилища уведомлений.
type NotificationReader interface {
	Logs() []domain.LogEntry
	State() domain.ConnectionState
	ClearLogs() error
}

// WebSocketNotifier оборачивает websocket-соединение для реализации интерфейса Notifier.
// Кадры складываются в буфер и отправляются из writePump; при переполнении кадр теряется.
type WebSocketNotifier struct {
	send   chan eservice.FeedMessage
	Logger *slog.Logger
}

// Notify ставит кадр в очередь отправки.
func (w *WebSocketNotifier) Notify(msg eservice.FeedMessage) {
	select {
	case w.send <- msg:
	default:
		w.Logger.Warn("Feed client too slow, dropping message", "kind", msg.Kind)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Консоль может открываться с любого адреса внутри сети администратора.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler реализует HTTP-API и живую ленту для центра уведомлений.
type Handler struct {
	Store        NotificationReader
	EventService *eservice.EventService
	Themes       repository.ThemeRepository
	Logger       *slog.Logger
}

// NewHandler создаёт новый обработчик.
func NewHandler(store NotificationReader, es *eservice.EventService, themes repository.ThemeRepository, logger *slog.Logger) *Handler {
	return &Handler{
		Store:        store,
		EventService: es,
		Themes:       themes,
		Logger:       logger,
	}
}

type statusResponse struct {
	State     domain.ConnectionState `json:"state"`
	Connected bool                   `json:"connected"`
}

type themeResponse struct {
	Theme string `json:"theme"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Error writing JSON", "error", err)
	}
}

// Status отдаёт состояние соединения.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.Store.State()
	h.writeJSON(w, http.StatusOK, statusResponse{State: state, Connected: state == domain.Connected})
}

// Logs отдаёт журнал, новые записи первыми.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Store.Logs())
}

// ClearLogs очищает журнал.
func (h *Handler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ClearLogs(); err != nil {
		h.Logger.Error("Failed to clear logs", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to persist cleared log"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Types отдаёт реестр типов событий.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, taxonomy.Definitions())
}

// Theme отдаёт текущую тему оформления.
func (h *Handler) Theme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.Themes.LoadTheme()
	if err != nil {
		h.Logger.Error("Failed to load theme", "error", err)
	}
	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme})
}

// ToggleTheme переключает тему между тёмной и светлой.
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := repository.ToggleTheme(h.Themes)
	if err != nil {
		h.Logger.Error("Failed to toggle theme", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to toggle theme"})
		return
	}
	h.writeJSON(w, http.StatusOK, themeResponse{Theme: theme})
}

// ServeHTTP выполняет апгрейд соединения и подписывает клиента на живую ленту.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("WebSocket upgrade error", "error", err)
		return
	}
	notifier := &WebSocketNotifier{send: make(chan eservice.FeedMessage, feedBuffer), Logger: h.Logger}
	client := &eservice.Client{Notifier: notifier}

	// Сначала подписка, затем снимок состояния: события между ними не теряются.
	h.EventService.Register(client)
	state := h.Store.State()
	notifier.Notify(eservice.FeedMessage{Kind: eservice.FeedState, State: &state})

	// Создаём контекст для управления жизненным циклом соединения.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(conn, notifier, ctx)
	h.readPump(conn)
	h.EventService.Unregister(client)
}

// readPump читает входящие сообщения и завершает соединение при ошибке.
func (h *Handler) readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Error("readPump error", "error", err)
			}
			break
		}
	}
}

// writePump отправляет кадры ленты и ping-сообщения для поддержания соединения.
func (h *Handler) writePump(conn *websocket.Conn, notifier *WebSocketNotifier, ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg := <-notifier.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.Logger.Error("Error writing JSON", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Error("Ping error", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// SetupRouter настраивает маршруты через chi и возвращает http.Handler.
func SetupRouter(h *Handler, wsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/notify/status", h.Status)
		r.Get("/notify/logs", h.Logs)
		r.Delete("/notify/logs", h.ClearLogs)
		r.Get("/notify/types", h.Types)
		r.Get("/theme", h.Theme)
		r.Post("/theme/toggle", h.ToggleTheme)
	})
	r.Get(wsPath, h.ServeHTTP)
	return r
}
