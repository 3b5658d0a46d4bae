package server

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wrongjunior/adminnotify/internal/taxonomy"
)

// Frame описывает кадр в формате сервера уведомлений администратора.
type Frame struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	User    string         `json:"user,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Client представляет подключённую консоль администратора.
type Client struct {
	conn *websocket.Conn
	send chan Frame
}

// Server имитирует сервер уведомлений: принимает консоли и рассылает им
// сгенерированные события платформы.
type Server struct {
	clients    map[*Client]struct{}
	mu         sync.RWMutex
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	interval   time.Duration
	rnd        *rand.Rand
	ctx        context.Context
	cancel     context.CancelFunc
}

// upgrader выполняет апгрейд HTTP-соединения до WebSocket.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewServer создаёт сервер, генерирующий событие раз в interval.
func NewServer(logger *slog.Logger, interval time.Duration) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Frame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		interval:   interval,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает обработку каналов и, если задан интервал, генерацию событий.
func (s *Server) Run() {
	s.logger.Info("Mock notify server started", "interval", s.interval)
	go s.handleChannels()
	if s.interval > 0 {
		go s.eventGenerator(s.ctx)
	}
}

// handleChannels обрабатывает регистрацию/удаление клиентов и рассылку событий.
func (s *Server) handleChannels() {
	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = struct{}{}
			s.mu.Unlock()
			s.logger.Info("Console connected")
		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.logger.Info("Console disconnected")
			}
			s.mu.Unlock()
		case frame := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- frame:
				default:
					// Если канал клиента переполнен, отключаем его.
					delete(s.clients, client)
					close(client.send)
					s.logger.Warn("Dropped slow console", "client", client)
				}
			}
			s.mu.Unlock()
			s.logger.Info("Frame broadcast", "event", frame.Event)
		case <-s.ctx.Done():
			s.logger.Info("Channel handling stopped")
			return
		}
	}
}

// Broadcast отправляет кадр всем подключённым консолям.
func (s *Server) Broadcast(frame Frame) {
	select {
	case s.broadcast <- frame:
	case <-s.ctx.Done():
	}
}

// eventGenerator генерирует события случайного типа из реестра.
func (s *Server) eventGenerator(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	counter := 1
	for {
		select {
		case <-ticker.C:
			frame := s.randomFrame(counter)
			s.logger.Info("Generated event", "event", frame.Event, "id", frame.ID)
			s.Broadcast(frame)
			counter++
		case <-ctx.Done():
			s.logger.Info("Event generator stopped")
			return
		}
	}
}

func (s *Server) randomFrame(counter int) Frame {
	defs := taxonomy.Definitions()
	def := defs[s.rnd.Intn(len(defs))]
	user := "user" + strconv.Itoa(1000+s.rnd.Intn(9000))
	data := map[string]any{"user": user}

	switch def.ID {
	case taxonomy.UserRecharge, taxonomy.UserWithdrawal,
		taxonomy.FinancialTransferIn, taxonomy.FinancialTransferOut:
		data["amount"] = s.rnd.Intn(100) * 10
		data["currency"] = "USDT"
	case taxonomy.UserPurchase:
		data["productName"] = "稳健理财 " + strconv.Itoa(counter)
		data["amount"] = 100 + s.rnd.Intn(900)
	case taxonomy.ContactSupport:
		data["nickName"] = "客户" + strconv.Itoa(counter)
	case taxonomy.UserConnected, taxonomy.UserDisconnected:
		data["uid"] = counter
	}
	return Frame{ID: uuid.NewString(), Event: def.ID, User: user, Data: data}
}

// HandleWebSocket выполняет апгрейд HTTP-соединения и регистрирует консоль.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade error", "error", err)
		return
	}
	client := &Client{
		conn: conn,
		send: make(chan Frame, 256),
	}
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	// Создаём контекст для управления жизненным циклом клиента.
	clientCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go s.writePump(client, clientCtx)
	s.readPump(client)
}

// readPump читает сообщения консоли (пинги) и завершает соединение при ошибке.
func (s *Server) readPump(client *Client) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
		client.conn.Close()
	}()
	client.conn.SetReadLimit(1024)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		// Канал только на приём: входящие кадры консоли игнорируются.
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("Unexpected close", "error", err)
			}
			break
		}
	}
}

// writePump отправляет кадры консоли и периодически отправляет ping.
func (s *Server) writePump(client *Client, ctx context.Context) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Канал закрыт, завершаем соединение.
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(frame); err != nil {
				s.logger.Error("Error writing JSON", "error", err)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Error("Ping error", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Clients возвращает число подключённых консолей.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown корректно завершает работу сервера.
func (s *Server) Shutdown() {
	s.cancel()
	s.logger.Info("Mock notify server shutting down")
}

// SetupRouter возвращает chi.Router с зарегистрированным WebSocket endpoint.
func (s *Server) SetupRouter(wsPath string) http.Handler {
	r := chi.NewRouter()
	r.Get(wsPath, s.HandleWebSocket)
	return r
}
