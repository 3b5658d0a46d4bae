package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"log/slog"
)

// EventKind задаёт вид события жизненного цикла соединения.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "close"
	}
}

// Event доставляется в цикл обработки владельца соединения.
// После EventError всегда следует EventClose.
type Event struct {
	Socket Socket
	Kind   EventKind
	Data   []byte
	Err    error
}

// Socket представляет открытое или открывающееся соединение.
type Socket interface {
	Close() error
}

// Dialer открывает соединение без блокировки: результат приходит событиями.
type Dialer interface {
	Open(ctx context.Context, rawURL string, events chan<- Event) Socket
}

// WebSocketDialer реализует Dialer поверх gorilla/websocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// NewWebSocketDialer создаёт новый экземпляр транспорта клиента.
func NewWebSocketDialer(logger *slog.Logger) *WebSocketDialer {
	return &WebSocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
		Logger: logger,
	}
}

type wsSocket struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Open запускает подключение в отдельной горутине и сразу возвращает сокет.
func (d *WebSocketDialer) Open(ctx context.Context, rawURL string, events chan<- Event) Socket {
	sctx, cancel := context.WithCancel(ctx)
	s := &wsSocket{cancel: cancel}
	go d.run(sctx, s, rawURL, events)
	return s
}

func (d *WebSocketDialer) run(ctx context.Context, s *wsSocket, rawURL string, events chan<- Event) {
	emit := func(ev Event) {
		ev.Socket = s
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		emit(Event{Kind: EventError, Err: err})
		emit(Event{Kind: EventClose, Err: err})
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		fail(fmt.Errorf("parse url: %w", err))
		return
	}
	conn, _, err := d.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		fail(fmt.Errorf("dial %s: %w", u.Redacted(), err))
		return
	}
	if !s.attach(conn) {
		conn.Close()
		return
	}
	d.Logger.Info("Connected to server", "url", u.Redacted())
	emit(Event{Kind: EventOpen})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				emit(Event{Kind: EventClose, Err: err})
			} else {
				fail(err)
			}
			return
		}
		emit(Event{Kind: EventMessage, Data: message})
	}
}

func (s *wsSocket) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

// Close закрывает соединение; события после закрытия не доставляются.
func (s *wsSocket) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
