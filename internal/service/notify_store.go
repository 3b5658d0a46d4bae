package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wrongjunior/adminnotify/internal/domain"
	"github.com/wrongjunior/adminnotify/internal/formatter"
	"github.com/wrongjunior/adminnotify/internal/repository"
	transport "github.com/wrongjunior/adminnotify/internal/transport/client"
)

const (
	// DefaultURL используется, если адрес сервера уведомлений не задан в конфигурации.
	DefaultURL            = "ws://192.168.110.101:8056/ws/admin/notify"
	DefaultReconnectDelay = 3 * time.Second

	unknownEventType = "UNKNOWN"
	unknownEventText = "未知事件"
)

// ErrStopped возвращается командами, отправленными остановленному хранилищу.
var ErrStopped = errors.New("notification store stopped")

// Announcer озвучивает уведомление.
type Announcer interface {
	Announce(eventType, fallback string)
}

// Publisher получает изменения для слоя представления.
type Publisher interface {
	PublishEntry(entry domain.LogEntry)
	PublishState(state domain.ConnectionState)
	PublishCleared()
}

// Options задаёт параметры хранилища уведомлений.
type Options struct {
	URL               string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration // если больше ReconnectDelay, задержка удваивается до этого предела
	Now               func() time.Time
	NewID             func() string
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdClearLogs
)

type command struct {
	kind  commandKind
	reply chan error
}

// NotificationStore владеет единственным соединением с сервером уведомлений,
// таймером переподключения и журналом. Все изменения выполняет одна горутина
// цикла событий; остальные только читают копии.
type NotificationStore struct {
	dialer    transport.Dialer
	repo      repository.LogRepository
	formatter *formatter.Formatter
	announcer Announcer
	publisher Publisher
	logger    *slog.Logger
	opts      Options

	events   chan transport.Event
	commands chan command
	done     chan struct{}

	lifeMu  sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	state atomic.Int32

	mu   sync.RWMutex
	logs []domain.LogEntry

	// Поля ниже принадлежат горутине цикла.
	ctx      context.Context
	socket   transport.Socket
	timer    *time.Timer
	attempts int
}

// NewNotificationStore создаёт хранилище и один раз загружает журнал из репозитория.
// announcer и publisher могут быть nil.
func NewNotificationStore(dialer transport.Dialer, repo repository.LogRepository, announcer Announcer, publisher Publisher, logger *slog.Logger, opts Options) *NotificationStore {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &NotificationStore{
		dialer:    dialer,
		repo:      repo,
		formatter: formatter.Default(),
		announcer: announcer,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		events:    make(chan transport.Event, 64),
		commands:  make(chan command),
		done:      make(chan struct{}),
	}

	logs, err := repo.LoadLogs()
	if err != nil {
		logger.Warn("Failed to restore notification log, starting empty", "error", err)
		logs = []domain.LogEntry{}
	}
	s.logs = logs
	return s
}

// Start запускает цикл событий и первое подключение.
// Повторный вызов и вызов после Stop ничего не делают.
func (s *NotificationStore) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx
	s.cancel = cancel
	go s.loop(ctx)
}

// Stop закрывает соединение, снимает таймер и дожидается завершения цикла.
func (s *NotificationStore) Stop() {
	s.lifeMu.Lock()
	if s.stopped {
		s.lifeMu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.lifeMu.Unlock()

	if cancel == nil {
		close(s.done)
		return
	}
	cancel()
	<-s.done
}

// Connect открывает соединение, если живого соединения ещё нет.
func (s *NotificationStore) Connect() error {
	return s.send(cmdConnect)
}

// ClearLogs очищает журнал. Ошибка означает, что очистку не удалось сохранить;
// журнал в памяти при этом уже пуст.
func (s *NotificationStore) ClearLogs() error {
	return s.send(cmdClearLogs)
}

// Logs возвращает копию журнала, новые записи первыми.
func (s *NotificationStore) Logs() []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *NotificationStore) State() domain.ConnectionState {
	return domain.ConnectionState(s.state.Load())
}

func (s *NotificationStore) Connected() bool {
	return s.State() == domain.Connected
}

func (s *NotificationStore) send(kind commandKind) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrStopped
	}
	return <-cmd.reply
}

func (s *NotificationStore) loop(ctx context.Context) {
	defer close(s.done)
	s.connect()
	for {
		var timerC <-chan time.Time
		if s.timer != nil {
			timerC = s.timer.C
		}
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		case cmd := <-s.commands:
			cmd.reply <- s.handleCommand(cmd)
		case <-timerC:
			s.timer = nil
			s.connect()
		}
	}
}

func (s *NotificationStore) shutdown() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.socket != nil {
		_ = s.socket.Close()
		s.socket = nil
	}
	s.setState(domain.Disconnected)
	s.logger.Info("Notification store stopped")
}

func (s *NotificationStore) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdConnect:
		s.connect()
		return nil
	case cmdClearLogs:
		return s.clearLogs()
	default:
		return nil
	}
}

func (s *NotificationStore) connect() {
	if s.socket != nil {
		return
	}
	s.setState(domain.Connecting)
	s.logger.Info("Connecting to notify server", "url", s.opts.URL)
	s.socket = s.dialer.Open(s.ctx, s.opts.URL, s.events)
	if s.socket == nil {
		s.logger.Error("Failed to initialize connection", "url", s.opts.URL)
		s.setState(domain.Disconnected)
		s.scheduleReconnect()
	}
}

// scheduleReconnect взводит таймер, если он ещё не взведён.
func (s *NotificationStore) scheduleReconnect() {
	if s.timer != nil {
		return
	}
	delay := s.nextDelay()
	s.timer = time.NewTimer(delay)
	s.logger.Warn("Connection closed, reconnecting", "delay", delay)
}

func (s *NotificationStore) nextDelay() time.Duration {
	delay := s.opts.ReconnectDelay
	if s.opts.MaxReconnectDelay > delay {
		for i := 0; i < s.attempts && delay < s.opts.MaxReconnectDelay; i++ {
			delay *= 2
		}
		if delay > s.opts.MaxReconnectDelay {
			delay = s.opts.MaxReconnectDelay
		}
		s.attempts++
	}
	return delay
}

func (s *NotificationStore) handleEvent(ev transport.Event) {
	if !s.isCurrent(ev) {
		s.logger.Debug("Ignoring event from superseded connection", "kind", ev.Kind)
		return
	}
	switch ev.Kind {
	case transport.EventOpen:
		s.attempts = 0
		s.setState(domain.Connected)
		s.logger.Info("Notify connection established")
	case transport.EventMessage:
		s.handleMessage(ev.Data)
	case transport.EventError:
		s.setState(domain.Disconnected)
		s.logger.Warn("Notify connection error", "error", ev.Err)
	case transport.EventClose:
		s.setState(domain.Disconnected)
		s.socket = nil
		s.scheduleReconnect()
	}
}

// isCurrent отбрасывает события старых соединений. Повторные error/close
// после сброса соединения пропускаются: планирование переподключения идемпотентно.
func (s *NotificationStore) isCurrent(ev transport.Event) bool {
	if ev.Socket == s.socket {
		return true
	}
	return s.socket == nil && (ev.Kind == transport.EventError || ev.Kind == transport.EventClose)
}

func (s *NotificationStore) handleMessage(data []byte) {
	payload, err := domain.ParsePayload(data)
	if err == nil && !payload.Present() {
		err = errors.New("empty frame")
	}
	if err != nil {
		s.logger.Warn("Failed to parse message", "error", err, "data", string(data))
		return
	}

	eventType := eventTypeOf(payload)
	content := s.formatter.Format(eventType, payload, fallbackOf(payload))
	if s.announcer != nil {
		s.announcer.Announce(eventType, content)
	}

	entry := domain.LogEntry{
		ID:      s.opts.NewID(),
		Type:    eventType,
		User:    userOf(payload),
		Time:    s.opts.Now().Format(domain.TimeLayout),
		Content: content,
	}
	s.prepend(entry)
	s.logger.Info("Notification received", "type", eventType, "content", content)
}

func (s *NotificationStore) prepend(entry domain.LogEntry) {
	s.mu.Lock()
	logs := make([]domain.LogEntry, 0, len(s.logs)+1)
	logs = append(logs, entry)
	logs = append(logs, s.logs...)
	s.logs = logs
	s.mu.Unlock()

	if err := s.repo.SaveLogs(logs); err != nil {
		s.logger.Error("Failed to persist notification log", "error", err)
	}
	if s.publisher != nil {
		s.publisher.PublishEntry(entry)
	}
}

func (s *NotificationStore) clearLogs() error {
	s.mu.Lock()
	s.logs = []domain.LogEntry{}
	s.mu.Unlock()

	err := s.repo.SaveLogs([]domain.LogEntry{})
	if err != nil {
		s.logger.Error("Failed to persist cleared notification log", "error", err)
	}
	if s.publisher != nil {
		s.publisher.PublishCleared()
	}
	return err
}

func (s *NotificationStore) setState(state domain.ConnectionState) {
	if domain.ConnectionState(s.state.Swap(int32(state))) == state {
		return
	}
	if s.publisher != nil {
		s.publisher.PublishState(state)
	}
}

// eventTypeOf берёт тип из поля event, затем type, иначе UNKNOWN.
func eventTypeOf(p domain.Payload) string {
	for _, field := range []string{"event", "type"} {
		if v, ok := p.Field(field).Text(); ok {
			return v
		}
	}
	return unknownEventType
}

// fallbackOf берёт строковое поле data, затем строковое поле message.
func fallbackOf(p domain.Payload) string {
	for _, field := range []string{"data", "message"} {
		if v, ok := p.Field(field).AsString(); ok {
			return v
		}
	}
	return unknownEventText
}

func userOf(p domain.Payload) string {
	if v, ok := p.Field("user").Text(); ok {
		return v
	}
	if v, ok := p.Field("data").Field("user").Text(); ok {
		return v
	}
	return ""
}
