package memory

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/application/metric"
	"github.com/qrave1/StageLive/internal/domain/events"
)

// WebsocketConnectionRepository интерфейс для работы с активными соединениями в памяти.
// Запись не блокирует: сообщение попадает в очередь соединения, а отправкой занимается писатель соединения.
type WebsocketConnectionRepository interface {
	Add(connectionID uuid.UUID, conn *websocket.Conn) *Outbox
	Remove(connectionID uuid.UUID)

	// Write ставит сообщение в очередь. false - соединения нет или очередь переполнена.
	Write(connectionID uuid.UUID, msg events.Message) bool
	GetAllConnected() []uuid.UUID
}

// Outbox - очередь исходящих сообщений одного соединения
type Outbox struct {
	Conn *websocket.Conn

	send   chan events.Message
	closed chan struct{}
	once   sync.Once
}

func newOutbox(conn *websocket.Conn, size int) *Outbox {
	return &Outbox{
		Conn:   conn,
		send:   make(chan events.Message, size),
		closed: make(chan struct{}),
	}
}

// Messages - очередь для писателя соединения
func (o *Outbox) Messages() <-chan events.Message {
	return o.send
}

// Done закрывается, когда соединение нужно закрыть
func (o *Outbox) Done() <-chan struct{} {
	return o.closed
}

func (o *Outbox) Close() {
	o.once.Do(func() {
		close(o.closed)
	})
}

type wsConnectionRepository struct {
	outboxSize int

	// wsConns хранит map[connection_id]*Outbox
	wsConns map[uuid.UUID]*Outbox

	mu sync.RWMutex
}

func NewWSConnectionRepository(outboxSize int) WebsocketConnectionRepository {
	return &wsConnectionRepository{
		outboxSize: outboxSize,
		wsConns:    make(map[uuid.UUID]*Outbox, 10),
	}
}

func (w *wsConnectionRepository) Add(connectionID uuid.UUID, conn *websocket.Conn) *Outbox {
	w.mu.Lock()
	defer w.mu.Unlock()

	outbox := newOutbox(conn, w.outboxSize)
	w.wsConns[connectionID] = outbox

	// Увеличиваем счетчик активных WS соединений
	metric.IncrementWSActiveConnections()

	return outbox
}

func (w *wsConnectionRepository) Remove(connectionID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Проверяем, существует ли соединение перед удалением
	if outbox, exists := w.wsConns[connectionID]; exists {
		outbox.Close()
		delete(w.wsConns, connectionID)

		metric.DecrementWSActiveConnections()
	}
}

func (w *wsConnectionRepository) Write(connectionID uuid.UUID, msg events.Message) bool {
	outbox, ok := w.getOutbox(connectionID)
	if !ok {
		return false
	}

	select {
	case <-outbox.closed:
		return false
	default:
	}

	select {
	case outbox.send <- msg:
		return true
	default:
		// Медленный клиент: закрываем соединение, после переподключения он получит снимок
		slog.Warn(
			"websocket outbox overflow",
			slog.Any(constant.ConnectionID, connectionID),
			slog.String("type", msg.Type),
		)
		metric.RecordOutboxDrop()
		outbox.Close()

		return false
	}
}

func (w *wsConnectionRepository) getOutbox(connectionID uuid.UUID) (*Outbox, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	outbox, ok := w.wsConns[connectionID]
	return outbox, ok
}

func (w *wsConnectionRepository) GetAllConnected() []uuid.UUID {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return lo.Keys(w.wsConns)
}
