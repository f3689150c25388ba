package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qrave1/StageLive/internal/domain/models"
)

// ConnectionRegistry учитывает присутствие соединений в комнатах.
// Единица присутствия - соединение, а не пользователь.
type ConnectionRegistry interface {
	// Join регистрирует соединение в комнате. Пустой ConnectionID будет сгенерирован.
	Join(roomID uuid.UUID, participant models.Participant) models.Participant

	// Leave - намеренный выход. Комната освобождается сразу, если в ней нет
	// ни активных соединений, ни оборванных, ждущих переподключения.
	Leave(connectionID uuid.UUID) (models.Participant, bool)

	// Disconnect - обрыв связи. Соединение ждет переподключения grace период;
	// повторный Join того же пользователя в комнату снимает ожидание.
	Disconnect(connectionID uuid.UUID) (models.Participant, bool)

	Get(connectionID uuid.UUID) (models.Participant, bool)

	// ListConnections возвращает соединения комнаты; для неизвестной комнаты - пустой список
	ListConnections(roomID uuid.UUID) []models.Participant

	// Evict удаляет все соединения комнаты без уведомления о пустой комнате
	Evict(roomID uuid.UUID) []models.Participant

	// OnRoomReleased задает обработчик освобождения комнаты; вызывается в отдельной горутине
	OnRoomReleased(fn func(roomID uuid.UUID))
}

type connectionRegistry struct {
	gracePeriod time.Duration

	// connections хранит map[connection_id]Participant
	connections map[uuid.UUID]models.Participant
	// rooms хранит map[room_id]set[connection_id]
	rooms map[uuid.UUID]map[uuid.UUID]struct{}
	// awaiting хранит map[room_id]map[connection_id]dropped - оборванные соединения, ждущие переподключения
	awaiting map[uuid.UUID]map[uuid.UUID]dropped
	// pending - таймеры grace периода комнат без активных соединений
	pending map[uuid.UUID]*time.Timer

	onReleased func(roomID uuid.UUID)
	now        func() time.Time

	mu sync.Mutex
}

type dropped struct {
	userID   uuid.UUID
	deadline time.Time
}

func NewConnectionRegistry(gracePeriod time.Duration) ConnectionRegistry {
	return &connectionRegistry{
		gracePeriod: gracePeriod,
		connections: make(map[uuid.UUID]models.Participant),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]struct{}),
		awaiting:    make(map[uuid.UUID]map[uuid.UUID]dropped),
		pending:     make(map[uuid.UUID]*time.Timer),
		now:         time.Now,
	}
}

func (r *connectionRegistry) OnRoomReleased(fn func(roomID uuid.UUID)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onReleased = fn
}

func (r *connectionRegistry) Join(roomID uuid.UUID, participant models.Participant) models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if participant.ConnectionID == uuid.Nil {
		participant.ConnectionID = uuid.New()
	}
	participant.RoomID = roomID

	r.stopTimerLocked(roomID)

	// Переподключение пользователя закрывает его оборванные соединения
	for id, d := range r.awaiting[roomID] {
		if d.userID == participant.UserID {
			delete(r.awaiting[roomID], id)
		}
	}
	if len(r.awaiting[roomID]) == 0 {
		delete(r.awaiting, roomID)
	}

	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[uuid.UUID]struct{})
	}

	r.rooms[roomID][participant.ConnectionID] = struct{}{}
	r.connections[participant.ConnectionID] = participant

	return participant
}

func (r *connectionRegistry) Leave(connectionID uuid.UUID) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant, ok := r.removeLocked(connectionID)
	if ok {
		r.settleLocked(participant.RoomID)
	}

	return participant, ok
}

func (r *connectionRegistry) Disconnect(connectionID uuid.UUID) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant, ok := r.removeLocked(connectionID)
	if !ok {
		return participant, false
	}

	roomID := participant.RoomID
	if _, ok := r.awaiting[roomID]; !ok {
		r.awaiting[roomID] = make(map[uuid.UUID]dropped)
	}
	r.awaiting[roomID][connectionID] = dropped{
		userID:   participant.UserID,
		deadline: r.now().Add(r.gracePeriod),
	}

	r.settleLocked(roomID)

	return participant, true
}

func (r *connectionRegistry) Get(connectionID uuid.UUID) (models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participant, ok := r.connections[connectionID]

	return participant, ok
}

func (r *connectionRegistry) ListConnections(roomID uuid.UUID) []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.FilterMap(lo.Keys(r.rooms[roomID]), func(id uuid.UUID, _ int) (models.Participant, bool) {
		p, ok := r.connections[id]
		return p, ok
	})
}

func (r *connectionRegistry) Evict(roomID uuid.UUID) []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopTimerLocked(roomID)
	delete(r.awaiting, roomID)

	evicted := make([]models.Participant, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		evicted = append(evicted, r.connections[id])
		delete(r.connections, id)
	}
	delete(r.rooms, roomID)

	return evicted
}

func (r *connectionRegistry) removeLocked(connectionID uuid.UUID) (models.Participant, bool) {
	participant, ok := r.connections[connectionID]
	if !ok {
		return models.Participant{}, false
	}

	delete(r.connections, connectionID)

	members := r.rooms[participant.RoomID]
	delete(members, connectionID)

	if len(members) == 0 {
		delete(r.rooms, participant.RoomID)
	}

	return participant, true
}

// settleLocked решает судьбу комнаты без активных соединений: освободить сразу
// или ждать, пока истечет grace период последнего оборванного соединения
func (r *connectionRegistry) settleLocked(roomID uuid.UUID) {
	if len(r.rooms[roomID]) > 0 {
		return
	}

	now := r.now()
	var last time.Time
	for id, d := range r.awaiting[roomID] {
		if !d.deadline.After(now) {
			delete(r.awaiting[roomID], id)
			continue
		}
		if d.deadline.After(last) {
			last = d.deadline
		}
	}

	if len(r.awaiting[roomID]) == 0 {
		r.releaseLocked(roomID)
		return
	}

	r.stopTimerLocked(roomID)

	var timer *time.Timer
	timer = time.AfterFunc(last.Sub(now), func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		// Таймер мог быть отменен переподключением или заменен новым
		if r.pending[roomID] != timer {
			return
		}
		delete(r.pending, roomID)

		r.settleLocked(roomID)
	})
	r.pending[roomID] = timer
}

func (r *connectionRegistry) stopTimerLocked(roomID uuid.UUID) {
	if timer, ok := r.pending[roomID]; ok {
		timer.Stop()
		delete(r.pending, roomID)
	}
}

func (r *connectionRegistry) releaseLocked(roomID uuid.UUID) {
	r.stopTimerLocked(roomID)
	delete(r.awaiting, roomID)

	if r.onReleased != nil {
		go r.onReleased(roomID)
	}
}
