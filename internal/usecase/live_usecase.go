package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qrave1/StageLive/internal/application/config"
	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/application/metric"
	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/ledger"
	"github.com/qrave1/StageLive/internal/domain/models"
	"github.com/qrave1/StageLive/internal/domain/moderation"
	"github.com/qrave1/StageLive/internal/infra/adapters/memory"
	"github.com/qrave1/StageLive/internal/infra/appctx"
)

// LiveUsecase принимает команды соединений и направляет их в комнаты мероприятий.
// Проверки мероприятия и участия выполняются до постановки команды в очередь комнаты.
type LiveUsecase interface {
	Join(ctx context.Context, connectionID, userID, eventID uuid.UUID) (models.Participant, error)
	// Leave - намеренный выход из комнаты
	Leave(ctx context.Context, connectionID uuid.UUID) error
	// Disconnect - обрыв соединения, комната ждет переподключения
	Disconnect(ctx context.Context, connectionID uuid.UUID)
	Sync(ctx context.Context, connectionID uuid.UUID) error

	SubmitQuestion(ctx context.Context, connectionID uuid.UUID, text string) error
	VoteQuestion(ctx context.Context, connectionID, questionID uuid.UUID) error
	MarkAnswered(ctx context.Context, connectionID, questionID uuid.UUID) error
	ToggleApproval(ctx context.Context, connectionID, questionID uuid.UUID, approve *bool) error
	HighlightQuestion(ctx context.Context, connectionID uuid.UUID, questionID *uuid.UUID) error

	PrepareGiveaway(ctx context.Context, connectionID uuid.UUID, cfg *models.GiveawayConfig) error
	CancelGiveaway(ctx context.Context, connectionID uuid.UUID) error
	StartGiveaway(ctx context.Context, connectionID uuid.UUID) error

	// Questions - рейтинг вопросов мероприятия для REST клиентов
	Questions(ctx context.Context, userID, eventID uuid.UUID) ([]models.Question, error)

	Shutdown(ctx context.Context)
}

const maxJoinAttempts = 3

type liveUsecase struct {
	cfg config.LiveConfig

	enrollmentUsecase EnrollmentUsecase
	registry          memory.ConnectionRegistry
	wsRepo            memory.WebsocketConnectionRepository

	// rooms хранит map[event_id]*Room
	rooms map[uuid.UUID]*Room
	mu    sync.Mutex

	now func() time.Time
}

func NewLiveUsecase(
	cfg config.LiveConfig,
	enrollmentUsecase EnrollmentUsecase,
	registry memory.ConnectionRegistry,
	wsRepo memory.WebsocketConnectionRepository,
) LiveUsecase {
	uc := &liveUsecase{
		cfg:               cfg,
		enrollmentUsecase: enrollmentUsecase,
		registry:          registry,
		wsRepo:            wsRepo,
		rooms:             make(map[uuid.UUID]*Room),
		now:               time.Now,
	}

	registry.OnRoomReleased(uc.onRoomReleased)

	return uc
}

func (uc *liveUsecase) Join(ctx context.Context, connectionID, userID, eventID uuid.UUID) (models.Participant, error) {
	participant, err := uc.join(ctx, connectionID, userID, eventID)
	uc.record(string(moderation.CommandJoinRoom), err)

	return participant, err
}

func (uc *liveUsecase) join(ctx context.Context, connectionID, userID, eventID uuid.UUID) (models.Participant, error) {
	event, err := uc.enrollmentUsecase.Event(ctx, eventID)
	if err != nil {
		return models.Participant{}, err
	}

	if !event.InteractionOpen(uc.now()) {
		return models.Participant{}, fmt.Errorf("%w: interaction for event %s has ended", domain.ErrInvalidState, eventID)
	}

	enrollment, err := uc.enrollment(ctx, eventID, userID)
	if err != nil {
		return models.Participant{}, err
	}

	// Соединение переходит в другую комнату
	if current, ok := uc.registry.Get(connectionID); ok {
		if current.RoomID == eventID {
			return models.Participant{}, fmt.Errorf("%w: connection already joined the room", domain.ErrInvalidState)
		}

		if err = uc.Leave(ctx, connectionID); err != nil {
			return models.Participant{}, err
		}
	}

	participant := models.Participant{
		ConnectionID: connectionID,
		RoomID:       eventID,
		UserID:       userID,
		Role:         enrollment.Role,
	}

	// Комната могла закрыться между поиском и постановкой команды
	for attempt := 0; ; attempt++ {
		room := uc.getOrCreateRoom(event)

		joined, err := room.Join(ctx, participant)
		if errors.Is(err, ErrRoomClosed) && attempt < maxJoinAttempts {
			continue
		}
		if err != nil {
			return models.Participant{}, err
		}

		slog.Info(
			"participant joined room",
			slog.Any(constant.RoomID, eventID),
			slog.Any(constant.UserID, userID),
			slog.Any(constant.ConnectionID, joined.ConnectionID),
			slog.String(constant.Role, string(joined.Role)),
		)

		return joined, nil
	}
}

func (uc *liveUsecase) Leave(ctx context.Context, connectionID uuid.UUID) error {
	participant, room, err := uc.resolve(connectionID)
	if err != nil {
		return err
	}

	if room == nil {
		uc.registry.Leave(connectionID)
		return nil
	}

	if err = room.Leave(ctx, participant, true); errors.Is(err, ErrRoomClosed) {
		uc.registry.Leave(connectionID)
		return nil
	}

	return err
}

func (uc *liveUsecase) Disconnect(ctx context.Context, connectionID uuid.UUID) {
	participant, room, err := uc.resolve(connectionID)
	if err != nil {
		// Соединение не входило в комнату
		return
	}

	if room != nil {
		err = room.Leave(ctx, participant, false)
		if err == nil {
			return
		}

		slog.Warn(
			"disconnect through room failed",
			slog.Any(constant.ConnectionID, connectionID),
			slog.Any(constant.Error, err),
		)
	}

	uc.registry.Disconnect(connectionID)
}

func (uc *liveUsecase) Sync(ctx context.Context, connectionID uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandSync, func(room *Room, p models.Participant) error {
		return room.Sync(ctx, p)
	})
}

func (uc *liveUsecase) SubmitQuestion(ctx context.Context, connectionID uuid.UUID, text string) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandSubmitQuestion, func(room *Room, p models.Participant) error {
		// Участие проверяется до очереди комнаты, ответ берется из кэша
		enrollment, err := uc.enrollment(ctx, p.RoomID, p.UserID)
		if err != nil {
			return err
		}

		if !enrollment.Approved {
			return fmt.Errorf("%w: participant is not approved for the event", domain.ErrValidation)
		}

		return room.SubmitQuestion(ctx, p, text)
	})
}

func (uc *liveUsecase) VoteQuestion(ctx context.Context, connectionID, questionID uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandVoteQuestion, func(room *Room, p models.Participant) error {
		return room.VoteQuestion(ctx, p, questionID)
	})
}

func (uc *liveUsecase) MarkAnswered(ctx context.Context, connectionID, questionID uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandMarkAnswered, func(room *Room, p models.Participant) error {
		return room.MarkAnswered(ctx, p, questionID)
	})
}

func (uc *liveUsecase) ToggleApproval(ctx context.Context, connectionID, questionID uuid.UUID, approve *bool) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandToggleApproval, func(room *Room, p models.Participant) error {
		return room.ToggleApproval(ctx, p, questionID, approve)
	})
}

func (uc *liveUsecase) HighlightQuestion(ctx context.Context, connectionID uuid.UUID, questionID *uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandHighlight, func(room *Room, p models.Participant) error {
		return room.HighlightQuestion(ctx, p, questionID)
	})
}

func (uc *liveUsecase) PrepareGiveaway(ctx context.Context, connectionID uuid.UUID, cfg *models.GiveawayConfig) error {
	cmd := moderation.CommandPrepareGiveaway
	if cfg == nil {
		cmd = moderation.CommandCancelGiveaway
	}

	return uc.dispatch(ctx, connectionID, cmd, func(room *Room, p models.Participant) error {
		return room.PrepareGiveaway(ctx, p, cfg)
	})
}

func (uc *liveUsecase) CancelGiveaway(ctx context.Context, connectionID uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandCancelGiveaway, func(room *Room, p models.Participant) error {
		return room.CancelGiveaway(ctx, p)
	})
}

func (uc *liveUsecase) StartGiveaway(ctx context.Context, connectionID uuid.UUID) error {
	return uc.dispatch(ctx, connectionID, moderation.CommandStartGiveaway, func(room *Room, p models.Participant) error {
		return room.StartGiveaway(ctx, p)
	})
}

func (uc *liveUsecase) Questions(ctx context.Context, userID, eventID uuid.UUID) ([]models.Question, error) {
	if _, err := uc.enrollmentUsecase.Event(ctx, eventID); err != nil {
		return nil, err
	}

	enrollment, err := uc.enrollment(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	room, ok := uc.rooms[eventID]
	uc.mu.Unlock()

	if !ok {
		return []models.Question{}, nil
	}

	questions, err := room.Questions(ctx, models.Participant{RoomID: eventID, UserID: userID, Role: enrollment.Role})
	if errors.Is(err, ErrRoomClosed) {
		return []models.Question{}, nil
	}

	return questions, err
}

// Shutdown закрывает все комнаты и отключает их участников
func (uc *liveUsecase) Shutdown(ctx context.Context) {
	uc.mu.Lock()
	rooms := lo.Values(uc.rooms)
	uc.mu.Unlock()

	for _, room := range rooms {
		if _, err := room.Close(ctx, ReasonShutdown, true); err != nil && !errors.Is(err, ErrRoomClosed) {
			slog.Error("close room on shutdown", slog.Any(constant.RoomID, room.ID()), slog.Any(constant.Error, err))
		}
	}
}

// dispatch проверяет роль и передает команду в комнату соединения
func (uc *liveUsecase) dispatch(
	ctx context.Context,
	connectionID uuid.UUID,
	cmd moderation.Command,
	fn func(room *Room, p models.Participant) error,
) error {
	err := func() error {
		participant, room, err := uc.resolve(connectionID)
		if err != nil {
			return err
		}

		if room == nil {
			return ErrRoomClosed
		}

		if err = moderation.Authorize(participant.Role, cmd); err != nil {
			return err
		}

		return fn(room, participant)
	}()

	uc.record(string(cmd), err)

	if err != nil && domain.Kind(err) == domain.KindInternal {
		attrs := append(appctx.LogAttrs(ctx), slog.String(constant.Command, string(cmd)), slog.Any(constant.Error, err))
		slog.Error("room command failed", attrs...)
	}

	return err
}

func (uc *liveUsecase) record(cmd string, err error) {
	result := "ok"
	if err != nil {
		result = domain.Kind(err)
	}

	metric.RecordCommand(cmd, result)
}

// resolve находит участника соединения и его комнату. room == nil - комната уже закрыта.
func (uc *liveUsecase) resolve(connectionID uuid.UUID) (models.Participant, *Room, error) {
	participant, ok := uc.registry.Get(connectionID)
	if !ok {
		return models.Participant{}, nil, fmt.Errorf("%w: connection has not joined a room", domain.ErrInvalidState)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	return participant, uc.rooms[participant.RoomID], nil
}

func (uc *liveUsecase) enrollment(ctx context.Context, eventID, userID uuid.UUID) (*models.Enrollment, error) {
	enrollment, err := uc.enrollmentUsecase.Enrollment(ctx, eventID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: user is not enrolled in event %s", domain.ErrPermission, eventID)
	}

	return enrollment, err
}

func (uc *liveUsecase) getOrCreateRoom(event *models.Event) *Room {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if room, ok := uc.rooms[event.ID]; ok {
		return room
	}

	room := newRoom(
		event.ID,
		roomOptions{
			ledger: ledger.Options{
				ModerationFirst: uc.cfg.ModerationFirst,
				MaxTextLength:   uc.cfg.MaxQuestionLength,
			},
			queueSize:      uc.cfg.CommandQueue,
			interactionEnd: event.InteractionEndsAt,
		},
		uc.registry,
		uc.wsRepo,
		uc.onRoomClosed,
	)
	uc.rooms[event.ID] = room

	slog.Info("room created", slog.Any(constant.RoomID, event.ID))

	return room
}

// onRoomReleased вызывается реестром, когда комната опустела окончательно
func (uc *liveUsecase) onRoomReleased(roomID uuid.UUID) {
	uc.mu.Lock()
	room, ok := uc.rooms[roomID]
	uc.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uc.cfg.CommandTimeout)
	defer cancel()

	// Комната проверяет пустоту сама: участник мог войти после освобождения
	if _, err := room.Close(ctx, "", false); err != nil && !errors.Is(err, ErrRoomClosed) {
		slog.Error("close released room", slog.Any(constant.RoomID, roomID), slog.Any(constant.Error, err))
	}
}

func (uc *liveUsecase) onRoomClosed(room *Room) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.rooms[room.ID()] == room {
		delete(uc.rooms, room.ID())
	}
}
