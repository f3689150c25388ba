package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/application/metric"
	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/events"
	"github.com/qrave1/StageLive/internal/domain/giveaway"
	"github.com/qrave1/StageLive/internal/domain/ledger"
	"github.com/qrave1/StageLive/internal/domain/models"
	"github.com/qrave1/StageLive/internal/infra/adapters/memory"
)

// ErrRoomClosed - комната закрыта, команду нужно повторить в новой комнате
var ErrRoomClosed = fmt.Errorf("%w: room is closed", domain.ErrInvalidState)

const (
	ReasonInteractionEnded = "interaction window ended"
	ReasonShutdown         = "server shutdown"
)

type command struct {
	name   string
	actor  models.Participant
	apply  func(r *Room) error
	result chan error
}

// outgoing - событие, ожидающее рассылки после успешной команды
type outgoing struct {
	msgType string
	// to - адресат; nil означает всю комнату
	to *models.Participant

	payload any
	// variant выбирает вариант payload для участника, варианты с одним ключом кодируются один раз.
	// nil payload - участнику ничего не отправляется.
	variant func(p models.Participant) (key string, payload any)
	// render строит payload для каждого участника отдельно
	render func(p models.Participant) any
}

type roomOptions struct {
	ledger         ledger.Options
	queueSize      int
	interactionEnd *time.Time
}

// Room владеет вопросами и розыгрышем одного мероприятия.
// Все изменения выполняются по очереди в горутине комнаты.
type Room struct {
	id uuid.UUID

	ledger *ledger.Ledger
	engine *giveaway.Engine

	registry memory.ConnectionRegistry
	wsRepo   memory.WebsocketConnectionRepository

	commands chan command
	done     chan struct{}
	pending  []outgoing
	closed   bool

	windowTimer *time.Timer
	onClosed    func(r *Room)
}

func newRoom(
	id uuid.UUID,
	opts roomOptions,
	registry memory.ConnectionRegistry,
	wsRepo memory.WebsocketConnectionRepository,
	onClosed func(r *Room),
) *Room {
	r := &Room{
		id:       id,
		ledger:   ledger.New(id, opts.ledger),
		engine:   giveaway.NewEngine(nil),
		registry: registry,
		wsRepo:   wsRepo,
		commands: make(chan command, opts.queueSize),
		done:     make(chan struct{}),
		onClosed: onClosed,
	}

	if opts.interactionEnd != nil {
		r.windowTimer = time.AfterFunc(time.Until(*opts.interactionEnd), func() {
			if _, err := r.Close(context.Background(), ReasonInteractionEnded, true); err != nil && !errors.Is(err, ErrRoomClosed) {
				slog.Error("close room on interaction end", slog.Any(constant.RoomID, id), slog.Any(constant.Error, err))
			}
		})
	}

	metric.IncrementRooms()
	go r.run()

	return r
}

func (r *Room) ID() uuid.UUID {
	return r.id
}

// Done закрывается после остановки горутины комнаты
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Do ставит команду в очередь комнаты и ждет результата.
// Принятая команда выполняется до конца, даже если ctx отменен.
func (r *Room) Do(ctx context.Context, name string, actor models.Participant, apply func(r *Room) error) error {
	cmd := command{
		name:   name,
		actor:  actor,
		apply:  apply,
		result: make(chan error, 1),
	}

	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: enqueue %s: %w", domain.ErrInternal, name, ctx.Err())
	}

	select {
	case err := <-cmd.result:
		return err
	case <-r.done:
		select {
		case err := <-cmd.result:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: wait %s: %w", domain.ErrInternal, name, ctx.Err())
	}
}

func (r *Room) run() {
	for cmd := range r.commands {
		cmd.result <- r.execute(cmd)

		if r.closed {
			r.shutdown()
			return
		}
	}
}

func (r *Room) execute(cmd command) (err error) {
	r.ledger.Begin()
	engineState := r.engine.State()
	r.pending = r.pending[:0]

	defer func() {
		p := recover()
		if p == nil {
			return
		}

		slog.Error(
			"room command panicked, restoring snapshot",
			slog.Any(constant.RoomID, r.id),
			slog.String(constant.Command, cmd.name),
			slog.Any("panic", p),
		)
		metric.RecordRoomReset()

		r.ledger.Rollback()
		r.engine.Restore(engineState)
		r.closed = false
		r.pending = r.pending[:0]
		r.emitSnapshot(nil)
		r.flush()

		err = fmt.Errorf("%w: %s failed", domain.ErrInternal, cmd.name)
	}()

	if err = cmd.apply(r); err != nil {
		r.ledger.Rollback()
		r.engine.Restore(engineState)
		r.pending = r.pending[:0]

		return err
	}

	r.ledger.Commit()
	r.flush()

	return nil
}

func (r *Room) shutdown() {
	if r.windowTimer != nil {
		r.windowTimer.Stop()
	}

	for _, p := range r.registry.Evict(r.id) {
		r.wsRepo.Remove(p.ConnectionID)
	}

	if r.onClosed != nil {
		r.onClosed(r)
	}

	close(r.done)
	metric.DecrementRooms()

	slog.Info("room closed", slog.Any(constant.RoomID, r.id))
}

// emit добавляет событие в очередь рассылки текущей команды
func (r *Room) emit(out outgoing) {
	r.pending = append(r.pending, out)
}

func (r *Room) broadcast(msgType string, payload any) {
	r.emit(outgoing{msgType: msgType, payload: payload})
}

func (r *Room) send(to models.Participant, msgType string, payload any) {
	r.emit(outgoing{msgType: msgType, to: &to, payload: payload})
}

// broadcastQuestion рассылает новое состояние вопроса с учетом видимости.
// wasPublic - вопрос был виден всем до команды, и зрителям нужно сообщить, что он скрыт.
func (r *Room) broadcastQuestion(q models.Question, wasPublic bool) {
	r.emit(outgoing{
		msgType: events.TypeQuestionChanged,
		variant: func(p models.Participant) (string, any) {
			return questionVariant(q, p, wasPublic)
		},
	})
}

func questionVariant(q models.Question, p models.Participant, wasPublic bool) (string, any) {
	if !q.VisibleTo(p) {
		if !wasPublic {
			return "", nil
		}

		return "redacted", q.Redacted()
	}

	view := q.ViewFor(p)

	key := "audience"
	if p.Role.IsModerator() {
		key = "moderator"
	}
	if view.Voted {
		key += ":voted"
	}

	return key, view
}

// emitQuestionList отправляет рейтинг вопросов участнику или всей комнате (to == nil)
func (r *Room) emitQuestionList(to *models.Participant) {
	r.emit(outgoing{
		msgType: events.TypeQuestionList,
		to:      to,
		render: func(p models.Participant) any {
			return events.QuestionListEvent{Questions: r.ledger.RankedFor(p)}
		},
	})
}

// emitSnapshot отправляет список вопросов и состояние розыгрыша участнику или всей комнате (to == nil)
func (r *Room) emitSnapshot(to *models.Participant) {
	r.emitQuestionList(to)

	r.emit(outgoing{
		msgType: events.TypeGiveawayState,
		to:      to,
		payload: r.giveawayState(),
	})
}

func (r *Room) emitPresence() {
	connections := r.registry.ListConnections(r.id)
	users := lo.UniqBy(connections, func(p models.Participant) uuid.UUID {
		return p.UserID
	})

	r.broadcast(events.TypePresence, events.PresenceEvent{
		Connections: len(connections),
		Users:       len(users),
	})
}

func (r *Room) giveawayState() events.GiveawayStateEvent {
	return events.GiveawayStateEvent{
		Phase:  r.engine.Phase(),
		Config: r.engine.Config(),
	}
}

func (r *Room) flush() {
	if len(r.pending) == 0 {
		return
	}

	recipients := r.registry.ListConnections(r.id)

	for _, out := range r.pending {
		if out.to != nil {
			r.deliver(out, []models.Participant{*out.to})
			continue
		}

		metric.RecordBroadcast(out.msgType)
		r.deliver(out, recipients)
	}

	r.pending = r.pending[:0]
}

func (r *Room) deliver(out outgoing, recipients []models.Participant) {
	var full *events.Message
	variants := make(map[string]*events.Message)

	for _, p := range recipients {
		var msg *events.Message

		switch {
		case out.render != nil:
			msg = r.encode(out.msgType, out.render(p))
		case out.variant != nil:
			key, payload := out.variant(p)
			if payload == nil {
				continue
			}

			cached, ok := variants[key]
			if !ok {
				cached = r.encode(out.msgType, payload)
				variants[key] = cached
			}
			msg = cached
		default:
			if full == nil {
				full = r.encode(out.msgType, out.payload)
			}
			msg = full
		}

		if msg == nil {
			continue
		}

		r.wsRepo.Write(p.ConnectionID, *msg)
	}
}

func (r *Room) encode(msgType string, payload any) *events.Message {
	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("encode room event", slog.Any(constant.RoomID, r.id), slog.Any(constant.Error, err))
		return nil
	}

	return &msg
}

// Join регистрирует соединение и отправляет ему снимок состояния комнаты
func (r *Room) Join(ctx context.Context, p models.Participant) (models.Participant, error) {
	var joined models.Participant

	err := r.Do(ctx, events.TypeJoinRoom, p, func(r *Room) error {
		joined = r.registry.Join(r.id, p)

		r.send(joined, events.TypeJoined, events.JoinedEvent{
			ConnectionID: joined.ConnectionID,
			RoomID:       r.id,
			Role:         joined.Role,
		})
		r.emitSnapshot(&joined)
		r.emitPresence()

		return nil
	})

	return joined, err
}

// Leave снимает соединение с учета. intentional == false - обрыв связи, комната ждет grace период.
func (r *Room) Leave(ctx context.Context, p models.Participant, intentional bool) error {
	return r.Do(ctx, events.TypeLeaveRoom, p, func(r *Room) error {
		var ok bool
		if intentional {
			_, ok = r.registry.Leave(p.ConnectionID)
		} else {
			_, ok = r.registry.Disconnect(p.ConnectionID)
		}

		if ok {
			r.emitPresence()
		}

		return nil
	})
}

func (r *Room) Sync(ctx context.Context, p models.Participant) error {
	return r.Do(ctx, events.TypeSync, p, func(r *Room) error {
		r.emitSnapshot(&p)
		return nil
	})
}

// Questions возвращает рейтинг вопросов, видимый участнику
func (r *Room) Questions(ctx context.Context, p models.Participant) ([]models.Question, error) {
	var questions []models.Question

	err := r.Do(ctx, "list_questions", p, func(r *Room) error {
		questions = r.ledger.RankedFor(p)
		return nil
	})

	return questions, err
}

func (r *Room) SubmitQuestion(ctx context.Context, p models.Participant, text string) error {
	return r.Do(ctx, events.TypeSubmitQuestion, p, func(r *Room) error {
		q, err := r.ledger.Submit(p.UserID, text)
		if err != nil {
			return err
		}

		r.broadcastQuestion(q, false)

		return nil
	})
}

func (r *Room) VoteQuestion(ctx context.Context, p models.Participant, questionID uuid.UUID) error {
	return r.Do(ctx, events.TypeVoteQuestion, p, func(r *Room) error {
		// Скрытый от участника вопрос для него не существует
		before, err := r.ledger.Get(questionID)
		if err != nil {
			return err
		}
		if !before.VisibleTo(p) {
			return fmt.Errorf("%w: question %s", domain.ErrNotFound, questionID)
		}

		q, err := r.ledger.Vote(questionID, p.UserID)
		if err != nil {
			return err
		}

		r.broadcastQuestion(q, q.IsApproved)

		return nil
	})
}

func (r *Room) MarkAnswered(ctx context.Context, p models.Participant, questionID uuid.UUID) error {
	return r.Do(ctx, events.TypeMarkAnswered, p, func(r *Room) error {
		q, err := r.ledger.MarkAnswered(questionID)
		if err != nil {
			return err
		}

		r.broadcastQuestion(q, q.IsApproved)

		return nil
	})
}

func (r *Room) ToggleApproval(ctx context.Context, p models.Participant, questionID uuid.UUID, approve *bool) error {
	return r.Do(ctx, events.TypeToggleApproval, p, func(r *Room) error {
		before, err := r.ledger.Get(questionID)
		if err != nil {
			return err
		}

		q, err := r.ledger.ToggleApproval(questionID, approve)
		if err != nil {
			return err
		}

		r.broadcastQuestion(q, before.IsApproved)

		return nil
	})
}

// HighlightQuestion подсвечивает вопрос; nil снимает подсветку
func (r *Room) HighlightQuestion(ctx context.Context, p models.Participant, questionID *uuid.UUID) error {
	return r.Do(ctx, events.TypeHighlightQuestion, p, func(r *Room) error {
		change, err := r.ledger.Highlight(questionID)
		if err != nil {
			return err
		}

		switch {
		case change.Moved(), change.Current == nil && change.Previous == nil:
			// Изменились два вопроса или ни одного: клиенты сверяются по полному рейтингу
			r.emitQuestionList(nil)
		case change.Current != nil:
			r.broadcastQuestion(*change.Current, change.Current.IsApproved)
		default:
			r.broadcastQuestion(*change.Previous, change.Previous.IsApproved)
		}

		return nil
	})
}

// PrepareGiveaway заменяет подготовленный розыгрыш; cfg == nil отменяет его
func (r *Room) PrepareGiveaway(ctx context.Context, p models.Participant, cfg *models.GiveawayConfig) error {
	if cfg == nil {
		return r.CancelGiveaway(ctx, p)
	}

	return r.Do(ctx, events.TypePrepareGiveaway, p, func(r *Room) error {
		prepared, err := r.engine.Prepare(*cfg)
		if err != nil {
			return err
		}

		r.broadcast(events.TypeGiveawayPrepared, events.GiveawayPreparedEvent{Config: &prepared})

		return nil
	})
}

// CancelGiveaway действует только в фазе PREPARED, иначе ничего не делает
func (r *Room) CancelGiveaway(ctx context.Context, p models.Participant) error {
	return r.Do(ctx, events.TypeCancelGiveaway, p, func(r *Room) error {
		if r.engine.Cancel() {
			r.broadcast(events.TypeGiveawayPrepared, events.GiveawayPreparedEvent{Config: nil})
		}

		return nil
	})
}

func (r *Room) StartGiveaway(ctx context.Context, p models.Participant) error {
	return r.Do(ctx, events.TypeStartGiveaway, p, func(r *Room) error {
		cfg, err := r.engine.Begin()
		if err != nil {
			return err
		}

		r.broadcast(events.TypeGiveawayStarted, events.GiveawayStartedEvent{
			Prize:     cfg.Prize,
			Countdown: cfg.Countdown,
		})

		result, err := r.engine.Finish()
		if err != nil {
			return err
		}

		r.broadcast(events.TypeGiveawayWinner, events.GiveawayWinnerEvent{
			Prize:   result.Prize,
			Winners: result.Winners,
		})
		metric.RecordDraw(string(result.Mode))

		return nil
	})
}

// Close закрывает комнату. Без force комната закрывается, только если в ней нет соединений.
// Возвращает true, если комната закрыта этой командой.
func (r *Room) Close(ctx context.Context, reason string, force bool) (bool, error) {
	var closed bool

	err := r.Do(ctx, "close_room", models.Participant{RoomID: r.id}, func(r *Room) error {
		if !force && len(r.registry.ListConnections(r.id)) > 0 {
			return nil
		}

		if reason != "" {
			r.broadcast(events.TypeRoomClosed, events.RoomClosedEvent{Reason: reason})
		}

		r.closed = true
		closed = true

		return nil
	})

	return closed, err
}
