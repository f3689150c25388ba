package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StageLive/internal/application/config"
	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/events"
	"github.com/qrave1/StageLive/internal/infra/adapters/memory"
	"github.com/qrave1/StageLive/internal/infra/appctx"
	"github.com/qrave1/StageLive/internal/usecase"
)

const (
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
)

type WebSocketHandler struct {
	cfg      config.LiveConfig
	upgrader *websocket.Upgrader

	liveUsecase usecase.LiveUsecase

	wsConnRepo memory.WebsocketConnectionRepository
}

func NewWebSocketHandler(cfg *config.Config, liveUsecase usecase.LiveUsecase, wsConnRepo memory.WebsocketConnectionRepository) *WebSocketHandler {
	return &WebSocketHandler{
		cfg: cfg.Live,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		liveUsecase: liveUsecase,
		wsConnRepo:  wsConnRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return fmt.Errorf("get user id from context")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}

	// Одно websocket соединение - одно присутствие в комнате
	connectionID := uuid.New()

	outbox := h.wsConnRepo.Add(connectionID, ws)
	writerDone := make(chan struct{})
	go h.writeLoop(connectionID, outbox, writerDone)

	defer func() {
		// Обрыв без leave_room: комната ждет переподключения
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CommandTimeout)
		h.liveUsecase.Disconnect(ctx, connectionID)
		cancel()

		h.wsConnRepo.Remove(connectionID)
		<-writerDone
	}()

	ws.SetReadLimit(maxMessageSize)
	if err = ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout)); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			h.handleWebsocketError(connectionID, userID, err)
			return nil
		}

		var msg events.Message
		if err = json.Unmarshal(data, &msg); err != nil {
			h.ack(connectionID, "", fmt.Errorf("%w: malformed message", domain.ErrValidation))
			continue
		}

		h.handleMessage(connectionID, userID, msg)
	}
}

// writeLoop - единственный писатель в соединение: события комнаты, ответы и ping
func (h *WebSocketHandler) writeLoop(connectionID uuid.UUID, outbox *memory.Outbox, done chan<- struct{}) {
	ws := outbox.Conn

	defer close(done)
	defer ws.Close()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-outbox.Messages():
			if err := writeJSON(ws, msg); err != nil {
				slog.Warn("websocket write", slog.Any(constant.ConnectionID, connectionID), slog.Any(constant.Error, err))
				return
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Warn("ping failed", slog.Any(constant.ConnectionID, connectionID), slog.Any(constant.Error, err))
				return
			}

		case <-outbox.Done():
			// Дописываем то, что уже стоит в очереди (например, room_closed)
		drain:
			for {
				select {
				case msg := <-outbox.Messages():
					if err := writeJSON(ws, msg); err != nil {
						return
					}
				default:
					break drain
				}
			}

			_ = ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)

			return
		}
	}
}

func writeJSON(ws *websocket.Conn, msg events.Message) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return ws.WriteJSON(msg)
}

func (h *WebSocketHandler) handleMessage(connectionID, userID uuid.UUID, msg events.Message) {
	// Отключение клиента не отменяет принятую команду
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CommandTimeout)
	defer cancel()
	ctx = appctx.WithConnectionID(appctx.WithUserID(ctx, userID), connectionID)

	var err error

	switch msg.Type {
	case events.TypeJoinRoom:
		var e events.JoinRoomEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		var eventID uuid.UUID
		if eventID, err = parseID(e.RoomID); err != nil {
			break
		}

		_, err = h.liveUsecase.Join(ctx, connectionID, userID, eventID)

	case events.TypeLeaveRoom:
		err = h.liveUsecase.Leave(ctx, connectionID)

	case events.TypeSync:
		err = h.liveUsecase.Sync(ctx, connectionID)

	case events.TypeSubmitQuestion:
		var e events.SubmitQuestionEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		err = h.liveUsecase.SubmitQuestion(ctx, connectionID, e.Text)

	case events.TypeVoteQuestion, events.TypeMarkAnswered:
		var e events.QuestionRefEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		var questionID uuid.UUID
		if questionID, err = parseID(e.QuestionID); err != nil {
			break
		}

		if msg.Type == events.TypeVoteQuestion {
			err = h.liveUsecase.VoteQuestion(ctx, connectionID, questionID)
		} else {
			err = h.liveUsecase.MarkAnswered(ctx, connectionID, questionID)
		}

	case events.TypeToggleApproval:
		var e events.ToggleApprovalEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		var questionID uuid.UUID
		if questionID, err = parseID(e.QuestionID); err != nil {
			break
		}

		err = h.liveUsecase.ToggleApproval(ctx, connectionID, questionID, e.Approve)

	case events.TypeHighlightQuestion:
		var e events.HighlightQuestionEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		var questionID *uuid.UUID
		if e.QuestionID != nil {
			id, parseErr := parseID(*e.QuestionID)
			if parseErr != nil {
				err = parseErr
				break
			}
			questionID = &id
		}

		err = h.liveUsecase.HighlightQuestion(ctx, connectionID, questionID)

	case events.TypePrepareGiveaway:
		var e events.PrepareGiveawayEvent
		if err = decode(msg.Data, &e); err != nil {
			break
		}

		err = h.liveUsecase.PrepareGiveaway(ctx, connectionID, e.Config)

	case events.TypeCancelGiveaway:
		err = h.liveUsecase.CancelGiveaway(ctx, connectionID)

	case events.TypeStartGiveaway:
		err = h.liveUsecase.StartGiveaway(ctx, connectionID)

	case events.TypePing:
		h.write(connectionID, msg.RequestID, events.TypePong, struct{}{})
		return

	default:
		err = fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, msg.Type)
	}

	if err != nil && isGiveawayCommand(msg.Type) {
		h.write(connectionID, msg.RequestID, events.TypeGiveawayError, events.GiveawayErrorEvent{Message: err.Error()})
	}

	h.ack(connectionID, msg.RequestID, err)
}

// ack отвечает отправителю; идет через ту же очередь, поэтому приходит после событий команды
func (h *WebSocketHandler) ack(connectionID uuid.UUID, requestID string, err error) {
	ack := events.AckEvent{OK: err == nil}
	if err != nil {
		message := err.Error()
		if domain.Kind(err) == domain.KindInternal {
			message = "internal error"
		}

		ack.Error = &events.ErrorPayload{Kind: domain.Kind(err), Message: message}
	}

	h.write(connectionID, requestID, events.TypeAck, ack)
}

func (h *WebSocketHandler) write(connectionID uuid.UUID, requestID, msgType string, payload any) {
	msg, err := events.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("encode reply", slog.Any(constant.ConnectionID, connectionID), slog.Any(constant.Error, err))
		return
	}
	msg.RequestID = requestID

	h.wsConnRepo.Write(connectionID, msg)
}

func (h *WebSocketHandler) handleWebsocketError(connectionID, userID uuid.UUID, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info(
				"user disconnected from websocket",
				slog.Any(constant.UserID, userID),
				slog.Any(constant.ConnectionID, connectionID),
			)
		default:
			slog.Warn(
				"websocket closed",
				slog.Int("code", closeErr.Code),
				slog.Any(constant.ConnectionID, connectionID),
			)
		}

		return
	}

	slog.Info(
		"websocket read",
		slog.Any(constant.ConnectionID, connectionID),
		slog.Any(constant.Error, err),
	)
}

func isGiveawayCommand(msgType string) bool {
	switch msgType {
	case events.TypePrepareGiveaway, events.TypeCancelGiveaway, events.TypeStartGiveaway:
		return true
	default:
		return false
	}
}

// decode разбирает payload команды; пустой payload - нулевое значение
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %s", domain.ErrValidation, err.Error())
	}

	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, s)
	}

	return id, nil
}
