package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/qrave1/StageLive/internal/domain/models"
)

// Команды клиента (C→S)
const (
	TypeJoinRoom          = "join_room"
	TypeLeaveRoom         = "leave_room"
	TypeSync              = "sync"
	TypeSubmitQuestion    = "submit_question"
	TypeVoteQuestion      = "vote_question"
	TypeMarkAnswered      = "mark_answered"
	TypeToggleApproval    = "toggle_approval"
	TypeHighlightQuestion = "highlight_question"
	TypePrepareGiveaway   = "prepare_giveaway"
	TypeCancelGiveaway    = "cancel_giveaway"
	TypeStartGiveaway     = "start_giveaway"
	TypePing              = "ping"
)

// События сервера (S→C)
const (
	TypeJoined           = "joined"
	TypeQuestionList     = "question_list"
	TypeQuestionChanged  = "question_changed"
	TypeGiveawayPrepared = "giveaway_prepared"
	TypeGiveawayStarted  = "giveaway_started"
	TypeGiveawayWinner   = "giveaway_winner"
	TypeGiveawayError    = "giveaway_error"
	TypeGiveawayState    = "giveaway_state"
	TypePresence         = "presence"
	TypeRoomClosed       = "room_closed"
	TypeAck              = "ack"
	TypePong             = "pong"
)

// Message - общее событие
type Message struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage упаковывает payload в конверт
func NewMessage(eventType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Message{Type: eventType, Data: data}, nil
}

// JoinRoomEvent - подключение к комнате мероприятия
type JoinRoomEvent struct {
	RoomID string `json:"room_id"`
}

type SubmitQuestionEvent struct {
	Text string `json:"text"`
}

// QuestionRefEvent - команды, адресованные одному вопросу (vote, mark_answered)
type QuestionRefEvent struct {
	QuestionID string `json:"question_id"`
}

// ToggleApprovalEvent - если Approve не задан, флаг инвертируется
type ToggleApprovalEvent struct {
	QuestionID string `json:"question_id"`
	Approve    *bool  `json:"approve"`
}

// HighlightQuestionEvent - null снимает подсветку
type HighlightQuestionEvent struct {
	QuestionID *string `json:"question_id"`
}

// PrepareGiveawayEvent - null отменяет подготовленный розыгрыш
type PrepareGiveawayEvent struct {
	Config *models.GiveawayConfig `json:"config"`
}

type JoinedEvent struct {
	ConnectionID uuid.UUID   `json:"connection_id"`
	RoomID       uuid.UUID   `json:"room_id"`
	Role         models.Role `json:"role"`
}

type QuestionListEvent struct {
	Questions []models.Question `json:"questions"`
}

type GiveawayPreparedEvent struct {
	Config *models.GiveawayConfig `json:"config"`
}

type GiveawayStartedEvent struct {
	Prize     string `json:"prize"`
	Countdown int    `json:"countdown"`
}

type GiveawayWinnerEvent struct {
	Prize   string          `json:"prize"`
	Winners []models.Winner `json:"winners"`
}

type GiveawayErrorEvent struct {
	Message string `json:"message"`
}

// GiveawayStateEvent - снимок состояния розыгрыша для переподключившихся клиентов
type GiveawayStateEvent struct {
	Phase  models.GiveawayPhase   `json:"phase"`
	Config *models.GiveawayConfig `json:"config"`
}

type PresenceEvent struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
}

type RoomClosedEvent struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type AckEvent struct {
	OK    bool          `json:"ok"`
	Error *ErrorPayload `json:"error,omitempty"`
}
