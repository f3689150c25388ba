package models

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Question - представление вопроса для клиентов. Голоса хранятся в ledger как множество,
// VoterIDs упорядочены по байтам и зрителям не отправляются.
type Question struct {
	ID            uuid.UUID   `json:"id"`
	RoomID        uuid.UUID   `json:"room_id"`
	AuthorID      uuid.UUID   `json:"author_id"`
	Text          string      `json:"text"`
	Votes         int         `json:"votes"`
	VoterIDs      []uuid.UUID `json:"voter_ids,omitempty"`
	Voted         bool        `json:"voted"`
	IsApproved    bool        `json:"is_approved"`
	IsHighlighted bool        `json:"is_highlighted"`
	IsAnswered    bool        `json:"is_answered"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Redacted скрывает содержимое неодобренного вопроса от зрителей
func (q Question) Redacted() Question {
	return Question{
		ID:         q.ID,
		RoomID:     q.RoomID,
		IsApproved: false,
		CreatedAt:  q.CreatedAt,
	}
}

// VisibleTo сообщает, можно ли показать вопрос участнику целиком
func (q Question) VisibleTo(p Participant) bool {
	return q.IsApproved || p.Role.IsModerator() || q.AuthorID == p.UserID
}

// ViewFor отмечает голос участника. Список проголосовавших остается только у модераторов.
func (q Question) ViewFor(p Participant) Question {
	_, q.Voted = slices.BinarySearchFunc(q.VoterIDs, p.UserID, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	if !p.Role.IsModerator() {
		q.VoterIDs = nil
	}

	return q
}
