package models

import (
	"time"

	"github.com/google/uuid"
)

// Event - мероприятие; комната живого взаимодействия идентифицируется его ID
type Event struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	InteractionEndsAt *time.Time `json:"interaction_ends_at" db:"interaction_ends_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// InteractionOpen сообщает, открыто ли окно взаимодействия в момент now
func (e *Event) InteractionOpen(now time.Time) bool {
	return e.InteractionEndsAt == nil || now.Before(*e.InteractionEndsAt)
}

// Enrollment - участие пользователя в мероприятии
type Enrollment struct {
	EventID  uuid.UUID `json:"event_id" db:"event_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Role     Role      `json:"role" db:"role"`
	Approved bool      `json:"approved" db:"approved"`
}
