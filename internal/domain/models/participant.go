package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAudience  Role = "AUDIENCE"
	RoleSpeaker   Role = "SPEAKER"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAudience, RoleSpeaker, RoleOrganizer, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsModerator - SPEAKER, ORGANIZER и ADMIN управляют вопросами и розыгрышами
func (r Role) IsModerator() bool {
	return r == RoleSpeaker || r == RoleOrganizer || r == RoleAdmin
}

// Participant - одно websocket соединение в комнате. У пользователя может быть несколько соединений.
type Participant struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	RoomID       uuid.UUID `json:"room_id"`
	UserID       uuid.UUID `json:"user_id"`
	Role         Role      `json:"role"`
}
