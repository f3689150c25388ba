package moderation

import (
	"fmt"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

type Command string

const (
	CommandJoinRoom        Command = "join_room"
	CommandLeaveRoom       Command = "leave_room"
	CommandSync            Command = "sync"
	CommandSubmitQuestion  Command = "submit_question"
	CommandVoteQuestion    Command = "vote_question"
	CommandMarkAnswered    Command = "mark_answered"
	CommandToggleApproval  Command = "toggle_approval"
	CommandHighlight       Command = "highlight_question"
	CommandPrepareGiveaway Command = "prepare_giveaway"
	CommandCancelGiveaway  Command = "cancel_giveaway"
	CommandStartGiveaway   Command = "start_giveaway"
)

// moderated - команды, доступные только модераторам
var moderated = map[Command]struct{}{
	CommandMarkAnswered:    {},
	CommandToggleApproval:  {},
	CommandHighlight:       {},
	CommandPrepareGiveaway: {},
	CommandCancelGiveaway:  {},
	CommandStartGiveaway:   {},
}

// RequiresModerator сообщает, закрыта ли команда для AUDIENCE
func RequiresModerator(cmd Command) bool {
	_, ok := moderated[cmd]
	return ok
}

// Authorize проверяет роль до того, как команда попадет в комнату
func Authorize(role models.Role, cmd Command) error {
	if !RequiresModerator(cmd) || role.IsModerator() {
		return nil
	}

	return fmt.Errorf("%w: role %s cannot %s", domain.ErrPermission, role, cmd)
}
