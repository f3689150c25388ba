package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

func TestAuthorize(t *testing.T) {
	moderatorOnly := []Command{
		CommandMarkAnswered,
		CommandToggleApproval,
		CommandHighlight,
		CommandPrepareGiveaway,
		CommandCancelGiveaway,
		CommandStartGiveaway,
	}
	open := []Command{CommandSubmitQuestion, CommandVoteQuestion}
	moderators := []models.Role{models.RoleSpeaker, models.RoleOrganizer, models.RoleAdmin}

	for _, cmd := range moderatorOnly {
		t.Run(string(cmd), func(t *testing.T) {
			req := require.New(t)

			req.ErrorIs(Authorize(models.RoleAudience, cmd), domain.ErrPermission)
			for _, role := range moderators {
				req.NoError(Authorize(role, cmd))
			}
		})
	}

	for _, cmd := range open {
		t.Run(string(cmd), func(t *testing.T) {
			req := require.New(t)

			req.NoError(Authorize(models.RoleAudience, cmd))
			req.False(RequiresModerator(cmd))
		})
	}
}
