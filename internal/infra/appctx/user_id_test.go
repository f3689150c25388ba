package appctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StageLive/internal/application/constant"
)

func TestUserID(t *testing.T) {
	req := require.New(t)

	_, ok := UserID(context.Background())
	req.False(ok)

	id := uuid.New()
	got, ok := UserID(WithUserID(context.Background(), id))
	req.True(ok)
	req.Equal(id, got)
}

func TestLogAttrs(t *testing.T) {
	req := require.New(t)

	req.Empty(LogAttrs(context.Background()))

	userID, connectionID := uuid.New(), uuid.New()
	ctx := WithConnectionID(WithUserID(context.Background(), userID), connectionID)

	got, ok := ConnectionID(ctx)
	req.True(ok)
	req.Equal(connectionID, got)

	req.Equal([]any{
		slog.Any(constant.UserID, userID),
		slog.Any(constant.ConnectionID, connectionID),
	}, LogAttrs(ctx))
}
