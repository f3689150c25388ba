package appctx

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qrave1/StageLive/internal/application/constant"
)

type ctxKey uint8

const (
	userIDKey ctxKey = iota
	connectionIDKey
)

// WithUserID добавляет userID в контекст
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID извлекает userID из контекста
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// WithConnectionID помечает контекст команды websocket соединением
func WithConnectionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

func ConnectionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(connectionIDKey).(uuid.UUID)
	return id, ok
}

// LogAttrs возвращает известные идентификаторы запроса для slog
func LogAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, 2)

	if id, ok := UserID(ctx); ok {
		attrs = append(attrs, slog.Any(constant.UserID, id))
	}
	if id, ok := ConnectionID(ctx); ok {
		attrs = append(attrs, slog.Any(constant.ConnectionID, id))
	}

	return attrs
}
