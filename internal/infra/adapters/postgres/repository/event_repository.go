//go:generate go run go.uber.org/mock/mockgen -source=event_repository.go -destination=../../../../usecase/mocks/mock_event_repository.go -package=mocks

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StageLive/internal/domain/models"
)

// EventRepository - только чтение; CRUD мероприятий живет в основном приложении
type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

type eventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event

	query := "SELECT id, name, interaction_ends_at, created_at FROM events WHERE id = $1"

	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, wrapNotFound(err, "get event by id")
	}

	return &event, nil
}
