package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/qrave1/StageLive/internal/domain/models"
	"github.com/qrave1/StageLive/internal/infra/adapters/postgres/repository"
)

// EnrollmentUsecase отвечает на вопросы "существует ли мероприятие" и "участвует ли в нем пользователь".
// Ответы кэшируются, чтобы проверки не задерживали комнаты.
type EnrollmentUsecase interface {
	Event(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	Enrollment(ctx context.Context, eventID, userID uuid.UUID) (*models.Enrollment, error)
}

type enrollmentKey struct {
	eventID uuid.UUID
	userID  uuid.UUID
}

type enrollmentUsecase struct {
	eventRepo      repository.EventRepository
	enrollmentRepo repository.EnrollmentRepository

	events      *expirable.LRU[uuid.UUID, models.Event]
	enrollments *expirable.LRU[enrollmentKey, models.Enrollment]
}

func NewEnrollmentUsecase(
	eventRepo repository.EventRepository,
	enrollmentRepo repository.EnrollmentRepository,
	cacheSize int,
	cacheTTL time.Duration,
) EnrollmentUsecase {
	return &enrollmentUsecase{
		eventRepo:      eventRepo,
		enrollmentRepo: enrollmentRepo,
		events:         expirable.NewLRU[uuid.UUID, models.Event](cacheSize, nil, cacheTTL),
		enrollments:    expirable.NewLRU[enrollmentKey, models.Enrollment](cacheSize, nil, cacheTTL),
	}
}

func (uc *enrollmentUsecase) Event(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	if event, ok := uc.events.Get(eventID); ok {
		return &event, nil
	}

	event, err := uc.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolve event %s: %w", eventID, err)
	}

	uc.events.Add(eventID, *event)

	return event, nil
}

// Enrollment возвращает участие пользователя; отсутствие записи не кэшируется,
// чтобы только что добавленный участник мог войти сразу
func (uc *enrollmentUsecase) Enrollment(ctx context.Context, eventID, userID uuid.UUID) (*models.Enrollment, error) {
	key := enrollmentKey{eventID: eventID, userID: userID}

	if enrollment, ok := uc.enrollments.Get(key); ok {
		return &enrollment, nil
	}

	enrollment, err := uc.enrollmentRepo.GetEnrollment(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve enrollment: %w", err)
	}

	uc.enrollments.Add(key, *enrollment)

	return enrollment, nil
}
