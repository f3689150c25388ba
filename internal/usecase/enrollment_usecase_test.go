package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
	"github.com/qrave1/StageLive/internal/usecase/mocks"
)

func TestEnrollmentUsecase_Event(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eventRepo := mocks.NewMockEventRepository(ctrl)
	enrollmentRepo := mocks.NewMockEnrollmentRepository(ctrl)
	ctx := context.Background()

	t.Run("should hit the repository once while cached", func(t *testing.T) {
		req := require.New(t)
		uc := NewEnrollmentUsecase(eventRepo, enrollmentRepo, 16, time.Minute)
		event := &models.Event{ID: uuid.New(), Name: "Keynote"}

		eventRepo.EXPECT().
			GetByID(gomock.Any(), event.ID).
			Return(event, nil).
			Times(1)

		for range 3 {
			got, err := uc.Event(ctx, event.ID)
			req.NoError(err)
			req.Equal("Keynote", got.Name)
		}
	})

	t.Run("should reload after ttl", func(t *testing.T) {
		req := require.New(t)
		uc := NewEnrollmentUsecase(eventRepo, enrollmentRepo, 16, 20*time.Millisecond)
		event := &models.Event{ID: uuid.New()}

		eventRepo.EXPECT().
			GetByID(gomock.Any(), event.ID).
			Return(event, nil).
			Times(2)

		_, err := uc.Event(ctx, event.ID)
		req.NoError(err)

		time.Sleep(60 * time.Millisecond)

		_, err = uc.Event(ctx, event.ID)
		req.NoError(err)
	})

	t.Run("should return not found", func(t *testing.T) {
		req := require.New(t)
		uc := NewEnrollmentUsecase(eventRepo, enrollmentRepo, 16, time.Minute)

		eventRepo.EXPECT().
			GetByID(gomock.Any(), gomock.Any()).
			Return(nil, domain.ErrNotFound).
			Times(1)

		_, err := uc.Event(ctx, uuid.New())
		req.ErrorIs(err, domain.ErrNotFound)
	})
}

func TestEnrollmentUsecase_Enrollment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eventRepo := mocks.NewMockEventRepository(ctrl)
	enrollmentRepo := mocks.NewMockEnrollmentRepository(ctrl)
	ctx := context.Background()

	t.Run("should cache enrollments per event and user", func(t *testing.T) {
		req := require.New(t)
		uc := NewEnrollmentUsecase(eventRepo, enrollmentRepo, 16, time.Minute)
		eventID, userID := uuid.New(), uuid.New()

		enrollmentRepo.EXPECT().
			GetEnrollment(gomock.Any(), eventID, userID).
			Return(&models.Enrollment{EventID: eventID, UserID: userID, Role: models.RoleSpeaker, Approved: true}, nil).
			Times(1)

		for range 2 {
			got, err := uc.Enrollment(ctx, eventID, userID)
			req.NoError(err)
			req.Equal(models.RoleSpeaker, got.Role)
		}
	})

	t.Run("should not cache missing enrollment", func(t *testing.T) {
		req := require.New(t)
		uc := NewEnrollmentUsecase(eventRepo, enrollmentRepo, 16, time.Minute)
		eventID, userID := uuid.New(), uuid.New()

		// Given the user is added to the event right after the first lookup
		gomock.InOrder(
			enrollmentRepo.EXPECT().
				GetEnrollment(gomock.Any(), eventID, userID).
				Return(nil, domain.ErrNotFound),
			enrollmentRepo.EXPECT().
				GetEnrollment(gomock.Any(), eventID, userID).
				Return(&models.Enrollment{EventID: eventID, UserID: userID, Role: models.RoleAudience}, nil),
		)

		_, err := uc.Enrollment(ctx, eventID, userID)
		req.ErrorIs(err, domain.ErrNotFound)

		// Then the second lookup sees the new row
		got, err := uc.Enrollment(ctx, eventID, userID)
		req.NoError(err)
		req.Equal(models.RoleAudience, got.Role)
	})
}
