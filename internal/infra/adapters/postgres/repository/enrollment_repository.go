//go:generate go run go.uber.org/mock/mockgen -source=enrollment_repository.go -destination=../../../../usecase/mocks/mock_enrollment_repository.go -package=mocks

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StageLive/internal/domain/models"
)

type EnrollmentRepository interface {
	// GetEnrollment возвращает domain.ErrNotFound, если пользователь не участвует в мероприятии
	GetEnrollment(ctx context.Context, eventID, userID uuid.UUID) (*models.Enrollment, error)
}

type enrollmentRepo struct {
	db *sqlx.DB
}

func NewEnrollmentRepo(db *sqlx.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) GetEnrollment(ctx context.Context, eventID, userID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	query := `
		SELECT event_id, user_id, role, approved
		FROM event_participants
		WHERE event_id = $1 AND user_id = $2
	`

	if err := r.db.GetContext(ctx, &enrollment, query, eventID, userID); err != nil {
		return nil, wrapNotFound(err, "get enrollment")
	}

	role, err := models.ParseRole(string(enrollment.Role))
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	enrollment.Role = role

	return &enrollment, nil
}
