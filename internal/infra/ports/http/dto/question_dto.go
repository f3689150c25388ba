package dto

import "github.com/qrave1/StageLive/internal/domain/models"

type EventPathRequest struct {
	EventID string `param:"id" validate:"required,uuid"`
}

type QuestionListResponse struct {
	Questions []models.Question `json:"questions"`
}
