package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/infra/appctx"
	"github.com/qrave1/StageLive/internal/infra/ports/http/dto"
	"github.com/qrave1/StageLive/internal/usecase"
)

// QuestionHandler отдает рейтинг вопросов клиентам без активного websocket
type QuestionHandler struct {
	liveUsecase usecase.LiveUsecase
}

func NewQuestionHandler(liveUsecase usecase.LiveUsecase) *QuestionHandler {
	return &QuestionHandler{liveUsecase: liveUsecase}
}

func (h *QuestionHandler) List(c echo.Context) error {
	var req dto.EventPathRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return errorResponse(c, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error()))
	}

	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid user ID in context"})
	}

	eventID := uuid.MustParse(req.EventID)

	questions, err := h.liveUsecase.Questions(c.Request().Context(), userID, eventID)
	if err != nil {
		if domain.Kind(err) == domain.KindInternal {
			slog.Error("list questions", slog.Any(constant.RoomID, eventID), slog.Any(constant.Error, err))
		}
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, dto.QuestionListResponse{Questions: questions})
}
