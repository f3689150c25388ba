package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/infra/ports/http/dto"
)

// errorResponse переводит доменную ошибку в HTTP ответ
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrPermission):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		status, message = http.StatusConflict, err.Error()
	}

	return c.JSON(status, dto.ErrorResponse{Error: message, Kind: domain.Kind(err)})
}
