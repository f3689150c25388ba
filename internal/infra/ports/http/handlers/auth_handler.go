package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StageLive/internal/application/config"
	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/infra/appctx"
	"github.com/qrave1/StageLive/internal/infra/ports/http/dto"
	"github.com/qrave1/StageLive/internal/infra/ports/http/middleware"
	"github.com/qrave1/StageLive/internal/usecase"
)

type AuthHandler struct {
	cfg *config.Config

	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userUsecase: userUsecase,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return errorResponse(c, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error()))
	}

	user, err := h.userUsecase.CreateUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidState) {
			slog.Error("create user failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		}
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return errorResponse(c, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error()))
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, usecase.ErrInvalidCredentials) {
			slog.Error("validate credentials failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		}
		return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
	}

	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		slog.Error("generate JWT failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "could not create token"})
	}

	sameSite := http.SameSiteNoneMode
	if h.cfg.Debug {
		sameSite = http.SameSiteLaxMode
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Expires:  time.Now().Add(72 * time.Hour),
		Domain:   middleware.BuildCookieDomain(h.cfg.Domain),
		Path:     "/",
		Secure:   !h.cfg.Debug,
		HttpOnly: true,
		SameSite: sameSite,
	})

	return c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid user ID in context"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, dto.GetMeResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}
