package server

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/StageLive/internal/application/config"
	"github.com/qrave1/StageLive/internal/infra/ports/http/dto"
	"github.com/qrave1/StageLive/internal/infra/ports/http/handlers"
	"github.com/qrave1/StageLive/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	tokenParser middleware.TokenParser,
	authHandler *handlers.AuthHandler,
	questionHandler *handlers.QuestionHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = dto.NewValidator()

	e.Use(echomiddleware.Recover())
	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(tokenParser))
		{
			v1.GET("/me", authHandler.GetMe)

			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/events/:id/questions", questionHandler.List)
		}
	}

	return e
}
