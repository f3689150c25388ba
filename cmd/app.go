package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrave1/StageLive/internal/application/config"
	"github.com/qrave1/StageLive/internal/application/constant"
	"github.com/qrave1/StageLive/internal/application/metric"
	"github.com/qrave1/StageLive/internal/infra/adapters/memory"
	"github.com/qrave1/StageLive/internal/infra/adapters/postgres"
	"github.com/qrave1/StageLive/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/StageLive/internal/infra/ports/http/handlers"
	"github.com/qrave1/StageLive/internal/infra/ports/http/server"
	"github.com/qrave1/StageLive/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepo(dbConn)
	eventRepo := repository.NewEventRepo(dbConn)
	enrollmentRepo := repository.NewEnrollmentRepo(dbConn)
	wsConnRepo := memory.NewWSConnectionRepository(cfg.Live.OutboxSize)
	registry := memory.NewConnectionRegistry(cfg.Live.GracePeriod)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo)
	enrollmentUsecase := usecase.NewEnrollmentUsecase(
		eventRepo,
		enrollmentRepo,
		cfg.Live.EnrollmentCacheSize,
		cfg.Live.EnrollmentCacheTTL,
	)
	liveUsecase := usecase.NewLiveUsecase(cfg.Live, enrollmentUsecase, registry, wsConnRepo)

	authHandler := handlers.NewAuthHandler(cfg, userUsecase)
	questionHandler := handlers.NewQuestionHandler(liveUsecase)
	wsHandler := handlers.NewWebSocketHandler(cfg, liveUsecase, wsConnRepo)

	echoSrv := server.New(cfg, userUsecase, authHandler, questionHandler, wsHandler)
	metricsSrv := metric.NewServer(dbConn.PingContext)

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error("HTTP server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error("Metrics server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer timeoutCancel()

	// Сначала закрываем комнаты: клиенты получат room_closed до разрыва соединения
	slog.Info("Closing live rooms", slog.Int("connections", len(wsConnRepo.GetAllConnected())))
	liveUsecase.Shutdown(timeoutCtx)

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
