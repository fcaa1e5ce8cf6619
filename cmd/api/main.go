// @title                       Protomind User Service API
// @version                     1.0
// @description                 Role-scoped management of Protomind user accounts.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/api"
	"github.com/protomind/user-service/internal/api/handler"
	"github.com/protomind/user-service/internal/core/ports"
	"github.com/protomind/user-service/internal/core/service"
	"github.com/protomind/user-service/internal/infrastructure/config"
	"github.com/protomind/user-service/internal/infrastructure/db"
	redisstore "github.com/protomind/user-service/internal/infrastructure/db/redis"
	"github.com/protomind/user-service/internal/infrastructure/mail"
	"github.com/protomind/user-service/internal/infrastructure/queue"
	"github.com/protomind/user-service/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "user-service",
	})
	log.Info().
		Str("env", cfg.Env).
		Str("db_driver", cfg.DBDriver).
		Msg("starting user service")

	ctx := context.Background()

	backend, err := db.Open(ctx, cfg, logger.For("db"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() { _ = backend.Close(context.Background()) }()

	if cfg.AutoMigrate {
		applied, err := backend.Migrator.Up(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("auto migrate")
		}
		log.Info().Strs("applied", applied).Msg("migrations up to date")
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	sender, err := newMailSender(cfg, logger.For("mail"))
	if err != nil {
		log.Fatal().Err(err).Msg("init mail sender")
	}
	dispatcher := queue.NewMailDispatcher(cfg.Mail.Workers, sender, logger.For("mail_dispatcher"))
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	dispatcher.Start(workerCtx)

	codes := redisstore.NewConfirmationStore(rdb, cfg.Mail.ConfirmationTTL)
	notifier := service.NewConfirmEmailNotifier(codes, dispatcher, cfg.Mail.ClientCreatePasswordURL, logger.For("notifier"))

	userService := service.NewUserService(
		backend.Users, backend.Roles, backend.Links, backend.Tx, backend.Media, notifier,
		service.UserServiceConfig{
			DefaultLimit: cfg.Paginator.Limit,
			MaxLimit:     cfg.Paginator.MaxLimit,
		},
		logger.For("user_service"),
	)
	authService := service.NewAuthService(backend.Users, codes, cfg.JWTSecret, cfg.JWTTTL)

	e := api.NewRouter(api.Deps{
		Users:          userService,
		Auth:           authService,
		JWTSecret:      cfg.JWTSecret,
		AvatarMaxBytes: cfg.Media.AvatarMaxBytes,
		Readiness: []handler.DependencyCheck{
			{Name: backend.Driver, Ping: backend.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		Logger: logger.For("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	// Drain queued mail after the last request has been served.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mail dispatcher shutdown")
	}

	log.Info().Msg("user service stopped")
}

func newMailSender(cfg *config.Config, log zerolog.Logger) (ports.MailSender, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.Mail.Driver == config.MailDriverSMTP {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:        cfg.Mail.Host,
			Port:        cfg.Mail.Port,
			Username:    cfg.Mail.Username,
			Password:    cfg.Mail.Password,
			FromAddress: cfg.Mail.FromAddress,
			FromName:    cfg.Mail.FromName,
		}, renderer), nil
	}
	return mail.NewLogSender(renderer, log), nil
}
