package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/noah-isme/tutordesk-api/internal/config"
	"github.com/noah-isme/tutordesk-api/internal/database"
	"github.com/noah-isme/tutordesk-api/internal/handler"
	"github.com/noah-isme/tutordesk-api/internal/middleware"
	"github.com/noah-isme/tutordesk-api/internal/repository"
	"github.com/noah-isme/tutordesk-api/internal/router"
	"github.com/noah-isme/tutordesk-api/internal/scheduler"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/pkg/eventbus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	probes := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)
	repos := store.Repos()
	events := eventbus.NewFromNATS(natsConn, cfg.NATSSubjectPrefix, logger)
	stats := service.NewStatsCache(redisClient, cfg.StatsCacheTTL, logger)

	activityService := service.NewActivityService(repos.Activity, logger)
	userService := service.NewUserService(repos.Users, validate, activityService, logger)
	taskService := service.NewTeachingTaskService(store, validate, stats, activityService, events, logger)
	feedbackService := service.NewFeedbackService(store, taskService, validate, stats, service.FeedbackConfig{
		SubmitMode: cfg.SubmitMarkerMode,
		ManualMode: cfg.ManualMarkerMode,
	}, activityService, events, logger)
	pushService := service.NewFeedbackPushService(store, validate, activityService, events, logger)
	noteService := service.NewStudentNoteService(store, validate, activityService, events, logger)
	attentionService := service.NewAttentionService(store, validate, activityService, events, logger)
	studentService := service.NewStudentService(store, validate, service.StudentSearchConfig{
		MinLength: cfg.SearchMinLength,
		Limit:     cfg.SearchLimit,
	}, activityService, events, logger)
	opsService := service.NewOpsService(store, validate, activityService, events, logger)
	reportService := service.NewReportService(repos.Tasks, logger)

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := userService.EnsureAdmin(bootstrapCtx, cfg.AdminBootstrapUser); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap admin account")
	}
	cancelBootstrap()

	sweeps := scheduler.New(attentionService, scheduler.Config{
		AttentionCron: cfg.AttentionSweepCron,
		StaleAfter:    cfg.AttentionStaleAge,
	}, logger)
	if err := sweeps.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    12 << 20,
	})

	middleware.Register(app, middleware.Config{
		Logger:       logger,
		AccessLog:    !cfg.IsProduction(),
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		TeachingHandler:      handler.NewTeachingHandler(taskService, feedbackService, pushService, logger),
		ResearchHandler:      handler.NewResearchHandler(taskService, feedbackService, attentionService, noteService, reportService, logger),
		StudentHandler:       handler.NewStudentHandler(studentService, noteService, attentionService, logger),
		OperationsHandler:    handler.NewOperationsHandler(opsService, logger),
		AdminUserHandler:     handler.NewAdminUserHandler(userService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activityService, logger),
		ActorResolver:        userService,
		HealthProbes:         probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, sweeps, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     28,
			Compress:   true,
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func waitForShutdown(app *fiber.App, sweeps *scheduler.Scheduler, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	sweeps.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
