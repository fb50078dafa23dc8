package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/handler"
	"github.com/petlogue/consultation-service/internal/hub"
	"github.com/petlogue/consultation-service/internal/lifecycle"
	"github.com/petlogue/consultation-service/internal/notify"
	"github.com/petlogue/consultation-service/internal/presence"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/internal/service"
	"github.com/petlogue/consultation-service/internal/timeout"
	"github.com/petlogue/consultation-service/pkg/database"
	pkglog "github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/middleware"
	"github.com/petlogue/consultation-service/pkg/pubsub"
	"github.com/petlogue/consultation-service/pkg/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		pkglog.L().Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: cfg.Log.ServiceName,
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db,
		&domain.RoomModel{},
		&domain.ChatMessageModel{},
		&domain.UserModel{},
		&domain.PetModel{},
		&domain.ScheduleModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Repositories
	roomRepo := repository.NewGormRoomRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	scheduleRepo := repository.NewGormScheduleRepository(db)
	directory := repository.NewGormUserDirectory(db)

	// Optional Redis event mirroring
	var ps pubsub.PubSub
	if cfg.Redis.Enabled {
		ps, err = pubsub.NewRedisPubSub(cfg.Redis.RedisConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer ps.Close()
		logger.Info().Msg("redis pubsub connected")
	}

	// Core components
	h := hub.NewHub(cfg.WebSocket)
	tracker := presence.NewTracker()
	registry := timeout.NewRegistry()

	var publisher pubsub.Publisher
	if ps != nil {
		publisher = ps
	}
	router := notify.NewRouter(h, publisher, notify.Config{
		MaxAttempts: cfg.Consultation.NotifyMaxAttempts,
		RetryDelay:  cfg.Consultation.NotifyRetryDelay,
	})

	engine := lifecycle.NewEngine(roomRepo, messageRepo, scheduleRepo, directory, registry, router)

	reconciler := timeout.NewReconciler(roomRepo, registry, engine, timeout.Config{
		SweepInterval:  cfg.Consultation.SweepInterval,
		ResponseWindow: cfg.Consultation.ResponseWindow,
		SkewTolerance:  cfg.Consultation.SkewTolerance,
	})

	// Auth
	validator := token.NewHMACValidator(cfg.Auth.Secret, cfg.Auth.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(validator)

	// Handlers
	sessionService := service.NewSessionService(h, tracker, validator, roomRepo, messageRepo, directory, router)
	wsHandler := handler.NewWSHandler(h, sessionService, cfg.WebSocket)
	httpHandler := handler.NewHandler(engine, roomRepo, messageRepo, authMiddleware)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})

	if ps != nil {
		bridge := notify.NewBridge(h, ps, router.Origin())
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info().
			Str("addr", addr).
			Str("driver", cfg.Database.Driver).
			Dur("response_window", cfg.Consultation.ResponseWindow).
			Msg("consultation-service starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("consultation-service exited with error")
	}
	logger.Info().Msg("consultation-service stopped")
}
