package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"conversation-service/internal/cache"
	"conversation-service/internal/config"
	"conversation-service/internal/conversation"
	"conversation-service/internal/db"
	"conversation-service/internal/handlers"
	"conversation-service/internal/middleware"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Run the HTTP API",
	Action: cmdServe,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply database migrations before serving",
		},
	},
}

func cmdServe(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer database.Close()
	if cliCtx.Bool("migrate") {
		if err := db.Migrate(ctx, database, logger); err != nil {
			return err
		}
	}

	var store cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		store = redisCache
	} else {
		logger.Warn().Msg("REDIS_URL empty, serving without cache")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("noop_reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	emitter := telemetry.NewEventEmitter(publisher, cfg.ServiceName, cfg.Environment, logger)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	coordinator := conversation.NewCoordinator(store, conversationRepo, messageRepo, cfg.CacheTTL, logger)
	svc := conversation.NewService(conversationRepo, messageRepo, coordinator, logger,
		conversation.WithEventPublisher(emitter))

	router := newRouter(cfg, logger, database, store, handlers.NewConversationHandler(svc, logger))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg config.Config, logger zerolog.Logger, database *sqlx.DB, store cache.Cache, handler *handlers.ConversationHandler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.AccessLog(logger),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "db": err.Error()})
			return
		}
		status := gin.H{"status": "ok", "db": "ok", "cache": "disabled"}
		if store != nil {
			if err := store.Ping(ctx); err != nil {
				status["cache"] = err.Error()
			} else {
				status["cache"] = "ok"
			}
		}
		c.JSON(http.StatusOK, status)
	})

	api := router.Group("/", middleware.Identity())
	handler.Register(api)
	return router
}
