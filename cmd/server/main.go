package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gloriawright4412/ScreenShareCast/internal/config"
	"github.com/gloriawright4412/ScreenShareCast/internal/database"
	"github.com/gloriawright4412/ScreenShareCast/internal/handler"
	"github.com/gloriawright4412/ScreenShareCast/internal/history"
	"github.com/gloriawright4412/ScreenShareCast/internal/httputil"
	"github.com/gloriawright4412/ScreenShareCast/internal/jobs"
	"github.com/gloriawright4412/ScreenShareCast/internal/middleware"
	"github.com/gloriawright4412/ScreenShareCast/internal/redis"
	"github.com/gloriawright4412/ScreenShareCast/internal/repository"
	"github.com/gloriawright4412/ScreenShareCast/internal/signaling"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	connectionRepo := repository.NewConnectionRepository(db.DB)

	recorder := history.NewRecorder(sessionRepo, connectionRepo)

	registry := signaling.NewRegistry()
	sessionTable := signaling.NewSessionTable()
	router := signaling.NewRouter(registry)
	coordinator := signaling.NewCoordinator(registry, sessionTable, router, recorder)

	wsHandler := signaling.NewHandler(coordinator, cfg.Origins())
	historyHandler := handler.NewHistoryHandler(sessionRepo, connectionRepo)

	rateLimitMiddleware := middleware.NewIPRateLimitMiddleware(redisClient.Client, cfg.WSRateLimitPerMin)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"clients":   registry.Count(),
			"sessions":  sessionTable.Count(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.With(rateLimitMiddleware.Handler).Get("/ws", wsHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", historyHandler.Routes())
	})

	sweepJob := jobs.NewSweepJob(coordinator, sessionRepo, connectionRepo, cfg.SessionIdleTTL(), cfg.HistoryRetention(), cfg.SweepInterval())
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
