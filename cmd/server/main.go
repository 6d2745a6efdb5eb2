package main

import (
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docquizai/internal/api"
	"docquizai/internal/api/handlers"
	"docquizai/internal/assembler"
	"docquizai/internal/config"
	"docquizai/internal/db"
	"docquizai/internal/gemini"
	"docquizai/internal/generator"
	"docquizai/internal/jobs"
	"docquizai/internal/logger"
	"docquizai/internal/media"
	"docquizai/internal/notify"
	"docquizai/internal/quiz"
	"docquizai/internal/storage"
	"docquizai/internal/youtube"

	"github.com/gin-contrib/sessions"
	gsessions "github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const storeName = "docquizai_session"

// scheduler is a jobs.Scheduler that can be shut down.
type scheduler interface {
	jobs.Scheduler
	Stop()
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Registered so the profile survives the session store's gob encoding.
	gob.Register(handlers.UserProfile{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, log); err != nil {
			log.Fatal("failed to run migrations", "error", err)
		}
	}

	geminiClient, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
		MaxAttempts:    cfg.GeminiMaxAttempts,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize Gemini client", "error", err)
	}
	defer geminiClient.Close()

	files, err := newFileStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize document storage", "error", err)
	}

	scratchDir, err := os.MkdirTemp("", "docquizai-media-*")
	if err != nil {
		log.Fatal("failed to create scratch directory", "error", err)
	}
	defer os.RemoveAll(scratchDir)

	// Pipeline
	resolver := media.NewResolver(geminiClient, geminiClient, youtube.New(log), media.Options{
		Concurrency:          cfg.ImageConcurrency,
		TranscriptCharBudget: cfg.TranscriptCharBudget,
		TranscriptLang:       cfg.TranscriptLang,
		ScratchDir:           scratchDir,
	}, log)
	asm := assembler.New(resolver, files, database, log)
	engine := generator.New(geminiClient, database, cfg.BatchSize, log)
	discord := notify.NewDiscord(cfg.DiscordWebhookURL, log)
	runner := quiz.NewRunner(database, asm, engine, discord, log)

	sched, err := newScheduler(ctx, cfg, runner.Run, log)
	if err != nil {
		log.Fatal("failed to initialize job scheduler", "error", err)
	}

	service := quiz.NewService(database, files, sched, cfg.MaxQuestions, log)
	if _, err := service.RecoverPending(ctx); err != nil {
		log.Error("failed to recover pending quizzes", "error", err)
	}

	// Sessions live in Postgres through a database/sql handle on the pgx driver.
	sessionDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database connection for session store", "error", err)
	}
	defer sessionDB.Close()
	if err := sessionDB.PingContext(ctx); err != nil {
		log.Fatal("failed to ping database for session store", "error", err)
	}

	store, err := gsessions.NewStore(sessionDB, []byte(cfg.SessionSecret))
	if err != nil {
		log.Fatal("failed to create postgres session store", "error", err)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		Secure:   cfg.SessionSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	oauthConfig := &oauth2.Config{
		RedirectURL:  cfg.GoogleRedirectURL,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(sessions.Sessions(storeName, store))

	handler := handlers.NewHandler(oauthConfig, cfg.FrontendURL, database, service, discord, log)
	api.SetupRoutes(router, handler, cfg.FrontendURL, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// Running quizzes keep their checkpoint and are picked up again on the next start.
	sched.Stop()
	discord.Wait()
	log.Info("server exited properly")
}

// newFileStore picks Cloudflare R2 when it is fully configured and local disk otherwise.
func newFileStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Store, error) {
	if cfg.R2Enabled() {
		return storage.NewR2(ctx, storage.R2Options{
			AccountID:       cfg.CloudflareAccount,
			Bucket:          cfg.R2Bucket,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			PublicURL:       cfg.R2PublicURL,
		}, log)
	}
	log.Info("R2 not configured, storing documents on disk", "path", cfg.StoragePath)
	return storage.NewDisk(cfg.StoragePath)
}

// newScheduler uses the Redis queue when REDIS_URL is set and in-process goroutines otherwise.
func newScheduler(ctx context.Context, cfg *config.Config, handler jobs.Handler, log *logger.Logger) (scheduler, error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, running quiz jobs in-process")
		return jobs.NewLocal(handler, log), nil
	}

	rdb, err := jobs.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	queue := jobs.NewQueue(rdb, handler, cfg.WorkerCount, log)
	queue.Start()
	return queue, nil
}
