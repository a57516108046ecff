package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/poolbracket/internal/config"
	"github.com/AdamBeresnev/poolbracket/internal/db"
	"github.com/AdamBeresnev/poolbracket/internal/lock"
	"github.com/AdamBeresnev/poolbracket/internal/service"
	"github.com/AdamBeresnev/poolbracket/internal/store"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

type application struct {
	sessions    *scs.SessionManager
	tokens      *token.Service
	tournaments *service.TournamentService
	templates   *service.TemplateService
	payouts     *service.PayoutService
	scoring     *service.ScoringService
}

func newApplication(database *sqlx.DB, sessions *scs.SessionManager, locker lock.Locker, tokens *token.Service, lockTTL time.Duration) *application {
	tournamentStore := store.NewTournamentStore(database)
	templateStore := store.NewTemplateStore(database)
	templates := service.NewTemplateService(database, templateStore)

	return &application{
		sessions:    sessions,
		tokens:      tokens,
		tournaments: service.NewTournamentService(database, tournamentStore, templateStore),
		templates:   templates,
		payouts:     service.NewPayoutService(tournamentStore, templates),
		scoring:     service.NewScoringService(database, tournamentStore, locker, tokens, lockTTL),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	database, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	if cfg.DatabaseDriver == db.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	}

	var locker lock.Locker = store.NewMatchLockStore(database)
	if cfg.LockBackend == config.LockBackendRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to redis: ", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	tokens := token.NewService(cfg.TokenSecret, cfg.TableTokenTTL)
	app := newApplication(database, sessionManager, locker, tokens, cfg.MatchLockTTL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      newRouter(app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost:%d (lock backend: %s)", cfg.ServerPort, cfg.LockBackend)
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}
}
