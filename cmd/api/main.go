package main

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/events"
	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/internal/logger"
	"github.com/jwebster45206/novel-engine/internal/middleware"
	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/schedule"
)

const defaultScript = "intro.yaml"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Novel Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"data_dir", cfg.DataDir)

	store, redisStore, err := storage.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	// Events are only broadcast when Redis is in use.
	var publisher events.Publisher = events.Noop{}
	if redisStore != nil {
		publisher = events.NewBroadcaster(redisStore.Client(), log)
	}

	library := storage.NewLibrary(cfg.DataDir, log)
	catalogs, err := library.Catalogs(context.Background())
	if err != nil {
		log.Error("Failed to load catalogs", "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(func(ctx context.Context, opts session.CreateOptions) (session.Deps, error) {
		s, err := library.Script(ctx, opts.Script)
		if err != nil {
			return session.Deps{}, err
		}
		saveOpts := []save.Option{save.WithSlotCount(cfg.SaveSlots), save.WithLogger(log)}
		if opts.Profile != "" {
			saveOpts = append(saveOpts, save.WithKeyPrefix("profile:"+opts.Profile+":"))
		}
		return session.Deps{
			Script:       s,
			Title:        opts.Script,
			Enemies:      catalogs.Enemies,
			Characters:   catalogs.Characters,
			PlayerID:     opts.Character,
			Skills:       catalogs.Skills,
			Saves:        save.NewManager(store, saveOpts...),
			Scheduler:    schedule.Real{},
			Logger:       log,
			Events:       publisher,
			RNG:          newRand(cfg.RNGSeed),
			AutoSave:     cfg.AutoSave,
			EnemyDelay:   cfg.EnemyThinkDelay,
			AutoInterval: cfg.AutoPlayInterval,
		}, nil
	}, session.WithIdleTTL(cfg.SessionIdleTTL), session.WithManagerLogger(log))

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go manager.Run(sweepCtx, cfg.SessionSweepInterval)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, manager.Len, log)
	mux.Handle("/health", healthHandler)

	sessionsHandler := handlers.NewSessionsHandler(manager, defaultScript, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	scriptHandler := handlers.NewScriptHandler(library, log)
	mux.Handle("/v1/scripts", scriptHandler)
	mux.Handle("/v1/scripts/", scriptHandler)

	if redisStore != nil {
		mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(redisStore.Client(), manager, log))
	}

	handler := middleware.LoggerWith(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoint streams indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopSweep()
	manager.CloseAll()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// newRand returns a per-session source. A non-zero seed makes battles
// reproducible across runs.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}
