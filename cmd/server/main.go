package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"joborchestrator/internal/api"
	"joborchestrator/internal/auth"
	"joborchestrator/internal/authstore"
	"joborchestrator/internal/config"
	"joborchestrator/internal/media"
	"joborchestrator/internal/mediaops"
	"joborchestrator/internal/pipeline"
	"joborchestrator/internal/queue"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
	"joborchestrator/pkg/logger"
)

// Version information (set by GoReleaser).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("orchestrator %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	cfg := config.Load()

	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Info("starting orchestrator", "version", version, "commit", commit)

	st, err := store.New(cfg.RootDir)
	if err != nil {
		log.Fatal("failed to initialize artifact store:", err)
	}

	authDB, err := authstore.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to initialize auth store:", err)
	}

	if err := bootstrapAdmin(authDB); err != nil {
		log.Fatal("failed to bootstrap admin user:", err)
	}

	authService := auth.NewService(cfg.JWTSecret)

	if err := st.IntegritySweep(); err != nil {
		log.Fatal("failed to run artifact store integrity sweep:", err)
	}

	hub := sse.NewHub(cfg.SSESubscriberBuffer)
	reg := registry.New(st, hub)

	interrupted, err := reg.LoadFromDisk()
	if err != nil {
		log.Fatal("failed to load job state from disk:", err)
	}

	extractor := mediaops.NewFFmpegExtractor("", "")
	separator := mediaops.NewToolVocalSeparator(cfg.Tools.DemucsBin)
	vad := mediaops.NewToolVADSegmenter(cfg.Tools.VADBin)
	transcriber := mediaops.NewToolTranscriber(cfg.Tools.WhisperBin)
	aligner := mediaops.NewToolAligner(cfg.Tools.AlignBin)

	executor := pipeline.NewExecutor(st, reg, hub, extractor, separator, vad, transcriber, aligner)
	if cfg.PhaseWeights != nil {
		executor.Weights = cfg.PhaseWeights
	}

	supervisor := queue.New(executor, reg, hub, cfg.AutoResumeOnStartup)
	supervisor.Start(context.Background(), interrupted)
	defer supervisor.Stop()

	mediaSrv := media.New(st, reg)

	handler := api.New(st, reg, supervisor, hub, mediaSrv, authService, authDB)
	router := api.NewRouter(handler, authService)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown:", err)
	}

	logger.Info("server exited")
}

// bootstrapAdmin ensures a single admin user exists, creating one from
// ADMIN_USERNAME/ADMIN_PASSWORD (defaulting to admin/changeme) on first
// run. Idempotent: authstore.EnsureAdminUser is a no-op once any user
// exists.
func bootstrapAdmin(authDB *authstore.Store) error {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = authDB.EnsureAdminUser(username, hashed)
	return err
}
