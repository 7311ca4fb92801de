// Command subtrans runs the subtitle translation service: it watches
// media libraries for subtitles missing a target-language version,
// translates them on a cron schedule, and serves the HTTP API and UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/ericjesse/video-translator-sub001/internal/config"
	"github.com/ericjesse/video-translator-sub001/internal/httpapi"
	"github.com/ericjesse/video-translator-sub001/internal/jobs"
	"github.com/ericjesse/video-translator-sub001/internal/library"
	"github.com/ericjesse/video-translator-sub001/internal/persistence"
	"github.com/ericjesse/video-translator-sub001/internal/service"
	"github.com/ericjesse/video-translator-sub001/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Optional .env for local runs; containers set real env vars.
	_ = godotenv.Load()

	settingsPath := config.RuntimeSettingsFilePath()
	var opts []config.Option
	settings, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(settings))
	case os.IsNotExist(err):
		// First run, environment configuration only.
	default:
		log.Fatal("Failed to load settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		log.Fatal("Failed to open job database %s: %v", cfg.DBPath(), err)
	}
	defer store.Close()

	queue := jobs.NewQueue(1, store)
	scanner := library.NewScanner(watchSources(cfg.Library.WatchDirs), cfg.Translate.TargetLanguage)
	cronRunner := cron.New()
	svc := service.New(*cfg, queue, scanner, cronRunner)

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		log.Fatal("Failed to initialize settings store: %v", err)
	}

	server := httpapi.NewServer(
		svc,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(svc.ApplyRuntimeSettings),
	)

	queue.Start(svc.ExecuteJob)
	defer queue.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runWithComponents(ctx, cfg, svc, cronRunner, server); err != nil {
		log.Fatal("Service failed: %v", err)
	}
	log.Info("Shutdown complete")
}

// runWithComponents registers the scan schedule, starts the cron engine
// and the HTTP server, and blocks until ctx is cancelled or the server
// fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	cronRunner cronEngine,
	server httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("failed to schedule scans: %w", err)
	}
	cronRunner.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}
	cronRunner.Stop()

	if serveErr == nil {
		serveErr = <-errCh
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// watchSources turns the configured watch directories into library
// sources, using the directory name as the display name.
func watchSources(dirs []string) []library.SourceConfig {
	sources := make([]library.SourceConfig, 0, len(dirs))
	seen := make(map[string]int, len(dirs))
	for _, dir := range dirs {
		id := filepath.Base(filepath.Clean(dir))
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		sources = append(sources, library.SourceConfig{ID: id, Name: id, Path: dir})
	}
	return sources
}
