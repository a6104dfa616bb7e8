// Command branchsnapd serves the branch-comparison snapshot API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/branchsnap/branchsnap/compare"
	"github.com/branchsnap/branchsnap/config"
	"github.com/branchsnap/branchsnap/dbopen"
	"github.com/branchsnap/branchsnap/events"
	"github.com/branchsnap/branchsnap/shield"
)

func main() {
	configPath := flag.String("config", os.Getenv("BRANCHSNAP_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	evts := events.NewLogger(db)
	svc := compare.New(db, cfg.RepoRoot, compare.WithLogger(logger), compare.WithEvents(evts))
	if err := svc.Init(ctx); err != nil {
		slog.Error("init schema", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(logger) {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Route("/api", svc.Routes)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("branchsnapd starting", "listen", cfg.Listen, "db", cfg.DBPath, "repo_root", cfg.RepoRoot)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve", "error", err)
		os.Exit(1)
	}
	slog.Info("branchsnapd stopped")
}
