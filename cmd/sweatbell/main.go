package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/sweatbell/internal/config"
	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/server"
	"github.com/claude/sweatbell/internal/session"
	"github.com/claude/sweatbell/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	memory := flag.Bool("memory", false, "run without PostgreSQL: in-memory library, no history")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("SweatBell starting", "version", Version)

	// Load config. Memory mode falls back to dev defaults so it runs with
	// no setup at all.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !*memory {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		log.Warn("config unavailable, using dev defaults", "error", err)
		cfg = &config.Config{}
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 8080
		cfg.Auth.APIKey = "dev-key"
	}

	ctx := context.Background()

	var db *storage.DB
	if *memory {
		log.Info("memory mode: skipping database, history disabled")
	} else {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err = storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")

		// First run: seed the default bodyweight library.
		count, err := db.CountExercises(ctx)
		if err != nil {
			log.Error("failed to count exercises", "error", err)
			os.Exit(1)
		}
		if count == 0 {
			seeded, err := db.SeedExercises(ctx, library.Defaults())
			if err != nil {
				log.Error("failed to seed default library", "error", err)
				os.Exit(1)
			}
			log.Info("seeded default exercise library", "exercises", seeded)
		}
	}

	var lib library.Store
	var recorder session.HistoryRecorder
	if db != nil {
		lib = db
		recorder = db
	} else {
		lib = library.NewMemory(library.Defaults())
	}

	gen := &generator.Generator{
		ShortSession: generator.ShortSessionPolicy(cfg.Generation.ShortSessionPolicy),
	}

	mgr := session.NewManager(session.ManagerConfig{
		Library:     lib,
		Generator:   gen,
		Recorder:    recorder,
		Log:         log,
		MaxActive:   cfg.Sessions.MaxActive,
		IdleTimeout: time.Duration(cfg.Sessions.IdleTimeoutMinutes) * time.Minute,
	})

	srv := server.New(lib, db, gen, mgr, cfg.Auth.APIKey, log)

	// Listen over tsnet when enabled, plain TCP otherwise.
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		hostname := cfg.Tailscale.Hostname
		if hostname == "" {
			hostname = "sweatbell"
		}
		tsServer = &tsnet.Server{
			Hostname: hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "plain HTTP (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	mgr.Shutdown()
	log.Info("server stopped")
}
