package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/sweatbell/internal/config"
	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to a library JSON document (required)")
	mode := flag.String("mode", "replace", "import mode: replace or merge")
	dryRun := flag.Bool("dry-run", false, "validate and report counts without touching the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: sweatbell-import -config config.yaml -file library.json [-mode replace|merge] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *mode != "replace" && *mode != "merge" {
		log.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Error("failed to read library file", "path", *filePath, "error", err)
		os.Exit(1)
	}

	exercises, err := models.ParseLibraryFile(data)
	if err != nil {
		log.Error("library document rejected", "path", *filePath, "error", err)
		os.Exit(1)
	}
	log.Info("library document validated", "exercises", len(exercises))

	if *dryRun {
		log.Info("dry run, nothing will be written to the database")
		for _, e := range exercises {
			log.Info("would import", "name", e.Name, "difficulty", e.Difficulty, "equipment", e.Equipment)
		}
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	switch *mode {
	case "replace":
		if err := db.ReplaceExercises(ctx, exercises); err != nil {
			log.Error("replace failed", "error", err)
			os.Exit(1)
		}
		log.Info("library replaced", "exercises", len(exercises))
	case "merge":
		for _, e := range exercises {
			if err := db.UpsertExercise(ctx, e); err != nil {
				log.Error("upsert failed", "name", e.Name, "error", err)
				os.Exit(1)
			}
			log.Info("imported", "name", e.Name, "difficulty", e.Difficulty)
		}
	}

	count, err := db.CountExercises(ctx)
	if err != nil {
		log.Error("failed to count exercises", "error", err)
		os.Exit(1)
	}
	log.Info("import complete", "mode", *mode, "library_size", count)
}
