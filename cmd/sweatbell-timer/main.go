package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/claude/sweatbell/internal/coach"
	"github.com/claude/sweatbell/internal/generator"
	"github.com/claude/sweatbell/internal/history"
	"github.com/claude/sweatbell/internal/library"
	"github.com/claude/sweatbell/internal/models"
	"github.com/claude/sweatbell/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "SweatBell server URL to fetch the library from (e.g. https://sweatbell.tail1234.ts.net)")
	filePath := flag.String("file", "", "path to a library JSON document")
	duration := flag.Duration("duration", 7*time.Minute, "workout length")
	equipmentCSV := flag.String("equipment", "", "comma-separated equipment on hand (empty allows everything)")
	policy := flag.String("policy", "extend", "short-session policy: extend or reject")
	noSave := flag.Bool("no-save", false, "don't record the workout in the local history")
	historyN := flag.Int("history", 0, "print the N most recent local workouts and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("sweatbell-timer", Version)
		return
	}

	// The countdown owns stdout; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *historyN > 0 {
		printHistory(log, *historyN)
		return
	}

	var shortSession generator.ShortSessionPolicy
	switch *policy {
	case "extend":
		shortSession = generator.ShortSessionExtend
	case "reject":
		shortSession = generator.ShortSessionReject
	default:
		fmt.Fprintf(os.Stderr, "Error: -policy must be extend or reject\n")
		os.Exit(1)
	}

	equipment := splitCSV(*equipmentCSV)
	exercises := coach.ResolveLibrary(*serverURL, *filePath, log)

	// Difficulty nudges from the keyboard write through to this in-memory
	// copy; they last for the run only.
	lib := library.NewMemory(exercises)

	gen := &generator.Generator{ShortSession: shortSession}
	plan, err := gen.Generate(models.SessionRequest{
		DurationSeconds: int(duration.Seconds()),
		Equipment:       equipment,
	}, exercises)
	if err != nil {
		log.Error("could not generate a plan", "error", err)
		os.Exit(1)
	}

	coach.PrintPlan(os.Stdout, plan)

	ctrl := session.NewController(plan, session.Options{
		Store:    lib,
		Eligible: generator.Eligible(exercises, equipment),
		Log:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := coach.New(ctrl, os.Stdin, os.Stdout, log).Run(ctx)

	if *noSave {
		return
	}
	dir, err := history.DefaultDir()
	if err != nil {
		log.Warn("workout not saved", "error", err)
		return
	}
	h, err := history.Open(dir)
	if err != nil {
		log.Warn("workout not saved", "error", err)
		return
	}
	defer h.Close()
	if err := h.Record(rec); err != nil {
		log.Warn("workout not saved", "error", err)
		return
	}
	log.Info("workout saved", "id", rec.ID)
}

func printHistory(log *slog.Logger, n int) {
	dir, err := history.DefaultDir()
	if err != nil {
		log.Error("no local history", "error", err)
		os.Exit(1)
	}
	h, err := history.Open(dir)
	if err != nil {
		log.Error("failed to open local history", "error", err)
		os.Exit(1)
	}
	defer h.Close()

	records, err := h.Recent(n)
	if err != nil {
		log.Error("failed to read local history", "error", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No workouts recorded yet.")
		return
	}
	for _, rec := range records {
		status := "stopped early"
		if rec.Completed {
			status = "completed"
		}
		fmt.Printf("%s  %s  %d exercises  %d skipped  %s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04"),
			models.FormatClock(rec.ElapsedSeconds),
			rec.EntryCount, rec.Skipped, status)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
