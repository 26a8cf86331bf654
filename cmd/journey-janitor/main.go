package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulexconde/journeys/internal/config"
	"github.com/paulexconde/journeys/internal/database"
	"github.com/paulexconde/journeys/internal/pkg/log"
	"github.com/paulexconde/journeys/internal/pkg/workerpool"
	"github.com/paulexconde/journeys/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Error("main.config:", err)
		return 1
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error("main.config:", err)
		return 1
	}
	log.SetLevel(level)
	defer log.SetOutputFile(cfg.LogFile).Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("main.db.open:", err)
		return 1
	}
	defer db.Close()

	repo := services.NewJourneyRepository(db, cfg.PageSize)
	pool := workerpool.NewWorkerPool(ctx, cfg.WorkerCount, cfg.QueueSize)

	report, err := services.NewJanitor(repo, pool, cfg.JobRetries, cfg.JobRetryDelay).Run(ctx)
	if err != nil {
		log.Error("main.janitor:", err)
		return 1
	}
	if report.Failed > 0 || report.Dropped > 0 {
		return 2
	}
	return 0
}
