// cmd/batch/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astra/config"
	"astra/logger"
	"astra/services"
	"astra/store"

	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	logger.SetDebug(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 数回リトライを試みる
	var db *store.Store
	for i := 0; i < 3; i++ {
		db, err = store.Open(ctx, cfg)
		if err == nil {
			break
		}
		logger.Warn("failed to open database", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Fatal("failed to open database after retries", "error", err)
	}
	defer db.Close()

	turns, err := store.OpenTurnStore(ctx, cfg, db)
	if err != nil {
		logger.Fatal("failed to open turn store", "error", err)
	}
	llm, err := services.NewLLM(services.LLMConfigFrom(cfg))
	if err != nil {
		logger.Fatal("failed to create llm provider", "error", err)
	}

	service := services.NewConsolidationService(db, turns, llm, cfg.ConsolidationMinMessages)
	processor := services.NewBatchProcessor(db, service,
		cfg.ConsolidationQuietPeriod, cfg.ConsolidationLookback, cfg.ConsolidationMinMessages)

	run := func() {
		logger.Info("starting batch consolidation")
		if _, err := processor.ProcessSessions(ctx); err != nil {
			logger.Error("batch consolidation failed", "error", err)
		}
	}

	// 初回実行
	run()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.ConsolidationSchedule, run); err != nil {
		logger.Fatal("invalid consolidation schedule", "schedule", cfg.ConsolidationSchedule, "error", err)
	}
	c.Start()
	logger.Info("batch consolidation scheduled", "schedule", cfg.ConsolidationSchedule)

	<-ctx.Done()
	logger.Info("shutting down batch service")
	<-c.Stop().Done()
}
