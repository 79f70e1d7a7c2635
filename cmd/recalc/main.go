package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Changyu123Chen/notion-ledger/internal/config"
	"github.com/Changyu123Chen/notion-ledger/internal/ledger"
	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	timeout := flag.Duration("timeout", 10*time.Minute, "Maximum run duration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithLevel(cfg.LogLevel)

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	store := notion.NewClient(cfg.NotionToken)
	engine := ledger.New(store, ledger.Databases{
		Transactions:  cfg.TransactionsDB,
		Accounts:      cfg.AccountsDB,
		DailyBalances: cfg.DailyBalancesDB,
		Budgets:       cfg.BudgetsDB,
	})

	log.Info().Msg("Starting daily recalculation")

	if err := engine.RunDailyRecalc(ctx); err != nil {
		log.Fatal().Err(err).Msg("Recalculation failed")
	}

	fmt.Println("Recalculation completed successfully.")
}
